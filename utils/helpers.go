package utils

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Skryldev/imagesizer/core"
)

const bytesPerMB = 1024 * 1024

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) core.Format {
	if len(data) < 4 {
		return core.FormatUnknown
	}
	return formatFromMIME(mimetype.Detect(data).String())
}

func formatFromMIME(mime string) core.Format {
	switch mime {
	case "image/jpeg":
		return core.FormatJPEG
	case "image/png", "image/vnd.mozilla.apng":
		return core.FormatPNG
	case "image/webp":
		return core.FormatWebP
	case "image/bmp", "image/x-ms-bmp":
		return core.FormatBMP
	case "image/tiff":
		return core.FormatTIFF
	case "image/gif":
		return core.FormatGIF
	}
	return core.FormatUnknown
}

// FormatFromExt maps a file extension (with or without the dot, any case).
func FormatFromExt(ext string) core.Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "jpe", "jfif":
		return core.FormatJPEG
	case "png":
		return core.FormatPNG
	case "webp":
		return core.FormatWebP
	case "bmp":
		return core.FormatBMP
	case "tif", "tiff":
		return core.FormatTIFF
	case "gif":
		return core.FormatGIF
	}
	return core.FormatUnknown
}

// SplitName returns the base name of path without its extension, and the
// extension as written (".JPG" stays ".JPG").
func SplitName(path string) (base, ext string) {
	name := filepath.Base(path)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return int(float64(srcW) * ratio), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, int(float64(srcH) * ratio)
	}
	return targetW, targetH
}

// ScaleBy multiplies both sides by ratio and floors the result.  A side that
// floors to zero is lifted to one pixel.
func ScaleBy(w, h int, ratio float64) (int, int) {
	nw := int(math.Floor(float64(w) * ratio))
	nh := int(math.Floor(float64(h) * ratio))
	return max(nw, 1), max(nh, 1)
}

// AreaPercent is floor(newW*newH / (w*h) * 100).
func AreaPercent(newW, newH, w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	return int(int64(newW) * int64(newH) * 100 / (int64(w) * int64(h)))
}

// BytesToMB converts a byte count to megabytes (MiB).
func BytesToMB(n int64) float64 { return float64(n) / bytesPerMB }

// FormatRatioComponent prints whole numbers without decimals and keeps the
// shortest exact form otherwise (1 → "1", 2.35 → "2.35").
func FormatRatioComponent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
