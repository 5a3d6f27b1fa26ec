//go:build vips

// Package vips provides a libvips-backed WebP encoder.  It is only compiled
// with the "vips" build tag since it needs libvips and cgo.
package vips

import (
	"context"
	"image"
	"image/png"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/utils"
)

// BackendConfig configures the libvips runtime.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

var startOnce sync.Once

// WebP encodes image.Image values to WebP through libvips.
// Safe for concurrent use across goroutines.
type WebP struct {
	cfg BackendConfig
}

// NewWebP starts libvips on first use and returns a ready encoder.  Call
// Shutdown when the process exits.
func NewWebP(cfg BackendConfig) *WebP {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	startOnce.Do(func() {
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
	})
	return &WebP{cfg: cfg}
}

// Shutdown releases all libvips resources.
func Shutdown() { govips.Shutdown() }

func (w *WebP) CanEncode(f core.Format) bool { return f == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode", apperrors.ErrEmptyInput)
	}

	// libvips has no constructor for Go pixel buffers; hand it a fast PNG.
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(buf, src); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.bridge", err)
	}

	ref, err := govips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.load", err)
	}
	defer ref.Close()

	quality := opts.Quality
	if quality <= 0 {
		quality = w.cfg.DefaultQuality
	}
	ep := govips.NewWebpExportParams()
	ep.Quality = quality
	ep.Lossless = opts.Lossless
	ep.StripMetadata = true
	out, _, err := ref.ExportWebp(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.webp", err)
	}
	return out, nil
}

// Register installs the WebP encoder into reg.
func Register(reg core.Registry, w *WebP) {
	reg.RegisterEncoder(core.FormatWebP, w)
}

var _ core.Encoder = (*WebP)(nil)
