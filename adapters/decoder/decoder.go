// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

// Image decodes one format with a pure-Go codec.  All decoders in this
// package are stateless and safe for concurrent use.
type Image struct {
	format core.Format
	decode func(io.Reader) (image.Image, error)
}

// NewJPEG decodes baseline and progressive JPEG with image/jpeg.
func NewJPEG() *Image { return &Image{format: core.FormatJPEG, decode: jpeg.Decode} }

func NewPNG() *Image { return &Image{format: core.FormatPNG, decode: png.Decode} }

// NewWebP decodes WebP with x/image.  Animated files yield their first frame.
func NewWebP() *Image { return &Image{format: core.FormatWebP, decode: webp.Decode} }

func NewBMP() *Image { return &Image{format: core.FormatBMP, decode: bmp.Decode} }

func NewTIFF() *Image { return &Image{format: core.FormatTIFF, decode: tiff.Decode} }

func (d *Image) CanDecode(format core.Format) bool { return format == d.format }

func (d *Image) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	op := string(d.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	img, err := d.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	bounds := img.Bounds()
	return &core.ImageData{
		Image:  img,
		Format: d.format,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     d.format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

// hasAlpha reports whether the pixel model carries alpha, not whether any
// pixel is actually translucent.
func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

var _ core.Decoder = (*Image)(nil)
