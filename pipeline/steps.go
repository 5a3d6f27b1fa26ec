package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.Image.  An unknown
// Format is sniffed from the bytes first.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	format := img.Format
	if format == "" || format == core.FormatUnknown {
		format = utils.DetectFormat(img.Data)
	}
	dec, ok := s.Registry.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	decoded.Meta.SizeBytes = int64(len(img.Data))
	return decoded, nil
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// CropStep applies a CropSpec.  With AnchorSmart the window keeps the size
// Crop would use and is moved onto the region smartcrop scores highest.
type CropStep struct {
	Spec core.CropSpec
}

func (s *CropStep) Name() string { return "crop" }

func (s *CropStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	if s.Spec.Kind == core.CropNone {
		return img, nil
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	rect, err := CropRect(src.Bounds(), s.Spec)
	if err != nil {
		return nil, err
	}
	if s.Spec.Anchor == core.AnchorSmart && rect != src.Bounds() {
		rect, err = smartPlace(ctx, src, rect)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
		}
	}

	out := *img
	out.Image = imaging.Crop(src, rect)
	out.Meta.Width = rect.Dx()
	out.Meta.Height = rect.Dy()
	return &out, nil
}

// smartPlace centres window on the best smartcrop region, clamped to the
// image bounds.
func smartPlace(ctx context.Context, img image.Image, window image.Rectangle) (image.Rectangle, error) {
	analyzer := smartcrop.NewAnalyzer(&resizer{filter: imaging.Lanczos})

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)
	go func() {
		best, err := analyzer.FindBestCrop(img, window.Dx(), window.Dy())
		resultChan <- cropResult{crop: best, err: err}
	}()

	var best image.Rectangle
	select {
	case <-ctx.Done():
		return image.Rectangle{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			return image.Rectangle{}, fmt.Errorf("finding best crop: %w", res.err)
		}
		best = res.crop
	}

	b := img.Bounds()
	cx := (best.Min.X + best.Max.X) / 2
	cy := (best.Min.Y + best.Max.Y) / 2
	x0 := max(b.Min.X, min(cx-window.Dx()/2, b.Max.X-window.Dx()))
	y0 := max(b.Min.Y, min(cy-window.Dy()/2, b.Max.Y-window.Dy()))
	return image.Rect(x0, y0, x0+window.Dx(), y0+window.Dy()), nil
}

// resizer implements the smartcrop.Resizer interface.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep resizes the image to the given dimensions, preserving aspect ratio
// when one axis is 0.
type ResizeStep struct {
	Width, Height int
	// Resampler defaults to Lanczos.
	Resampler Resampler
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	srcB := src.Bounds()
	dstW, dstH := utils.ScaleDimensions(srcB.Dx(), srcB.Dy(), s.Width, s.Height)
	if dstW == srcB.Dx() && dstH == srcB.Dy() {
		return img, nil // nothing to do
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	resample := s.Resampler
	if resample == nil {
		resample = imagingResampler(imaging.Lanczos)
	}

	out := *img
	out.Image = resample(src, dstW, dstH)
	out.Meta.Width = dstW
	out.Meta.Height = dstH
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the image.Image into encoded bytes using the registry.
// Quality only reaches lossy encoders; lossless formats get their strongest
// compression instead.
type EncodeStep struct {
	Registry    core.Registry
	BaseOptions core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	enc, ok := s.Registry.EncoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	opts := s.BaseOptions
	if !img.Format.Lossy() {
		opts.Quality = 0
		opts.Lossless = true
	}

	data, err := enc.Encode(ctx, img, opts)
	if err != nil {
		return nil, err
	}

	out := *img
	out.Data = data
	out.Meta.Format = img.Format
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}

// compile-time interface checks
var (
	_ core.Step = (*DecodeStep)(nil)
	_ core.Step = (*CropStep)(nil)
	_ core.Step = (*ResizeStep)(nil)
	_ core.Step = (*EncodeStep)(nil)
)
