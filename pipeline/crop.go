package pipeline

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/utils"
)

// Crop returns the region of img selected by spec, anchored at the centre.
// CropNone returns img itself.
func Crop(img image.Image, spec core.CropSpec) (image.Image, error) {
	if spec.Kind == core.CropNone {
		return img, nil
	}
	rect, err := CropRect(img.Bounds(), spec)
	if err != nil {
		return nil, err
	}
	if rect == img.Bounds() {
		return img, nil
	}
	return imaging.Crop(img, rect), nil
}

// CropRect computes the centred crop window for spec inside bounds.  When the
// removed margin is odd the extra pixel comes off the right or bottom edge.
func CropRect(bounds image.Rectangle, spec core.CropSpec) (image.Rectangle, error) {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, apperrors.New(apperrors.CategoryPipeline, "crop", apperrors.ErrInvalidDimensions)
	}

	newW, newH := w, h
	switch spec.Kind {
	case core.CropNone:
		return bounds, nil
	case core.CropSquare:
		side := min(w, h)
		newW, newH = side, side
	default:
		r, err := TargetRatio(spec)
		if err != nil {
			return image.Rectangle{}, err
		}
		if float64(w)/float64(h) > r {
			newW = clampSide(math.Round(float64(h)*r), w)
		} else {
			newH = clampSide(math.Round(float64(w)/r), h)
		}
	}

	x0 := bounds.Min.X + (w-newW)/2
	y0 := bounds.Min.Y + (h-newH)/2
	return image.Rect(x0, y0, x0+newW, y0+newH), nil
}

// TargetRatio returns width/height of a ratio crop.
func TargetRatio(spec core.CropSpec) (float64, error) {
	switch spec.Kind {
	case core.CropSquare:
		return 1, nil
	case core.Crop16x9:
		return 16.0 / 9.0, nil
	case core.Crop4x3:
		return 4.0 / 3.0, nil
	case core.CropCustom:
		if err := ValidateCrop(spec); err != nil {
			return 0, err
		}
		return spec.Width / spec.Height, nil
	}
	return 0, apperrors.Newf(apperrors.CategoryInput, "crop", "%w: kind %s has no ratio", apperrors.ErrInvalidAspectRatio, spec.Kind)
}

// ValidateCrop rejects custom ratios with a non-positive or non-finite side.
func ValidateCrop(spec core.CropSpec) error {
	if spec.Kind != core.CropCustom {
		return nil
	}
	if !positiveFinite(spec.Width) || !positiveFinite(spec.Height) {
		return apperrors.Newf(apperrors.CategoryInput, "crop", "%w: %v:%v", apperrors.ErrInvalidAspectRatio, spec.Width, spec.Height)
	}
	return nil
}

// Label is the filename suffix recording which crop produced an output.
func Label(spec core.CropSpec) string {
	switch spec.Kind {
	case core.CropSquare:
		return "square"
	case core.Crop16x9:
		return "16×9"
	case core.Crop4x3:
		return "4×3"
	case core.CropCustom:
		return fmt.Sprintf("%s×%s", utils.FormatRatioComponent(spec.Width), utils.FormatRatioComponent(spec.Height))
	}
	return ""
}

func clampSide(v float64, limit int) int {
	return max(1, min(int(v), limit))
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
