package pipeline

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Resampler scales src to exactly w×h pixels.
type Resampler func(src image.Image, w, h int) image.Image

// Resampler names accepted by ResamplerByName.
const (
	ResampleLanczos         = "lanczos"
	ResampleCatmullRom      = "catmullrom"
	ResampleLinear          = "linear"
	ResampleXDrawCatmullRom = "xdraw-catmullrom"
	ResampleXDrawBiLinear   = "xdraw-bilinear"
)

// ResamplerByName maps a configured filter name to a Resampler.  The empty
// name selects Lanczos.
func ResamplerByName(name string) (Resampler, error) {
	switch name {
	case "", ResampleLanczos:
		return imagingResampler(imaging.Lanczos), nil
	case ResampleCatmullRom:
		return imagingResampler(imaging.CatmullRom), nil
	case ResampleLinear:
		return imagingResampler(imaging.Linear), nil
	case ResampleXDrawCatmullRom:
		return xdrawResampler(xdraw.CatmullRom), nil
	case ResampleXDrawBiLinear:
		return xdrawResampler(xdraw.BiLinear), nil
	}
	return nil, fmt.Errorf("unknown resampler %q", name)
}

func imagingResampler(f imaging.ResampleFilter) Resampler {
	return func(src image.Image, w, h int) image.Image {
		return imaging.Resize(src, w, h, f)
	}
}

func xdrawResampler(k xdraw.Interpolator) Resampler {
	return func(src image.Image, w, h int) image.Image {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		k.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		return dst
	}
}
