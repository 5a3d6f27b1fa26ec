package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Skryldev/imagesizer/core"
)

// parseCrop accepts none, square, 16:9, 4:3 or W:H.
func parseCrop(s string, smart bool) (core.CropSpec, error) {
	var spec core.CropSpec
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return core.NoCrop, nil
	case "square", "1:1":
		spec = core.Square()
	case "16:9":
		spec = core.Ratio16x9()
	case "4:3":
		spec = core.Ratio4x3()
	default:
		w, h, ok := strings.Cut(s, ":")
		if !ok {
			return core.CropSpec{}, fmt.Errorf("crop %q: want none, square, 16:9, 4:3 or W:H", s)
		}
		wf, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return core.CropSpec{}, fmt.Errorf("crop %q: width: %w", s, err)
		}
		hf, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return core.CropSpec{}, fmt.Errorf("crop %q: height: %w", s, err)
		}
		if wf <= 0 || hf <= 0 {
			return core.CropSpec{}, fmt.Errorf("crop %q: both sides must be positive", s)
		}
		spec = core.CustomRatio(wf, hf)
	}
	if smart {
		spec.Anchor = core.AnchorSmart
	}
	return spec, nil
}

func parseOperation(s string) (core.Operation, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return core.OperationAuto, nil
	case "compress":
		return core.OperationCompress, nil
	case "upscale":
		return core.OperationUpscale, nil
	}
	return core.OperationAuto, fmt.Errorf("op %q: want auto, compress or upscale", s)
}
