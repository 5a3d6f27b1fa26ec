package converge

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/pipeline"
	"github.com/Skryldev/imagesizer/utils"
)

// Input is a decoded, already cropped image ready for convergence.
type Input struct {
	// Image must hold an image.Image; its Format selects the encoder.
	Image       *core.ImageData
	SourcePath  string
	SourceBytes int64

	OutputDir string
	// BaseName already carries the crop label; Ext is written as given.
	BaseName string
	Ext      string

	Target                 core.SizeTarget
	Operation              core.Operation
	Quality                int
	SkipIfAlreadySatisfied bool
}

// Converge resizes and re-encodes in.Image until in.Target is met or the
// iteration budget runs out.  Every attempt goes to one scratch file, which
// is removed before Converge returns.
func (e *Engine) Converge(ctx context.Context, in Input, progress core.ProgressFunc) (*core.TransformResult, error) {
	report := reporter(progress)
	cv := e.cfg.Convergence

	src, ok := in.Image.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, "converge", apperrors.ErrEmptyInput)
	}
	cw, ch := src.Bounds().Dx(), src.Bounds().Dy()
	target := in.Target.Value

	current := metric(in.Target.Kind, in.SourceBytes, cw, ch)
	if current <= 0 {
		return nil, apperrors.Newf(apperrors.CategoryInput, "converge", "%w: source measures %v", apperrors.ErrInvalidTarget, current)
	}
	op := resolve(in.Operation, current, target)

	res := &core.TransformResult{
		SourcePath: in.SourcePath,
		Operation:  op,
		Width:      cw,
		Height:     ch,
		Quality:    in.Quality,
	}

	if in.SkipIfAlreadySatisfied && reached(op, current, target) {
		e.logger.Info("converge.already_satisfied",
			"source", in.SourcePath,
			"metric", in.Target.Kind.String(),
			"current", current,
			"target", target,
		)
		report(1)
		res.Ratio = 1
		res.Outcome = core.OutcomeAlreadySatisfied
		res.Message = fmt.Sprintf("already satisfies target: %s %.4g vs %.4g", in.Target.Kind, current, target)
		res.SizeBytes = in.SourceBytes
		return res, nil
	}

	scratch, err := e.store.Scratch(in.Ext)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := e.store.Remove(scratch); err != nil {
			e.logger.Warn("converge.scratch_cleanup", "path", scratch, "error", err.Error())
		}
	}()

	scale := initialScale(in.Target.Kind, current, target)
	quality := max(cv.MinQuality, min(in.Quality, cv.MaxQuality))

	for i := 0; i < cv.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, "converge", err)
		}

		newW, newH := utils.ScaleBy(cw, ch, scale)
		out, _, err := e.newPipeline(
			&pipeline.ResizeStep{Width: newW, Height: newH, Resampler: e.resample},
			&pipeline.EncodeStep{Registry: e.registry, BaseOptions: core.EncodeOptions{Quality: quality}},
		).Run(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		size, err := e.store.Overwrite(ctx, scratch, out.Data)
		if err != nil {
			return nil, err
		}

		achieved := metric(in.Target.Kind, size, newW, newH)
		report(float64(i+1) / float64(cv.MaxIterations))
		e.logger.Debug("converge.attempt",
			"source", in.SourcePath,
			"iteration", i,
			"scale", scale,
			"quality", quality,
			"width", newW,
			"height", newH,
			"achieved", achieved,
			"target", target,
		)

		if reached(op, achieved, target) {
			name := fmt.Sprintf("%s_%s_%dof100%%%s", in.BaseName, op.PastTense(), utils.AreaPercent(newW, newH, cw, ch), in.Ext)
			path, err := e.store.Promote(ctx, scratch, in.OutputDir, name)
			if err != nil {
				return nil, err
			}
			report(1)
			res.OutputPath = path
			res.Ratio = scale
			res.Outcome = core.OutcomeConverged
			res.Iterations = i + 1
			res.Width, res.Height = newW, newH
			res.SizeBytes = size
			res.Quality = quality
			return res, nil
		}

		if op == core.OperationCompress {
			scale *= cv.ShrinkFactor
			quality = max(quality-cv.QualityStep, cv.MinQuality)
		} else {
			scale *= cv.GrowFactor
			quality = min(quality+cv.QualityStep, cv.MaxQuality)
		}
	}

	e.logger.Warn("converge.exhausted", "source", in.SourcePath, "iterations", cv.MaxIterations, "target", target)
	report(1)
	res.Outcome = core.OutcomeExhausted
	res.Iterations = cv.MaxIterations
	res.Message = fmt.Sprintf("target not reached after %d iterations", cv.MaxIterations)
	return res, nil
}

// metric is the file size in MB for a file-size target, otherwise the
// targeted pixel dimension.
func metric(kind core.TargetKind, sizeBytes int64, w, h int) float64 {
	switch kind {
	case core.TargetWidth:
		return float64(w)
	case core.TargetHeight:
		return float64(h)
	default:
		return utils.BytesToMB(sizeBytes)
	}
}

// resolve fixes Auto once.  Equality resolves to Upscale.
func resolve(op core.Operation, current, target float64) core.Operation {
	if op != core.OperationAuto {
		return op
	}
	if current > target {
		return core.OperationCompress
	}
	return core.OperationUpscale
}

func reached(op core.Operation, achieved, target float64) bool {
	if op == core.OperationCompress {
		return achieved <= target
	}
	return achieved >= target
}

// initialScale estimates the first scale: file size tracks pixel area, so a
// size ratio needs its square root.
func initialScale(kind core.TargetKind, current, target float64) float64 {
	if kind == core.TargetFileSize {
		return math.Sqrt(target / current)
	}
	return target / current
}
