// Package converge implements the single-file transform: crop the source,
// then resize and re-encode it until a file-size or pixel target is met.
package converge

import (
	"context"
	"math"
	"path/filepath"
	"strings"

	"github.com/Skryldev/imagesizer/adapters/storage"
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/pipeline"
	"github.com/Skryldev/imagesizer/utils"
)

// Engine runs transforms.  It holds no per-call state and is safe for
// concurrent use once wired; register hooks before the first call.
type Engine struct {
	cfg      config.Config
	registry core.Registry
	store    *storage.Local
	resample pipeline.Resampler
	logger   core.Logger
	// base carries hooks and step retry; every attempt runs on a clone.
	base *pipeline.Pipeline
}

// NewEngine validates cfg and returns an Engine that decodes and encodes
// through reg.
func NewEngine(cfg config.Config, reg core.Registry) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "converge.new", err)
	}
	rs, err := pipeline.ResamplerByName(cfg.Convergence.Resampler)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "converge.new", err)
	}
	return &Engine{
		cfg:      cfg,
		registry: reg,
		store:    storage.NewLocal(cfg.ScratchDir, 0o644, cfg.ChunkSize, cfg.MaxImageBytes),
		resample: rs,
		logger:   core.NopLogger{},
		base:     pipeline.New().WithRetry(cfg.MaxRetries, cfg.RetryDelay),
	}, nil
}

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(l core.Logger) {
	if l == nil {
		l = core.NopLogger{}
	}
	e.logger = l
}

// AddHook registers an observer for every pipeline step the engine runs.
func (e *Engine) AddHook(h core.Hook) { e.base.AddHook(h) }

// Transform is the single-file boundary: validate, read, decode, crop, then
// either write the cropped image or converge on req.Target.
func (e *Engine) Transform(ctx context.Context, req core.Request, progress core.ProgressFunc) (*core.TransformResult, error) {
	report := reporter(progress)
	base, ext := utils.SplitName(req.SourcePath)

	if strings.EqualFold(ext, ".gif") {
		e.logger.Info("transform.skipped", "source", req.SourcePath, "reason", "gif")
		report(1)
		return &core.TransformResult{
			SourcePath: req.SourcePath,
			Ratio:      1,
			Message:    "skipped: animated GIF is not supported",
			Outcome:    core.OutcomeSkipped,
			Operation:  req.Operation,
		}, nil
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(req.SourcePath)
	}
	quality := req.Quality
	if quality == 0 {
		quality = e.cfg.DefaultQuality
	}
	if err := validate(req.Target, req.Crop, quality); err != nil {
		return nil, err
	}
	if err := e.store.CheckDir(outDir); err != nil {
		return nil, err
	}

	data, err := e.store.ReadSource(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}
	decoded, _, err := e.newPipeline(&pipeline.DecodeStep{Registry: e.registry}).
		Run(ctx, &core.ImageData{Data: data, Format: core.FormatUnknown, OriginalSize: int64(len(data))})
	if err != nil {
		return nil, err
	}
	img, _, err := e.newPipeline(&pipeline.CropStep{Spec: req.Crop}).Run(ctx, decoded)
	if err != nil {
		return nil, err
	}

	outFormat := core.OutputFormat(e.registry, img.Format)
	if outFormat != img.Format {
		e.logger.Warn("transform.format_fallback", "source", req.SourcePath, "from", img.Format, "to", outFormat)
		ext = outFormat.Extension()
		img.Format = outFormat
	}
	if label := pipeline.Label(req.Crop); label != "" {
		base += "_" + label
	}

	var res *core.TransformResult
	if req.Target.Kind == core.TargetNone {
		res, err = e.cropOnly(ctx, req, img, outDir, base+ext, quality, report)
	} else {
		res, err = e.Converge(ctx, e.input(req, img, data, outDir, base, ext, quality), progress)
	}
	if err != nil {
		return nil, err
	}
	res.SourceBytes = int64(len(data))
	res.SourceWidth = decoded.Meta.Width
	res.SourceHeight = decoded.Meta.Height
	return res, nil
}

func (e *Engine) input(req core.Request, img *core.ImageData, data []byte, outDir, base, ext string, quality int) Input {
	skip := e.cfg.Convergence.SkipIfAlreadySatisfied
	if req.SkipIfAlreadySatisfied != nil {
		skip = *req.SkipIfAlreadySatisfied
	}
	return Input{
		Image:                  img,
		SourcePath:             req.SourcePath,
		SourceBytes:            int64(len(data)),
		OutputDir:              outDir,
		BaseName:               base,
		Ext:                    ext,
		Target:                 req.Target,
		Operation:              req.Operation,
		Quality:                quality,
		SkipIfAlreadySatisfied: skip,
	}
}

func (e *Engine) cropOnly(ctx context.Context, req core.Request, img *core.ImageData, dir, name string, quality int, report core.ProgressFunc) (*core.TransformResult, error) {
	enc, _, err := e.newPipeline(
		&pipeline.EncodeStep{Registry: e.registry, BaseOptions: core.EncodeOptions{Quality: quality}},
	).Run(ctx, img)
	if err != nil {
		return nil, err
	}
	path, err := e.store.WriteNew(ctx, dir, name, enc.Data)
	if err != nil {
		return nil, err
	}
	report(1)
	return &core.TransformResult{
		SourcePath: req.SourcePath,
		OutputPath: path,
		Ratio:      1,
		Outcome:    core.OutcomeCropOnly,
		Operation:  req.Operation,
		Width:      enc.Meta.Width,
		Height:     enc.Meta.Height,
		SizeBytes:  int64(len(enc.Data)),
		Quality:    quality,
	}, nil
}

func (e *Engine) newPipeline(steps ...core.Step) *pipeline.Pipeline {
	return e.base.Clone().Use(steps...)
}

func validate(target core.SizeTarget, crop core.CropSpec, quality int) error {
	switch target.Kind {
	case core.TargetNone:
	case core.TargetFileSize, core.TargetWidth, core.TargetHeight:
		v := target.Value
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Newf(apperrors.CategoryInput, "transform.validate", "%w: %s %v", apperrors.ErrInvalidTarget, target.Kind, v)
		}
	default:
		return apperrors.Newf(apperrors.CategoryInput, "transform.validate", "%w: unknown kind %d", apperrors.ErrInvalidTarget, int(target.Kind))
	}
	if err := pipeline.ValidateCrop(crop); err != nil {
		return err
	}
	if quality < 1 || quality > 100 {
		return apperrors.Newf(apperrors.CategoryInput, "transform.validate", "%w: %d", apperrors.ErrInvalidQuality, quality)
	}
	return nil
}

func reporter(progress core.ProgressFunc) core.ProgressFunc {
	if progress == nil {
		return func(float64) {}
	}
	return progress
}

var _ core.Transformer = (*Engine)(nil)
