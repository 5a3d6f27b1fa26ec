// Package imagesizer crops images to an aspect ratio and converges them on a
// file-size or pixel target by repeated resize and re-encode.
package imagesizer

import (
	"context"

	"github.com/Skryldev/imagesizer/adapters/decoder"
	"github.com/Skryldev/imagesizer/adapters/encoder"
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/converge"
	"github.com/Skryldev/imagesizer/core"
	"github.com/Skryldev/imagesizer/hooks"
)

// Re-exported request vocabulary.
var (
	Square      = core.Square
	Ratio16x9   = core.Ratio16x9
	Ratio4x3    = core.Ratio4x3
	CustomRatio = core.CustomRatio
	ByFileSize  = core.ByFileSize
	ByWidth     = core.ByWidth
	ByHeight    = core.ByHeight
)

const (
	Auto     = core.OperationAuto
	Compress = core.OperationCompress
	Upscale  = core.OperationUpscale
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Sizer is the primary entry point.
type Sizer struct {
	engine *converge.Engine
	inner  *core.Processor
	reg    *core.DefaultRegistry
}

// New creates a fully wired Sizer with JPEG, PNG, WebP, BMP and TIFF decoders
// and JPEG, PNG, BMP and TIFF encoders.  Builds with the "vips" tag also
// encode WebP.
func New(cfg config.Config) (*Sizer, error) {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterDecoder(core.FormatBMP, decoder.NewBMP())
	reg.RegisterDecoder(core.FormatTIFF, decoder.NewTIFF())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.DefaultQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatBMP, encoder.NewBMP())
	reg.RegisterEncoder(core.FormatTIFF, encoder.NewTIFF())
	registerOptionalCodecs(reg, cfg)

	engine, err := converge.NewEngine(cfg, reg)
	if err != nil {
		return nil, err
	}
	return &Sizer{engine: engine, inner: core.New(cfg, engine), reg: reg}, nil
}

// SetLogger attaches a structured logger to the engine and the batch runner.
func (s *Sizer) SetLogger(l core.Logger) {
	s.engine.SetLogger(l)
	s.inner.SetLogger(l)
}

// SetMetrics attaches a metrics collector.  Per-step timings are collected
// through a MetricsHook, outcomes by the batch runner.
func (s *Sizer) SetMetrics(m core.MetricsCollector) {
	s.inner.SetMetrics(m)
	s.engine.AddHook(hooks.NewMetricsHook(m))
}

// AddHook registers an observer for pipeline step events.  Call before the
// first transform.
func (s *Sizer) AddHook(h core.Hook) { s.engine.AddHook(h) }

// RegisterDecoder registers a custom decoder for the given format.
func (s *Sizer) RegisterDecoder(f core.Format, d core.Decoder) { s.reg.RegisterDecoder(f, d) }

// RegisterEncoder registers a custom encoder for the given format.
func (s *Sizer) RegisterEncoder(f core.Format, e core.Encoder) { s.reg.RegisterEncoder(f, e) }

// Registry exposes the codec registry.
func (s *Sizer) Registry() core.Registry { return s.reg }

// Start starts the background worker pool used by Submit.
func (s *Sizer) Start() { s.inner.Start() }

// Stop shuts down the worker pool.
func (s *Sizer) Stop() { s.inner.Stop() }

// Transform runs one file synchronously.
func (s *Sizer) Transform(ctx context.Context, req core.Request, progress core.ProgressFunc) (*core.TransformResult, error) {
	return s.inner.Process(ctx, req, progress)
}

// Batch transforms every request; see core.Processor.Batch.
func (s *Sizer) Batch(ctx context.Context, reqs []core.Request, updates chan<- core.ProgressUpdate) ([]*core.TransformResult, []error) {
	return s.inner.Batch(ctx, reqs, updates)
}

// Submit enqueues an async job for the worker pool.
func (s *Sizer) Submit(job core.Job) error { return s.inner.Submit(job) }

// Stats returns lightweight processing statistics.
func (s *Sizer) Stats() (processed, errors int64) {
	return s.inner.ProcessedCount(), s.inner.ErrorCount()
}

// Formats lists the formats that can be read and written.
func (s *Sizer) Formats() (decodable, encodable []core.Format) {
	return s.reg.Decodable(), s.reg.Encodable()
}

// CanEncode reports whether f is written in its own format rather than PNG.
func (s *Sizer) CanEncode(f core.Format) bool {
	return core.OutputFormat(s.reg, f) == f
}
