// Package pipeline chains image steps (decode, crop, resize, encode), runs
// hooks around each of them and retries transient step failures.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

// Pipeline executes a sequence of Steps with hook and retry support.
type Pipeline struct {
	steps      []core.Step
	hooks      []core.Hook
	maxRetries int
	retryDelay time.Duration
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends steps.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers observers.
func (p *Pipeline) AddHook(h ...core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h...)
	return p
}

// WithRetry sets the retry count and delay for retryable step errors.
func (p *Pipeline) WithRetry(maxRetries int, delay time.Duration) *Pipeline {
	p.maxRetries = maxRetries
	p.retryDelay = delay
	return p
}

// StepNames lists the configured steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes the pipeline on img.  It returns the final ImageData and the
// time spent in each step.
func (p *Pipeline) Run(ctx context.Context, img *core.ImageData) (*core.ImageData, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	current := img

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}

		result, elapsed, err := p.runStep(ctx, step, current)
		timings[step.Name()] += elapsed
		if err != nil {
			return nil, timings, err
		}
		current = result
	}
	return current, timings, nil
}

func (p *Pipeline) runStep(ctx context.Context, step core.Step, img *core.ImageData) (*core.ImageData, time.Duration, error) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, step.Name(), img)
	}

	result, elapsed, err := p.attempt(ctx, step, img)

	for _, h := range p.hooks {
		h.AfterStep(ctx, step.Name(), result, elapsed, err)
	}
	return result, elapsed, err
}

// attempt runs step up to maxRetries+1 times.  The returned duration is the
// last attempt's.
func (p *Pipeline) attempt(ctx context.Context, step core.Step, img *core.ImageData) (*core.ImageData, time.Duration, error) {
	var (
		result  *core.ImageData
		elapsed time.Duration
		err     error
	)
	for i := 0; i <= p.maxRetries; i++ {
		start := time.Now()
		result, err = step.Execute(ctx, img)
		elapsed = time.Since(start)

		if err == nil || !apperrors.IsRetryable(err) || i == p.maxRetries {
			return result, elapsed, err
		}
		select {
		case <-ctx.Done():
			return nil, elapsed, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), ctx.Err())
		case <-time.After(p.retryDelay):
		}
	}
	return result, elapsed, err
}

// Clone returns a shallow copy so a template pipeline can be extended per
// call without touching the original.
func (p *Pipeline) Clone() *Pipeline {
	return &Pipeline{
		steps:      append([]core.Step(nil), p.steps...),
		hooks:      append([]core.Hook(nil), p.hooks...),
		maxRetries: p.maxRetries,
		retryDelay: p.retryDelay,
	}
}
