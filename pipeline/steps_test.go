package pipeline_test

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/adapters/decoder"
	"github.com/Skryldev/imagesizer/adapters/encoder"
	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/pipeline"
)

func registry() *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(85))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	return reg
}

func TestPipeline_CropResizeEncodeDecode(t *testing.T) {
	reg := registry()
	ctx := context.Background()
	in := &core.ImageData{Image: stripes(200, 100), Format: core.FormatPNG}

	out, timings, err := pipeline.New().Use(
		&pipeline.CropStep{Spec: core.Square()},
		&pipeline.ResizeStep{Width: 50},
		&pipeline.EncodeStep{Registry: reg},
	).Run(ctx, in)
	require.NoError(t, err)
	assert.Len(t, timings, 3)
	assert.Equal(t, 50, out.Meta.Width)
	assert.Equal(t, 50, out.Meta.Height)
	require.NotEmpty(t, out.Data)

	back, _, err := pipeline.New().Use(&pipeline.DecodeStep{Registry: reg}).
		Run(ctx, &core.ImageData{Data: out.Data, Format: core.FormatUnknown})
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, back.Format)
	assert.Equal(t, image.Rect(0, 0, 50, 50), back.Image.(image.Image).Bounds())
}

func TestResizeStep_Resamplers(t *testing.T) {
	for _, name := range []string{"", "lanczos", "catmullrom", "linear", "xdraw-catmullrom", "xdraw-bilinear"} {
		rs, err := pipeline.ResamplerByName(name)
		require.NoError(t, err, name)
		out, err := (&pipeline.ResizeStep{Width: 31, Height: 17, Resampler: rs}).
			Execute(context.Background(), &core.ImageData{Image: stripes(64, 48)})
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 31, 17), out.Image.(image.Image).Bounds(), name)
	}
	_, err := pipeline.ResamplerByName("box")
	assert.Error(t, err)
}

func TestEncodeStep_QualityOnlyForLossy(t *testing.T) {
	reg := registry()
	img := &core.ImageData{Image: stripes(120, 80), Format: core.FormatJPEG}

	hi, err := (&pipeline.EncodeStep{Registry: reg, BaseOptions: core.EncodeOptions{Quality: 95}}).Execute(context.Background(), img)
	require.NoError(t, err)
	lo, err := (&pipeline.EncodeStep{Registry: reg, BaseOptions: core.EncodeOptions{Quality: 10}}).Execute(context.Background(), img)
	require.NoError(t, err)
	assert.Less(t, lo.Meta.SizeBytes, hi.Meta.SizeBytes)

	img.Format = core.FormatPNG
	p1, err := (&pipeline.EncodeStep{Registry: reg, BaseOptions: core.EncodeOptions{Quality: 95}}).Execute(context.Background(), img)
	require.NoError(t, err)
	p2, err := (&pipeline.EncodeStep{Registry: reg, BaseOptions: core.EncodeOptions{Quality: 10}}).Execute(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, p1.Data, p2.Data)
}

func TestEncodeStep_UnknownFormat(t *testing.T) {
	_, err := (&pipeline.EncodeStep{Registry: registry()}).
		Execute(context.Background(), &core.ImageData{Image: stripes(4, 4), Format: core.FormatGIF})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
}

func TestCropStep_SmartKeepsWindowSize(t *testing.T) {
	out, err := (&pipeline.CropStep{Spec: core.CropSpec{Kind: core.Crop4x3, Anchor: core.AnchorSmart}}).
		Execute(context.Background(), &core.ImageData{Image: stripes(160, 60)})
	require.NoError(t, err)
	b := out.Image.(image.Image).Bounds()
	assert.Equal(t, 80, b.Dx())
	assert.Equal(t, 60, b.Dy())
}

// flakyStep fails with a retryable error until it has been called n times.
type flakyStep struct {
	n     int32
	calls int32
}

func (s *flakyStep) Name() string { return "flaky" }

func (s *flakyStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if atomic.AddInt32(&s.calls, 1) < s.n {
		return nil, apperrors.Transient("flaky", errors.New("busy"))
	}
	return img, nil
}

type countingHook struct{ before, after int }

func (h *countingHook) BeforeStep(context.Context, string, *core.ImageData) { h.before++ }
func (h *countingHook) AfterStep(context.Context, string, *core.ImageData, time.Duration, error) {
	h.after++
}

func TestPipeline_RetriesTransient(t *testing.T) {
	step := &flakyStep{n: 3}
	hook := &countingHook{}
	p := pipeline.New().Use(step).AddHook(hook).WithRetry(2, time.Millisecond)

	_, _, err := p.Run(context.Background(), &core.ImageData{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, step.calls)
	assert.Equal(t, 1, hook.before)
	assert.Equal(t, 1, hook.after)

	step = &flakyStep{n: 5}
	_, _, err = pipeline.New().Use(step).WithRetry(1, time.Millisecond).Run(context.Background(), &core.ImageData{})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.EqualValues(t, 2, step.calls)
}

func TestPipeline_CloneIsIndependent(t *testing.T) {
	base := pipeline.New().Use(&pipeline.ResizeStep{Width: 10})
	c := base.Clone().Use(&pipeline.EncodeStep{Registry: registry()})
	assert.Equal(t, []string{"resize"}, base.StepNames())
	assert.Equal(t, []string{"resize", "encode"}, c.StepNames())
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := pipeline.New().Use(&pipeline.ResizeStep{Width: 10}).Run(ctx, &core.ImageData{Image: stripes(20, 20)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
