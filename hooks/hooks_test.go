package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
	"github.com/Skryldev/imagesizer/hooks"
)

func TestMetricsHook_Counts(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	h := hooks.NewMetricsHook(m)
	ctx := context.Background()
	img := &core.ImageData{Meta: core.Metadata{SizeBytes: 1000}}

	h.AfterStep(ctx, "resize", img, 2*time.Millisecond, nil)
	h.AfterStep(ctx, "encode", img, 3*time.Millisecond, nil)
	h.AfterStep(ctx, "encode", img, 3*time.Millisecond, nil)
	h.AfterStep(ctx, "decode", nil, time.Millisecond,
		apperrors.New(apperrors.CategoryDecode, "png.decode", errors.New("bad header")))
	m.RecordOutcome(core.OutcomeConverged)
	m.RecordOutcome(core.OutcomeConverged)
	m.RecordOutcome(core.OutcomeExhausted)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.StepCalls["encode"])
	assert.EqualValues(t, 1, snap.StepCalls["resize"])
	assert.EqualValues(t, 1, snap.StepErrors["decode"])
	assert.EqualValues(t, 1, snap.ErrorCategories["decode"])
	assert.EqualValues(t, 2000, snap.TotalThroughputB)
	assert.EqualValues(t, 2, snap.Outcomes[core.OutcomeConverged])
	assert.EqualValues(t, 1, snap.Outcomes[core.OutcomeExhausted])

	// Snapshots are copies.
	snap.StepCalls["encode"] = 99
	assert.EqualValues(t, 2, m.Snapshot().StepCalls["encode"])
}

func TestLoggingHook_WritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := hooks.NewLoggingHook(logger)
	ctx := context.Background()
	img := &core.ImageData{Format: core.FormatJPEG, Meta: core.Metadata{Width: 40, Height: 30, SizeBytes: 512}}

	h.BeforeStep(ctx, "encode", img)
	h.AfterStep(ctx, "encode", img, time.Millisecond, nil)
	h.AfterStep(ctx, "resize", nil, time.Millisecond, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "pipeline.step.start")
	assert.Contains(t, out, "width=40")
	assert.Contains(t, out, `output="40x30 jpeg 512B"`)
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}

func TestLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, hooks.Level("debug"))
	require.Equal(t, slog.LevelWarn, hooks.Level("warn"))
	require.Equal(t, slog.LevelError, hooks.Level("error"))
	require.Equal(t, slog.LevelInfo, hooks.Level("info"))
	require.Equal(t, slog.LevelInfo, hooks.Level(""))
}
