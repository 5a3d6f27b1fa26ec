package imagesizer_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Skryldev/imagesizer"
	"github.com/Skryldev/imagesizer/core"
	"github.com/Skryldev/imagesizer/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func writeRedJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test jpeg: %v", err)
	}
	return path
}

func writeBluePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 50, G: 50, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test png: %v", err)
	}
	return path
}

func newSizer(t *testing.T) *imagesizer.Sizer {
	t.Helper()
	cfg := imagesizer.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	cfg.ScratchDir = t.TempDir()
	s, err := imagesizer.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestTransform_WidthTarget(t *testing.T) {
	s := newSizer(t)
	dir := t.TempDir()
	src := writeRedJPEG(t, dir, "red.jpg", 800, 600)

	res, err := s.Transform(context.Background(), core.Request{
		SourcePath: src,
		Target:     imagesizer.ByWidth(400),
		Operation:  imagesizer.Auto,
	}, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if res.Width != 400 || res.Height != 300 {
		t.Errorf("size: got %dx%d, want 400x300", res.Width, res.Height)
	}
	if got := filepath.Base(res.OutputPath); got != "red_compressed_25of100%.jpg" {
		t.Errorf("output name: got %q", got)
	}
	if res.Ratio != 0.5 {
		t.Errorf("ratio: got %v, want 0.5", res.Ratio)
	}
}

func TestBatch_FailingFileDoesNotStopOthers(t *testing.T) {
	s := newSizer(t)
	metrics := hooks.NewInMemoryMetrics()
	s.SetMetrics(metrics)
	dir := t.TempDir()

	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	reqs := []core.Request{
		{SourcePath: writeBluePNG(t, dir, "a.png", 120, 90), Crop: imagesizer.Square()},
		{SourcePath: bad, Crop: imagesizer.Square()},
		{SourcePath: filepath.Join(dir, "anim.gif"), Target: imagesizer.ByFileSize(1)},
		{SourcePath: writeRedJPEG(t, dir, "b.jpg", 160, 90), Crop: imagesizer.Ratio16x9(), Target: imagesizer.ByHeight(45)},
	}

	updates := make(chan core.ProgressUpdate, 256)
	results, errs := s.Batch(context.Background(), reqs, updates)
	close(updates)

	if errs[1] == nil {
		t.Error("expected error for broken file")
	}
	for _, i := range []int{0, 2, 3} {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
	}
	if results[0].Outcome != core.OutcomeCropOnly || !strings.HasSuffix(results[0].OutputPath, "a_square.png") {
		t.Errorf("crop-only: %+v", results[0])
	}
	if results[2].Outcome != core.OutcomeSkipped {
		t.Errorf("gif: got outcome %s", results[2].Outcome)
	}
	if got := filepath.Base(results[3].OutputPath); got != "b_16×9_compressed_25of100%.jpg" {
		t.Errorf("converged name: got %q", got)
	}

	done := 0
	for u := range updates {
		if u.Done {
			done++
		}
	}
	if done != len(reqs) {
		t.Errorf("done updates: got %d, want %d", done, len(reqs))
	}

	processed, failed := s.Stats()
	if processed != 3 || failed != 1 {
		t.Errorf("stats: got %d/%d, want 3/1", processed, failed)
	}
	snap := metrics.Snapshot()
	if snap.Outcomes[core.OutcomeSkipped] != 1 || snap.Outcomes[core.OutcomeConverged] != 1 {
		t.Errorf("outcomes: %v", snap.Outcomes)
	}
	if snap.StepCalls["encode"] == 0 {
		t.Error("expected encode step timings")
	}
}

func TestSubmit_Async(t *testing.T) {
	s := newSizer(t)
	dir := t.TempDir()
	src := writeBluePNG(t, dir, "async.png", 64, 64)

	resultCh := make(chan core.JobResult, 1)
	if err := s.Submit(core.Job{
		Request:  core.Request{SourcePath: src, Target: imagesizer.ByWidth(32)},
		ResultCh: resultCh,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	r := <-resultCh
	if r.Err != nil {
		t.Fatalf("job: %v", r.Err)
	}
	if r.Result.Width != 32 {
		t.Errorf("width: got %d, want 32", r.Result.Width)
	}
}

func TestCanEncode_WebPFallback(t *testing.T) {
	s := newSizer(t)
	if !s.CanEncode(core.FormatJPEG) {
		t.Error("jpeg must be encodable")
	}
	if !s.CanEncode(core.FormatTIFF) {
		t.Error("tiff must be encodable")
	}
}
