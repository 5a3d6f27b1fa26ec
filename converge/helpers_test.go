package converge_test

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/adapters/decoder"
	"github.com/Skryldev/imagesizer/adapters/encoder"
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/converge"
	"github.com/Skryldev/imagesizer/core"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

// noise compresses badly, so its encoded size tracks pixel area.
func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string, img image.Image, quality int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type fixture struct {
	engine  *converge.Engine
	cfg     config.Config
	scratch string
	logs    *recordLogger
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.ScratchDir = t.TempDir()
	for _, m := range mutate {
		m(&cfg)
	}

	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.DefaultQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())

	eng, err := converge.NewEngine(cfg, reg)
	require.NoError(t, err)
	logs := &recordLogger{}
	eng.SetLogger(logs)
	return &fixture{engine: eng, cfg: cfg, scratch: cfg.ScratchDir, logs: logs}
}

// progressLog records every fraction passed to the callback.
type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) fn(f float64) {
	p.mu.Lock()
	p.values = append(p.values, f)
	p.mu.Unlock()
}

type logEntry struct {
	msg    string
	fields map[string]interface{}
}

type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) record(msg string, kv []interface{}) {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
	l.mu.Unlock()
}

func (l *recordLogger) Debug(msg string, kv ...interface{}) { l.record(msg, kv) }
func (l *recordLogger) Info(msg string, kv ...interface{})  { l.record(msg, kv) }
func (l *recordLogger) Warn(msg string, kv ...interface{})  { l.record(msg, kv) }
func (l *recordLogger) Error(msg string, kv ...interface{}) { l.record(msg, kv) }

// scales returns the scale of every convergence attempt in order.
func (l *recordLogger) scales() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []float64
	for _, e := range l.entries {
		if e.msg == "converge.attempt" {
			out = append(out, e.fields["scale"].(float64))
		}
	}
	return out
}
