package cli

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/hooks"
)

// newLogger writes to cfg.LogFile through a rotating writer, or to stderr.
// With the progress view on stderr output is limited to errors so it does not
// tear the display.
func newLogger(cfg config.Config, interactive bool) (*hooks.SlogLogger, io.Closer) {
	level := hooks.Level(cfg.LogLevel)
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w, closer = lj, lj
	} else if interactive {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return hooks.NewSlogLogger(slog.New(handler)), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
