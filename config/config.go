package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Worker pool controls.
	WorkerCount int           `toml:"workers"`     // default: runtime.NumCPU()
	QueueSize   int           `toml:"queue_size"`  // max queued jobs before backpressure; default: 256
	JobTimeout  time.Duration `toml:"job_timeout"` // 0 = no timeout

	// Retry of transient failures.
	MaxRetries int           `toml:"max_retries"`
	RetryDelay time.Duration `toml:"retry_delay"`

	// Default encode quality used when a request does not set one.
	DefaultQuality int `toml:"quality"`

	// Streaming / memory limits.
	MaxImageBytes int64 `toml:"max_image_bytes"` // 0 = no limit
	ChunkSize     int   `toml:"chunk_size"`      // read chunk size in bytes; default 32 KiB

	// ScratchDir holds the per-call scratch files.  Empty means os.TempDir().
	ScratchDir string `toml:"scratch_dir"`

	Convergence ConvergenceConfig `toml:"convergence"`

	// Logging.
	LogLevel string `toml:"log_level"` // "debug", "info", "warn", "error"
	LogFile  string `toml:"log_file"`  // empty = stderr
}

// ConvergenceConfig controls the resize/re-encode search.
type ConvergenceConfig struct {
	MaxIterations int     `toml:"max_iterations"` // default 20
	MinQuality    int     `toml:"min_quality"`    // floor while compressing; default 10
	MaxQuality    int     `toml:"max_quality"`    // ceiling while upscaling; default 95
	QualityStep   int     `toml:"quality_step"`   // default 5
	ShrinkFactor  float64 `toml:"shrink_factor"`  // scale multiplier per failed compress attempt; default 0.9
	GrowFactor    float64 `toml:"grow_factor"`    // scale multiplier per failed upscale attempt; default 1.1

	// Resampler names the resize filter: "lanczos", "catmullrom", "linear"
	// (imaging) or "xdraw-catmullrom", "xdraw-bilinear" (golang.org/x/image/draw).
	Resampler string `toml:"resampler"`

	// SkipIfAlreadySatisfied returns before the loop when the source already
	// meets the target in the resolved direction.
	SkipIfAlreadySatisfied bool `toml:"skip_if_satisfied"`
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		JobTimeout:     0,
		MaxRetries:     2,
		RetryDelay:     200 * time.Millisecond,
		DefaultQuality: 85,
		ChunkSize:      32 * 1024,
		Convergence: ConvergenceConfig{
			MaxIterations: 20,
			MinQuality:    10,
			MaxQuality:    95,
			QualityStep:   5,
			ShrinkFactor:  0.9,
			GrowFactor:    1.1,
			Resampler:     "lanczos",
		},
		LogLevel: "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	cv := c.Convergence
	if cv.MaxIterations <= 0 {
		return errors.New("config: Convergence.MaxIterations must be positive")
	}
	if cv.MinQuality < 1 || cv.MaxQuality > 100 || cv.MinQuality >= cv.MaxQuality {
		return errors.New("config: Convergence quality bounds must satisfy 1 <= MinQuality < MaxQuality <= 100")
	}
	if cv.QualityStep < 0 {
		return errors.New("config: Convergence.QualityStep must not be negative")
	}
	if cv.ShrinkFactor <= 0 || cv.ShrinkFactor >= 1 {
		return errors.New("config: Convergence.ShrinkFactor must be in (0, 1)")
	}
	if cv.GrowFactor <= 1 {
		return errors.New("config: Convergence.GrowFactor must be greater than 1")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown LogLevel %q", c.LogLevel)
	}
	return nil
}

// Load reads a TOML file on top of Default() and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
