//go:build vips

package imagesizer

import (
	"github.com/Skryldev/imagesizer/adapters/vips"
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/core"
)

func registerOptionalCodecs(reg core.Registry, cfg config.Config) {
	vips.Register(reg, vips.NewWebP(vips.BackendConfig{
		DefaultQuality: cfg.DefaultQuality,
		MaxWorkers:     cfg.WorkerCount,
	}))
}

// Shutdown releases libvips.  Call once at process exit.
func Shutdown() { vips.Shutdown() }
