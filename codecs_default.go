//go:build !vips

package imagesizer

import (
	"github.com/Skryldev/imagesizer/config"
	"github.com/Skryldev/imagesizer/core"
)

func registerOptionalCodecs(core.Registry, config.Config) {}

// Shutdown releases codec resources.  A no-op without libvips.
func Shutdown() {}
