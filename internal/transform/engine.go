package transform

import (
	"os"
	"strings"

	"illust-packer/internal/logging"
)

// SelectEngine picks the transform engine for a run. The default is the
// pure-Go imaging engine; RESIZE_ENGINE=vips selects the libvips engine
// and initializes the library, falling back to imaging when libvips is
// unavailable. Unknown values fall back to imaging.
func SelectEngine(cfg Config) Engine {
	switch strings.ToLower(os.Getenv("RESIZE_ENGINE")) {
	case "", "imaging":
		return NewImagingEngine(cfg)
	case "vips":
		if err := InitVips(); err != nil {
			logging.Warn("RESIZE_ENGINE=vips requested but libvips is unavailable, using imaging: %v", err)
			return NewImagingEngine(cfg)
		}
		return NewVipsEngine(cfg)
	default:
		logging.Warn("Unknown RESIZE_ENGINE %q, using imaging", os.Getenv("RESIZE_ENGINE"))
		return NewImagingEngine(cfg)
	}
}
