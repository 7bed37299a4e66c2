package transform

import (
	"fmt"
	"sync"

	"illust-packer/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitMutex   sync.Mutex
	vipsInitialized bool
	vipsAvailable   bool
)

// InitVips initializes libvips once per process. Safe to call repeatedly;
// a failed first attempt keeps reporting the same error.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		if !vipsAvailable {
			return fmt.Errorf("libvips not available")
		}
		return nil
	}
	vipsInitialized = true

	// Route vips messages through our logger, suppressing its chatter
	// below warning level unless debug logging is on.
	vipsLevel := vips.LogLevelWarning
	if logging.IsDebugEnabled() {
		vipsLevel = vips.LogLevelInfo
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLevel)

	if err := startVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
		return err
	}

	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// startVips isolates the cgo bridge: a missing or broken libvips
// surfaces as a panic out of Startup rather than an error.
func startVips() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup: %v", r)
		}
	}()

	// One image at a time per worker; the pool provides the parallelism.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	return nil
}

// IsVipsAvailable reports whether InitVips has succeeded.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// ShutdownVips releases libvips resources at the end of a run.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		logging.Info("libvips shutdown complete")
	}
	vipsInitialized = false
	vipsAvailable = false
}

// VipsEngine is the libvips-accelerated transform engine.
type VipsEngine struct {
	cfg Config
}

// NewVipsEngine creates the libvips engine. InitVips must have been
// called first.
func NewVipsEngine(cfg Config) *VipsEngine {
	return &VipsEngine{cfg: cfg}
}

// Name returns the engine identifier used in logs.
func (e *VipsEngine) Name() string { return "vips" }

// Transform implements the same letterboxed resize contract as
// ImagingEngine using libvips operations.
func (e *VipsEngine) Transform(payload []byte) ([]byte, error) {
	img, err := vips.NewThumbnailFromBuffer(payload, e.cfg.Width, e.cfg.Height, vips.InterestingNone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	fill := &vips.Color{R: e.cfg.Fill.R, G: e.cfg.Fill.G, B: e.cfg.Fill.B}

	if img.HasAlpha() {
		if err := img.Flatten(fill); err != nil {
			return nil, fmt.Errorf("%w: flatten: %v", ErrEncode, err)
		}
	}

	// Thumbnail fits within the target box; pad the shorter dimension
	// symmetrically with the fill color (floor-divided offsets).
	offsetX := (e.cfg.Width - img.Width()) / 2
	offsetY := (e.cfg.Height - img.Height()) / 2
	if err := img.EmbedBackground(offsetX, offsetY, e.cfg.Width, e.cfg.Height, fill); err != nil {
		return nil, fmt.Errorf("%w: embed: %v", ErrEncode, err)
	}

	out, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}
