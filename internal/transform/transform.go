package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	// Tolerate images whose container does not match their extension;
	// imaging registers jpeg/png/gif/bmp/tiff itself.
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode indicates the payload is not a recognized image.
	// Item-level: the offending item is skipped, never the run.
	ErrDecode = errors.New("decode image")
	// ErrEncode indicates re-encoding to the canonical format failed.
	// Item-level: the offending item is skipped, never the run.
	ErrEncode = errors.New("encode image")
)

// Config describes the target canvas for transformed images.
type Config struct {
	Width  int
	Height int
	// Fill is the letterbox padding color.
	Fill color.NRGBA
}

// DefaultConfig returns the standard 512x512 black-padded target.
func DefaultConfig() Config {
	return Config{Width: 512, Height: 512, Fill: color.NRGBA{A: 255}}
}

// Engine transforms one image payload into canonical resized PNG bytes.
// Implementations are pure and safe for concurrent use.
type Engine interface {
	Transform(payload []byte) ([]byte, error)
	Name() string
}

// ImagingEngine is the default pure-Go engine built on disintegration/imaging.
type ImagingEngine struct {
	cfg Config
}

// NewImagingEngine creates the pure-Go transform engine.
func NewImagingEngine(cfg Config) *ImagingEngine {
	return &ImagingEngine{cfg: cfg}
}

// Name returns the engine identifier used in logs.
func (e *ImagingEngine) Name() string { return "imaging" }

// Transform decodes the payload, resizes it to fit the target while
// preserving aspect ratio, centers it on a filled canvas, and re-encodes
// the result as PNG. The output dimensions always equal the configured
// target exactly.
func (e *ImagingEngine) Transform(payload []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-dimension image", ErrDecode)
	}

	fitted := Letterbox(img, e.cfg)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Letterbox scales img by min(W/w, H/h) with a box filter and pastes it
// centered on a W x H canvas filled with cfg.Fill. Offsets are floor
// divided, so an odd padding remainder leaves a 1-pixel asymmetry.
func Letterbox(img image.Image, cfg Config) *image.NRGBA {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	ratio := min(float64(cfg.Width)/float64(origW), float64(cfg.Height)/float64(origH))
	newW := int(float64(origW) * ratio)
	newH := int(float64(origH) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Box)

	canvas := imaging.New(cfg.Width, cfg.Height, cfg.Fill)
	offsetX := (cfg.Width - newW) / 2
	offsetY := (cfg.Height - newH) / 2
	return imaging.Paste(canvas, resized, image.Pt(offsetX, offsetY))
}
