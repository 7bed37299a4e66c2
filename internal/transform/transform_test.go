package transform

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// encodeTestImage produces an encoded solid-color image of the given size.
func encodeTestImage(t *testing.T, w, h int, c color.NRGBA, format string) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	default:
		t.Fatalf("unknown format %q", format)
	}
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	return img
}

func TestTransformOutputDimensions(t *testing.T) {
	cfg := Config{Width: 64, Height: 64, Fill: color.NRGBA{A: 255}}
	engine := NewImagingEngine(cfg)

	tests := []struct {
		name   string
		w, h   int
		format string
	}{
		{"square png", 128, 128, "png"},
		{"wide jpeg", 300, 100, "jpeg"},
		{"tall png", 50, 400, "png"},
		{"tiny", 3, 5, "png"},
		{"already target size", 64, 64, "png"},
		{"smaller than target", 16, 16, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := encodeTestImage(t, tt.w, tt.h, color.NRGBA{R: 200, A: 255}, tt.format)
			out, err := engine.Transform(payload)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}

			img := decodePNG(t, out)
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
				t.Errorf("output = %dx%d, want 64x64", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestTransformLetterboxFill(t *testing.T) {
	fill := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	cfg := Config{Width: 100, Height: 100, Fill: fill}
	engine := NewImagingEngine(cfg)

	// 200x100 source scales to 100x50, leaving 25px bands top and bottom.
	payload := encodeTestImage(t, 200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, "png")
	out, err := engine.Transform(payload)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	img := decodePNG(t, out)

	top := color.NRGBAModel.Convert(img.At(50, 5)).(color.NRGBA)
	if top != fill {
		t.Errorf("top band pixel = %+v, want fill %+v", top, fill)
	}
	bottom := color.NRGBAModel.Convert(img.At(50, 95)).(color.NRGBA)
	if bottom != fill {
		t.Errorf("bottom band pixel = %+v, want fill %+v", bottom, fill)
	}

	center := color.NRGBAModel.Convert(img.At(50, 50)).(color.NRGBA)
	if center.R < 200 || center.G < 200 || center.B < 200 {
		t.Errorf("center pixel = %+v, want near-white source content", center)
	}
}

func TestLetterboxOffsets(t *testing.T) {
	tests := []struct {
		name             string
		origW, origH     int
		targetW, targetH int
		wantW, wantH     int
		wantOffX, wantOffY int
	}{
		{"wide into square", 200, 100, 100, 100, 100, 50, 0, 25},
		{"tall into square", 100, 200, 100, 100, 50, 100, 25, 0},
		{"odd remainder floors", 100, 33, 100, 100, 100, 33, 0, 33},
		{"exact fit", 100, 100, 100, 100, 100, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := min(float64(tt.targetW)/float64(tt.origW), float64(tt.targetH)/float64(tt.origH))
			newW := int(float64(tt.origW) * ratio)
			newH := int(float64(tt.origH) * ratio)
			if newW != tt.wantW || newH != tt.wantH {
				t.Errorf("scaled = %dx%d, want %dx%d", newW, newH, tt.wantW, tt.wantH)
			}
			offX := (tt.targetW - newW) / 2
			offY := (tt.targetH - newH) / 2
			if offX != tt.wantOffX || offY != tt.wantOffY {
				t.Errorf("offset = (%d,%d), want (%d,%d)", offX, offY, tt.wantOffX, tt.wantOffY)
			}
		})
	}
}

func TestTransformDecodeError(t *testing.T) {
	engine := NewImagingEngine(DefaultConfig())

	for _, payload := range [][]byte{
		nil,
		[]byte("not an image at all"),
		{0x89, 0x50, 0x4e}, // truncated PNG magic
	} {
		_, err := engine.Transform(payload)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Transform(%q) err = %v, want ErrDecode", payload, err)
		}
	}
}

func TestTransformUpscalesSmallImages(t *testing.T) {
	// The scale factor may exceed 1: a 16x8 source fills a 64x64 target
	// as 64x32 centered.
	fill := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	engine := NewImagingEngine(Config{Width: 64, Height: 64, Fill: fill})

	payload := encodeTestImage(t, 16, 8, color.NRGBA{G: 255, A: 255}, "png")
	out, err := engine.Transform(payload)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	img := decodePNG(t, out)

	// Rows 0..15 and 48..63 are padding.
	pad := color.NRGBAModel.Convert(img.At(32, 8)).(color.NRGBA)
	if pad != fill {
		t.Errorf("padding pixel = %+v, want %+v", pad, fill)
	}
	content := color.NRGBAModel.Convert(img.At(32, 32)).(color.NRGBA)
	if content.G < 200 {
		t.Errorf("content pixel = %+v, want green source", content)
	}
}

func TestSelectEngineDefault(t *testing.T) {
	t.Setenv("RESIZE_ENGINE", "")
	if e := SelectEngine(DefaultConfig()); e.Name() != "imaging" {
		t.Errorf("default engine = %q, want imaging", e.Name())
	}

	t.Setenv("RESIZE_ENGINE", "something-else")
	if e := SelectEngine(DefaultConfig()); e.Name() != "imaging" {
		t.Errorf("fallback engine = %q, want imaging", e.Name())
	}
}

func TestSelectEngineVipsAvailability(t *testing.T) {
	t.Setenv("RESIZE_ENGINE", "vips")
	defer ShutdownVips()

	// The selection never fails: vips when the library initializes,
	// imaging otherwise.
	e := SelectEngine(DefaultConfig())
	if IsVipsAvailable() {
		if e.Name() != "vips" {
			t.Errorf("engine = %q, want vips while libvips is available", e.Name())
		}
	} else if e.Name() != "imaging" {
		t.Errorf("engine = %q, want imaging fallback without libvips", e.Name())
	}
}
