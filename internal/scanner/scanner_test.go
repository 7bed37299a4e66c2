package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestAssetPattern(t *testing.T) {
	tests := []struct {
		name  string
		match bool
	}{
		{"29182021_p0.jpg", true},
		{"123456_p12.png", true},
		{"1234567890_p0.jpeg", true},
		{"29182021_p0.JPG", true},
		{"12345_p0.jpg", false},     // id too short
		{"12345678901_p0.jpg", false}, // id too long
		{"29182021.jpg", false},     // no page suffix
		{"29182021_p0.gif", false},  // unrecognized extension
		{"notanid_p0.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := assetPattern.MatchString(tt.name); got != tt.match {
				t.Errorf("pattern match %q = %v, want %v", tt.name, got, tt.match)
			}
		})
	}
}

func TestSourceAssetKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"29182021_p0.jpg", "29182021_p0.png"},
		{"29182021_p0.jpeg", "29182021_p0.png"},
		{"29182021_p0.png", "29182021_p0.png"},
	}

	for _, tt := range tests {
		a := SourceAsset{Name: tt.name}
		if got := a.Key(); got != tt.key {
			t.Errorf("Key(%q) = %q, want %q", tt.name, got, tt.key)
		}
	}
}

func TestScanDepthOne(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "29182021_p0.jpg"))
	writeFile(t, filepath.Join(root, "29182021_p0.jpg.json"))
	writeFile(t, filepath.Join(root, "readme.txt"))
	writeFile(t, filepath.Join(root, "sub", "33445566_p0.png"))

	s := New(root, DepthOne)
	assets, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(assets) != 1 {
		t.Fatalf("expected 1 asset at depth one, got %d", len(assets))
	}
	a := assets[0]
	if a.Name != "29182021_p0.jpg" {
		t.Errorf("name = %q", a.Name)
	}
	if a.ID != 29182021 {
		t.Errorf("id = %d, want 29182021", a.ID)
	}
	if a.SidecarPath == "" {
		t.Error("expected sidecar to be detected")
	}
}

func TestScanRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "29182021_p0.jpg"))
	writeFile(t, filepath.Join(root, "sub", "33445566_p0.png"))
	writeFile(t, filepath.Join(root, ".hidden", "44556677_p0.png"))

	s := New(root, DepthRecursive)
	assets, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
}

func TestScanSkipsNonMatchingImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "vacation.jpg"))
	writeFile(t, filepath.Join(root, "29182021_p0.jpg"))

	var skipped []string
	s := New(root, DepthOne)
	s.OnSkip = func(path, reason string) {
		if reason != "pattern" {
			t.Errorf("unexpected skip reason %q", reason)
		}
		skipped = append(skipped, path)
	}

	assets, err := s.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 {
		t.Errorf("expected 1 asset, got %d", len(assets))
	}
	if len(skipped) != 1 {
		t.Errorf("expected 1 skipped image, got %d", len(skipped))
	}
}

func TestScanMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), DepthOne)
	err := s.Scan(context.Background(), func(SourceAsset) error { return nil })
	if err == nil {
		t.Fatal("expected ScanError for missing root")
	}
	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Errorf("expected *ScanError, got %T", err)
	}
}

func TestScanIsRestartable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "29182021_p0.jpg"))

	s := New(root, DepthOne)
	first, err := s.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Directory state changed between scans; rescan reflects it.
	if err := os.Remove(filepath.Join(root, "29182021_p0.jpg")); err != nil {
		t.Fatal(err)
	}
	second, err := s.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != 1 || len(second) != 0 {
		t.Errorf("scans = %d then %d, want 1 then 0", len(first), len(second))
	}
}

func TestScanCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "29182021_p0.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(root, DepthOne)
	if err := s.Scan(ctx, func(SourceAsset) error { return nil }); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
