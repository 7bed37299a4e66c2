package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"illust-packer/internal/logging"
)

// ImageExtensions is the recognized source image extension set.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// assetPattern matches illustration filenames: a 6-10 digit identifier,
// a page suffix, and a recognized image extension.
var assetPattern = regexp.MustCompile(`^(\d{6,10})_p\d+\.(?i:jpg|jpeg|png)$`)

// Depth selects the traversal policy for a scan.
type Depth int

const (
	// DepthOne scans only the direct children of the root.
	DepthOne Depth = iota
	// DepthRecursive scans the whole tree under the root.
	DepthRecursive
)

// SourceAsset is one candidate source image discovered under the root,
// together with its sidecar if one exists at scan time.
type SourceAsset struct {
	// Path is the absolute path of the image file.
	Path string
	// Name is the base filename of the image.
	Name string
	// ID is the numeric identifier extracted from the filename prefix.
	ID int64
	// SidecarPath is the path of the JSON sidecar, or "" if absent.
	SidecarPath string
}

// Key returns the stable blob-store key for this asset: the original
// filename with its extension normalized to the canonical encoded format.
func (a SourceAsset) Key() string {
	ext := filepath.Ext(a.Name)
	return strings.TrimSuffix(a.Name, ext) + ".png"
}

// ScanError indicates the root itself could not be read. It is fatal to
// the run, unlike per-entry errors which are logged and skipped.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Scanner enumerates candidate source assets under a root path.
// Scanning is read-only and restartable: each Scan reflects the current
// directory state.
type Scanner struct {
	root  string
	depth Depth

	// OnSkip, if set, is called for image files that do not match the
	// asset filename pattern.
	OnSkip func(path, reason string)
}

// New creates a Scanner over the given root with the given depth policy.
func New(root string, depth Depth) *Scanner {
	return &Scanner{root: root, depth: depth}
}

// Scan walks the root and invokes fn for every matching asset, lazily.
// Returning an error from fn stops the scan and propagates the error.
// Context cancellation stops the scan with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, fn func(SourceAsset) error) error {
	if s.depth == DepthOne {
		return s.scanShallow(ctx, fn)
	}
	return s.scanRecursive(ctx, fn)
}

// Collect runs a full scan and returns the assets as a slice.
func (s *Scanner) Collect(ctx context.Context) ([]SourceAsset, error) {
	var assets []SourceAsset
	err := s.Scan(ctx, func(a SourceAsset) error {
		assets = append(assets, a)
		return nil
	})
	return assets, err
}

func (s *Scanner) scanShallow(ctx context.Context, fn func(SourceAsset) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return &ScanError{Root: s.root, Err: err}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := s.visit(filepath.Join(s.root, entry.Name()), entry.Name(), fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanRecursive(ctx context.Context, fn func(SourceAsset) error) error {
	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return &ScanError{Root: s.root, Err: err}
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		return s.visit(path, d.Name(), fn)
	})
	return walkErr
}

// visit classifies one regular file and hands matching assets to fn.
func (s *Scanner) visit(path, name string, fn func(SourceAsset) error) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !ImageExtensions[ext] {
		return nil
	}

	m := assetPattern.FindStringSubmatch(name)
	if m == nil {
		logging.Debug("Filename does not match asset pattern: %s", name)
		if s.OnSkip != nil {
			s.OnSkip(path, "pattern")
		}
		return nil
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Unreachable for a \d{6,10} capture, but keep the item-level policy.
		if s.OnSkip != nil {
			s.OnSkip(path, "pattern")
		}
		return nil
	}

	asset := SourceAsset{
		Path: path,
		Name: name,
		ID:   id,
	}

	sidecar := path + ".json"
	if _, err := os.Stat(sidecar); err == nil {
		asset.SidecarPath = sidecar
	}

	return fn(asset)
}
