// Package archive sweeps residual sidecar files into a single tar
// container after ingestion completes.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"illust-packer/internal/logging"
	"illust-packer/internal/metrics"
)

// ArchiveName is the container filename created under the dataset root.
const ArchiveName = "metadata_jsons.tar"

// Archiver collects every remaining .json sidecar under the root into
// <root>/metadata_jsons.tar, preserving paths relative to the root.
//
// Each run rewrites the container from the current sweep; a tar stream
// appended after a finalized archive would sit behind the end-of-archive
// marker and never be read back.
type Archiver struct {
	root string
}

// New creates an Archiver over the dataset root.
func New(root string) *Archiver {
	return &Archiver{root: root}
}

// Run performs the sweep. Per-file failures are logged and skipped; the
// sweep only fails if the container itself cannot be created or the
// tree cannot be walked. Returns the number of archived sidecars.
func (a *Archiver) Run() (int, error) {
	sidecars, err := a.collect()
	if err != nil {
		return 0, err
	}
	if len(sidecars) == 0 {
		logging.Info("No sidecar files found to archive")
		return 0, nil
	}

	archivePath := filepath.Join(a.root, ArchiveName)
	f, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("create archive %s: %w", archivePath, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Error("failed to close archive %s: %v", archivePath, err)
		}
	}()

	tw := tar.NewWriter(f)

	added := 0
	for _, path := range sidecars {
		if err := a.add(tw, path); err != nil {
			logging.Warn("Failed to archive %s: %v", path, err)
			metrics.ArchiveErrorsTotal.Inc()
			continue
		}
		added++
		metrics.SidecarsArchivedTotal.Inc()
	}

	if err := tw.Close(); err != nil {
		return added, fmt.Errorf("finalize archive %s: %w", archivePath, err)
	}

	logging.Info("Archived %d sidecar files into %s", added, archivePath)
	return added, nil
}

// collect lists every .json file under the root, excluding the archive
// container itself.
func (a *Archiver) collect() ([]string, error) {
	var sidecars []string
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == a.root {
				return fmt.Errorf("walk %s: %w", a.root, err)
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != a.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(d.Name())) != ".json" {
			return nil
		}
		sidecars = append(sidecars, path)
		return nil
	})
	return sidecars, err
}

// add appends one sidecar to the archive under its root-relative name.
func (a *Archiver) add(tw *tar.Writer, path string) error {
	rel, err := filepath.Rel(a.root, path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
