package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	entries := map[string]string{}
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestArchiveSweep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1_p0.jpg.json"), `{"id":1}`)
	writeFile(t, filepath.Join(root, "sub", "2_p0.jpg.json"), `{"id":2}`)
	writeFile(t, filepath.Join(root, "3_p0.jpg"), "not json")

	added, err := New(root).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	entries := readEntries(t, filepath.Join(root, ArchiveName))
	if len(entries) != 2 {
		t.Fatalf("archive holds %d entries, want 2", len(entries))
	}
	if entries["1_p0.jpg.json"] != `{"id":1}` {
		t.Errorf("entry 1_p0.jpg.json = %q", entries["1_p0.jpg.json"])
	}
	// Relative paths are preserved with forward slashes.
	if entries["sub/2_p0.jpg.json"] != `{"id":2}` {
		t.Errorf("entry sub/2_p0.jpg.json = %q", entries["sub/2_p0.jpg.json"])
	}
}

func TestArchiveEmptyTree(t *testing.T) {
	root := t.TempDir()

	added, err := New(root).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}

	// No container is created when there is nothing to archive.
	if _, err := os.Stat(filepath.Join(root, ArchiveName)); !os.IsNotExist(err) {
		t.Error("archive file should not exist for an empty sweep")
	}
}

func TestArchiveMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")).Run(); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestArchiveSkipsItself(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1_p0.jpg.json"), `{"id":1}`)

	if _, err := New(root).Run(); err != nil {
		t.Fatal(err)
	}
	// Second sweep over the same tree: the container must not be
	// swallowed into itself.
	added, err := New(root).Run()
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	entries := readEntries(t, filepath.Join(root, ArchiveName))
	if len(entries) != 1 {
		t.Fatalf("archive holds %d entries, want 1", len(entries))
	}
}

func TestArchiveRerunRewritesSweep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1_p0.jpg.json"), `{"id":1}`)

	if _, err := New(root).Run(); err != nil {
		t.Fatal(err)
	}

	// A later run over a tree with new sidecars rewrites the container;
	// every entry of the latest sweep must be readable by a tar reader.
	writeFile(t, filepath.Join(root, "2_p0.jpg.json"), `{"id":2}`)
	added, err := New(root).Run()
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	entries := readEntries(t, filepath.Join(root, ArchiveName))
	if len(entries) != 2 {
		t.Fatalf("archive holds %d readable entries, want 2", len(entries))
	}
	if entries["2_p0.jpg.json"] != `{"id":2}` {
		t.Errorf("entry 2_p0.jpg.json = %q", entries["2_p0.jpg.json"])
	}
}
