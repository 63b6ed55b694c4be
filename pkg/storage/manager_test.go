package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewManagerCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.GetOutputDir() != dir {
		t.Errorf("output dir = %q, want %q", m.GetOutputDir(), dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir was not created: %v", err)
	}
}

func TestStoreMovesFile(t *testing.T) {
	scratch := t.TempDir()
	m, err := NewManager(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	source := filepath.Join(scratch, "download.bin")
	writeFile(t, source, "photo bytes")

	finalPath, err := m.Store(source, "PXL_20260114_100210191.jpg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	content, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(content) != "photo bytes" {
		t.Errorf("stored content = %q", content)
	}

	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("scratch copy should be removed after storing")
	}
	if _, err := os.Stat(finalPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	if !m.IsStored("PXL_20260114_100210191.jpg") {
		t.Error("stored file not indexed")
	}
	if m.GetStoredCount() != 1 {
		t.Errorf("stored count = %d, want 1", m.GetStoredCount())
	}
}

func TestStoreMissingSource(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Store(filepath.Join(t.TempDir(), "gone.bin"), "a.jpg"); err == nil {
		t.Error("expected error for missing source file")
	}
}

func TestNewManagerIndexesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "aaaa")
	writeFile(t, filepath.Join(dir, "b.jpg"), "bb")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if !m.IsStored("a.jpg") || !m.IsStored("b.jpg") {
		t.Error("existing files not indexed")
	}
	if m.IsStored("subdir") {
		t.Error("directories must not be indexed")
	}
	if m.GetStoredCount() != 2 {
		t.Errorf("stored count = %d, want 2", m.GetStoredCount())
	}
	if m.TotalSize() != "6 B" {
		t.Errorf("total size = %q, want 6 B", m.TotalSize())
	}
}

func TestIsStoredPicksUpFilesAddedOutOfBand(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if m.IsStored("late.jpg") {
		t.Fatal("file should not exist yet")
	}

	writeFile(t, filepath.Join(dir, "late.jpg"), "x")
	if !m.IsStored("late.jpg") {
		t.Error("file placed outside the manager should still be detected")
	}
}
