// Package storage manages the local copies of downloaded photos.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"phototriage/pkg/logger"
)

// Manager handles local file placement and duplicate detection
type Manager struct {
	outputDir string
	stored    map[string]bool // keyed by final filename
	bytes     int64
	mu        sync.RWMutex
	logger    logger.Logger
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		stored:    make(map[string]bool),
		logger:    logger.GetLogger(),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles indexes already stored files for duplicate detection
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m.stored[entry.Name()] = true
		if info, err := entry.Info(); err == nil {
			m.bytes += info.Size()
		}
	}

	return nil
}

// IsStored checks if a file with the given name is already present
func (m *Manager) IsStored(filename string) bool {
	m.mu.RLock()
	if m.stored[filename] {
		m.mu.RUnlock()
		return true
	}
	m.mu.RUnlock()

	if _, err := os.Stat(filepath.Join(m.outputDir, filename)); err == nil {
		m.mu.Lock()
		m.stored[filename] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Store moves a driver-produced download into the output directory under
// the given name. Copy-then-rename keeps the placement atomic even when
// the driver's download landed on a different filesystem.
func (m *Manager) Store(sourcePath, filename string) (string, error) {
	finalPath := filepath.Join(m.outputDir, filename)
	tempPath := finalPath + ".tmp"

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open downloaded file: %w", err)
	}

	out, err := os.Create(tempPath)
	if err != nil {
		src.Close()
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	size, err := io.Copy(out, src)
	src.Close()
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to copy download: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	// The driver's scratch copy is no longer needed.
	if sourcePath != finalPath {
		os.Remove(sourcePath)
	}

	m.mu.Lock()
	m.stored[filename] = true
	m.bytes += size
	m.mu.Unlock()

	m.logger.DebugWithFields("Download stored", map[string]interface{}{
		"filename": filename,
		"size":     humanize.Bytes(uint64(size)),
	})

	return finalPath, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetStoredCount returns the number of stored files
func (m *Manager) GetStoredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}

// TotalSize renders the running byte total in human form
func (m *Manager) TotalSize() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return humanize.Bytes(uint64(m.bytes))
}
