// Package ledger implements the append-only, line-delimited record store
// shared by all workflows. One JSON object per line; the file is
// simultaneously the work queue, the audit log, and the restart checkpoint.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"phototriage/pkg/logger"
)

// Ledger is a typed append-only store backed by a single JSONL file.
// One writer per process; cross-process writers are unsupported.
type Ledger[T any] struct {
	path   string
	logger logger.Logger
}

// Open creates a ledger handle for the given file, creating the parent
// directory if needed. The file itself is created lazily on first append.
func Open[T any](path string) (*Ledger[T], error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &Ledger[T]{
		path:   path,
		logger: logger.GetLogger(),
	}, nil
}

// Path returns the backing file path
func (l *Ledger[T]) Path() string {
	return l.path
}

// Exists checks if the ledger file exists
func (l *Ledger[T]) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Append serializes one record as a single line and flushes it to disk.
// Each call is an independent open/write/sync so a crash loses at most
// the in-flight record.
func (l *Ledger[T]) Append(record T) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger for append: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return fmt.Errorf("failed to append ledger record: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	return nil
}

// ReadAll replays the ledger in original write order. Malformed lines are
// skipped with a warning, never fatal. A missing file yields an empty
// sequence.
func (l *Ledger[T]) ReadAll() ([]T, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer file.Close()

	var records []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			l.logger.WarnWithFields("Skipping malformed ledger record", map[string]interface{}{
				"path":  l.path,
				"line":  lineNum,
				"error": err.Error(),
			})
			continue
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	return records, nil
}

// Rewrite atomically replaces the entire ledger content with the given
// ordered sequence, using write-then-rename so a crash never truncates
// the previous content.
func (l *Ledger[T]) Rewrite(records []T) error {
	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to encode ledger record: %w", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write ledger record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to flush ledger: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}

// Backup copies the current ledger content aside. Used before batch runs
// that rewrite per item.
func (l *Ledger[T]) Backup(suffix string) error {
	if !l.Exists() {
		return nil // Nothing to backup
	}

	backupPath := l.path + "." + suffix

	src, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open ledger for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy ledger to backup: %w", err)
	}

	l.logger.DebugWithFields("Ledger backed up", map[string]interface{}{
		"path":   l.path,
		"backup": backupPath,
	})
	return nil
}
