package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"phototriage/pkg/errors"
	"phototriage/pkg/models"
)

// ScriptedItem is one item in a scripted driver's library
type ScriptedItem struct {
	Attrs       models.Attributes
	RemovedDate time.Time
	Content     []byte
}

// Scripted is an offline, deterministic PageDriver for tests and demos.
// It makes no network calls. The zero value is an empty library.
type Scripted struct {
	mu sync.Mutex

	items  []ScriptedItem
	cursor int

	// StallAt pins the cursor: SendNext silently does nothing while the
	// focused item's index equals StallAt. -1 disables.
	StallAt int
	// FailDownload makes Download fail for the given ids.
	FailDownload map[string]bool
	// FailDelete makes RequestDelete fail for the given ids.
	FailDelete map[string]bool
	// FailExtract makes CurrentAttributes fail the first N calls per focus.
	FailExtract int

	DownloadDir string

	writtenDates map[string]DateComponents
	deleted      map[string]bool
	extractFails int
}

// NewScripted creates a scripted driver over the given items
func NewScripted(items []ScriptedItem) *Scripted {
	return &Scripted{
		items:        items,
		StallAt:      -1,
		FailDownload: make(map[string]bool),
		FailDelete:   make(map[string]bool),
		writtenDates: make(map[string]DateComponents),
		deleted:      make(map[string]bool),
	}
}

// WrittenDates exposes the write-backs received, keyed by item id
func (s *Scripted) WrittenDates() map[string]DateComponents {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]DateComponents, len(s.writtenDates))
	for k, v := range s.writtenDates {
		out[k] = v
	}
	return out
}

// DeletedIDs exposes the ids whose deletion was requested
func (s *Scripted) DeletedIDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.deleted))
	for k, v := range s.deleted {
		out[k] = v
	}
	return out
}

func (s *Scripted) GotoItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.Attrs.ID == id {
			s.cursor = i
			s.extractFails = 0
			return nil
		}
	}
	return errors.NewItem(errors.ErrorTypeNavigation, id, "item not found")
}

func (s *Scripted) GotoLibraryRoot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	s.extractFails = 0
	return nil
}

func (s *Scripted) CurrentAttributes(ctx context.Context) (models.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 || s.cursor >= len(s.items) {
		return models.Attributes{}, errors.New(errors.ErrorTypeExtraction, "no focused item")
	}
	if s.extractFails < s.FailExtract {
		s.extractFails++
		return models.Attributes{}, errors.New(errors.ErrorTypeExtraction, "panel not rendered")
	}
	return s.items[s.cursor].Attrs, nil
}

func (s *Scripted) SendNext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StallAt >= 0 && s.cursor == s.StallAt {
		// Keystroke swallowed by the UI; the cursor stays put.
		return nil
	}
	if s.cursor < len(s.items)-1 {
		s.cursor++
		s.extractFails = 0
	}
	return nil
}

func (s *Scripted) Download(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 || s.cursor >= len(s.items) {
		return "", errors.New(errors.ErrorTypeDownload, "no focused item")
	}
	item := s.items[s.cursor]
	if s.FailDownload[item.Attrs.ID] {
		return "", errors.NewItem(errors.ErrorTypeDownload, item.Attrs.ID, "transfer did not complete")
	}

	dir := s.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := item.Attrs.Filename
	if name == "" {
		name = fmt.Sprintf("item-%d.bin", s.cursor)
	}
	path := filepath.Join(dir, name)
	content := item.Content
	if content == nil {
		content = []byte(item.Attrs.ID)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", errors.NewItem(errors.ErrorTypeDownload, item.Attrs.ID, err.Error())
	}
	return path, nil
}

func (s *Scripted) RequestDelete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 || s.cursor >= len(s.items) {
		return errors.New(errors.ErrorTypeDelete, "no focused item")
	}
	item := s.items[s.cursor]
	if s.FailDelete[item.Attrs.ID] {
		return errors.NewItem(errors.ErrorTypeDelete, item.Attrs.ID, "trash confirmation not observed")
	}
	s.deleted[item.Attrs.ID] = true
	return nil
}

func (s *Scripted) RemovedItemDate(ctx context.Context, id string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Attrs.ID == id {
			if item.RemovedDate.IsZero() {
				return time.Time{}, errors.NewItem(errors.ErrorTypeExtraction, id, "no date on removed view")
			}
			return item.RemovedDate, nil
		}
	}
	return time.Time{}, errors.NewItem(errors.ErrorTypeNavigation, id, "removed item not found")
}

func (s *Scripted) WriteDateFields(ctx context.Context, id string, components DateComponents) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Attrs.ID == id {
			s.writtenDates[id] = components
			return nil
		}
	}
	return errors.NewItem(errors.ErrorTypeEditback, id, "item not found")
}

func (s *Scripted) ReadDateFields(ctx context.Context, id string) (DateComponents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if components, ok := s.writtenDates[id]; ok {
		return components, nil
	}
	return DateComponents{}, errors.NewItem(errors.ErrorTypeExtraction, id, "no date fields visible")
}

var _ PageDriver = (*Scripted)(nil)
