package scan

import (
	"context"
	"fmt"

	"phototriage/pkg/classify"
	"phototriage/pkg/driver"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
	"phototriage/pkg/ratelimit"
	"phototriage/pkg/storage"
)

// Sweeper runs the batch passes that mutate state for entries the scan
// already classified: remote deletion of confirmed downloads, and
// download retries for non-free items that never transferred.
type Sweeper struct {
	driver  driver.PageDriver
	ledger  *ledger.Ledger[models.LedgerEntry]
	storage *storage.Manager
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// NewSweeper creates a sweeper over the given collaborators
func NewSweeper(
	d driver.PageDriver,
	led *ledger.Ledger[models.LedgerEntry],
	store *storage.Manager,
	limiter ratelimit.Limiter,
	log logger.Logger,
) *Sweeper {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Sweeper{
		driver:  d,
		ledger:  led,
		storage: store,
		limiter: limiter,
		logger:  log,
	}
}

// DeleteDownloaded moves every entry with a confirmed local copy and no
// confirmed remote deletion to the remote trash. Each confirmation
// rewrites the ledger immediately, so a crash re-runs at most the
// in-flight item — and that item was selected by deleted!=true, so the
// flag flips at most once across any number of runs.
func (s *Sweeper) DeleteDownloaded(ctx context.Context) error {
	entries, err := s.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay ledger: %w", err)
	}

	selected := classify.SelectDeleteSweep(entries)
	s.logger.InfoWithFields("Delete sweep started", map[string]interface{}{
		"total":    len(entries),
		"selected": len(selected),
	})

	deleted := 0
	failed := 0
	for _, target := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := findByID(entries, target.ID)
		if idx < 0 {
			continue
		}

		s.limiter.Wait()
		if err := s.driver.GotoItem(ctx, target.ID); err != nil {
			s.logger.WithError(err).WithField("id", target.ID).Warn("Could not navigate to item, skipping")
			failed++
			continue
		}

		s.limiter.Wait()
		if err := s.driver.RequestDelete(ctx); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"id":       target.ID,
				"filename": target.Filename,
			}).Error("Delete failed, item stays eligible")
			failed++
			continue
		}

		entries[idx].Deleted = true
		if err := s.ledger.Rewrite(entries); err != nil {
			return fmt.Errorf("failed to persist deletion of %s: %w", target.ID, err)
		}
		deleted++

		s.logger.InfoWithFields("Item moved to trash", map[string]interface{}{
			"id":       target.ID,
			"filename": target.Filename,
		})
	}

	s.logger.InfoWithFields("Delete sweep finished", map[string]interface{}{
		"deleted": deleted,
		"failed":  failed,
	})
	return nil
}

// RetryDownloads re-attempts the transfer for non-free entries whose
// download never succeeded.
func (s *Sweeper) RetryDownloads(ctx context.Context) error {
	entries, err := s.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay ledger: %w", err)
	}

	selected := classify.SelectDownloadRetry(entries)
	s.logger.InfoWithFields("Download retry sweep started", map[string]interface{}{
		"selected": len(selected),
	})

	for _, target := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := findByID(entries, target.ID)
		if idx < 0 {
			continue
		}

		s.limiter.Wait()
		if err := s.driver.GotoItem(ctx, target.ID); err != nil {
			s.logger.WithError(err).WithField("id", target.ID).Warn("Could not navigate to item, skipping")
			continue
		}

		s.limiter.Wait()
		localPath, err := s.driver.Download(ctx)
		if err != nil {
			logger.LogDownload(target.ID, target.Filename, false, err)
			continue
		}

		filename := target.Filename
		if filename == "" {
			filename = target.ID + ".bin"
		}
		stored, err := s.storage.Store(localPath, filename)
		if err != nil {
			logger.LogDownload(target.ID, target.Filename, false, err)
			continue
		}

		entries[idx].Downloaded = true
		entries[idx].LocalPath = stored
		if err := s.ledger.Rewrite(entries); err != nil {
			return fmt.Errorf("failed to persist download of %s: %w", target.ID, err)
		}
		logger.LogDownload(target.ID, target.Filename, true, nil)
	}

	return nil
}

func findByID(entries []models.LedgerEntry, id string) int {
	for i, entry := range entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}
