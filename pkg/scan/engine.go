// Package scan implements the sequential cursor walk over the photo
// library: position on the resume target, then extract, stall-check,
// act, and advance, one item at a time, appending every observation to
// the ledger so any crash resumes exactly where it left off.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phototriage/pkg/checkpoint"
	"phototriage/pkg/classify"
	"phototriage/pkg/config"
	"phototriage/pkg/driver"
	errs "phototriage/pkg/errors"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
	"phototriage/pkg/ratelimit"
	"phototriage/pkg/retry"
	"phototriage/pkg/storage"
)

// IsStalled reports whether an error is a confirmed navigation stall,
// the one engine failure that demands a process-level restart.
func IsStalled(err error) bool {
	var driverErr *errs.Error
	if errors.As(err, &driverErr) {
		return driverErr.Type == errs.ErrorTypeStalled
	}
	return false
}

// Engine drives one page-driver session through the library
type Engine struct {
	driver  driver.PageDriver
	ledger  *ledger.Ledger[models.LedgerEntry]
	storage *storage.Manager
	limiter ratelimit.Limiter
	cfg     *config.ScanConfig
	logger  logger.Logger

	runID   string
	entries []models.LedgerEntry
	byID    map[string]int

	prevFingerprint string
}

// New creates a scan engine over the given collaborators
func New(
	d driver.PageDriver,
	led *ledger.Ledger[models.LedgerEntry],
	store *storage.Manager,
	limiter ratelimit.Limiter,
	cfg *config.ScanConfig,
	log logger.Logger,
) *Engine {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		driver:  d,
		ledger:  led,
		storage: store,
		limiter: limiter,
		cfg:     cfg,
		logger:  log,
		byID:    make(map[string]int),
	}
}

// Run walks the library until the context is cancelled or navigation
// stalls. A stall returns an error for which IsStalled is true; the
// caller escalates that to a session restart rather than looping here.
func (e *Engine) Run(ctx context.Context) error {
	e.runID = uuid.New().String()

	if err := e.loadLedger(); err != nil {
		return err
	}

	target := checkpoint.Resolve(e.entries, e.cfg.StartID, checkpoint.Any)
	if err := e.position(ctx, target); err != nil {
		return err
	}

	e.logger.InfoWithFields("Scan started", map[string]interface{}{
		"run_id":  e.runID,
		"fresh":   target.Fresh,
		"anchor":  target.StartID,
		"entries": len(e.entries),
	})

	processed := 0
	downloaded := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		attrs, extractErr := e.extract(ctx)

		if extractErr != nil {
			// A run of items the driver cannot read at all means the
			// view is gone, not that individual panels are flaky.
			consecutiveFailures++
			if consecutiveFailures > e.cfg.StallRetries {
				return errs.New(errs.ErrorTypeStalled,
					fmt.Sprintf("no readable item after %d consecutive extraction failures", consecutiveFailures))
			}
		} else {
			consecutiveFailures = 0
		}

		if extractErr == nil {
			moved, err := e.stallCheck(ctx, &attrs)
			if err != nil {
				return err
			}
			if !moved {
				return errs.New(errs.ErrorTypeStalled,
					fmt.Sprintf("cursor did not advance after %d attempts", e.cfg.StallRetries))
			}
		}

		entry := e.act(ctx, attrs, extractErr)
		processed++
		if entry.Downloaded {
			downloaded++
		}

		if extractErr == nil {
			e.prevFingerprint = attrs.Fingerprint()
		}

		if e.cfg.ProgressInterval > 0 && processed%e.cfg.ProgressInterval == 0 {
			logger.LogScanProgress(e.runID, processed, downloaded)
		}

		if err := e.advance(ctx); err != nil {
			return err
		}
	}
}

// loadLedger replays the ledger into memory and indexes entries by id
func (e *Engine) loadLedger() error {
	entries, err := e.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay ledger: %w", err)
	}
	e.entries = entries
	e.byID = make(map[string]int, len(entries))
	for i, entry := range entries {
		if entry.HasID() {
			e.byID[entry.ID] = i
		}
	}
	return nil
}

// position applies the checkpoint resolver's instruction. For a resumed
// run the anchor's fingerprint becomes the previous fingerprint, so a
// swallowed advance keystroke surfaces as a stall on the first
// iteration instead of silently reprocessing the anchor.
func (e *Engine) position(ctx context.Context, target checkpoint.ResumeTarget) error {
	if target.Fresh {
		e.limiter.Wait()
		if err := e.driver.GotoLibraryRoot(ctx); err != nil {
			return fmt.Errorf("failed to position on library root: %w", err)
		}
		e.prevFingerprint = ""
		return nil
	}

	e.limiter.Wait()
	if err := e.driver.GotoItem(ctx, target.StartID); err != nil {
		return fmt.Errorf("failed to position on anchor %s: %w", target.StartID, err)
	}

	anchor, err := e.extract(ctx)
	if err == nil {
		e.prevFingerprint = anchor.Fingerprint()
	} else {
		e.prevFingerprint = ""
	}

	if target.AdvanceOne {
		return e.advance(ctx)
	}
	return nil
}

// extract reads the current item's attributes with bounded fixed-delay
// retries around transient render failures.
func (e *Engine) extract(ctx context.Context) (models.Attributes, error) {
	cfg := retry.ExtractionConfig(e.cfg.ExtractRetries, e.cfg.ExtractWait, e.logger)
	cfg.Context = ctx
	return retry.DoWithResult(func() (models.Attributes, error) {
		e.limiter.Wait()
		return e.driver.CurrentAttributes(ctx)
	}, cfg)
}

// stallCheck verifies the cursor actually moved since the previous
// iteration. While the fingerprint is unchanged it re-sends the advance
// keystroke with escalating waits, up to the configured bound. Returns
// false when the cursor is confirmed stuck.
func (e *Engine) stallCheck(ctx context.Context, attrs *models.Attributes) (bool, error) {
	if e.prevFingerprint == "" || attrs.Fingerprint() != e.prevFingerprint {
		return true, nil
	}

	backoff := &retry.LinearBackoff{
		BaseDelay: e.cfg.StallWait,
		Increment: e.cfg.StallWait,
	}

	for attempt := 1; attempt <= e.cfg.StallRetries; attempt++ {
		logger.LogStall(e.prevFingerprint, attempt, e.cfg.StallRetries)

		if err := retry.Wait(ctx, backoff.NextDelay(attempt)); err != nil {
			return false, err
		}

		e.limiter.Wait()
		if err := e.driver.SendNext(ctx); err != nil {
			e.logger.WithError(err).Warn("Re-advance failed during stall recovery")
			continue
		}

		current, err := e.extract(ctx)
		if err != nil {
			continue
		}
		if current.Fingerprint() != e.prevFingerprint {
			*attrs = current
			return true, nil
		}
	}

	return false, nil
}

// act classifies the current item and performs the resulting side
// effect. No action failure is fatal: the item is always logged, with
// failure state on the entry, so nothing is silently dropped.
func (e *Engine) act(ctx context.Context, attrs models.Attributes, extractErr error) models.LedgerEntry {
	if extractErr != nil {
		// The driver could not produce attributes at all. Log a bare
		// entry for continuity; it can never anchor a resume.
		e.logger.WithError(extractErr).Warn("Extraction failed, logging bare entry")
		entry := models.LedgerEntry{SeenAt: time.Now().UTC()}
		e.appendEntry(entry)
		return entry
	}

	// Re-observed item: never repeat a confirmed action.
	if idx, ok := e.byID[attrs.ID]; ok && attrs.ID != "" {
		existing := e.entries[idx]
		if existing.Deleted || existing.Downloaded || existing.Classification == models.ClassificationFree {
			e.logger.DebugWithFields("Item already processed", map[string]interface{}{
				"id":         attrs.ID,
				"downloaded": existing.Downloaded,
				"deleted":    existing.Deleted,
			})
			return existing
		}
		// Known non-free entry whose download never succeeded: retry it.
		updated := e.download(ctx, attrs, existing)
		e.updateEntry(idx, updated)
		return updated
	}

	classification, action := classify.Classify(attrs)
	entry := models.NewEntry(attrs, classification)

	if action == classify.ActionDownload {
		entry = e.download(ctx, attrs, entry)
	}

	e.appendEntry(entry)
	logger.LogItemProcessed(entry.ID, entry.Filename, string(entry.Classification), entry.Downloaded)
	return entry
}

// download attempts the local transfer for a non-free item. On failure
// the entry keeps downloaded=false so a later sweep retries it.
func (e *Engine) download(ctx context.Context, attrs models.Attributes, entry models.LedgerEntry) models.LedgerEntry {
	e.limiter.Wait()
	localPath, err := e.driver.Download(ctx)
	if err != nil {
		logger.LogDownload(attrs.ID, attrs.Filename, false, err)
		return entry
	}

	filename := attrs.Filename
	if filename == "" {
		filename = attrs.ID + ".bin"
	}

	stored, err := e.storage.Store(localPath, filename)
	if err != nil {
		logger.LogDownload(attrs.ID, attrs.Filename, false, err)
		return entry
	}

	entry.Downloaded = true
	entry.LocalPath = stored
	logger.LogDownload(attrs.ID, attrs.Filename, true, nil)
	return entry
}

// advance sends one next-item command
func (e *Engine) advance(ctx context.Context) error {
	e.limiter.Wait()
	if err := e.driver.SendNext(ctx); err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	return nil
}

// appendEntry records a newly observed item: in memory and durably, one
// flushed line per item.
func (e *Engine) appendEntry(entry models.LedgerEntry) {
	e.entries = append(e.entries, entry)
	if entry.HasID() {
		e.byID[entry.ID] = len(e.entries) - 1
	}
	if err := e.ledger.Append(entry); err != nil {
		e.logger.WithError(err).WithField("id", entry.ID).Error("Failed to append ledger entry")
	}
}

// updateEntry mutates an existing entry in place; a mutation always
// triggers a full ordered rewrite to keep the file consistent on disk.
func (e *Engine) updateEntry(idx int, entry models.LedgerEntry) {
	e.entries[idx] = entry
	if err := e.ledger.Rewrite(e.entries); err != nil {
		e.logger.WithError(err).WithField("id", entry.ID).Error("Failed to rewrite ledger")
	}
}
