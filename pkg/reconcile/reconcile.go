// Package reconcile cross-references capture-date metadata against
// filename-derived dates and drives corrections back into the remote
// library. It runs as independent batch passes over the date ledger:
// filename back-fill, skew detection, correction-target lookup, and a
// fully separate apply pass.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phototriage/pkg/config"
	"phototriage/pkg/dates"
	"phototriage/pkg/driver"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
	"phototriage/pkg/ratelimit"
)

// Reconciler runs the date reconciliation passes
type Reconciler struct {
	driver  driver.PageDriver
	ledger  *ledger.Ledger[models.LedgerEntry]
	history *ledger.Ledger[models.LedgerEntry]
	parser  *dates.Parser
	cfg     *config.DatesConfig
	loc     *time.Location
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New creates a reconciler. The history ledger holds entries from
// earlier scans whose ids may differ from the current ones (a
// trash/restore cycle changes an item's id); filename is the join key.
func New(
	d driver.PageDriver,
	led *ledger.Ledger[models.LedgerEntry],
	history *ledger.Ledger[models.LedgerEntry],
	cfg *config.DatesConfig,
	loc *time.Location,
	limiter ratelimit.Limiter,
	log logger.Logger,
) *Reconciler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Reconciler{
		driver:  d,
		ledger:  led,
		history: history,
		parser:  dates.NewParser(loc),
		cfg:     cfg,
		loc:     loc,
		limiter: limiter,
		logger:  log,
	}
}

// BackfillFilenames fills date_from_name for every entry that lacks one,
// trying every supported filename pattern, first match wins. Pure local
// pass; one rewrite at the end.
func (r *Reconciler) BackfillFilenames() error {
	entries, err := r.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay date ledger: %w", err)
	}

	filled := 0
	for i, entry := range entries {
		if entry.DateFromName != nil || entry.Filename == "" {
			continue
		}
		if parsed, ok := r.parser.Parse(entry.Filename); ok {
			entries[i].DateFromName = &parsed
			filled++
		}
	}

	if filled > 0 {
		if err := r.ledger.Rewrite(entries); err != nil {
			return fmt.Errorf("failed to persist filename back-fill: %w", err)
		}
	}

	r.logger.InfoWithFields("Filename back-fill finished", map[string]interface{}{
		"entries": len(entries),
		"filled":  filled,
	})
	return nil
}

// needsReconciliation selects an entry for correction lookup: not already
// processed, not on the excluded-prefix list, and either missing a
// filename-derived date entirely or disagreeing with metadata by at
// least the skew threshold.
func (r *Reconciler) needsReconciliation(entry models.LedgerEntry) bool {
	if entry.Applied || entry.CorrectionTarget != nil {
		return false
	}
	for _, prefix := range r.cfg.ExcludedPrefixes {
		if strings.HasPrefix(entry.Filename, prefix) {
			return false
		}
	}
	if entry.DateFromName == nil {
		return true
	}
	if entry.DateMetadata == nil {
		return false
	}
	return dates.ExceedsThreshold(*entry.DateMetadata, *entry.DateFromName, r.cfg.SkewThreshold)
}

// ResolveCorrections finds the authoritative date for every entry that
// needs one: join on filename against the historical ledger to recover
// the item's previous id, read that item's date off the removed view,
// and record it as the correction target. Persisted per item — remote
// round-trips dominate cost, so durability wins over throughput.
func (r *Reconciler) ResolveCorrections(ctx context.Context) error {
	entries, err := r.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay date ledger: %w", err)
	}

	historical, err := r.history.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay history ledger: %w", err)
	}
	byFilename := make(map[string]models.LedgerEntry, len(historical))
	for _, h := range historical {
		if h.Filename != "" && h.HasID() {
			byFilename[h.Filename] = h
		}
	}

	resolved := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.needsReconciliation(entry) {
			continue
		}

		previous, ok := byFilename[entry.Filename]
		if !ok || previous.ID == entry.ID {
			r.logger.DebugWithFields("No historical id for entry, skipping", map[string]interface{}{
				"id":       entry.ID,
				"filename": entry.Filename,
			})
			continue
		}

		r.limiter.Wait()
		authoritative, err := r.driver.RemovedItemDate(ctx, previous.ID)
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"filename":    entry.Filename,
				"previous_id": previous.ID,
			}).Warn("Could not read removed-item date")
			continue
		}

		utc := authoritative.UTC()
		entries[i].CorrectionTarget = &utc
		if err := r.ledger.Rewrite(entries); err != nil {
			return fmt.Errorf("failed to persist correction target for %s: %w", entry.Filename, err)
		}
		resolved++
		logger.LogCorrection(entry.ID, entry.Filename, utc.Format(time.RFC3339), false)
	}

	r.logger.InfoWithFields("Correction lookup finished", map[string]interface{}{
		"resolved": resolved,
	})
	return nil
}

// Apply consumes entries with a correction target and no confirmed
// write-back: decompose the target instant into the edit UI's fields in
// the configured fixed offset, push it through the driver, verify
// best-effort, and mark applied on a successful write-back attempt.
// Verification failure does not block the applied flag; it is logged.
func (r *Reconciler) Apply(ctx context.Context) error {
	entries, err := r.ledger.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to replay date ledger: %w", err)
	}

	applied := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.CorrectionTarget == nil || entry.Applied || !entry.HasID() {
			continue
		}

		components := driver.Decompose(*entry.CorrectionTarget, r.loc, r.cfg.UTCOffset)

		r.limiter.Wait()
		if err := r.driver.WriteDateFields(ctx, entry.ID, components); err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"id":       entry.ID,
				"filename": entry.Filename,
			}).Error("Date write-back failed, entry stays eligible")
			continue
		}

		r.limiter.Wait()
		if readBack, err := r.driver.ReadDateFields(ctx, entry.ID); err != nil {
			r.logger.WithError(err).WithField("id", entry.ID).Warn("Could not verify write-back")
		} else if readBack != components {
			r.logger.WarnWithFields("Write-back verification mismatch", map[string]interface{}{
				"id":       entry.ID,
				"expected": components.String(),
				"actual":   readBack.String(),
			})
		}

		entries[i].Applied = true
		if err := r.ledger.Rewrite(entries); err != nil {
			return fmt.Errorf("failed to persist applied flag for %s: %w", entry.ID, err)
		}
		applied++
		logger.LogCorrection(entry.ID, entry.Filename, entry.CorrectionTarget.Format(time.RFC3339), true)
	}

	r.logger.InfoWithFields("Correction apply finished", map[string]interface{}{
		"applied": applied,
	})
	return nil
}
