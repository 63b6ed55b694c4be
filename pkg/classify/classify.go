// Package classify holds the pure decision logic mapping extracted item
// attributes to actions. No I/O.
package classify

import (
	"phototriage/pkg/models"
)

// Action is what the scan engine should do with the current item
type Action string

const (
	// ActionLogOnly records the item and advances; free items are never
	// downloaded or deleted.
	ActionLogOnly Action = "log_only"
	// ActionDownload attempts a local download before advancing.
	ActionDownload Action = "download"
)

// Classify maps extracted attributes to a classification and an action.
// An item is free iff no size descriptor is present: size-descriptor
// presence is the sole quota signal. The quota-exempt flag is recorded on
// the entry but deliberately not consulted here.
func Classify(attrs models.Attributes) (models.Classification, Action) {
	if attrs.SizeDescriptor == nil {
		return models.ClassificationFree, ActionLogOnly
	}
	return models.ClassificationNonFree, ActionDownload
}

// SelectDeleteSweep returns the entries the delete sweep should act on:
// exactly those with a confirmed local copy and no confirmed remote
// deletion. Entries without a resolvable id cannot be targeted and are
// skipped. Deletion is never attempted inline with download, so a crash
// mid-workflow costs extra local downloads, never "deleted without
// download".
func SelectDeleteSweep(entries []models.LedgerEntry) []models.LedgerEntry {
	var selected []models.LedgerEntry
	for _, entry := range entries {
		if !entry.HasID() {
			continue
		}
		if entry.Downloaded && !entry.Deleted {
			selected = append(selected, entry)
		}
	}
	return selected
}

// SelectDownloadRetry returns non-free entries that were logged but never
// successfully downloaded, so a later sweep can retry them.
func SelectDownloadRetry(entries []models.LedgerEntry) []models.LedgerEntry {
	var selected []models.LedgerEntry
	for _, entry := range entries {
		if !entry.HasID() {
			continue
		}
		if entry.Classification == models.ClassificationNonFree && !entry.Downloaded && !entry.Deleted {
			selected = append(selected, entry)
		}
	}
	return selected
}
