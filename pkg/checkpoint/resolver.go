// Package checkpoint determines where a resumed scan should restart.
// The ledger itself is the checkpoint: the last eligible entry anchors
// the resume, and the engine advances exactly one step past it.
package checkpoint

import (
	"phototriage/pkg/models"
)

// ResumeTarget instructs the scan engine where to position before the
// first extraction.
type ResumeTarget struct {
	// StartID is the anchor item to navigate to. Empty when Fresh.
	StartID string
	// AdvanceOne means the engine must advance exactly one step after
	// navigating, so the anchor itself is not reprocessed. Never more
	// than one: advancing further would silently skip items.
	AdvanceOne bool
	// Fresh means the ledger held no usable anchor; start from the
	// library's natural first item with no advance.
	Fresh bool
}

// Eligible is a workflow's "still eligible" predicate over ledger entries
type Eligible func(models.LedgerEntry) bool

// Any accepts every entry; the scan workflow resumes after the last item
// it observed, regardless of its state.
func Any(models.LedgerEntry) bool { return true }

// NotDeleted anchors the delete sweep on the last entry whose remote copy
// has not been confirmed trashed.
func NotDeleted(e models.LedgerEntry) bool { return !e.Deleted }

// NotApplied anchors the correction sweep on the last entry whose
// correction has not been confirmed written back.
func NotApplied(e models.LedgerEntry) bool { return !e.Applied }

// Resolve determines the resume target for a scan over the given replayed
// ledger. An explicit start id always wins. Entries without a resolvable
// id are never anchors: navigating to them is impossible.
func Resolve(entries []models.LedgerEntry, explicitStartID string, eligible Eligible) ResumeTarget {
	if explicitStartID != "" {
		return ResumeTarget{StartID: explicitStartID, AdvanceOne: true}
	}

	if eligible == nil {
		eligible = Any
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if !entry.HasID() {
			continue
		}
		if eligible(entry) {
			return ResumeTarget{StartID: entry.ID, AdvanceOne: true}
		}
	}

	return ResumeTarget{Fresh: true}
}
