package checkpoint

import (
	"testing"

	"phototriage/pkg/models"
)

func entry(id string) models.LedgerEntry {
	return models.LedgerEntry{ID: id, Filename: id + ".jpg"}
}

func TestResolveEmptyLedger(t *testing.T) {
	target := Resolve(nil, "", Any)
	if !target.Fresh {
		t.Error("expected fresh start for empty ledger")
	}
	if target.StartID != "" || target.AdvanceOne {
		t.Errorf("fresh target should carry no anchor: %+v", target)
	}
}

func TestResolveExplicitOverrideWins(t *testing.T) {
	entries := []models.LedgerEntry{entry("a"), entry("b"), entry("c")}

	target := Resolve(entries, "a", Any)
	if target.StartID != "a" {
		t.Errorf("StartID = %q, want explicit override a", target.StartID)
	}
	if !target.AdvanceOne {
		t.Error("explicit anchor must still advance exactly one step")
	}
	if target.Fresh {
		t.Error("explicit anchor is not a fresh start")
	}
}

func TestResolveLastEntryAnchors(t *testing.T) {
	entries := []models.LedgerEntry{entry("a"), entry("b"), entry("c")}

	target := Resolve(entries, "", Any)
	if target.StartID != "c" {
		t.Errorf("StartID = %q, want last entry c", target.StartID)
	}
	if !target.AdvanceOne {
		t.Error("resume must advance exactly one step past the anchor")
	}
}

func TestResolveSkipsEntriesWithoutID(t *testing.T) {
	entries := []models.LedgerEntry{
		entry("a"),
		entry("b"),
		{Filename: "unextracted.jpg"}, // extraction failed, no id
		{},
	}

	target := Resolve(entries, "", Any)
	if target.StartID != "b" {
		t.Errorf("StartID = %q, want b (id-less entries can never anchor)", target.StartID)
	}
}

func TestResolveOnlyIDLessEntriesIsFresh(t *testing.T) {
	entries := []models.LedgerEntry{
		{Filename: "one.jpg"},
		{Filename: "two.jpg"},
	}

	target := Resolve(entries, "", Any)
	if !target.Fresh {
		t.Error("ledger with no resolvable ids must start fresh")
	}
}

func TestResolveEligibilityPredicate(t *testing.T) {
	entries := []models.LedgerEntry{
		{ID: "a", Downloaded: true, Deleted: true},
		{ID: "b", Downloaded: true},
		{ID: "c", Downloaded: true, Deleted: true},
	}

	target := Resolve(entries, "", NotDeleted)
	if target.StartID != "b" {
		t.Errorf("StartID = %q, want b (last not-deleted entry)", target.StartID)
	}
}

func TestResolveNilPredicateAcceptsAll(t *testing.T) {
	entries := []models.LedgerEntry{entry("a"), entry("b")}

	target := Resolve(entries, "", nil)
	if target.StartID != "b" {
		t.Errorf("StartID = %q, want b", target.StartID)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	entries := []models.LedgerEntry{entry("a"), entry("b"), entry("c")}

	first := Resolve(entries, "", Any)
	second := Resolve(entries, "", Any)
	if first != second {
		t.Errorf("resolving the same ledger twice differed: %+v vs %+v", first, second)
	}
}
