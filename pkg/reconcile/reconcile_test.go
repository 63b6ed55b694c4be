package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phototriage/pkg/config"
	"phototriage/pkg/driver"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func testDatesConfig() *config.DatesConfig {
	return &config.DatesConfig{
		SkewThreshold:    8 * time.Hour,
		UTCOffset:        "+03:00",
		ExcludedPrefixes: []string{"Collage", "MOVIE"},
	}
}

type fixture struct {
	driver     *driver.Scripted
	reconciler *Reconciler
	ledger     *ledger.Ledger[models.LedgerEntry]
	history    *ledger.Ledger[models.LedgerEntry]
	loc        *time.Location
}

func newFixture(t *testing.T, d *driver.Scripted) *fixture {
	t.Helper()

	dir := t.TempDir()
	led, err := ledger.Open[models.LedgerEntry](filepath.Join(dir, "dates.jsonl"))
	require.NoError(t, err)
	history, err := ledger.Open[models.LedgerEntry](filepath.Join(dir, "history.jsonl"))
	require.NoError(t, err)

	loc := time.FixedZone("UTC+3", 3*60*60)
	return &fixture{
		driver:     d,
		reconciler: New(d, led, history, testDatesConfig(), loc, nil, logger.NewNopLogger()),
		ledger:     led,
		history:    history,
		loc:        loc,
	}
}

func TestBackfillFilenames(t *testing.T) {
	f := newFixture(t, driver.NewScripted(nil))

	known := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seed := []models.LedgerEntry{
		{ID: "a", Filename: "PXL_20260114_100210191.jpg"},
		{ID: "b", Filename: "holiday-snap.jpg"},
		{ID: "c", Filename: "IMG_20250601_120000.jpg", DateFromName: timePtr(known)},
		{ID: "d"},
	}
	require.NoError(t, f.ledger.Rewrite(seed))

	require.NoError(t, f.reconciler.BackfillFilenames())

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 4)

	require.NotNil(t, entries[0].DateFromName)
	assert.Equal(t, time.Date(2026, 1, 14, 10, 2, 10, 191000000, time.UTC), *entries[0].DateFromName)

	assert.Nil(t, entries[1].DateFromName, "non-matching filename stays empty")

	require.NotNil(t, entries[2].DateFromName)
	assert.True(t, entries[2].DateFromName.Equal(known), "already filled entries are left alone")

	assert.Nil(t, entries[3].DateFromName, "entries without a filename stay empty")
}

func TestResolveCorrectionsJoinsOnFilename(t *testing.T) {
	removed := time.Date(2024, 6, 1, 10, 30, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	d := driver.NewScripted([]driver.ScriptedItem{
		{Attrs: models.Attributes{ID: "old-1", Filename: "a.jpg"}, RemovedDate: removed},
	})
	f := newFixture(t, d)

	meta := time.Date(2026, 1, 14, 20, 0, 0, 0, time.UTC)
	named := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "new-1", Filename: "a.jpg", DateMetadata: timePtr(meta), DateFromName: timePtr(named)},
	}))
	require.NoError(t, f.history.Append(models.LedgerEntry{ID: "old-1", Filename: "a.jpg"}))

	require.NoError(t, f.reconciler.ResolveCorrections(context.Background()))

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].CorrectionTarget)
	assert.True(t, entries[0].CorrectionTarget.Equal(removed), "target is the removed-view date")
	assert.Equal(t, time.UTC, entries[0].CorrectionTarget.Location(), "targets are stored in UTC")
	assert.False(t, entries[0].Applied)
}

func TestResolveCorrectionsSelection(t *testing.T) {
	removed := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	meta := time.Date(2026, 1, 14, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		entry      models.LedgerEntry
		wantTarget bool
	}{
		{
			name:       "missing filename date selects",
			entry:      models.LedgerEntry{ID: "new-1", Filename: "a.jpg", DateMetadata: timePtr(meta)},
			wantTarget: true,
		},
		{
			name: "skew at threshold selects",
			entry: models.LedgerEntry{
				ID: "new-1", Filename: "a.jpg",
				DateMetadata: timePtr(meta),
				DateFromName: timePtr(meta.Add(-8 * time.Hour)),
			},
			wantTarget: true,
		},
		{
			name: "skew below threshold does not select",
			entry: models.LedgerEntry{
				ID: "new-1", Filename: "a.jpg",
				DateMetadata: timePtr(meta),
				DateFromName: timePtr(meta.Add(-time.Hour)),
			},
			wantTarget: false,
		},
		{
			name: "filename date without metadata does not select",
			entry: models.LedgerEntry{
				ID: "new-1", Filename: "a.jpg",
				DateFromName: timePtr(meta),
			},
			wantTarget: false,
		},
		{
			name: "excluded prefix does not select",
			entry: models.LedgerEntry{
				ID: "new-1", Filename: "Collage-a.jpg", DateMetadata: timePtr(meta),
			},
			wantTarget: false,
		},
		{
			name: "already applied does not select",
			entry: models.LedgerEntry{
				ID: "new-1", Filename: "a.jpg", DateMetadata: timePtr(meta), Applied: true,
			},
			wantTarget: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := driver.NewScripted([]driver.ScriptedItem{
				{Attrs: models.Attributes{ID: "old-1", Filename: tt.entry.Filename}, RemovedDate: removed},
			})
			f := newFixture(t, d)
			require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{tt.entry}))
			require.NoError(t, f.history.Append(models.LedgerEntry{ID: "old-1", Filename: tt.entry.Filename}))

			require.NoError(t, f.reconciler.ResolveCorrections(context.Background()))

			entries, err := f.ledger.ReadAll()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			if tt.wantTarget {
				assert.NotNil(t, entries[0].CorrectionTarget)
			} else {
				assert.Nil(t, entries[0].CorrectionTarget)
			}
		})
	}
}

func TestResolveCorrectionsSkipsUnchangedID(t *testing.T) {
	d := driver.NewScripted([]driver.ScriptedItem{
		{Attrs: models.Attributes{ID: "same", Filename: "a.jpg"}, RemovedDate: time.Now()},
	})
	f := newFixture(t, d)

	meta := time.Date(2026, 1, 14, 20, 0, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "same", Filename: "a.jpg", DateMetadata: timePtr(meta)},
	}))
	require.NoError(t, f.history.Append(models.LedgerEntry{ID: "same", Filename: "a.jpg"}))

	require.NoError(t, f.reconciler.ResolveCorrections(context.Background()))

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries[0].CorrectionTarget, "an unchanged id offers no correction source")
}

func TestResolveCorrectionsDriverFailureLeavesEntryEligible(t *testing.T) {
	// old-1 has no removed-view date, so the lookup fails.
	d := driver.NewScripted([]driver.ScriptedItem{
		{Attrs: models.Attributes{ID: "old-1", Filename: "a.jpg"}},
	})
	f := newFixture(t, d)

	meta := time.Date(2026, 1, 14, 20, 0, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "new-1", Filename: "a.jpg", DateMetadata: timePtr(meta)},
	}))
	require.NoError(t, f.history.Append(models.LedgerEntry{ID: "old-1", Filename: "a.jpg"}))

	require.NoError(t, f.reconciler.ResolveCorrections(context.Background()), "a per-item lookup failure is not fatal")

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries[0].CorrectionTarget)
	assert.False(t, entries[0].Applied)
}

func TestApplyWritesDecomposedTarget(t *testing.T) {
	d := driver.NewScripted([]driver.ScriptedItem{
		{Attrs: models.Attributes{ID: "new-1", Filename: "a.jpg"}},
	})
	f := newFixture(t, d)

	target := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "new-1", Filename: "a.jpg", CorrectionTarget: timePtr(target)},
		{ID: "new-2", Filename: "b.jpg"}, // no target, untouched
	}))

	require.NoError(t, f.reconciler.Apply(context.Background()))

	written := d.WrittenDates()
	require.Contains(t, written, "new-1")
	// 07:30 UTC rendered in the configured +03:00 offset.
	assert.Equal(t, driver.DateComponents{
		Year: 2024, Month: time.June, Day: 1,
		Hour: 10, Minute: 30, Second: 0,
		Offset: "+03:00",
	}, written["new-1"])
	assert.NotContains(t, written, "new-2")

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	assert.True(t, entries[0].Applied)
	assert.False(t, entries[1].Applied)
}

func TestApplyWriteFailureLeavesEntryEligible(t *testing.T) {
	// The ledger points at an id the driver does not know, so the
	// write-back fails.
	d := driver.NewScripted(nil)
	f := newFixture(t, d)

	target := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "gone", Filename: "a.jpg", CorrectionTarget: timePtr(target)},
	}))

	require.NoError(t, f.reconciler.Apply(context.Background()), "a per-item write failure is not fatal")

	entries, err := f.ledger.ReadAll()
	require.NoError(t, err)
	assert.False(t, entries[0].Applied, "failed write-back stays eligible for the next run")
	require.NotNil(t, entries[0].CorrectionTarget)
}

func TestApplyIsIdempotent(t *testing.T) {
	d := driver.NewScripted([]driver.ScriptedItem{
		{Attrs: models.Attributes{ID: "new-1", Filename: "a.jpg"}},
	})
	f := newFixture(t, d)

	target := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, f.ledger.Rewrite([]models.LedgerEntry{
		{ID: "new-1", Filename: "a.jpg", CorrectionTarget: timePtr(target), Applied: true},
	}))

	require.NoError(t, f.reconciler.Apply(context.Background()))
	assert.NotContains(t, d.WrittenDates(), "new-1", "applied entries are never written again")
}
