package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"phototriage/pkg/config"
	"phototriage/pkg/driver"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
	"phototriage/pkg/ratelimit"
	"phototriage/pkg/reconcile"
	"phototriage/pkg/ui"
)

var (
	datesBridgeURL string
	datesLedgerDir string
	datesUTCOffset string
)

// backfillCmd derives filename dates into the date ledger
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Derive capture dates from filenames into the date ledger",
	Long: `Local pass over the date ledger: for every entry without a
filename-derived date, try each supported filename pattern (PXL_,
Screenshot_, IMG_/VID_, bare timestamp, exported-album form) and store
the first match. No bridge session is needed.`,
	Args: cobra.NoArgs,
	Run:  runBackfill,
}

// reconcileCmd looks up authoritative dates for entries with wrong metadata
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find authoritative dates for photos with wrong metadata",
	Long: `Select every date-ledger entry whose metadata date disagrees with its
filename-derived date by at least the skew threshold (or that has no
filename date at all), look up the item's previous id in the history
ledger by filename, read the authoritative date off the removed-items
view, and record it as the entry's correction target.

Each resolved target is persisted immediately. Run 'phototriage apply'
afterwards to push the corrections into the library.`,
	Args: cobra.NoArgs,
	Run:  runReconcile,
}

// applyCmd writes recorded corrections back through the bridge
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write corrected dates back into the library",
	Long: `For every date-ledger entry with a correction target and no confirmed
write-back, decompose the target instant into the edit UI's date fields
in the configured UTC offset and push them through the bridge. The
written fields are read back for best-effort verification; a mismatch
is logged but does not undo the write.`,
	Args: cobra.NoArgs,
	Run:  runApply,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(applyCmd)

	for _, cmd := range []*cobra.Command{backfillCmd, reconcileCmd, applyCmd} {
		cmd.Flags().StringVar(&datesLedgerDir, "ledger-dir", "", "directory holding the ledger files")
		cmd.Flags().StringVar(&datesUTCOffset, "utc-offset", "", "fixed UTC offset for zone-less dates, e.g. +03:00")
	}
	reconcileCmd.Flags().StringVar(&datesBridgeURL, "bridge-url", "", "browser bridge endpoint")
	applyCmd.Flags().StringVar(&datesBridgeURL, "bridge-url", "", "browser bridge endpoint")
}

// datesSetup loads configuration and opens the date-workflow ledgers.
// withDriver also builds the bridge driver and command limiter.
func datesSetup(withDriver bool) (*config.Config, *reconcile.Reconciler) {
	flags := make(map[string]interface{})
	if datesBridgeURL != "" {
		flags["bridge-url"] = datesBridgeURL
	}
	if datesLedgerDir != "" {
		flags["ledger-dir"] = datesLedgerDir
	}
	if datesUTCOffset != "" {
		flags["utc-offset"] = datesUTCOffset
	}

	cfg := loadConfigAndLogger(flags)

	loc, err := cfg.UTCOffsetLocation()
	if err != nil {
		ui.PrintError("Invalid UTC offset", err.Error())
		os.Exit(exitFailure)
	}

	led, err := ledger.Open[models.LedgerEntry](cfg.DatesLedgerPath())
	if err != nil {
		ui.PrintError("Failed to open date ledger", err.Error())
		os.Exit(exitFailure)
	}

	history, err := ledger.Open[models.LedgerEntry](cfg.HistoryLedgerPath())
	if err != nil {
		ui.PrintError("Failed to open history ledger", err.Error())
		os.Exit(exitFailure)
	}

	var d driver.PageDriver
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if withDriver {
		requireBridgeURL(cfg)
		resolveSessionToken(cfg)
		d = driver.NewBridge(&cfg.Driver, logger.GetLogger())
		limiter = ratelimit.NewTokenBucket(cfg.RateLimit.CommandsPerMinute, time.Minute)

		// Per-item rewrites ahead; keep a copy of the ledger as it was.
		if err := led.Backup("bak-" + uuid.New().String()[:8]); err != nil {
			ui.PrintError("Failed to back up date ledger", err.Error())
			os.Exit(exitFailure)
		}
	}

	return cfg, reconcile.New(d, led, history, &cfg.Dates, loc, limiter, logger.GetLogger())
}

func runBackfill(cmd *cobra.Command, args []string) {
	_, reconciler := datesSetup(false)

	if err := reconciler.BackfillFilenames(); err != nil {
		ui.PrintError("Filename back-fill failed", err.Error())
		os.Exit(exitFailure)
	}
	ui.PrintSuccess("Filename back-fill completed")
}

func runReconcile(cmd *cobra.Command, args []string) {
	_, reconciler := datesSetup(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reconciler.ResolveCorrections(ctx); err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Reconciliation interrupted, progress is saved")
			return
		}
		ui.PrintError("Reconciliation failed", err.Error())
		os.Exit(exitFailure)
	}
	ui.PrintSuccess("Reconciliation completed")
	ui.PrintHighlight("Run 'phototriage apply' to write the corrections back")
}

func runApply(cmd *cobra.Command, args []string) {
	_, reconciler := datesSetup(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reconciler.Apply(ctx); err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Apply interrupted, progress is saved")
			return
		}
		ui.PrintError("Apply failed", err.Error())
		os.Exit(exitFailure)
	}
	ui.PrintSuccess("Corrections applied")
}
