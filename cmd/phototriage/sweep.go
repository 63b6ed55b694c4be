package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"phototriage/pkg/driver"
	"phototriage/pkg/ledger"
	"phototriage/pkg/logger"
	"phototriage/pkg/models"
	"phototriage/pkg/ratelimit"
	"phototriage/pkg/scan"
	"phototriage/pkg/storage"
	"phototriage/pkg/ui"
)

var (
	sweepRetryDownloads bool
	sweepBridgeURL      string
	sweepLedgerDir      string
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Move confirmed-downloaded photos to the remote trash",
	Long: `Batch pass over the scan ledger.

By default every entry with a confirmed local copy and no confirmed
remote deletion is navigated to and moved to the remote trash. Each
confirmed deletion is persisted immediately, so re-running after a
crash never deletes the same item twice.

With --retry-downloads the pass instead re-attempts the transfer for
non-free items whose download never succeeded.`,
	Example: `  # Trash everything already downloaded
  phototriage sweep

  # Re-attempt failed downloads instead
  phototriage sweep --retry-downloads`,
	Args: cobra.NoArgs,
	Run:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepRetryDownloads, "retry-downloads", false, "retry failed downloads instead of deleting")
	sweepCmd.Flags().StringVar(&sweepBridgeURL, "bridge-url", "", "browser bridge endpoint")
	sweepCmd.Flags().StringVar(&sweepLedgerDir, "ledger-dir", "", "directory holding the ledger files")
}

func runSweep(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if sweepBridgeURL != "" {
		flags["bridge-url"] = sweepBridgeURL
	}
	if sweepLedgerDir != "" {
		flags["ledger-dir"] = sweepLedgerDir
	}

	cfg := loadConfigAndLogger(flags)
	requireBridgeURL(cfg)
	resolveSessionToken(cfg)

	led, err := ledger.Open[models.LedgerEntry](cfg.ScanLedgerPath())
	if err != nil {
		ui.PrintError("Failed to open scan ledger", err.Error())
		os.Exit(exitFailure)
	}

	store, err := storage.NewManager(cfg.Download.OutputDirectory)
	if err != nil {
		ui.PrintError("Failed to initialize download storage", err.Error())
		os.Exit(exitFailure)
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.CommandsPerMinute, time.Minute)
	d := driver.NewBridge(&cfg.Driver, logger.GetLogger())
	sweeper := scan.NewSweeper(d, led, store, limiter, logger.GetLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sweepRetryDownloads {
		if err := sweeper.RetryDownloads(ctx); err != nil {
			ui.PrintError("Download retry sweep failed", err.Error())
			os.Exit(exitFailure)
		}
		ui.PrintSuccess("Download retry sweep completed")
		return
	}

	if err := sweeper.DeleteDownloaded(ctx); err != nil {
		ui.PrintError("Delete sweep failed", err.Error())
		os.Exit(exitFailure)
	}
	ui.PrintSuccess("Delete sweep completed")
}
