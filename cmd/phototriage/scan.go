package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"phototriage/internal/supervisor"
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
	// Scan command flags
	scanStartID        string
	scanOutputDir      string
	scanBridgeURL      string
	scanLedgerDir      string
	scanCommandsPerMin int
	scanNoRestart      bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the library, classify and download each photo",
	Long: `Walk the photo library one item at a time.

Each observed item is classified (free items carry no size descriptor),
non-free items are downloaded, and every observation is appended to the
scan ledger. An interrupted run resumes from the last ledger entry with
a remote id; --start-id overrides the resume point.

When the remote cursor stops responding to advance commands, the scan
aborts and is restarted with a fresh bridge session, up to the
configured restart budget. If the budget runs out the process exits
with status 3 so outer tooling can tell a stall from other failures.`,
	Example: `  # Start or resume a scan
  phototriage scan

  # Resume from a specific item
  phototriage scan --start-id AF1QipM3x

  # Download into a custom directory, slower pacing
  phototriage scan --output ~/photos/triage --commands-per-minute 30`,
	Args: cobra.NoArgs,
	Run:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanStartID, "start-id", "", "item id to resume from, overriding the ledger checkpoint")
	scanCmd.Flags().StringVarP(&scanOutputDir, "output", "o", "", "output directory for downloads")
	scanCmd.Flags().StringVar(&scanBridgeURL, "bridge-url", "", "browser bridge endpoint")
	scanCmd.Flags().StringVar(&scanLedgerDir, "ledger-dir", "", "directory holding the ledger files")
	scanCmd.Flags().IntVar(&scanCommandsPerMin, "commands-per-minute", 0, "driver command pacing budget")
	scanCmd.Flags().BoolVar(&scanNoRestart, "no-restart", false, "exit on the first stall instead of restarting the session")
}

func runScan(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if scanStartID != "" {
		flags["start-id"] = scanStartID
	}
	if scanOutputDir != "" {
		flags["output"] = scanOutputDir
	}
	if scanBridgeURL != "" {
		flags["bridge-url"] = scanBridgeURL
	}
	if scanLedgerDir != "" {
		flags["ledger-dir"] = scanLedgerDir
	}
	if scanCommandsPerMin > 0 {
		flags["commands-per-minute"] = scanCommandsPerMin
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("version", version).Info("Phototriage scan starting")
	ui.PrintInfo("Ledger", cfg.ScanLedgerPath())
	ui.PrintInfo("Downloads", store.GetOutputDir())

	// Each attempt gets a freshly built bridge driver so a stalled tab's
	// state never leaks into the next session.
	run := func(ctx context.Context) error {
		d := driver.NewBridge(&cfg.Driver, logger.GetLogger())
		engine := scan.New(d, led, store, limiter, &cfg.Scan, logger.GetLogger())
		return engine.Run(ctx)
	}

	attempts := cfg.Scan.RestartAttempts
	if scanNoRestart {
		attempts = 1
	}

	err = supervisor.New(run, attempts, logger.GetLogger()).Run(ctx)
	if err != nil {
		if scan.IsStalled(err) {
			logger.WithError(err).Error("Scan stalled")
			ui.PrintError("SCAN STALLED", err.Error())
			os.Exit(exitStalled)
		}
		if ctx.Err() != nil {
			logger.Info("Scan interrupted")
			ui.PrintWarning("Scan interrupted")
			ui.PrintInfo("Stored so far", store.TotalSize())
			return
		}
		logger.WithError(err).Error("Scan failed")
		ui.PrintError("SCAN FAILED", err.Error())
		os.Exit(exitFailure)
	}

	logger.Info("Scan completed")
	ui.PrintSuccess("Scan completed")
	ui.PrintInfo("Stored", store.TotalSize())
}
