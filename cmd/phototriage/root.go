package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"phototriage/pkg/config"
	"phototriage/pkg/logger"
	"phototriage/pkg/session"
	"phototriage/pkg/ui"
)

var (
	// Version information
	version   = "1.2.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// Exit codes. The supervisor-facing stalled code lets an outer process
// manager distinguish "restart with a fresh session" from plain failure.
const (
	exitFailure = 1
	exitStalled = 3
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "phototriage",
	Short: "Bulk triage for a web photo library",
	Long: `Phototriage walks a web photo library one item at a time through a
browser-bridge session, classifies each photo by whether it counts
against storage quota, downloads the ones that do, and keeps durable
JSONL ledgers so any interrupted run resumes exactly where it left off.

Workflows:
  scan       walk the library, classify and download
  sweep      move confirmed-downloaded items to the remote trash
  backfill   derive capture dates from filenames into the date ledger
  reconcile  find authoritative dates for items with wrong metadata
  apply      write corrected dates back through the bridge`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuiet(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/phototriage/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`Phototriage {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfigAndLogger loads the layered configuration with the given
// command-local flag overrides and initializes the global logger.
func loadConfigAndLogger(flags map[string]interface{}) *config.Config {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(exitFailure)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(exitFailure)
	}

	return cfg
}

// resolveSessionToken fills the driver session token from the session
// store when configuration and environment did not provide one.
func resolveSessionToken(cfg *config.Config) {
	if cfg.Driver.SessionToken != "" {
		return
	}

	manager, err := session.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize session store", err.Error())
		os.Exit(exitFailure)
	}

	stored, err := manager.RetrieveDefault()
	if err != nil {
		logger.Error("No bridge session token found")
		ui.PrintError("No bridge session token found", "")
		fmt.Println("\nTo store a token securely, run:")
		fmt.Println("  phototriage session login")
		fmt.Println("\nOr set it directly:")
		fmt.Println("  export PHOTOTRIAGE_BRIDGE_TOKEN=your_token")
		os.Exit(exitFailure)
	}

	cfg.Driver.SessionToken = stored.BridgeToken
	logger.WithField("profile", stored.Profile).Info("Using stored bridge session")
	ui.PrintInfo("Using profile", stored.Profile)
}

// requireBridgeURL aborts when no bridge endpoint is configured
func requireBridgeURL(cfg *config.Config) {
	if cfg.Driver.BridgeURL != "" {
		return
	}
	logger.Error("Missing bridge URL")
	ui.PrintError("Missing bridge URL", "Provide via --bridge-url flag, PHOTOTRIAGE_BRIDGE_URL env var, or the config file")
	os.Exit(exitFailure)
}
