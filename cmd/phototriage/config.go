package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"phototriage/pkg/config"
	"phototriage/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage phototriage configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PHOTOTRIAGE_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd writes a starter configuration file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with defaults",
	Long: `Create a configuration file populated with the default values.

The file is created as '.phototriage.yaml' in the current directory
unless a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd prints the effective configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The bridge session token is masked.`,
	Run: runConfigShow,
}

// configValidateCmd validates the configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Load the configuration from all sources and report any invalid values.`,
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".phototriage.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(exitFailure)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(exitFailure)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set driver.bridge_url to your bridge agent's endpoint")
	fmt.Println("2. Store a session token with 'phototriage session login'")
	fmt.Println("3. Run 'phototriage config validate' to check the configuration")
	fmt.Println("4. Start a scan with 'phototriage scan'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(exitFailure)
	}

	displayCfg := *cfg
	if displayCfg.Driver.SessionToken != "" {
		if len(displayCfg.Driver.SessionToken) > 8 {
			token := displayCfg.Driver.SessionToken
			displayCfg.Driver.SessionToken = token[:4] + "..." + token[len(token)-4:]
		} else {
			displayCfg.Driver.SessionToken = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(exitFailure)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (PHOTOTRIAGE_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-detected)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(exitFailure)
	}

	warnings := []string{}
	if cfg.Driver.BridgeURL == "" {
		warnings = append(warnings, "driver.bridge_url not configured; scan, sweep, reconcile and apply need it")
	}
	if cfg.Driver.SessionToken == "" {
		warnings = append(warnings, "no session token configured; will fall back to the session store")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Ledger directory: %s\n", cfg.Ledger.Directory)
	fmt.Printf("  Output directory: %s\n", cfg.Download.OutputDirectory)
	fmt.Printf("  Command pacing: %d commands/minute\n", cfg.RateLimit.CommandsPerMinute)
	fmt.Printf("  Stall retries: %d\n", cfg.Scan.StallRetries)
	fmt.Printf("  Skew threshold: %s\n", cfg.Dates.SkewThreshold)
	fmt.Printf("  UTC offset: %s\n", cfg.Dates.UTCOffset)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
