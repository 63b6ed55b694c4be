package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the photo triage tool
type Config struct {
	// Page driver session settings
	Driver DriverConfig `yaml:"driver" json:"driver"`

	// Scan engine settings
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Date reconciliation settings
	Dates DatesConfig `yaml:"dates" json:"dates"`

	// Ledger file locations
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Pacing of remote driver commands
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DriverConfig holds page-driver session configuration
type DriverConfig struct {
	BridgeURL      string        `yaml:"bridge_url" json:"bridge_url"`
	SessionToken   string        `yaml:"session_token" json:"session_token"`
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// ScanConfig holds scan engine configuration
type ScanConfig struct {
	StartID          string        `yaml:"start_id" json:"start_id"`
	StallRetries     int           `yaml:"stall_retries" json:"stall_retries"`
	StallWait        time.Duration `yaml:"stall_wait" json:"stall_wait"`
	ExtractRetries   int           `yaml:"extract_retries" json:"extract_retries"`
	ExtractWait      time.Duration `yaml:"extract_wait" json:"extract_wait"`
	RestartAttempts  int           `yaml:"restart_attempts" json:"restart_attempts"`
	ProgressInterval int           `yaml:"progress_interval" json:"progress_interval"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	OutputDirectory string        `yaml:"output_directory" json:"output_directory"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	MinFileSize     int64         `yaml:"min_file_size" json:"min_file_size"`
}

// DatesConfig holds date reconciliation configuration
type DatesConfig struct {
	// SkewThreshold is the minimum metadata-vs-filename disagreement
	// that selects an entry for reconciliation.
	SkewThreshold time.Duration `yaml:"skew_threshold" json:"skew_threshold"`
	// UTCOffset is the fixed offset assumed for filename timestamps with
	// no zone info and for decomposed write-backs, e.g. "+03:00".
	UTCOffset string `yaml:"utc_offset" json:"utc_offset"`
	// ExcludedPrefixes skips aggregate/auto-generated item names.
	ExcludedPrefixes []string `yaml:"excluded_prefixes" json:"excluded_prefixes"`
}

// LedgerConfig holds ledger file locations
type LedgerConfig struct {
	Directory   string `yaml:"directory" json:"directory"`
	ScanFile    string `yaml:"scan_file" json:"scan_file"`
	DatesFile   string `yaml:"dates_file" json:"dates_file"`
	HistoryFile string `yaml:"history_file" json:"history_file"`
}

// RateLimitConfig holds driver-command pacing configuration
type RateLimitConfig struct {
	CommandsPerMinute int `yaml:"commands_per_minute" json:"commands_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			CommandTimeout: 20 * time.Second,
			SettleDelay:    800 * time.Millisecond,
		},
		Scan: ScanConfig{
			StallRetries:     5,
			StallWait:        2 * time.Second,
			ExtractRetries:   3,
			ExtractWait:      500 * time.Millisecond,
			RestartAttempts:  3,
			ProgressInterval: 25,
		},
		Download: DownloadConfig{
			OutputDirectory: "./downloads",
			Timeout:         60 * time.Second,
			MinFileSize:     0,
		},
		Dates: DatesConfig{
			SkewThreshold:    8 * time.Hour,
			UTCOffset:        "+03:00",
			ExcludedPrefixes: []string{"Collage", "MOVIE", "PANO_AUTO"},
		},
		Ledger: LedgerConfig{
			Directory:   filepath.Join(xdg.DataHome, "phototriage"),
			ScanFile:    "scan.jsonl",
			DatesFile:   "dates.jsonl",
			HistoryFile: "history.jsonl",
		},
		RateLimit: RateLimitConfig{
			CommandsPerMinute: 60,
			BurstSize:         10,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if bridge := os.Getenv("PHOTOTRIAGE_BRIDGE_URL"); bridge != "" {
		c.Driver.BridgeURL = bridge
	}
	if token := os.Getenv("PHOTOTRIAGE_SESSION_TOKEN"); token != "" {
		c.Driver.SessionToken = token
	}
	if startID := os.Getenv("PHOTOTRIAGE_START_ID"); startID != "" {
		c.Scan.StartID = startID
	}
	if outputDir := os.Getenv("PHOTOTRIAGE_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if ledgerDir := os.Getenv("PHOTOTRIAGE_LEDGER_DIR"); ledgerDir != "" {
		c.Ledger.Directory = ledgerDir
	}
	if offset := os.Getenv("PHOTOTRIAGE_UTC_OFFSET"); offset != "" {
		c.Dates.UTCOffset = offset
	}
	if cpm := os.Getenv("PHOTOTRIAGE_COMMANDS_PER_MINUTE"); cpm != "" {
		var val int
		fmt.Sscanf(cpm, "%d", &val)
		if val > 0 {
			c.RateLimit.CommandsPerMinute = val
		}
	}
	if logLevel := os.Getenv("PHOTOTRIAGE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".phototriage.yaml",
		".phototriage.yml",
		filepath.Join(xdg.ConfigHome, "phototriage", "config.yaml"),
		filepath.Join(xdg.ConfigHome, "phototriage", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".phototriage.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// ScanLedgerPath returns the absolute path of the scan workflow ledger
func (c *Config) ScanLedgerPath() string {
	return filepath.Join(c.Ledger.Directory, c.Ledger.ScanFile)
}

// DatesLedgerPath returns the absolute path of the date workflow ledger
func (c *Config) DatesLedgerPath() string {
	return filepath.Join(c.Ledger.Directory, c.Ledger.DatesFile)
}

// HistoryLedgerPath returns the absolute path of the historical id ledger
func (c *Config) HistoryLedgerPath() string {
	return filepath.Join(c.Ledger.Directory, c.Ledger.HistoryFile)
}

// UTCOffsetLocation parses Dates.UTCOffset into a fixed time.Location
func (c *Config) UTCOffsetLocation() (*time.Location, error) {
	offset := strings.TrimSpace(c.Dates.UTCOffset)
	var sign int
	switch {
	case strings.HasPrefix(offset, "+"):
		sign = 1
	case strings.HasPrefix(offset, "-"):
		sign = -1
	default:
		return nil, fmt.Errorf("invalid utc_offset %q: must start with + or -", offset)
	}
	var hh, mm int
	if _, err := fmt.Sscanf(offset[1:], "%d:%d", &hh, &mm); err != nil {
		return nil, fmt.Errorf("invalid utc_offset %q: %w", offset, err)
	}
	if hh < 0 || hh > 14 || mm < 0 || mm > 59 {
		return nil, fmt.Errorf("invalid utc_offset %q: out of range", offset)
	}
	return time.FixedZone("UTC"+offset, sign*(hh*3600+mm*60)), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Scan.StallRetries <= 0 {
		errs = append(errs, errors.New("stall retries must be positive"))
	}
	if c.Scan.StallWait <= 0 {
		errs = append(errs, errors.New("stall wait must be positive"))
	}
	if c.Scan.ExtractRetries < 0 {
		errs = append(errs, errors.New("extract retries cannot be negative"))
	}

	if c.Download.OutputDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Dates.SkewThreshold <= 0 {
		errs = append(errs, errors.New("skew threshold must be positive"))
	}
	if _, err := c.UTCOffsetLocation(); err != nil {
		errs = append(errs, err)
	}

	if c.Ledger.Directory == "" {
		errs = append(errs, errors.New("ledger directory is required"))
	}
	if c.Ledger.ScanFile == "" || c.Ledger.DatesFile == "" {
		errs = append(errs, errors.New("ledger file names are required"))
	}

	if c.RateLimit.CommandsPerMinute <= 0 {
		errs = append(errs, errors.New("commands per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if bridge, ok := flags["bridge-url"].(string); ok && bridge != "" {
		c.Driver.BridgeURL = bridge
	}
	if startID, ok := flags["start-id"].(string); ok && startID != "" {
		c.Scan.StartID = startID
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if ledgerDir, ok := flags["ledger-dir"].(string); ok && ledgerDir != "" {
		c.Ledger.Directory = ledgerDir
	}
	if offset, ok := flags["utc-offset"].(string); ok && offset != "" {
		c.Dates.UTCOffset = offset
	}
	if cpm, ok := flags["commands-per-minute"].(int); ok && cpm > 0 {
		c.RateLimit.CommandsPerMinute = cpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".phototriage.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
