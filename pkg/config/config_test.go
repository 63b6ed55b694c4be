package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.Scan.StallRetries)
	assert.Equal(t, 3, cfg.Scan.RestartAttempts)
	assert.Equal(t, 8*time.Hour, cfg.Dates.SkewThreshold)
	assert.Equal(t, "+03:00", cfg.Dates.UTCOffset)
	assert.Equal(t, 60, cfg.RateLimit.CommandsPerMinute)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero stall retries",
			mutate:  func(c *Config) { c.Scan.StallRetries = 0 },
			wantErr: "stall retries",
		},
		{
			name:    "negative extract retries",
			mutate:  func(c *Config) { c.Scan.ExtractRetries = -1 },
			wantErr: "extract retries",
		},
		{
			name:    "missing output directory",
			mutate:  func(c *Config) { c.Download.OutputDirectory = "" },
			wantErr: "output directory",
		},
		{
			name:    "zero skew threshold",
			mutate:  func(c *Config) { c.Dates.SkewThreshold = 0 },
			wantErr: "skew threshold",
		},
		{
			name:    "malformed utc offset",
			mutate:  func(c *Config) { c.Dates.UTCOffset = "03:00" },
			wantErr: "utc_offset",
		},
		{
			name:    "missing ledger directory",
			mutate:  func(c *Config) { c.Ledger.Directory = "" },
			wantErr: "ledger directory",
		},
		{
			name:    "zero commands per minute",
			mutate:  func(c *Config) { c.RateLimit.CommandsPerMinute = 0 },
			wantErr: "commands per minute",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.StallRetries = 0
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stall retries")
	assert.Contains(t, err.Error(), "log level")
}

func TestUTCOffsetLocation(t *testing.T) {
	tests := []struct {
		offset      string
		wantSeconds int
		wantErr     bool
	}{
		{offset: "+03:00", wantSeconds: 3 * 3600},
		{offset: "-05:30", wantSeconds: -(5*3600 + 30*60)},
		{offset: "+00:00", wantSeconds: 0},
		{offset: " +03:00 ", wantSeconds: 3 * 3600},
		{offset: "03:00", wantErr: true},
		{offset: "+15:00", wantErr: true},
		{offset: "+03:75", wantErr: true},
		{offset: "UTC", wantErr: true},
		{offset: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.offset, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Dates.UTCOffset = tt.offset

			loc, err := cfg.UTCOffsetLocation()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, seconds := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
			assert.Equal(t, tt.wantSeconds, seconds)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
driver:
  bridge_url: "http://localhost:9333"
scan:
  stall_retries: 7
dates:
  utc_offset: "-05:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "http://localhost:9333", cfg.Driver.BridgeURL)
	assert.Equal(t, 7, cfg.Scan.StallRetries)
	assert.Equal(t, "-05:00", cfg.Dates.UTCOffset)
	assert.Equal(t, 3, cfg.Scan.ExtractRetries, "unset keys keep their defaults")
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_URL", "http://bridge:9333")
	t.Setenv("PHOTOTRIAGE_START_ID", "abc123")
	t.Setenv("PHOTOTRIAGE_UTC_OFFSET", "-08:00")
	t.Setenv("PHOTOTRIAGE_COMMANDS_PER_MINUTE", "30")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "http://bridge:9333", cfg.Driver.BridgeURL)
	assert.Equal(t, "abc123", cfg.Scan.StartID)
	assert.Equal(t, "-08:00", cfg.Dates.UTCOffset)
	assert.Equal(t, 30, cfg.RateLimit.CommandsPerMinute)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver.BridgeURL = "http://from-file:9333"

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"bridge-url":          "http://from-flag:9333",
		"start-id":            "xyz",
		"commands-per-minute": 15,
		"output":              "",
	})

	assert.Equal(t, "http://from-flag:9333", cfg.Driver.BridgeURL)
	assert.Equal(t, "xyz", cfg.Scan.StartID)
	assert.Equal(t, 15, cfg.RateLimit.CommandsPerMinute)
	assert.Equal(t, "./downloads", cfg.Download.OutputDirectory, "empty flag values never override")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  start_id: from-file\n"), 0600))

	t.Setenv("PHOTOTRIAGE_START_ID", "from-env")

	cfg, err := Load(path, map[string]interface{}{"start-id": "from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Scan.StartID, "flags beat environment and file")

	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Scan.StartID, "environment beats file")
}

func TestLoadRejectsInvalidFinalConfig(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_UTC_OFFSET", "bogus")

	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestLedgerPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.Directory = "/data/ledgers"

	assert.Equal(t, "/data/ledgers/scan.jsonl", cfg.ScanLedgerPath())
	assert.Equal(t, "/data/ledgers/dates.jsonl", cfg.DatesLedgerPath())
	assert.Equal(t, "/data/ledgers/history.jsonl", cfg.HistoryLedgerPath())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Driver.BridgeURL = "http://localhost:9333"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg.Driver.BridgeURL, loaded.Driver.BridgeURL)
	assert.Equal(t, cfg.Dates.SkewThreshold, loaded.Dates.SkewThreshold)
}
