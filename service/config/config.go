package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amr0ny/bc-parser/service/record"
)

// Account sources.
const (
	SourceSheets = "sheets"
	SourceFile   = "file"
)

// Run modes of the worker binary.
const (
	RunModeLoop     = "loop"
	RunModeTemporal = "temporal"
)

// Explorer defaults.
const (
	DefaultContractName = "game.hot.tg"
	DefaultTxnURL       = "https://api3.nearblocks.io/v1/txns"
	DefaultAccountURL   = "https://api3.nearblocks.io/v1/account"
)

// DefaultTxnsURL is the token transactions feed of contract.
func DefaultTxnsURL(contract string) string {
	return fmt.Sprintf("https://api3.nearblocks.io/v1/fts/%s/txns", contract)
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// Database configuration
	DatabaseURL string

	// NATS configuration. Empty disables the NATS report sink.
	NATSURL string

	// Explorer configuration
	TxnsURL      string
	TxnURL       string
	AccountURL   string
	ContractName string
	ParsingDepth int
	HTTPTimeout  time.Duration

	// Cycle configuration
	AccountDelay  time.Duration
	CycleInterval time.Duration
	CachePageSize int
	AgeFormat     record.AgeFormat
	RunMode       string

	// Account source and report sheet configuration
	Source                   string
	AccountsFile             string
	GoogleServiceAccountFile string
	ReadSpreadsheetID        string
	ReadWorksheet            string
	WriteSpreadsheetID       string
	WriteWorksheet           string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Every problem is collected so a misconfigured deployment is fixed in one pass.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	// Explorer configuration
	cfg.ContractName = getEnvOrDefault("CONTRACT_NAME", DefaultContractName)
	cfg.TxnsURL = getEnvOrDefault("NEARBLOCKS_TXNS_URL", DefaultTxnsURL(cfg.ContractName))
	cfg.TxnURL = getEnvOrDefault("NEARBLOCKS_TXN_URL", DefaultTxnURL)
	cfg.AccountURL = getEnvOrDefault("NEARBLOCKS_ACCOUNT_URL", DefaultAccountURL)

	depth, err := parseInt("PARSING_DEPTH", 3)
	if err != nil {
		errs = append(errs, err)
	} else if depth < 1 {
		errs = append(errs, fmt.Errorf("PARSING_DEPTH must be at least 1, got %d", depth))
	} else {
		cfg.ParsingDepth = depth
	}

	if cfg.HTTPTimeout, err = parseDuration("HTTP_TIMEOUT", "30s"); err != nil {
		errs = append(errs, err)
	}

	// Cycle configuration
	if cfg.AccountDelay, err = parseDuration("ACCOUNT_DELAY", "3s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.CycleInterval, err = parseDuration("CYCLE_INTERVAL", "1h"); err != nil {
		errs = append(errs, err)
	}

	pageSize, err := parseInt("CACHE_PAGE_SIZE", 100)
	if err != nil {
		errs = append(errs, err)
	} else if pageSize < 1 {
		errs = append(errs, fmt.Errorf("CACHE_PAGE_SIZE must be positive, got %d", pageSize))
	} else {
		cfg.CachePageSize = pageSize
	}

	if cfg.AgeFormat, err = record.ParseAgeFormat(getEnvOrDefault("AGE_FORMAT", string(record.AgeHours))); err != nil {
		errs = append(errs, fmt.Errorf("AGE_FORMAT: %w", err))
	}

	cfg.RunMode = strings.ToLower(getEnvOrDefault("RUN_MODE", RunModeLoop))
	if cfg.RunMode != RunModeLoop && cfg.RunMode != RunModeTemporal {
		errs = append(errs, fmt.Errorf("RUN_MODE must be %q or %q, got %q", RunModeLoop, RunModeTemporal, cfg.RunMode))
	}

	// Account source and report sheet configuration
	cfg.Source = strings.ToLower(getEnvOrDefault("SOURCE", SourceSheets))
	cfg.AccountsFile = getEnvOrDefault("ACCOUNTS_FILE", "accounts.yaml")
	cfg.GoogleServiceAccountFile = os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	cfg.ReadSpreadsheetID = os.Getenv("READ_SPREADSHEET_ID")
	cfg.ReadWorksheet = getEnvOrDefault("READ_WORKSHEET", "Sheet1")
	cfg.WriteSpreadsheetID = os.Getenv("WRITE_SPREADSHEET_ID")
	cfg.WriteWorksheet = getEnvOrDefault("WRITE_WORKSHEET", "Report")

	switch cfg.Source {
	case SourceSheets:
		if cfg.ReadSpreadsheetID == "" {
			errs = append(errs, fmt.Errorf("READ_SPREADSHEET_ID is required when SOURCE=sheets"))
		}
	case SourceFile:
	default:
		errs = append(errs, fmt.Errorf("SOURCE must be %q or %q, got %q", SourceSheets, SourceFile, cfg.Source))
	}

	if cfg.UsesSheets() && cfg.GoogleServiceAccountFile == "" {
		errs = append(errs, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_FILE is required when a spreadsheet is configured"))
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "bc-parser-cycle")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// UsesSheets reports whether any Google Sheets access is configured.
func (c *Config) UsesSheets() bool {
	return c.Source == SourceSheets || c.WriteSpreadsheetID != ""
}

// HasReportSink reports whether at least one report destination is configured.
func (c *Config) HasReportSink() bool {
	return c.WriteSpreadsheetID != "" || c.NATSURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.TxnsURL == "" || c.TxnURL == "" || c.AccountURL == "" {
		errs = append(errs, fmt.Errorf("all explorer URLs are required"))
	}

	if c.ContractName == "" {
		errs = append(errs, fmt.Errorf("ContractName is required"))
	}

	if c.ParsingDepth < 1 {
		errs = append(errs, fmt.Errorf("ParsingDepth must be at least 1"))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTPTimeout must be positive"))
	}

	if c.CachePageSize < 1 {
		errs = append(errs, fmt.Errorf("CachePageSize must be positive"))
	}

	if c.CycleInterval < time.Second {
		errs = append(errs, fmt.Errorf("CycleInterval must be at least 1 second"))
	}

	if c.AccountDelay < 0 {
		errs = append(errs, fmt.Errorf("AccountDelay cannot be negative"))
	}

	if c.Source == SourceSheets && c.ReadSpreadsheetID == "" {
		errs = append(errs, fmt.Errorf("ReadSpreadsheetID is required for the sheets source"))
	}

	if c.Source == SourceFile && c.AccountsFile == "" {
		errs = append(errs, fmt.Errorf("AccountsFile is required for the file source"))
	}

	if c.RunMode == RunModeTemporal && (c.TemporalHost == "" || c.TemporalNamespace == "" || c.TemporalTaskQueue == "") {
		errs = append(errs, fmt.Errorf("TemporalHost, TemporalNamespace and TemporalTaskQueue are required in temporal mode"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
