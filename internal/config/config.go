package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Empty export policies.
const (
	EmptyExportReject = "reject"
	EmptyExportRender = "render"
)

// Batch write policies.
const (
	BatchPolicyReplace = "replace"
	BatchPolicyAppend  = "append"
)

// Config holds application configuration.
type Config struct {
	// ListenAddr is the HTTP listen address for `genex serve`.
	ListenAddr string `json:"listen_addr,omitempty"`

	// HistoryRoot is the directory of the git-backed export history.
	// Relative paths are resolved against the base directory.
	HistoryRoot string `json:"history_root,omitempty"`

	// HistoryRemoteURL enables pushing after each export commit. Empty means
	// exports are committed locally and reported as "skipped".
	HistoryRemoteURL string `json:"history_remote_url,omitempty"`

	// HistoryBranch is the branch pushed to the remote.
	HistoryBranch string `json:"history_branch,omitempty"`

	// CommitEmail is the author email used for export commits.
	CommitEmail string `json:"commit_email,omitempty"`

	PushTimeoutSeconds   int `json:"push_timeout_seconds,omitempty"`
	ExportTimeoutSeconds int `json:"export_timeout_seconds,omitempty"`

	// EmptyExport is "reject" (404 for a project with nothing to render) or
	// "render" (produce a valid document with no items).
	EmptyExport string `json:"empty_export,omitempty"`

	// BatchPolicy is "replace" (one batch per project, the newest run wins)
	// or "append" (new records are appended to the existing batch).
	BatchPolicy string `json:"batch_policy,omitempty"`

	// ExtractorCommand is the command line of the external extraction
	// process, e.g. "python3 bulk_extractor.py". Empty disables extraction.
	ExtractorCommand        string `json:"extractor_command,omitempty"`
	ExtractorTimeoutSeconds int    `json:"extractor_timeout_seconds,omitempty"`

	// PDFLineWrap is the rune width at which PDF lines are wrapped.
	PDFLineWrap int `json:"pdf_lines_wrap,omitempty"`

	// ExportRatePerSecond and ExportBurst configure the export endpoint's
	// token bucket. A rate of 0 disables limiting.
	ExportRatePerSecond float64 `json:"export_rate_per_second,omitempty"`
	ExportBurst         int     `json:"export_burst,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogMode is "development" or "production".
	LogMode string `json:"log_mode,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:              ":8080",
		HistoryRoot:             "history",
		HistoryBranch:           "main",
		CommitEmail:             "genex@localhost",
		PushTimeoutSeconds:      30,
		ExportTimeoutSeconds:    60,
		EmptyExport:             EmptyExportReject,
		BatchPolicy:             BatchPolicyReplace,
		ExtractorTimeoutSeconds: 300,
		PDFLineWrap:             90,
		ExportRatePerSecond:     5,
		ExportBurst:             10,
		LogMode:                 "development",
	}
}

// Load loads configuration from baseDir/config.json, applies GENEX_*
// environment overrides and validates the result.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.genex.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.HistoryRoot != "" && !filepath.IsAbs(cfg.HistoryRoot) {
		cfg.HistoryRoot = filepath.Join(baseDir, cfg.HistoryRoot)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ApplyEnv overrides deploy-time values from GENEX_* variables.
// lookup is os.LookupEnv outside of tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("GENEX_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookup("GENEX_HISTORY_ROOT"); ok && v != "" {
		cfg.HistoryRoot = v
	}
	if v, ok := lookup("GENEX_HISTORY_REMOTE_URL"); ok {
		cfg.HistoryRemoteURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("GENEX_EXTRACTOR_COMMAND"); ok {
		cfg.ExtractorCommand = strings.TrimSpace(v)
	}
	if v, ok := lookup("GENEX_LOG_MODE"); ok && v != "" {
		cfg.LogMode = v
	}
	if v, ok := lookup("GENEX_EXPORT_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GENEX_EXPORT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.ExportTimeoutSeconds = n
	}
	return nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.EmptyExport {
	case EmptyExportReject, EmptyExportRender:
	default:
		return fmt.Errorf("empty_export must be %q or %q, got %q", EmptyExportReject, EmptyExportRender, c.EmptyExport)
	}
	switch c.BatchPolicy {
	case BatchPolicyReplace, BatchPolicyAppend:
	default:
		return fmt.Errorf("batch_policy must be %q or %q, got %q", BatchPolicyReplace, BatchPolicyAppend, c.BatchPolicy)
	}
	if c.ExportTimeoutSeconds < 0 || c.PushTimeoutSeconds < 0 || c.ExtractorTimeoutSeconds < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ExportRatePerSecond < 0 || c.ExportBurst < 0 {
		return errors.New("export rate settings must not be negative")
	}
	return nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ListenAddr:              pickString(overlay.ListenAddr, base.ListenAddr),
		HistoryRoot:             pickString(overlay.HistoryRoot, base.HistoryRoot),
		HistoryRemoteURL:        pickString(overlay.HistoryRemoteURL, base.HistoryRemoteURL),
		HistoryBranch:           pickString(overlay.HistoryBranch, base.HistoryBranch),
		CommitEmail:             pickString(overlay.CommitEmail, base.CommitEmail),
		PushTimeoutSeconds:      pickInt(overlay.PushTimeoutSeconds, base.PushTimeoutSeconds),
		ExportTimeoutSeconds:    pickInt(overlay.ExportTimeoutSeconds, base.ExportTimeoutSeconds),
		EmptyExport:             pickString(overlay.EmptyExport, base.EmptyExport),
		BatchPolicy:             pickString(overlay.BatchPolicy, base.BatchPolicy),
		ExtractorCommand:        pickString(overlay.ExtractorCommand, base.ExtractorCommand),
		ExtractorTimeoutSeconds: pickInt(overlay.ExtractorTimeoutSeconds, base.ExtractorTimeoutSeconds),
		PDFLineWrap:             pickInt(overlay.PDFLineWrap, base.PDFLineWrap),
		ExportBurst:             pickInt(overlay.ExportBurst, base.ExportBurst),
		DBMaxOpenConns:          pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:          pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		LogMode:                 pickString(overlay.LogMode, base.LogMode),
	}

	result.ExportRatePerSecond = overlay.ExportRatePerSecond
	if result.ExportRatePerSecond == 0 {
		result.ExportRatePerSecond = base.ExportRatePerSecond
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
