package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// DBFile is the SQLite database path. Relative paths resolve against the base directory.
	DBFile string `json:"db_file,omitempty"`

	// Bind and Port control the HTTP listener for `wishpair serve`.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// LogLevel is any logrus level name; LogFormat is "text" or "json".
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	// PushEnabled turns on real delivery through the Expo push gateway.
	// When false every nudge goes through the simulated channel.
	PushEnabled        bool   `json:"push_enabled,omitempty"`
	PushEndpoint       string `json:"push_endpoint,omitempty"`
	PushTimeoutSeconds int    `json:"push_timeout_seconds,omitempty"`

	// SchedulerEnabled starts the cron-driven nudge run inside `serve`.
	SchedulerEnabled bool   `json:"scheduler_enabled,omitempty"`
	SchedulerSpec    string `json:"scheduler_spec,omitempty"`

	// MinAgeDays is how old a wish must be before it can be nudged about.
	// A pointer so that an explicit 0 overrides the default.
	MinAgeDays *float64 `json:"min_age_days,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisableMetrics removes the /metrics route.
	DisableMetrics bool `json:"disable_metrics,omitempty"`

	// ShareLinkScheme is the app scheme used for workspace share links.
	ShareLinkScheme string `json:"share_link_scheme,omitempty"`

	// RemoteDriver and RemoteDSN locate the shared wish store used by
	// workspace sync. Empty DSN disables remote sync.
	RemoteDriver string `json:"remote_driver,omitempty"`
	RemoteDSN    string `json:"remote_dsn,omitempty"`

	// PollIntervalSeconds is how often an active shared workspace re-reads the remote store.
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`
}

// Defaults
const (
	DefaultPort             = 8787
	DefaultMinAgeDays       = 3.0
	DefaultSchedulerSpec    = "0 * * * *"
	DefaultPushEndpoint     = "https://exp.host/--/api/v2/push/send"
	DefaultShareLinkScheme  = "wishpair"
	DefaultPollSeconds      = 10
	DefaultPushTimeout      = 10
	DefaultRemoteDriver     = "postgres"
	DefaultDatabaseFileName = "wishpair.db"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	minAge := DefaultMinAgeDays
	return &Config{
		DBFile:              DefaultDatabaseFileName,
		Bind:                "0.0.0.0",
		Port:                DefaultPort,
		LogLevel:            "info",
		LogFormat:           "text",
		PushEndpoint:        DefaultPushEndpoint,
		PushTimeoutSeconds:  DefaultPushTimeout,
		SchedulerSpec:       DefaultSchedulerSpec,
		MinAgeDays:          &minAge,
		ShareLinkScheme:     DefaultShareLinkScheme,
		RemoteDriver:        DefaultRemoteDriver,
		PollIntervalSeconds: DefaultPollSeconds,
	}
}

// EffectiveMinAgeDays returns MinAgeDays or the default when unset.
func (c *Config) EffectiveMinAgeDays() float64 {
	if c == nil || c.MinAgeDays == nil {
		return DefaultMinAgeDays
	}
	return *c.MinAgeDays
}

// DBPath resolves DBFile against baseDir.
func (c *Config) DBPath(baseDir string) string {
	if filepath.IsAbs(c.DBFile) {
		return c.DBFile
	}
	return filepath.Join(baseDir, c.DBFile)
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.wishpair.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv loads baseDir/config.json, then a .env file from the working
// directory (if present), then applies environment overrides.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
// lookup is os.LookupEnv in production and a map lookup in tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("DB_FILE"); ok {
		cfg.DBFile = v
	}
	if v, ok := get("BIND"); ok {
		cfg.Bind = v
	}
	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT must be a valid port number, got %q", v)
		}
		cfg.Port = port
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := get("EXPO_PUSH_ENABLED"); ok {
		cfg.PushEnabled = v == "true"
	}
	if v, ok := get("EXPO_PUSH_ENDPOINT"); ok {
		cfg.PushEndpoint = v
	}
	if v, ok := get("NUDGE_CRON_ENABLED"); ok {
		cfg.SchedulerEnabled = v == "true"
	}
	if v, ok := get("NUDGE_MIN_AGE_DAYS"); ok {
		days, err := strconv.ParseFloat(v, 64)
		if err != nil || days < 0 {
			return fmt.Errorf("NUDGE_MIN_AGE_DAYS must be a non-negative number, got %q", v)
		}
		cfg.MinAgeDays = &days
	}
	if v, ok := get("REMOTE_DRIVER"); ok {
		cfg.RemoteDriver = v
	}
	if v, ok := get("REMOTE_DSN"); ok {
		cfg.RemoteDSN = v
	}
	return nil
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

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DBFile = firstString(overlay.DBFile, base.DBFile)
	result.Bind = firstString(overlay.Bind, base.Bind)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstString(overlay.LogFormat, base.LogFormat)
	result.PushEndpoint = firstString(overlay.PushEndpoint, base.PushEndpoint)
	result.SchedulerSpec = firstString(overlay.SchedulerSpec, base.SchedulerSpec)
	result.ShareLinkScheme = firstString(overlay.ShareLinkScheme, base.ShareLinkScheme)
	result.RemoteDriver = firstString(overlay.RemoteDriver, base.RemoteDriver)
	result.RemoteDSN = firstString(overlay.RemoteDSN, base.RemoteDSN)

	result.Port = firstInt(overlay.Port, base.Port)
	result.PushTimeoutSeconds = firstInt(overlay.PushTimeoutSeconds, base.PushTimeoutSeconds)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.PollIntervalSeconds = firstInt(overlay.PollIntervalSeconds, base.PollIntervalSeconds)

	result.MinAgeDays = base.MinAgeDays
	if overlay.MinAgeDays != nil {
		result.MinAgeDays = overlay.MinAgeDays
	}

	// Booleans: overlay wins if true, else base
	result.PushEnabled = base.PushEnabled || overlay.PushEnabled
	result.SchedulerEnabled = base.SchedulerEnabled || overlay.SchedulerEnabled
	result.DisableMetrics = base.DisableMetrics || overlay.DisableMetrics

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
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
