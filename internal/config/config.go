package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the name of the global and repo configuration directories.
const DirName = ".proofd"

// Config holds application configuration.
type Config struct {
	// Settings is the editor-side "proofd" section handed to documents
	// before every check (language, dictionary, disabledRules, ...).
	Settings json.RawMessage `json:"settings,omitempty"`

	// PublishDelayMS is how long the caret must rest before diagnostics
	// under it are published. 0 means the default of 500ms.
	PublishDelayMS int `json:"publish_delay_ms,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// UIPort serves the status UI when non-zero.
	UIPort int `json:"ui_port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "document", "workspace". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PublishDelayMS: 500,
		LogLevel:       "info",
	}
}

// PublishDelay returns the publish delay as a duration.
func (c *Config) PublishDelay() time.Duration {
	if c.PublishDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.PublishDelayMS) * time.Millisecond
}

// SlogLevel maps LogLevel to a slog level. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.proofd.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.proofd) and repo (.proofd) directories.
// Repo config is found by walking upward from startDir to find the nearest .proofd/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated) and
// settings sections are merged key by key.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// Paths returns the config files LoadWithRepo reads, existing or not. The
// repo path is omitted when no repo config was found.
func Paths(globalDir, startDir string) []string {
	paths := []string{filepath.Join(globalDir, "config.json")}
	if repo := FindRepoConfig(startDir); repo != "" {
		paths = append(paths, repo)
	}
	return paths
}

// FindRepoConfig walks upward from startDir to find the nearest .proofd/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
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
	if len(cfg.Settings) > 0 && !isObject(cfg.Settings) && !isNull(cfg.Settings) {
		return nil, errors.New("settings must be a JSON object")
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
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// settings objects are merged recursively.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.PublishDelayMS = overlay.PublishDelayMS
	if result.PublishDelayMS == 0 {
		result.PublishDelayMS = base.PublishDelayMS
	}

	result.LogLevel = overlay.LogLevel
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.UIPort = overlay.UIPort
	if result.UIPort == 0 {
		result.UIPort = base.UIPort
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	result.Settings = mergeSettings(base.Settings, overlay.Settings)

	return result
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

// mergeSettings merges two settings objects. Nested objects merge key by
// key, arrays are concatenated without duplicates, anything else in the
// overlay replaces the base.
func mergeSettings(base, overlay json.RawMessage) json.RawMessage {
	if isNull(overlay) {
		return base
	}
	if isNull(base) {
		return overlay
	}

	var b, o any
	if json.Unmarshal(base, &b) != nil || json.Unmarshal(overlay, &o) != nil {
		return overlay
	}
	merged, err := json.Marshal(mergeValues(b, o))
	if err != nil {
		return overlay
	}
	return merged
}

func mergeValues(base, overlay any) any {
	switch o := overlay.(type) {
	case map[string]any:
		b, ok := base.(map[string]any)
		if !ok {
			return o
		}
		out := make(map[string]any, len(b)+len(o))
		for k, v := range b {
			out[k] = v
		}
		for k, v := range o {
			if existing, ok := out[k]; ok {
				out[k] = mergeValues(existing, v)
			} else {
				out[k] = v
			}
		}
		return out
	case []any:
		b, ok := base.([]any)
		if !ok {
			return o
		}
		out := append([]any{}, b...)
		for _, v := range o {
			if !containsValue(out, v) {
				out = append(out, v)
			}
		}
		return out
	default:
		return overlay
	}
}

func containsValue(list []any, v any) bool {
	key, err := json.Marshal(v)
	if err != nil {
		return false
	}
	for _, item := range list {
		if other, err := json.Marshal(item); err == nil && bytes.Equal(key, other) {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
