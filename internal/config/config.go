package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

const (
	// ConfigFileName is the TOML config file for user preferences
	ConfigFileName = "config.toml"

	// WorkspacesDirName is the directory containing per-workspace data
	WorkspacesDirName = "workspaces"

	// LogsDirName is the directory for rotating log files
	LogsDirName = "logs"
)

// Config represents user-facing configuration in TOML format.
type Config struct {
	// Search defines query-time defaults and ranking knobs
	Search SearchSettings `toml:"search"`

	// Sync defines ingestion tuning
	Sync SyncSettings `toml:"sync"`

	// Log defines log file settings
	Log LogSettings `toml:"log"`

	// UI defines appearance settings for the interactive browser
	UI UISettings `toml:"ui"`
}

// SearchSettings defines query defaults and fuzzy-ranking knobs.
// The boost and fuzziness values are tunable defaults, not invariants;
// changing them only affects ranking, never correctness.
type SearchSettings struct {
	// Fuzziness is the edit-distance budget per query token as a fraction
	// of token length. Default: 0.2 (one edit per five characters).
	Fuzziness *float64 `toml:"fuzziness"`

	// Limit is the default maximum number of search results. Default: 20.
	Limit int `toml:"limit"`

	// Context is the default number of surrounding messages attached
	// before and after each hit. Default: 3.
	Context int `toml:"context"`

	// Boosts are the per-field score multipliers.
	Boosts BoostSettings `toml:"boosts"`
}

// BoostSettings defines per-field score multipliers for fuzzy search.
type BoostSettings struct {
	// Text boost. Default: 2.0.
	Text *float64 `toml:"text"`

	// Sender boost. Default: 1.5.
	Sender *float64 `toml:"sender"`

	// Conversation-name boost. Default: 1.0.
	Conversation *float64 `toml:"conversation"`
}

// SyncSettings defines ingestion pipeline tuning.
type SyncSettings struct {
	// FetchWorkers is the number of conversations fetched concurrently.
	// Writes are always serialized regardless of this value. Default: 4.
	FetchWorkers int `toml:"fetch_workers"`

	// RatePerSec caps outgoing Slack API calls per second. Default: 3.
	RatePerSec float64 `toml:"rate_per_sec"`

	// RateBurst is the rate limiter burst size. Default: 5.
	RateBurst int `toml:"rate_burst"`

	// HTTPTimeoutSecs is the per-request HTTP timeout. Default: 30.
	HTTPTimeoutSecs int `toml:"http_timeout_secs"`

	// PageSize is the history page size requested per API call.
	// Default: 200 (the API maximum is 1000).
	PageSize int `toml:"page_size"`
}

// LogSettings defines log file management configuration.
type LogSettings struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info".
	Level string `toml:"level"`

	// Format is "text" (default) or "json".
	Format string `toml:"format"`

	// MaxSizeMB is the max log size in MB before rotation. Default: 10.
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep. Default: 5.
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays is days to keep rotated files. Default: 14.
	MaxAgeDays int `toml:"max_age_days"`

	// Compress rotated files. Default: true.
	Compress *bool `toml:"compress"`
}

// UISettings defines appearance for the interactive browser.
type UISettings struct {
	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`
}

var (
	configCache   *Config
	configCacheMu sync.RWMutex
)

// GetFuzziness returns the fuzziness ratio, defaulting to 0.2.
func (s *SearchSettings) GetFuzziness() float64 {
	if s.Fuzziness == nil || *s.Fuzziness < 0 || *s.Fuzziness >= 1 {
		return 0.2
	}
	return *s.Fuzziness
}

// GetLimit returns the default result limit, defaulting to 20.
func (s *SearchSettings) GetLimit() int {
	if s.Limit <= 0 {
		return 20
	}
	return s.Limit
}

// GetContext returns the default context window size, defaulting to 3.
func (s *SearchSettings) GetContext() int {
	if s.Context < 0 {
		return 0
	}
	if s.Context == 0 {
		return 3
	}
	return s.Context
}

// GetText returns the text field boost, defaulting to 2.0.
func (b *BoostSettings) GetText() float64 {
	if b.Text == nil || *b.Text <= 0 {
		return 2.0
	}
	return *b.Text
}

// GetSender returns the sender field boost, defaulting to 1.5.
func (b *BoostSettings) GetSender() float64 {
	if b.Sender == nil || *b.Sender <= 0 {
		return 1.5
	}
	return *b.Sender
}

// GetConversation returns the conversation-name boost, defaulting to 1.0.
func (b *BoostSettings) GetConversation() float64 {
	if b.Conversation == nil || *b.Conversation <= 0 {
		return 1.0
	}
	return *b.Conversation
}

// GetFetchWorkers returns the fetch concurrency, defaulting to 4.
func (s *SyncSettings) GetFetchWorkers() int {
	if s.FetchWorkers <= 0 {
		return 4
	}
	if s.FetchWorkers > 16 {
		return 16
	}
	return s.FetchWorkers
}

// GetRatePerSec returns the API rate cap, defaulting to 3 calls/sec.
func (s *SyncSettings) GetRatePerSec() float64 {
	if s.RatePerSec <= 0 {
		return 3
	}
	return s.RatePerSec
}

// GetRateBurst returns the limiter burst, defaulting to 5.
func (s *SyncSettings) GetRateBurst() int {
	if s.RateBurst <= 0 {
		return 5
	}
	return s.RateBurst
}

// GetHTTPTimeoutSecs returns the HTTP timeout, defaulting to 30 seconds.
func (s *SyncSettings) GetHTTPTimeoutSecs() int {
	if s.HTTPTimeoutSecs <= 0 {
		return 30
	}
	return s.HTTPTimeoutSecs
}

// GetPageSize returns the history page size, defaulting to 200.
func (s *SyncSettings) GetPageSize() int {
	if s.PageSize <= 0 {
		return 200
	}
	if s.PageSize > 1000 {
		return 1000
	}
	return s.PageSize
}

// GetCompress returns whether rotated logs are compressed, defaulting to true.
func (l *LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// GetTheme returns the UI theme, defaulting to "dark".
func (u *UISettings) GetTheme() string {
	switch u.Theme {
	case "light", "system":
		return u.Theme
	default:
		return "dark"
	}
}

// GetSlacksiftDir returns the base slacksift directory (~/.slacksift).
// SLACKSIFT_HOME overrides it, mainly for tests and portable installs.
func GetSlacksiftDir() (string, error) {
	if dir := os.Getenv("SLACKSIFT_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return filepath.Join(homeDir, ".slacksift"), nil
}

// GetConfigPath returns the path to config.toml.
func GetConfigPath() (string, error) {
	dir, err := GetSlacksiftDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// GetLogsDir returns the directory for log files.
func GetLogsDir() (string, error) {
	dir, err := GetSlacksiftDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsDirName), nil
}

// Load loads the user configuration from config.toml.
// Returns cached config after first load; a missing file yields defaults.
func Load() (*Config, error) {
	configCacheMu.RLock()
	if configCache != nil {
		defer configCacheMu.RUnlock()
		return configCache, nil
	}
	configCacheMu.RUnlock()

	configCacheMu.Lock()
	defer configCacheMu.Unlock()
	if configCache != nil {
		return configCache, nil
	}

	configPath, err := GetConfigPath()
	if err != nil {
		configCache = &Config{}
		return configCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configCache = &Config{}
		return configCache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		// Cache defaults to avoid repeated parse attempts; the caller
		// decides whether to surface the parse error.
		configCache = &Config{}
		return configCache, fmt.Errorf("config: parse %s: %w", ConfigFileName, err)
	}

	configCache = &cfg
	return configCache, nil
}

// Reload forces a fresh read of config.toml.
func Reload() (*Config, error) {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
	return Load()
}

// Save writes the config to config.toml using the atomic write pattern
// (temp file + rename) and clears the cache.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# slacksift configuration\n")
	buf.WriteString("# Values left unset fall back to built-in defaults.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename: %w", err)
	}

	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
	return nil
}
