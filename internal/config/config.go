package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures Foundry's runtime settings.
type Config struct {
	PollInterval   time.Duration
	ListRefresh    time.Duration
	RequestTimeout time.Duration
	LogFile        string
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	PrefsPath      string

	// BaseURL and APIKey override the saved preferences when set from the
	// environment.
	BaseURL string
	APIKey  string
}

const (
	defaultConfigPath     = "~/.config/foundry/config.toml"
	defaultPrefsPath      = "~/.config/foundry/prefs.toml"
	defaultLogFile        = "~/.local/share/foundry/foundry.log"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultPollInterval   = 5 * time.Second
	defaultListRefresh    = 10 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultEnvFile        = ".env"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL      = "FOUNDRY_BASE_URL"
	EnvAPIKey       = "FOUNDRY_API_KEY"
	EnvLogLevel     = "FOUNDRY_LOG_LEVEL"
	EnvOTLPEndpoint = "FOUNDRY_OTLP_ENDPOINT"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		PollInterval:   defaultPollInterval,
		ListRefresh:    defaultListRefresh,
		RequestTimeout: defaultRequestTimeout,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		PrefsPath:      mustExpand(defaultPrefsPath),
	}
}

// Load locates and parses the config file, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		PollInterval   int    `toml:"poll_interval"`
		ListRefresh    int    `toml:"list_refresh"`
		RequestTimeout int    `toml:"request_timeout"`
		LogFile        string `toml:"log_file"`
		LogLevel       string `toml:"log_level"`
		LogFormat      string `toml:"log_format"`
		OTLPEndpoint   string `toml:"otlp_endpoint"`
		PrefsPath      string `toml:"prefs_path"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.PollInterval > 0 {
		cfg.PollInterval = time.Duration(raw.PollInterval) * time.Second
	}
	if raw.ListRefresh > 0 {
		cfg.ListRefresh = time.Duration(raw.ListRefresh) * time.Second
	}
	if raw.RequestTimeout > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeout) * time.Second
	}
	if logFile := strings.TrimSpace(raw.LogFile); logFile != "" {
		cfg.LogFile = mustExpand(logFile)
	}
	if level := strings.TrimSpace(raw.LogLevel); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if format := strings.TrimSpace(raw.LogFormat); format != "" {
		cfg.LogFormat = strings.ToLower(format)
	}
	cfg.OTLPEndpoint = strings.TrimSpace(raw.OTLPEndpoint)
	if prefsPath := strings.TrimSpace(raw.PrefsPath); prefsPath != "" {
		cfg.PrefsPath = mustExpand(prefsPath)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from an env file without overriding variables
// already set. A missing default file is not an error; a missing explicit
// file is.
func LoadDotEnv(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment overrides using lookup (usually os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	get := func(key string) string {
		value, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(value)
	}
	if v := get(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := get(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := get(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := get(EnvOTLPEndpoint); v != "" {
		c.OTLPEndpoint = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
