package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultAPIBaseURL     = "https://projeto-faculride.onrender.com/api"
	defaultRealtimeURL    = "https://projeto-faculride.onrender.com"
	defaultTimeoutSec     = 30
	defaultHandshakeSec   = 20
	defaultLogLevel       = "info"
	defaultTheme          = "default"
	configEnvPrefix       = "CARPOOL"
	configDirName         = "carpool"
	defaultConfigFileName = "config.yaml"
)

// APIConfig holds settings for the REST backend.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., https://host/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RealtimeConfig holds settings for the push-event channel.
type RealtimeConfig struct {
	// URL is the root URL of the Socket.IO server.
	URL string `mapstructure:"url" yaml:"url"`

	// Transports lists the transports to try in order
	// ("websocket", "polling").
	Transports []string `mapstructure:"transports" yaml:"transports"`

	// HandshakeTimeoutSec bounds the time from dial to CONNECT ack.
	HandshakeTimeoutSec int `mapstructure:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
}

// NotificationsConfig controls the in-memory notification list.
type NotificationsConfig struct {
	// DedupePushes replaces an existing entry when a push repeats its id
	// instead of prepending a duplicate.
	DedupePushes bool `mapstructure:"dedupe_pushes" yaml:"dedupe_pushes"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// StoreConfig holds the path of the local profile database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/carpool, or the current directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", configDirName)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/carpool/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), defaultConfigFileName)
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    defaultAPIBaseURL,
			TimeoutSec: defaultTimeoutSec,
		},
		Realtime: RealtimeConfig{
			URL:                 defaultRealtimeURL,
			Transports:          []string{"websocket", "polling"},
			HandshakeTimeoutSec: defaultHandshakeSec,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
			File:  filepath.Join(dir, "carpool.log"),
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "carpool.db"),
		},
		Display: DisplayConfig{
			Theme: defaultTheme,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values can be overridden with CARPOOL_* environment variables
// (e.g., CARPOOL_API_BASE_URL). If the file does not exist, the defaults
// are returned with environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(configEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("realtime.url", def.Realtime.URL)
	v.SetDefault("realtime.transports", def.Realtime.Transports)
	v.SetDefault("realtime.handshake_timeout_sec", def.Realtime.HandshakeTimeoutSec)
	v.SetDefault("notifications.dedupe_pushes", false)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("display.theme", def.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = defaultTimeoutSec
	}
	if cfg.Realtime.HandshakeTimeoutSec <= 0 {
		cfg.Realtime.HandshakeTimeoutSec = defaultHandshakeSec
	}
	if len(cfg.Realtime.Transports) == 0 {
		cfg.Realtime.Transports = def.Realtime.Transports
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
