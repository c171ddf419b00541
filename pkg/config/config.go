package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/company-explorer/explorer/pkg/index"
	"github.com/company-explorer/explorer/pkg/ratelimit"
)

//go:embed config.toml.sample
var configTemplate string

const (
	appName = "explorer"

	DefaultIndexFile   = "search-index.json.gz"
	DefaultDBFile      = "companies.db"
	DefaultAddr        = "localhost:8080"
	DefaultCookie      = "session"
	templateDataDirVar = "/home/user/.local/share/explorer"
)

type Config struct {
	// DataDir holds the flat data files read by the importer and the
	// file-based search engine.
	DataDir       string          `toml:"data_dir"`
	IndexPath     string          `toml:"index_path"`
	MaxIndexBytes int64           `toml:"max_index_bytes"`
	WatchIndex    bool            `toml:"watch_index"`
	Store         StoreConfig     `toml:"store"`
	RateLimit     RateLimitConfig `toml:"rate_limit"`
	Server        ServerConfig    `toml:"server"`
	Auth          AuthConfig      `toml:"auth"`
}

type StoreConfig struct {
	// Path is the SQLite database. Empty disables the structured store.
	Path string `toml:"path"`
}

type RateLimitConfig struct {
	Limit  int      `toml:"limit"`
	Window Duration `toml:"window"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	SessionCookie string   `toml:"session_cookie"`
	SessionTokens []string `toml:"session_tokens"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	dbPath, err := GetDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("getting default database path: %w", err)
	}
	c := &Config{
		DataDir: dataDir,
		Store:   StoreConfig{Path: dbPath},
	}
	c.applyDefaults()
	return c, nil
}

// LoadConfig reads configPath. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.DataDir == "" {
		dataDir, err := GetDefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("getting default data directory: %w", err)
		}
		config.DataDir = dataDir
	}
	config.DataDir = expandHome(config.DataDir)
	config.IndexPath = expandHome(config.IndexPath)
	config.Store.Path = expandHome(config.Store.Path)

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(c.DataDir, DefaultIndexFile)
	}
	if c.MaxIndexBytes == 0 {
		c.MaxIndexBytes = index.DefaultMaxBytes
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = ratelimit.DefaultLimit
	}
	if c.RateLimit.Window.Duration == 0 {
		c.RateLimit.Window = Duration{ratelimit.DefaultWindow}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = DefaultCookie
	}
}

func (c *Config) Validate() error {
	if c.MaxIndexBytes < 0 {
		return fmt.Errorf("max_index_bytes must not be negative")
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("rate_limit.limit must not be negative")
	}
	if c.RateLimit.Window.Duration < 0 {
		return fmt.Errorf("rate_limit.window must not be negative")
	}
	for i, tok := range c.Auth.SessionTokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("auth.session_tokens[%d] is empty", i)
		}
	}
	return nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration with the
// data directory filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	dataDir := c.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = GetDefaultDataDir()
		if err != nil {
			return fmt.Errorf("getting default data directory: %w", err)
		}
	}

	template := strings.ReplaceAll(configTemplate, templateDataDirVar, dataDir)
	return os.WriteFile(configPath, []byte(template), 0644)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// GetDefaultDataDir returns the default directory for data files, the index
// and the database.
func GetDefaultDataDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultDBPath returns the default database path in the user's data directory
func GetDefaultDBPath() (string, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, DefaultDBFile), nil
}

// GetConfigDir returns the configuration directory
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
