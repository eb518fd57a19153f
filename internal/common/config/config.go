package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrAPIURLNotSet        = errors.New("auth API base URL is not configured")
	ErrInvalidGeoProvider  = errors.New("invalid geo provider: must be 'ipinfo' or 'maxmind'")
	ErrMaxMindDBNotSet     = errors.New("maxmind provider requires geo.city_db")
	ErrInvalidStateBackend = errors.New("invalid state backend: must be 'file', 'bolt' or 'memory'")
	ErrInvalidUserStore    = errors.New("invalid user store: must be 'memory' or 'sqlite'")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrServerAddressNotSet = errors.New("server address is not configured")
	ErrInvalidLoginRate    = errors.New("invalid login rate: must not be negative")
)

const (
	// DefaultTimeout applies to auth and geolocation requests
	DefaultTimeout = 10 * time.Second
	// DefaultTokenTTL is the lifetime of tokens issued by the auth API
	DefaultTokenTTL = 24 * time.Hour
	// DefaultLoginRate is the per-client login budget of the auth API
	DefaultLoginRate = 30

	defaultSQLiteDSN         = "file::memory:?cache=shared"
	defaultAuthBaseURL       = "http://localhost:8000/api"
	defaultGeoBaseURL        = "https://ipinfo.io"
	defaultServerAddress     = ":8000"
	defaultStateBackend      = "file"
	defaultGeoProvider       = "ipinfo"
	defaultServerUserStorage = "memory"
)

// Config represents the application configuration
type Config struct {
	API    APIConfig    `yaml:"api"`
	Geo    GeoConfig    `yaml:"geo"`
	State  StateConfig  `yaml:"state"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// APIConfig holds the auth API client settings
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	Timeout      string `yaml:"timeout,omitempty"`
	DemoFallback bool   `yaml:"demo_fallback,omitempty"` // Accept the demo account when the API is unreachable
}

// GeoConfig holds geolocation provider settings
type GeoConfig struct {
	Provider string `yaml:"provider"` // "ipinfo" or "maxmind"
	BaseURL  string `yaml:"base_url,omitempty"`
	Token    string `yaml:"token,omitempty"` // Supports ${ENV_VAR} substitution
	Timeout  string `yaml:"timeout,omitempty"`
	CityDB   string `yaml:"city_db,omitempty"`
	ASNDB    string `yaml:"asn_db,omitempty"`
	SelfIP   string `yaml:"self_ip,omitempty"` // Address used for self-lookup by offline providers
}

// StateConfig holds the local state store settings
type StateConfig struct {
	Backend string `yaml:"backend"` // "file", "bolt" or "memory"
	Dir     string `yaml:"dir,omitempty"`
}

// ServerConfig holds the auth API server settings
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	TokenTTL  string `yaml:"token_ttl,omitempty"`
	UserStore string `yaml:"user_store"` // "memory" or "sqlite"
	SQLiteDSN string `yaml:"sqlite_dsn,omitempty"`
	UsersFile string `yaml:"users_file,omitempty"` // TOML seed file
	Metrics   bool   `yaml:"metrics"`
	LoginRate int    `yaml:"login_rate,omitempty"` // Login attempts per client and minute, 0 disables
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
	File  bool   `yaml:"file,omitempty"`
}

// Default returns a configuration pointing at a local auth API and ipinfo.io
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: defaultAuthBaseURL,
			Timeout: DefaultTimeout.String(),
		},
		Geo: GeoConfig{
			Provider: defaultGeoProvider,
			BaseURL:  defaultGeoBaseURL,
			Timeout:  DefaultTimeout.String(),
		},
		State: StateConfig{
			Backend: defaultStateBackend,
		},
		Server: ServerConfig{
			Addr:      defaultServerAddress,
			TokenTTL:  DefaultTokenTTL.String(),
			UserStore: defaultServerUserStorage,
			SQLiteDSN: defaultSQLiteDSN,
			Metrics:   true,
			LoginRate: DefaultLoginRate,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigPaths returns all possible config file paths in priority order
// 1. ~/.config/geodash/config.yaml (XDG standard - priority)
// 2. ~/.geodash/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "geodash", "config.yaml"),
		filepath.Join(home, ".geodash", "config.yaml"),
	}, nil
}

// FindConfigPath returns the first existing config file path
// Returns the default path if no config file exists yet
func FindConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return paths[0], nil
}

// Load reads configuration from the first available config file
// Priority: ~/.config/geodash/config.yaml > ~/.geodash/config.yaml
func Load() (*Config, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from a specific file path.
// A missing file is created with default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if saveErr := cfg.SaveTo(path); saveErr != nil {
				return nil, saveErr
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.fillDefaults()

	return &cfg, nil
}

// fillDefaults populates fields a partial config file left empty
func (c *Config) fillDefaults() {
	d := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.Geo.Provider == "" {
		c.Geo.Provider = d.Geo.Provider
	}
	if c.Geo.Provider == defaultGeoProvider && c.Geo.BaseURL == "" {
		c.Geo.BaseURL = d.Geo.BaseURL
	}
	if c.State.Backend == "" {
		c.State.Backend = d.State.Backend
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.UserStore == "" {
		c.Server.UserStore = d.Server.UserStore
	}
	if c.Server.UserStore == "sqlite" && c.Server.SQLiteDSN == "" {
		c.Server.SQLiteDSN = d.Server.SQLiteDSN
	}
}

// SaveTo writes configuration to a specific file path
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// The file may carry tokens and the JWT secret
	return os.WriteFile(path, data, 0600)
}

// Validate checks the client-side and server-side settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return ErrAPIURLNotSet
	}
	switch c.Geo.Provider {
	case "ipinfo":
	case "maxmind":
		if c.Geo.CityDB == "" {
			return ErrMaxMindDBNotSet
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidGeoProvider, c.Geo.Provider)
	}
	switch c.State.Backend {
	case "file", "bolt", "memory":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidStateBackend, c.State.Backend)
	}
	switch c.Server.UserStore {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidUserStore, c.Server.UserStore)
	}
	if c.Server.Addr == "" {
		return ErrServerAddressNotSet
	}
	if c.Server.LoginRate < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLoginRate, c.Server.LoginRate)
	}
	for name, value := range map[string]string{
		"api.timeout":      c.API.Timeout,
		"geo.timeout":      c.Geo.Timeout,
		"server.token_ttl": c.Server.TokenTTL,
	} {
		if _, err := parseDuration(value, 0); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// APITimeout returns the auth client timeout
func (c *Config) APITimeout() time.Duration {
	d, _ := parseDuration(c.API.Timeout, DefaultTimeout)
	return d
}

// GeoTimeout returns the geolocation client timeout
func (c *Config) GeoTimeout() time.Duration {
	d, _ := parseDuration(c.Geo.Timeout, DefaultTimeout)
	return d
}

// TokenTTL returns the lifetime of issued tokens
func (c *Config) TokenTTL() time.Duration {
	d, _ := parseDuration(c.Server.TokenTTL, DefaultTokenTTL)
	return d
}

// parseDuration parses a Go duration string; empty means fallback
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return d, nil
}

// StateDir returns the directory holding the persisted dashboard state.
// Defaults to $XDG_STATE_HOME/geodash.
func (c *Config) StateDir() (string, error) {
	if c.State.Dir != "" {
		return ExpandHome(c.State.Dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(xdgState, "geodash"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
