package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API         APIConfig         `toml:"api"`
	Live        LiveConfig        `toml:"live"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// APIConfig contains REST API settings.
type APIConfig struct {
	BaseURL   string        `toml:"base_url"`
	AppURL    string        `toml:"app_url"` // Web app used for task deep links
	Timeout   time.Duration `toml:"timeout"`
	RateLimit float64       `toml:"rate_limit"` // Requests per second
}

// LiveConfig contains push channel and fallback polling settings.
type LiveConfig struct {
	PushPath             string        `toml:"push_path"`
	AuthTimeout          time.Duration `toml:"auth_timeout"`
	ReconnectBaseDelay   time.Duration `toml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `toml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `toml:"max_reconnect_attempts"`
	PollInterval         time.Duration `toml:"poll_interval"`
}

// CredentialsConfig contains session credential storage and refresh settings.
type CredentialsConfig struct {
	KeyringService string `toml:"keyring_service"`
	KeyringDir     string `toml:"keyring_dir"`
	ClientID       string `toml:"client_id"`
	TokenURL       string `toml:"token_url"` // Empty disables token refresh
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local status and metrics server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks the settings the live update channel depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: api.base_url scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}

	durations := map[string]time.Duration{
		"live.auth_timeout":         c.Live.AuthTimeout,
		"live.reconnect_base_delay": c.Live.ReconnectBaseDelay,
		"live.reconnect_max_delay":  c.Live.ReconnectMaxDelay,
		"live.poll_interval":        c.Live.PollInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
		}
	}

	if c.Live.ReconnectMaxDelay < c.Live.ReconnectBaseDelay {
		return fmt.Errorf("%w: live.reconnect_max_delay is below live.reconnect_base_delay", ErrInvalidConfig)
	}
	if c.Live.MaxReconnectAttempts < 1 {
		return fmt.Errorf("%w: live.max_reconnect_attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidArgument, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
