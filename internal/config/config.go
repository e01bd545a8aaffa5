package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	Session  SessionConfig  `yaml:"session"`
	Refresh  RefreshConfig  `yaml:"refresh"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig points at the preference database. An empty URL keeps
// preferences in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type BackendConfig struct {
	TeamURL         string        `yaml:"team_url"`
	NotificationURL string        `yaml:"notification_url"`
	SessionToken    string        `yaml:"session_token"`
	Timeout         time.Duration `yaml:"timeout"`
}

// SessionConfig identifies the user the service reconciles for.
type SessionConfig struct {
	UserID   string `yaml:"user_id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
}

// RefreshConfig controls the notification warm-up retry loop.
type RefreshConfig struct {
	WarmInterval time.Duration `yaml:"warm_interval"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			TeamURL:         "http://localhost:9107",
			NotificationURL: "http://localhost:9157",
			Timeout:         15 * time.Second,
		},
		Refresh: RefreshConfig{
			WarmInterval: 10 * time.Second,
		},
	}
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARELOOP_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CARELOOP_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CARELOOP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CARELOOP_SESSION_TOKEN"); v != "" {
		cfg.Backend.SessionToken = v
	}
	if v := os.Getenv("CARELOOP_USER_ID"); v != "" {
		cfg.Session.UserID = v
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if c.Backend.TeamURL == "" {
		return fmt.Errorf("backend.team_url is required")
	}
	if c.Backend.NotificationURL == "" {
		return fmt.Errorf("backend.notification_url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Session.UserID == "" {
		return fmt.Errorf("session.user_id is required")
	}
	if c.Refresh.WarmInterval <= 0 {
		return fmt.Errorf("refresh.warm_interval must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) MigrationsSource() string {
	return "file://migrations"
}

func (c *Config) DatabaseURLForMigrate() string {
	url := c.Database.URL
	if !strings.Contains(url, "sslmode=") {
		if strings.Contains(url, "?") {
			url += "&sslmode=disable"
		} else {
			url += "?sslmode=disable"
		}
	}
	return url
}
