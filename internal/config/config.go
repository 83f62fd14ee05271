// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "EG_"

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Engine   EngineConfig   `koanf:"engine"`
	Rules    RulesConfig    `koanf:"rules"`
	Notify   NotifyConfig   `koanf:"notify"`
}

// ServerConfig configures the main HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig configures the optional PostgreSQL backing store. When URL
// is empty the service runs fully in-memory.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// EngineConfig configures the escalation engine and its tick driver.
type EngineConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxLevel     int           `koanf:"max_level"`
	TickInterval time.Duration `koanf:"tick_interval"`
}

// RulesConfig configures where rules come from at startup.
type RulesConfig struct {
	LoadDefaults bool   `koanf:"load_defaults"`
	File         string `koanf:"file"`
}

// NotifyConfig configures the notification channel senders and the channels
// used for collaborator audiences. Empty audience channels disable that
// audience.
type NotifyConfig struct {
	Email    EmailConfig     `koanf:"email"`
	Slack    SlackConfig     `koanf:"slack"`
	Webhooks []WebhookConfig `koanf:"webhooks"`

	ManagersChannel   string `koanf:"managers_channel"`
	ExecutivesChannel string `koanf:"executives_channel"`
	OncallChannel     string `koanf:"oncall_channel"`
	IncidentsChannel  string `koanf:"incidents_channel"`
}

// EmailConfig configures the SMTP sender.
type EmailConfig struct {
	Enabled      bool     `koanf:"enabled"`
	SMTPHost     string   `koanf:"smtp_host"`
	SMTPPort     int      `koanf:"smtp_port"`
	SMTPUser     string   `koanf:"smtp_user"`
	SMTPPassword string   `koanf:"smtp_password"`
	FromAddress  string   `koanf:"from_address"`
	Recipients   []string `koanf:"recipients"`
}

// SlackConfig configures the Slack webhook sender.
type SlackConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"`
}

// WebhookConfig configures one generic webhook channel sender.
type WebhookConfig struct {
	Channel   string            `koanf:"channel"`
	URL       string            `koanf:"url"`
	Headers   map[string]string `koanf:"headers"`
	Timeout   time.Duration     `koanf:"timeout"`
	RateLimit float64           `koanf:"rate_limit"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  30 * time.Second,
			MigrationsPath:  "migrations",
		},
		Engine: EngineConfig{
			Enabled:      true,
			MaxLevel:     3,
			TickInterval: 30 * time.Second,
		},
		Rules: RulesConfig{
			LoadDefaults: true,
		},
	}
}

// Load reads configuration from the given YAML file, if it exists, and then
// applies EG_* environment overrides. EG_SERVER_ADDR overrides server.addr
// and so on; the first underscore-separated token is the section.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Engine.MaxLevel < 1 {
		return fmt.Errorf("engine.max_level must be at least 1, got %d", c.Engine.MaxLevel)
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	}
	for _, wh := range c.Notify.Webhooks {
		if wh.Channel == "" {
			return fmt.Errorf("notify.webhooks entry missing channel")
		}
		if wh.URL == "" {
			return fmt.Errorf("notify.webhooks entry %s missing url", wh.Channel)
		}
	}
	return nil
}
