package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// DatabaseConfig describes the PostgreSQL/TimescaleDB target. URL, when
// set, wins over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			MaxBodyBytes: 64 << 20,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "postgres",
			User:     "postgres",
			Password: "postgres",
			SSLMode:  "disable",
		},
		Tailscale: TailscaleConfig{
			Hostname: "healthingest",
			StateDir: "tsnet-state",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return normalizeScheme(d.URL)
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// normalizeScheme rewrites timescaledb:// URLs, which neither pgx nor the
// migrate driver understand, to postgres://.
func normalizeScheme(url string) string {
	if rest, ok := strings.CutPrefix(url, "timescaledb://"); ok {
		return "postgres://" + rest
	}
	return url
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

// NewLogger builds the process logger: a text handler unless format is
// json.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the process environment, in increasing precedence.
// Either path may be empty. A missing .env file is not an error, and an
// empty environment variable counts as unset.
//
// Env vars use the prefix HEALTHINGEST_ and underscore-separated paths:
//
//	HEALTHINGEST_SERVER_HOST, HEALTHINGEST_SERVER_PORT, HEALTHINGEST_SERVER_MAX_BODY_BYTES,
//	HEALTHINGEST_DB_URL, HEALTHINGEST_DB_HOST, HEALTHINGEST_DB_PORT, HEALTHINGEST_DB_NAME,
//	HEALTHINGEST_DB_USER, HEALTHINGEST_DB_PASSWORD, HEALTHINGEST_DB_SSLMODE,
//	HEALTHINGEST_TAILSCALE_ENABLED, HEALTHINGEST_TAILSCALE_HOSTNAME, HEALTHINGEST_TAILSCALE_STATE_DIR,
//	HEALTHINGEST_LOG_LEVEL, HEALTHINGEST_LOG_FORMAT
//
// DATABASE_URL is honoured as well; HEALTHINGEST_DB_URL takes precedence.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		if vars != nil {
			dotenv = vars
		}
	}

	if err := applyEnvOverrides(cfg, func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("HEALTHINGEST_SERVER_HOST", &cfg.Server.Host)
	if err := setInt("HEALTHINGEST_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if v := getenv("HEALTHINGEST_SERVER_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("HEALTHINGEST_SERVER_MAX_BODY_BYTES: %w", err)
		}
		cfg.Server.MaxBodyBytes = n
	}

	setString("DATABASE_URL", &cfg.Database.URL)
	setString("HEALTHINGEST_DB_URL", &cfg.Database.URL)
	setString("HEALTHINGEST_DB_HOST", &cfg.Database.Host)
	if err := setInt("HEALTHINGEST_DB_PORT", &cfg.Database.Port); err != nil {
		return err
	}
	setString("HEALTHINGEST_DB_NAME", &cfg.Database.Name)
	setString("HEALTHINGEST_DB_USER", &cfg.Database.User)
	setString("HEALTHINGEST_DB_PASSWORD", &cfg.Database.Password)
	setString("HEALTHINGEST_DB_SSLMODE", &cfg.Database.SSLMode)

	if v := getenv("HEALTHINGEST_TAILSCALE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HEALTHINGEST_TAILSCALE_ENABLED: %w", err)
		}
		cfg.Tailscale.Enabled = enabled
	}
	setString("HEALTHINGEST_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	setString("HEALTHINGEST_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)

	setString("HEALTHINGEST_LOG_LEVEL", &cfg.Log.Level)
	setString("HEALTHINGEST_LOG_FORMAT", &cfg.Log.Format)
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
