package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"fars-analytics/pkg/database"
)

// Config is the full runtime configuration, read from the environment
type Config struct {
	Data     DataConfig     `envPrefix:"FARS_"`
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
	Render   RenderConfig   `envPrefix:"RENDER_"`
}

// DataConfig locates the accident_<year>.csv.bz2 files
type DataConfig struct {
	Dir string `env:"DATA_DIR" envDefault:"."`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host         string        `env:"HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

// DatabaseConfig configures the Postgres summary export
type DatabaseConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"fars"`
	Password        string        `env:"PASSWORD"`
	Database        string        `env:"NAME" envDefault:"fars"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`
}

// Postgres converts the section to the pkg/database connection settings
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// LoggingConfig configures pkg/logging
type LoggingConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// RenderConfig configures the state map image
type RenderConfig struct {
	WidthCm  float64 `env:"WIDTH_CM" envDefault:"16"`
	HeightCm float64 `env:"HEIGHT_CM" envDefault:"12"`
	Format   string  `env:"FORMAT" envDefault:"png"`
}

var supportedFormats = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

// ContentType returns the MIME type of the configured map format
func (r RenderConfig) ContentType() string {
	return supportedFormats[strings.ToLower(r.Format)]
}

// LoadConfig reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env values.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges that env parsing cannot express
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("FARS_DATA_DIR must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Render.WidthCm <= 0 || c.Render.HeightCm <= 0 {
		return fmt.Errorf("render size must be positive, got %gx%g cm", c.Render.WidthCm, c.Render.HeightCm)
	}
	if c.Render.ContentType() == "" {
		return fmt.Errorf("unsupported RENDER_FORMAT %q (want png, svg or pdf)", c.Render.Format)
	}
	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("DB_HOST and DB_NAME are required when DB_ENABLED is set")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns)
		}
	}
	return nil
}
