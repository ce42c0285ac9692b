package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/storage"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout string        `yaml:"shutdown_timeout"`
	ParsedShutdown  time.Duration `yaml:"-"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or memory, aliases allowed
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	File     string `yaml:"file"`
}

// QuotesConfig points at the service answering current-price lookups.
// An empty BaseURL disables quoting.
type QuotesConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       string        `yaml:"timeout"`
	ParsedTimeout time.Duration `yaml:"-"`
}

// ReconcileConfig schedules the repair jobs inside the server. An empty
// Interval disables the schedule.
type ReconcileConfig struct {
	Interval       string        `yaml:"interval"`
	OnStartup      bool          `yaml:"on_startup"`
	ParsedInterval time.Duration `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, ShutdownTimeout: "10s"},
		Storage: StorageConfig{Driver: "sqlite", DSN: "ledger.db"},
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Quotes:  QuotesConfig{Timeout: "5s"},
	}
}

// Load reads the YAML file at filename (a missing file keeps the defaults),
// loads a sibling .env file if present and lets LEDGER_* environment
// variables override both.
func Load(filename string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	cfg := Default()

	file, err := os.Open(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.parse(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LEDGER_DB_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("LEDGER_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && os.Getenv("LEDGER_DB_DSN") == "" {
		if driver, _ := storage.NormalizeDriver(c.Storage.Driver); driver == "postgres" {
			c.Storage.DSN = v
		}
	}
	if v := os.Getenv("LEDGER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LEDGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LEDGER_QUOTES_URL"); v != "" {
		c.Quotes.BaseURL = v
	}
	return nil
}

func (c *Config) parse() error {
	driver, err := storage.NormalizeDriver(c.Storage.Driver)
	if err != nil {
		return err
	}
	c.Storage.Driver = driver
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Server.ParsedShutdown, err = parseDuration("server.shutdown_timeout", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if c.Quotes.ParsedTimeout, err = parseDuration("quotes.timeout", c.Quotes.Timeout); err != nil {
		return err
	}
	if c.Reconcile.ParsedInterval, err = parseDuration("reconcile.interval", c.Reconcile.Interval); err != nil {
		return err
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return d, nil
}
