// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. NAVCRAWLER_STORE_DRIVER.
const EnvPrefix = "NAVCRAWLER"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Store   StoreConfig   `mapstructure:"store"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CatalogConfig points at the entity list; empty uses the embedded catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// FetchConfig configures the upstream HTTP client and its retry behavior.
type FetchConfig struct {
	URLTemplate string        `mapstructure:"url_template"`
	UserAgent   string        `mapstructure:"user_agent"`
	Referer     string        `mapstructure:"referer"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	// Backoff is "fixed" or "exponential".
	Backoff    string        `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	MaxRPS     float64       `mapstructure:"max_rps"`
}

// CrawlConfig governs pagination and pacing.
type CrawlConfig struct {
	PageSize           int           `mapstructure:"page_size"`
	PageDelay          time.Duration `mapstructure:"page_delay"`
	EntityDelay        time.Duration `mapstructure:"entity_delay"`
	OnTransientFailure string        `mapstructure:"on_transient_failure"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`

	// MaxConnLifetime recycles pooled postgres connections; zero keeps the
	// pgxpool default.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("catalog.path", "")
	v.SetDefault("fetch.url_template",
		"http://fund.eastmoney.com/f10/F10DataApi.aspx?type=lsjz&code={code}&page={page}&per={per}")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("fetch.referer", "http://fund.eastmoney.com/")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 1)
	v.SetDefault("fetch.retry_delay", 3*time.Second)
	v.SetDefault("fetch.backoff", "fixed")
	v.SetDefault("fetch.max_backoff", 30*time.Second)
	v.SetDefault("fetch.max_rps", 0)
	v.SetDefault("crawl.page_size", 20)
	v.SetDefault("crawl.page_delay", time.Second)
	v.SetDefault("crawl.entity_delay", 2*time.Second)
	v.SetDefault("crawl.on_transient_failure", "skip_entity")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "navcrawler.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.max_conn_lifetime", time.Duration(0))
	v.SetDefault("server.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be > 0")
	}
	if c.Crawl.PageDelay < 0 || c.Crawl.EntityDelay < 0 {
		return fmt.Errorf("crawl delays must be >= 0")
	}
	switch c.Crawl.OnTransientFailure {
	case "skip_entity", "abort":
	default:
		return fmt.Errorf("crawl.on_transient_failure must be skip_entity or abort, got %q", c.Crawl.OnTransientFailure)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay must be >= 0")
	}
	switch c.Fetch.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("fetch.backoff must be fixed or exponential, got %q", c.Fetch.Backoff)
	}
	if c.Fetch.MaxRPS < 0 {
		return fmt.Errorf("fetch.max_rps must be >= 0")
	}
	if !strings.Contains(c.Fetch.URLTemplate, "{code}") {
		return fmt.Errorf("fetch.url_template must contain {code}")
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn must be set for the postgres driver")
		}
		if c.Store.MinConns < 0 || c.Store.MaxConnLifetime < 0 {
			return fmt.Errorf("store.min_conns and store.max_conn_lifetime must be >= 0")
		}
		if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
			return fmt.Errorf("store.min_conns must not exceed store.max_conns")
		}
	default:
		return fmt.Errorf("store.driver must be %s or %s, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	return nil
}
