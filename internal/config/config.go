// Package config loads routeguessr settings from a YAML file, a .env file
// and ROUTEGUESSR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ramkansal/routeguessr/internal/crawler"
	"github.com/ramkansal/routeguessr/internal/logger"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ROUTEGUESSR_CRAWL_CALL_BUDGET.
const EnvPrefix = "ROUTEGUESSR"

// Config is the full application configuration.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// CrawlConfig controls fetching and traversal.
type CrawlConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	CallBudget      int           `mapstructure:"call_budget"`
	Fetcher         string        `mapstructure:"fetcher"`
	MaxResponseSize int           `mapstructure:"max_response_size"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
	Proxy           string        `mapstructure:"proxy"`
	EnrichLimit     int           `mapstructure:"enrich_limit"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	Dir      string         `mapstructure:"dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configPath, or routeguessr.yaml from the usual places when
// configPath is empty. A missing file is not an error. Values from .env and
// the environment override the file; DATABASE_URL is honoured as the DSN.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("routeguessr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".routeguessr"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := crawler.DefaultConfig()
	v.SetDefault("crawl.user_agent", d.UserAgent)
	v.SetDefault("crawl.timeout", d.Timeout)
	v.SetDefault("crawl.request_delay", d.RequestDelay)
	v.SetDefault("crawl.call_budget", d.CallBudget)
	v.SetDefault("crawl.fetcher", string(d.FetcherMode))
	v.SetDefault("crawl.max_response_size", d.MaxResponseSize)
	v.SetDefault("crawl.respect_robots", d.RespectRobots)
	v.SetDefault("crawl.proxy", "")
	v.SetDefault("crawl.enrich_limit", 0)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "routeguessr.db?_foreign_keys=on")

	l := logger.DefaultConfig()
	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.dir", l.Dir)
	v.SetDefault("logging.rotation.max_size", l.MaxSize)
	v.SetDefault("logging.rotation.max_backups", l.MaxBackups)
	v.SetDefault("logging.rotation.max_age", l.MaxAge)
	v.SetDefault("logging.rotation.compress", l.Compress)

	v.SetDefault("server.addr", ":8080")
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Crawl.CallBudget < 1:
		return fmt.Errorf("crawl.call_budget must be at least 1, got %d", c.Crawl.CallBudget)
	case c.Crawl.RequestDelay < 0:
		return fmt.Errorf("crawl.request_delay must not be negative")
	case c.Crawl.Fetcher != string(crawler.FetcherHTTP) && c.Crawl.Fetcher != string(crawler.FetcherBrowser):
		return fmt.Errorf("crawl.fetcher must be %q or %q, got %q", crawler.FetcherHTTP, crawler.FetcherBrowser, c.Crawl.Fetcher)
	case c.Database.Driver != "postgres" && c.Database.Driver != "sqlite":
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	return nil
}

// Flags are command line overrides. Zero values leave the loaded setting
// alone, except RequestDelay where a negative value does.
type Flags struct {
	RequestDelay time.Duration
	CallBudget   int
	Fetcher      string
	Driver       string
	DSN          string
	LogLevel     string
	Addr         string
}

// MergeFlags applies command line overrides on top of the loaded config.
func (c *Config) MergeFlags(f Flags) {
	if f.RequestDelay >= 0 {
		c.Crawl.RequestDelay = f.RequestDelay
	}
	if f.CallBudget > 0 {
		c.Crawl.CallBudget = f.CallBudget
	}
	if f.Fetcher != "" {
		c.Crawl.Fetcher = f.Fetcher
	}
	if f.Driver != "" {
		c.Database.Driver = f.Driver
	}
	if f.DSN != "" {
		c.Database.DSN = f.DSN
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
	if f.Addr != "" {
		c.Server.Addr = f.Addr
	}
}

// CrawlerConfig converts the crawl section for the crawler package.
func (c *Config) CrawlerConfig() *crawler.Config {
	cfg := crawler.DefaultConfig()
	cfg.UserAgent = c.Crawl.UserAgent
	cfg.Timeout = c.Crawl.Timeout
	cfg.RequestDelay = c.Crawl.RequestDelay
	cfg.CallBudget = c.Crawl.CallBudget
	cfg.FetcherMode = crawler.FetcherMode(c.Crawl.Fetcher)
	cfg.MaxResponseSize = c.Crawl.MaxResponseSize
	cfg.RespectRobots = c.Crawl.RespectRobots
	cfg.Proxy = c.Crawl.Proxy
	cfg.EnrichLimit = c.Crawl.EnrichLimit
	return cfg
}

// LoggerConfig converts the logging section for the logger package.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Dir = c.Logging.Dir
	cfg.MaxSize = c.Logging.Rotation.MaxSize
	cfg.MaxBackups = c.Logging.Rotation.MaxBackups
	cfg.MaxAge = c.Logging.Rotation.MaxAge
	cfg.Compress = c.Logging.Rotation.Compress
	return cfg
}
