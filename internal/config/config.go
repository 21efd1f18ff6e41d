package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "freshfiction"

// Config is read from FRESHFICTION_* environment variables.
type Config struct {
	Driver       string            `default:"sqlite"`
	DSN          string            `default:"data/royal_road.db"`
	BaseURL      string            `split_words:"true" default:"https://www.royalroad.com"`
	ListingPath  string            `split_words:"true" default:"/fictions/trending"`
	UserAgent    string            `split_words:"true" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	Headers      map[string]string `desc:"extra request headers, as Name:value,Name:value"`
	FetchTimeout time.Duration     `split_words:"true" default:"10s"`
	Delay        time.Duration     `default:"1500ms"`
	Host         string            `default:"127.0.0.1"`
	Port         int               `default:"3000"`
	LogLevel     string            `split_words:"true" default:"info"`
	LogFormat    string            `split_words:"true" default:"text"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("base url %q is not absolute", c.BaseURL)
	}
	if c.FetchTimeout <= 0 {
		return errors.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.Delay < 0 {
		return errors.Errorf("delay must not be negative, got %s", c.Delay)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("unsupported log format %q", c.LogFormat)
	}
	return nil
}

// RequestHeaders returns the headers sent with every request.
// UserAgent wins over a User-Agent entry in Headers.
func (c Config) RequestHeaders() map[string]string {
	h := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		h[k] = v
	}
	if c.UserAgent != "" {
		h["User-Agent"] = c.UserAgent
	}
	return h
}

func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	return lvl, nil
}

func (c Config) String() string {
	return fmt.Sprintf("driver=%s base_url=%s listing=%s timeout=%s delay=%s", c.Driver, c.BaseURL, c.ListingPath, c.FetchTimeout, c.Delay)
}
