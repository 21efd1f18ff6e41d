package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/johnstcn/freshfiction/internal/config"
	"github.com/johnstcn/freshfiction/internal/fetch"
	"github.com/johnstcn/freshfiction/internal/scrape"
	"github.com/johnstcn/freshfiction/internal/store"
)

// app carries the resolved configuration into the subcommands.
type app struct {
	cfg config.Config
	log *slog.Logger
}

func root() *cobra.Command {
	var (
		a         app
		driver    string
		dsn       string
		logLevel  string
		logFormat string
	)
	rootCmd := &cobra.Command{
		Use:          "freshfiction",
		Short:        "Track trending web-fiction stories over time",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			flags := cmd.Flags()
			if flags.Changed("driver") {
				cfg.Driver = driver
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Lookup("base-url") != nil && flags.Changed("base-url") {
				cfg.BaseURL, _ = flags.GetString("base-url")
			}
			if flags.Lookup("delay") != nil && flags.Changed("delay") {
				cfg.Delay, _ = flags.GetDuration("delay")
			}
			if flags.Lookup("host") != nil && flags.Changed("host") {
				cfg.Host, _ = flags.GetString("host")
			}
			if flags.Lookup("port") != nil && flags.Changed("port") {
				cfg.Port, _ = flags.GetInt("port")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := cfg.Logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			a.log.Debug("config", "config", cfg.String())
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&driver, "driver", "", "database driver, sqlite or postgres (env FRESHFICTION_DRIVER)")
	pf.StringVar(&dsn, "dsn", "", "database path or connection string (env FRESHFICTION_DSN)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env FRESHFICTION_LOG_LEVEL)")
	pf.StringVar(&logFormat, "log-format", "", "text or json (env FRESHFICTION_LOG_FORMAT)")

	rootCmd.AddCommand(a.scrapeCmd(), a.serveCmd(), a.statsCmd())
	return rootCmd
}

// openStore opens the configured database, creating the parent directory
// of a SQLite file first.
func (a *app) openStore(ctx context.Context) (*store.SQLStore, error) {
	if a.cfg.Driver == store.DriverSQLite {
		if dir := filepath.Dir(a.cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database directory")
			}
		}
	}
	st, err := store.Open(ctx, a.cfg.Driver, a.cfg.DSN, a.log)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return st, nil
}

func (a *app) newScraper() (*scrape.Scraper, error) {
	f := fetch.New(&fetch.Args{
		Client:  &http.Client{},
		Headers: a.cfg.RequestHeaders(),
		Timeout: a.cfg.FetchTimeout,
		Logger:  a.log,
	})
	s, err := scrape.New(scrape.Deps{
		Fetcher:     f,
		BaseURL:     a.cfg.BaseURL,
		ListingPath: a.cfg.ListingPath,
		Delay:       a.cfg.Delay,
		Logger:      a.log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init scraper")
	}
	return s, nil
}
