package scrape

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/johnstcn/freshfiction/internal/fetch"
	"github.com/johnstcn/freshfiction/internal/models"
	"github.com/johnstcn/freshfiction/internal/parser"
)

// Scraper collects stories from the trending listing and their detail pages.
// Requests are issued one at a time with a fixed delay after each detail
// page and after the listing pass.
type Scraper struct {
	fetcher    fetch.Fetcher
	extractor  *parser.Extractor
	listingURL string
	delay      time.Duration
	after      func(d time.Duration) <-chan time.Time
	log        *slog.Logger
}

type Deps struct {
	Fetcher     fetch.Fetcher
	BaseURL     string
	ListingPath string
	Delay       time.Duration
	Logger      *slog.Logger
}

// New returns a Scraper for the site at d.BaseURL.
func New(d Deps) (*Scraper, error) {
	if d.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ex, err := parser.NewExtractor(parser.Deps{BaseURL: d.BaseURL, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Scraper{
		fetcher:    d.Fetcher,
		extractor:  ex,
		listingURL: strings.TrimRight(d.BaseURL, "/") + d.ListingPath,
		delay:      d.Delay,
		after:      time.After,
		log:        log.With("component", "scraper"),
	}, nil
}

// ScrapeTopStories fetches the listing page and every story's detail page.
// Failures degrade to fewer (or no) stories; nothing is returned as an error.
func (s *Scraper) ScrapeTopStories(ctx context.Context) []models.Observation {
	page, err := s.fetcher.Fetch(ctx, s.listingURL)
	if err != nil {
		s.log.Error("fetch listing", "url", s.listingURL, "err", err)
		return nil
	}

	root, err := parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		s.log.Error("parse listing", "url", s.listingURL, "err", err)
		return nil
	}

	fragments := s.extractor.ListingFragments(root)
	s.log.Info("found stories", "count", len(fragments))

	stories := make([]models.Observation, 0, len(fragments))
	for _, frag := range fragments {
		if ctx.Err() != nil {
			s.log.Warn("listing pass interrupted", "err", ctx.Err())
			break
		}

		obs, ok := s.extractor.ListingItem(frag)
		if !ok {
			continue
		}

		var detail models.Metrics
		if obs.URL != "" {
			detail = s.FetchDetail(ctx, obs.URL)
		}
		s.log.Debug("stats", "title", obs.Title, "listing", obs.Metrics, "detail", detail)
		obs.Metrics = obs.Metrics.Merge(detail)

		stories = append(stories, obs)
	}

	s.wait(ctx)
	s.log.Info("scraped stories", "count", len(stories))
	return stories
}

// FetchDetail fetches a story page and extracts its stats. Any failure
// yields empty metrics. It always waits the configured delay before
// returning.
func (s *Scraper) FetchDetail(ctx context.Context, url string) models.Metrics {
	defer s.wait(ctx)

	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.log.Error("fetch story page", "url", url, "err", err)
		return models.Metrics{}
	}

	root, err := parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		s.log.Error("parse story page", "url", url, "err", err)
		return models.Metrics{}
	}

	return s.extractor.DetailStats(root)
}

func (s *Scraper) wait(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-s.after(s.delay):
	}
}
