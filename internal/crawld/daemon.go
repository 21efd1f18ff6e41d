package crawld

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/johnstcn/freshfiction/internal/models"
	"github.com/johnstcn/freshfiction/internal/store"
)

// pagesPerRun is constant: only the single trending listing is crawled.
const pagesPerRun = 1

// Scraper collects one batch of observations. Failures degrade to an empty
// or partial batch, never an error.
type Scraper interface {
	ScrapeTopStories(ctx context.Context) []models.Observation
}

// Store is the part of store.Store a pipeline run needs.
type Store interface {
	store.StoryStore
	store.ScrapeLogStore
	GetStats(ctx context.Context) (store.Stats, error)
}

type Deps struct {
	Scraper Scraper
	Store   Store
	Logger  *slog.Logger
}

// Daemon runs the scrape, reconcile and log pipeline.
type Daemon struct {
	scraper Scraper
	store   Store
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	log     *slog.Logger
}

// Summary describes the outcome of one pipeline run.
type Summary struct {
	RunID   int64
	Started time.Time
	Elapsed time.Duration
	Scraped int
	Status  store.ScrapeStatus
	Result  store.BatchResult
	Stats   store.Stats
}

func New(d Deps) (*Daemon, error) {
	if d.Scraper == nil {
		return nil, errors.New("crawld: scraper is required")
	}
	if d.Store == nil {
		return nil, errors.New("crawld: store is required")
	}
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Daemon{
		scraper: d.Scraper,
		store:   d.Store,
		now:     func() time.Time { return time.Now().UTC() },
		after:   time.After,
		log:     log.With("component", "crawld"),
	}, nil
}

// RunOnce scrapes the listing, reconciles the batch and records the run in
// the scrape log. An error is returned only when the batch could not be
// reconciled at all; a failure to write the scrape log or to read the
// stats is logged and leaves the corresponding summary fields empty.
func (d *Daemon) RunOnce(ctx context.Context) (sum Summary, err error) {
	sum.Started = d.now()
	defer func() { sum.Elapsed = d.now().Sub(sum.Started) }()

	d.log.Info("run started")
	stories := d.scraper.ScrapeTopStories(ctx)
	sum.Scraped = len(stories)

	res, err := d.store.UpsertBatch(ctx, stories)
	if err != nil {
		sum.Status = store.ScrapeStatusFailed
		sum.RunID = d.logRun(ctx, sum, err.Error())
		return sum, errors.Wrap(err, "reconcile")
	}
	sum.Result = res
	sum.Status = status(sum.Scraped, res)

	notes := fmt.Sprintf("Scraped %d stories total, created %d snapshots", sum.Scraped, res.Snapshots())
	sum.RunID = d.logRun(ctx, sum, notes)

	stats, err := d.store.GetStats(ctx)
	if err != nil {
		d.log.Error("read stats", "err", err)
	}
	sum.Stats = stats

	d.log.Info("run finished",
		"status", sum.Status,
		"scraped", sum.Scraped,
		"added", res.Added,
		"updated", res.Updated,
		"total_snapshots", stats.TotalSnapshots,
	)
	return sum, nil
}

// RunEvery calls RunOnce, passes the summary to report, then waits for
// interval before the next run. Runs never overlap. It returns nil once
// ctx is done.
func (d *Daemon) RunEvery(ctx context.Context, interval time.Duration, report func(Summary)) error {
	if interval <= 0 {
		return errors.Errorf("invalid interval %s", interval)
	}
	for {
		sum, err := d.RunOnce(ctx)
		if err != nil {
			d.log.Error("run failed", "err", err)
		} else if report != nil {
			report(sum)
		}

		d.log.Debug("waiting for next run", "interval", interval)
		select {
		case <-ctx.Done():
			return nil
		case <-d.after(interval):
		}
	}
}

func (d *Daemon) logRun(ctx context.Context, sum Summary, notes string) int64 {
	id, err := d.store.CreateScrapeRun(ctx, store.ScrapeRun{
		RunDate:        sum.Started,
		PagesScraped:   pagesPerRun,
		StoriesAdded:   sum.Result.Added,
		StoriesUpdated: sum.Result.Updated,
		Status:         sum.Status,
		Notes:          notes,
	})
	if err != nil {
		d.log.Error("write scrape log", "err", err)
		return 0
	}
	return id
}

func status(scraped int, res store.BatchResult) store.ScrapeStatus {
	switch {
	case scraped == 0:
		return store.ScrapeStatusFailed
	case res.Failed > 0:
		return store.ScrapeStatusPartial
	default:
		return store.ScrapeStatusSuccess
	}
}
