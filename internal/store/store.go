package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/johnstcn/freshfiction/internal/models"
)

var ErrStoryNotFound = errors.New("story not found")

// StoryStore reconciles scraped observations into stories and snapshots.
type StoryStore interface {
	UpsertBatch(ctx context.Context, stories []models.Observation) (BatchResult, error)
}

// ScrapeLogStore records pipeline runs.
type ScrapeLogStore interface {
	CreateScrapeRun(ctx context.Context, run ScrapeRun) (int64, error)
}

// ReadStore serves the read-only views over stored history.
type ReadStore interface {
	GetLatestStories(ctx context.Context) ([]LatestStory, error)
	GetSnapshotHistory(ctx context.Context) ([]HistoryPoint, error)
	GetStoryHistory(ctx context.Context, externalID int64) ([]HistoryPoint, error)
	GetStats(ctx context.Context) (Stats, error)
}

type Store interface {
	StoryStore
	ScrapeLogStore
	ReadStore
}

type Conn interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
	DriverName() string
}

var _ Conn = (*sqlx.DB)(nil)
