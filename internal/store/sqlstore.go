package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	sqlLoadStories       string = `SELECT id, external_id, title, url, genres, first_seen, last_updated FROM stories;`
	sqlCreateStory       string = `INSERT INTO stories (external_id, title, url, genres, first_seen, last_updated) VALUES (?, ?, ?, ?, ?, ?) RETURNING id;`
	sqlUpdateStory       string = `UPDATE stories SET title = ?, url = ?, genres = ?, last_updated = ? WHERE id = ?;`
	sqlGetLatestSnapshot string = `SELECT id, story_id, snapshot_date, rating, followers, pages, chapters, views, favorites, ratings_count FROM story_snapshots WHERE story_id = ? ORDER BY snapshot_date DESC, id DESC LIMIT 1;`
	sqlCreateSnapshot    string = `INSERT INTO story_snapshots (story_id, snapshot_date, rating, followers, pages, chapters, views, favorites, ratings_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	sqlCreateScrapeRun   string = `INSERT INTO scrape_log (run_date, pages_scraped, stories_added, stories_updated, status, notes) VALUES (?, ?, ?, ?, ?, ?) RETURNING id;`
	sqlGetStoryID        string = `SELECT id FROM stories WHERE external_id = ?;`
	sqlGetLatestStories  string = `SELECT s.external_id, s.title, s.url, s.genres, s.first_seen, s.last_updated, ss.snapshot_date, ss.rating, ss.followers, ss.pages, ss.chapters, ss.views, ss.favorites, ss.ratings_count FROM stories s JOIN story_snapshots ss ON ss.id = (SELECT id FROM story_snapshots WHERE story_id = s.id ORDER BY snapshot_date DESC, id DESC LIMIT 1) ORDER BY ss.followers IS NULL, ss.followers DESC, s.external_id;`
	sqlGetHistory        string = `SELECT s.external_id, s.title, ss.snapshot_date, ss.rating, ss.followers, ss.pages, ss.chapters, ss.views, ss.favorites, ss.ratings_count FROM stories s JOIN story_snapshots ss ON ss.story_id = s.id ORDER BY s.external_id, ss.snapshot_date, ss.id;`
	sqlGetStoryHistory   string = `SELECT s.external_id, s.title, ss.snapshot_date, ss.rating, ss.followers, ss.pages, ss.chapters, ss.views, ss.favorites, ss.ratings_count FROM stories s JOIN story_snapshots ss ON ss.story_id = s.id WHERE s.external_id = ? ORDER BY ss.snapshot_date, ss.id;`
	sqlGetStats          string = `SELECT (SELECT COUNT(*) FROM stories) AS total_stories, (SELECT COUNT(*) FROM story_snapshots) AS total_snapshots, (SELECT COUNT(*) FROM (SELECT story_id FROM story_snapshots GROUP BY story_id HAVING COUNT(*) > 1) h) AS stories_with_history;`
)

// SQLStore implements Store on top of Postgres or SQLite.
type SQLStore struct {
	db  Conn
	now func() time.Time
	log *slog.Logger
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string, log *slog.Logger) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s database", driver)
	}

	if driver == DriverSQLite {
		// One connection: the pipeline is the only writer, and the pragma
		// below applies per connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "enable foreign keys")
		}
	}

	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New returns a SQLStore using an existing connection.
func New(db Conn, log *slog.Logger) *SQLStore {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		log: log.With("component", "store"),
	}
}

// Close closes the underlying connection if it can be closed.
func (s *SQLStore) Close() error {
	if c, ok := s.db.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var schema string
	switch s.db.DriverName() {
	case DriverPostgres:
		schema = schemaPostgres
	case DriverSQLite:
		schema = schemaSQLite
	default:
		return errors.Errorf("unsupported driver %q", s.db.DriverName())
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create schema")
	}
	return nil
}

// CreateScrapeRun implements ScrapeLogStore.CreateScrapeRun
func (s *SQLStore) CreateScrapeRun(ctx context.Context, run ScrapeRun) (int64, error) {
	if run.RunDate.IsZero() {
		run.RunDate = s.now()
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &id, tx.Rebind(sqlCreateScrapeRun), run.RunDate, run.PagesScraped, run.StoriesAdded, run.StoriesUpdated, string(run.Status), run.Notes)
	})
	if err != nil {
		return 0, errors.Wrap(err, "insert scrape run")
	}
	return id, nil
}

// GetLatestStories implements ReadStore.GetLatestStories
func (s *SQLStore) GetLatestStories(ctx context.Context) ([]LatestStory, error) {
	stories := make([]LatestStory, 0)
	if err := s.db.SelectContext(ctx, &stories, s.db.Rebind(sqlGetLatestStories)); err != nil {
		return nil, err
	}
	return stories, nil
}

// GetSnapshotHistory implements ReadStore.GetSnapshotHistory
func (s *SQLStore) GetSnapshotHistory(ctx context.Context) ([]HistoryPoint, error) {
	points := make([]HistoryPoint, 0)
	if err := s.db.SelectContext(ctx, &points, s.db.Rebind(sqlGetHistory)); err != nil {
		return nil, err
	}
	return points, nil
}

// GetStoryHistory implements ReadStore.GetStoryHistory
func (s *SQLStore) GetStoryHistory(ctx context.Context, externalID int64) ([]HistoryPoint, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(sqlGetStoryID), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}

	points := make([]HistoryPoint, 0)
	if err := s.db.SelectContext(ctx, &points, s.db.Rebind(sqlGetStoryHistory), externalID); err != nil {
		return nil, err
	}
	return points, nil
}

// GetStats implements ReadStore.GetStats
func (s *SQLStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.GetContext(ctx, &stats, s.db.Rebind(sqlGetStats)); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("rollback", "err", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}
