package store

import (
	"time"

	"github.com/johnstcn/freshfiction/internal/models"
)

// Story is one row per distinct external story id.
type Story struct {
	ID          int64     `db:"id" json:"-"`
	ExternalID  int64     `db:"external_id" json:"external_id"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	Genres      *string   `db:"genres" json:"genres"`
	FirstSeen   time.Time `db:"first_seen" json:"first_seen"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// Snapshot is an immutable measurement of a story's metrics.
type Snapshot struct {
	ID           int64     `db:"id" json:"-"`
	StoryID      int64     `db:"story_id" json:"-"`
	SnapshotDate time.Time `db:"snapshot_date" json:"snapshot_date"`
	models.Metrics
}

type ScrapeStatus string

const (
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusPartial ScrapeStatus = "partial"
	ScrapeStatusFailed  ScrapeStatus = "failed"
)

// ScrapeRun is one entry of the write-only scrape log.
type ScrapeRun struct {
	ID             int64        `db:"id"`
	RunDate        time.Time    `db:"run_date"`
	PagesScraped   int          `db:"pages_scraped"`
	StoriesAdded   int          `db:"stories_added"`
	StoriesUpdated int          `db:"stories_updated"`
	Status         ScrapeStatus `db:"status"`
	Notes          string       `db:"notes"`
}

// LatestStory is a story joined to its most recent snapshot.
type LatestStory struct {
	ExternalID   int64     `db:"external_id" json:"external_id"`
	Title        string    `db:"title" json:"title"`
	URL          string    `db:"url" json:"url"`
	Genres       *string   `db:"genres" json:"genres"`
	FirstSeen    time.Time `db:"first_seen" json:"first_seen"`
	LastUpdated  time.Time `db:"last_updated" json:"last_updated"`
	SnapshotDate time.Time `db:"snapshot_date" json:"snapshot_date"`
	models.Metrics
}

// HistoryPoint is one snapshot of a story's history.
type HistoryPoint struct {
	ExternalID   int64     `db:"external_id" json:"external_id"`
	Title        string    `db:"title" json:"title"`
	SnapshotDate time.Time `db:"snapshot_date" json:"snapshot_date"`
	models.Metrics
}

// Stats summarises the contents of the store.
type Stats struct {
	TotalStories       int64 `db:"total_stories" json:"total_stories"`
	TotalSnapshots     int64 `db:"total_snapshots" json:"total_snapshots"`
	StoriesWithHistory int64 `db:"stories_with_history" json:"stories_with_history"`
}

// BatchResult tallies the outcome of reconciling a batch of observations.
// Added and Updated count stories that received a new snapshot.
type BatchResult struct {
	Added        int
	Updated      int
	MetadataOnly int
	Unchanged    int
	Skipped      int
	Failed       int
}

// Snapshots returns the number of snapshots written.
func (r BatchResult) Snapshots() int {
	return r.Added + r.Updated
}
