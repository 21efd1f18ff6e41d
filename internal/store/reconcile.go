package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/johnstcn/freshfiction/internal/models"
)

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeMetadata
	outcomeSnapshot
)

// UpsertBatch implements StoryStore.UpsertBatch.
//
// Stories are matched on the external id found in their URL. An unknown id
// creates a story with an initial snapshot. A known id gets a new snapshot
// only when a known incoming metric differs from the latest snapshot; unknown
// incoming metrics are carried forward from that snapshot. Each story is
// written in its own transaction, so a failing story does not affect the
// others. The returned error is set only when the batch could not start.
func (s *SQLStore) UpsertBatch(ctx context.Context, stories []models.Observation) (BatchResult, error) {
	var res BatchResult

	known, err := s.knownStories(ctx)
	if err != nil {
		return res, errors.Wrap(err, "load known stories")
	}
	s.log.Info("reconcile", "incoming", len(stories), "known", len(known))

	for _, obs := range stories {
		extID, ok := obs.ExternalID()
		if !ok {
			s.log.Warn("skip story without external id", "title", obs.Title, "url", obs.URL)
			res.Skipped++
			continue
		}
		log := s.log.With("external_id", extID)

		current, found := known[extID]
		if !found {
			st, err := s.createStory(ctx, extID, obs)
			if err != nil {
				log.Error("add story", "title", obs.Title, "err", err)
				res.Failed++
				continue
			}
			known[extID] = st
			res.Added++
			log.Debug("added story", "title", st.Title, "metrics", obs.Metrics)
			continue
		}

		st, out, err := s.updateStory(ctx, current, obs)
		if err != nil {
			log.Error("update story", "title", obs.Title, "err", err)
			res.Failed++
			continue
		}
		known[extID] = st
		switch out {
		case outcomeSnapshot:
			res.Updated++
			log.Debug("new snapshot", "title", st.Title, "metrics", obs.Metrics)
		case outcomeMetadata:
			res.MetadataOnly++
			log.Debug("metadata changed", "title", st.Title)
		default:
			res.Unchanged++
		}
	}

	s.log.Info("reconciled",
		"added", res.Added,
		"updated", res.Updated,
		"metadata_only", res.MetadataOnly,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *SQLStore) knownStories(ctx context.Context) (map[int64]Story, error) {
	var rows []Story
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(sqlLoadStories)); err != nil {
		return nil, err
	}
	known := make(map[int64]Story, len(rows))
	for _, st := range rows {
		known[st.ExternalID] = st
	}
	return known, nil
}

func (s *SQLStore) createStory(ctx context.Context, extID int64, obs models.Observation) (Story, error) {
	now := s.now()
	st := Story{
		ExternalID:  extID,
		Title:       obs.Title,
		URL:         obs.URL,
		Genres:      genres(obs),
		FirstSeen:   now,
		LastUpdated: now,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &st.ID, tx.Rebind(sqlCreateStory), st.ExternalID, st.Title, st.URL, nullString(st.Genres), st.FirstSeen, st.LastUpdated); err != nil {
			return errors.Wrap(err, "insert story")
		}
		return insertSnapshot(ctx, tx, st.ID, now, obs.Metrics)
	})
	if err != nil {
		return Story{}, err
	}
	return st, nil
}

func (s *SQLStore) updateStory(ctx context.Context, current Story, obs models.Observation) (Story, outcome, error) {
	prev, err := s.latestMetrics(ctx, current.ID)
	if err != nil {
		return current, outcomeUnchanged, errors.Wrap(err, "latest snapshot")
	}

	next := current
	next.Title = obs.Title
	next.URL = obs.URL
	next.Genres = genres(obs)

	metricsChanged := obs.Metrics.ChangedFrom(prev)
	metaChanged := next.Title != current.Title ||
		next.URL != current.URL ||
		deref(next.Genres) != deref(current.Genres)
	if !metricsChanged && !metaChanged {
		return current, outcomeUnchanged, nil
	}

	now := s.now()
	next.LastUpdated = now
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(sqlUpdateStory), next.Title, next.URL, nullString(next.Genres), next.LastUpdated, next.ID); err != nil {
			return errors.Wrap(err, "update story")
		}
		if !metricsChanged {
			return nil
		}
		return insertSnapshot(ctx, tx, next.ID, now, prev.Merge(obs.Metrics))
	})
	if err != nil {
		return current, outcomeUnchanged, err
	}

	if metricsChanged {
		return next, outcomeSnapshot, nil
	}
	return next, outcomeMetadata, nil
}

// latestMetrics returns the metrics of the most recent snapshot of a story,
// or empty metrics when it has none.
func (s *SQLStore) latestMetrics(ctx context.Context, storyID int64) (models.Metrics, error) {
	var snap Snapshot
	err := s.db.GetContext(ctx, &snap, s.db.Rebind(sqlGetLatestSnapshot), storyID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Metrics{}, nil
	}
	if err != nil {
		return models.Metrics{}, err
	}
	return snap.Metrics, nil
}

func insertSnapshot(ctx context.Context, tx *sqlx.Tx, storyID int64, at time.Time, m models.Metrics) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(sqlCreateSnapshot),
		storyID,
		at,
		nullFloat(m.Rating),
		nullInt(m.Followers),
		nullInt(m.Pages),
		nullInt(m.Chapters),
		nullInt(m.Views),
		nullInt(m.Favorites),
		nullInt(m.RatingsCount),
	)
	return errors.Wrap(err, "insert snapshot")
}

func genres(obs models.Observation) *string {
	if g := obs.GenreList(); g != "" {
		return &g
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
