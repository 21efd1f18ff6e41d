// Package storetest provides a testify mock of store.Store.
package storetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/johnstcn/freshfiction/internal/models"
	"github.com/johnstcn/freshfiction/internal/store"
)

type Store struct {
	mock.Mock
}

var _ store.Store = (*Store)(nil)

func (m *Store) UpsertBatch(ctx context.Context, stories []models.Observation) (store.BatchResult, error) {
	args := m.Called(ctx, stories)
	return args.Get(0).(store.BatchResult), args.Error(1)
}

func (m *Store) CreateScrapeRun(ctx context.Context, run store.ScrapeRun) (int64, error) {
	args := m.Called(ctx, run)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) GetLatestStories(ctx context.Context) ([]store.LatestStory, error) {
	args := m.Called(ctx)
	stories, _ := args.Get(0).([]store.LatestStory)
	return stories, args.Error(1)
}

func (m *Store) GetSnapshotHistory(ctx context.Context) ([]store.HistoryPoint, error) {
	args := m.Called(ctx)
	points, _ := args.Get(0).([]store.HistoryPoint)
	return points, args.Error(1)
}

func (m *Store) GetStoryHistory(ctx context.Context, externalID int64) ([]store.HistoryPoint, error) {
	args := m.Called(ctx, externalID)
	points, _ := args.Get(0).([]store.HistoryPoint)
	return points, args.Error(1)
}

func (m *Store) GetStats(ctx context.Context) (store.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Stats), args.Error(1)
}
