package crawld

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/johnstcn/freshfiction/internal/models"
	"github.com/johnstcn/freshfiction/internal/store"
	"github.com/johnstcn/freshfiction/internal/store/storetest"
	"github.com/johnstcn/freshfiction/internal/testutil/slogtest"
)

var (
	testNow   = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	testError = fmt.Errorf("some error")
)

type fakeScraper struct {
	mock.Mock
}

func (f *fakeScraper) ScrapeTopStories(ctx context.Context) []models.Observation {
	obs, _ := f.Called(ctx).Get(0).([]models.Observation)
	return obs
}

type testParams struct {
	daemon  *Daemon
	scraper *fakeScraper
	store   *storetest.Store
}

func setup(t *testing.T) testParams {
	t.Helper()
	scraper := &fakeScraper{}
	st := &storetest.Store{}
	t.Cleanup(func() {
		scraper.AssertExpectations(t)
		st.AssertExpectations(t)
	})
	d, err := New(Deps{Scraper: scraper, Store: st, Logger: slogtest.New(t)})
	require.NoError(t, err)
	d.now = func() time.Time { return testNow }
	return testParams{daemon: d, scraper: scraper, store: st}
}

func runWith(status store.ScrapeStatus, added, updated int, notes string) interface{} {
	return mock.MatchedBy(func(run store.ScrapeRun) bool {
		return run.RunDate.Equal(testNow) &&
			run.PagesScraped == 1 &&
			run.StoriesAdded == added &&
			run.StoriesUpdated == updated &&
			run.Status == status &&
			run.Notes == notes
	})
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(Deps{Store: &storetest.Store{}})
	assert.EqualError(t, err, "crawld: scraper is required")
	_, err = New(Deps{Scraper: &fakeScraper{}})
	assert.EqualError(t, err, "crawld: store is required")
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	batch := []models.Observation{
		{Title: "A", URL: "https://www.royalroad.com/fiction/1/a"},
		{Title: "B", URL: "https://www.royalroad.com/fiction/2/b"},
		{Title: "C", URL: "https://www.royalroad.com/fiction/3/c"},
	}

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(batch).Once()
		p.store.On("UpsertBatch", mock.Anything, batch).Return(store.BatchResult{Added: 1, Updated: 1, Unchanged: 1}, nil).Once()
		p.store.On("CreateScrapeRun", mock.Anything, runWith(store.ScrapeStatusSuccess, 1, 1, "Scraped 3 stories total, created 2 snapshots")).Return(int64(4), nil).Once()
		p.store.On("GetStats", mock.Anything).Return(store.Stats{TotalStories: 3, TotalSnapshots: 5}, nil).Once()

		sum, err := p.daemon.RunOnce(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 4, sum.RunID)
		assert.Equal(t, 3, sum.Scraped)
		assert.Equal(t, store.ScrapeStatusSuccess, sum.Status)
		assert.Equal(t, 2, sum.Result.Snapshots())
		assert.EqualValues(t, 5, sum.Stats.TotalSnapshots)
		assert.True(t, sum.Started.Equal(testNow))
	})

	t.Run("Partial", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(batch).Once()
		p.store.On("UpsertBatch", mock.Anything, batch).Return(store.BatchResult{Added: 2, Failed: 1}, nil).Once()
		p.store.On("CreateScrapeRun", mock.Anything, runWith(store.ScrapeStatusPartial, 2, 0, "Scraped 3 stories total, created 2 snapshots")).Return(int64(5), nil).Once()
		p.store.On("GetStats", mock.Anything).Return(store.Stats{}, nil).Once()

		sum, err := p.daemon.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, store.ScrapeStatusPartial, sum.Status)
	})

	t.Run("NothingScraped", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(nil).Once()
		p.store.On("UpsertBatch", mock.Anything, mock.Anything).Return(store.BatchResult{}, nil).Once()
		p.store.On("CreateScrapeRun", mock.Anything, runWith(store.ScrapeStatusFailed, 0, 0, "Scraped 0 stories total, created 0 snapshots")).Return(int64(6), nil).Once()
		p.store.On("GetStats", mock.Anything).Return(store.Stats{TotalStories: 9}, nil).Once()

		sum, err := p.daemon.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, store.ScrapeStatusFailed, sum.Status)
		assert.EqualValues(t, 9, sum.Stats.TotalStories)
	})

	t.Run("ReconcileErr", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(batch).Once()
		p.store.On("UpsertBatch", mock.Anything, batch).Return(store.BatchResult{}, testError).Once()
		p.store.On("CreateScrapeRun", mock.Anything, runWith(store.ScrapeStatusFailed, 0, 0, "some error")).Return(int64(7), nil).Once()

		sum, err := p.daemon.RunOnce(context.Background())
		assert.EqualError(t, err, "reconcile: some error")
		assert.Equal(t, store.ScrapeStatusFailed, sum.Status)
		assert.EqualValues(t, 7, sum.RunID)
	})

	t.Run("ScrapeLogErr", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(batch).Once()
		p.store.On("UpsertBatch", mock.Anything, batch).Return(store.BatchResult{Unchanged: 3}, nil).Once()
		p.store.On("CreateScrapeRun", mock.Anything, mock.Anything).Return(int64(0), testError).Once()
		p.store.On("GetStats", mock.Anything).Return(store.Stats{}, testError).Once()

		sum, err := p.daemon.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sum.RunID)
		assert.Equal(t, store.ScrapeStatusSuccess, sum.Status)
	})
}

func TestRunEvery(t *testing.T) {
	t.Parallel()

	t.Run("InvalidInterval", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		err := p.daemon.RunEvery(context.Background(), 0, nil)
		assert.EqualError(t, err, "invalid interval 0s")
	})

	t.Run("RepeatsUntilCancelled", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(nil).Twice()
		p.store.On("UpsertBatch", mock.Anything, mock.Anything).Return(store.BatchResult{}, nil).Twice()
		p.store.On("CreateScrapeRun", mock.Anything, mock.Anything).Return(int64(1), nil).Twice()
		p.store.On("GetStats", mock.Anything).Return(store.Stats{}, nil).Twice()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var waits int
		p.daemon.after = func(d time.Duration) <-chan time.Time {
			assert.Equal(t, time.Hour, d)
			waits++
			if waits == 2 {
				cancel()
				return nil
			}
			ch := make(chan time.Time, 1)
			ch <- testNow
			return ch
		}

		var reports []Summary
		err := p.daemon.RunEvery(ctx, time.Hour, func(s Summary) { reports = append(reports, s) })
		require.NoError(t, err)
		assert.Len(t, reports, 2)
		assert.Equal(t, 2, waits)
	})

	t.Run("ErrorsAreNotReported", func(t *testing.T) {
		t.Parallel()
		p := setup(t)
		p.scraper.On("ScrapeTopStories", mock.Anything).Return(nil).Once()
		p.store.On("UpsertBatch", mock.Anything, mock.Anything).Return(store.BatchResult{}, testError).Once()
		p.store.On("CreateScrapeRun", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.daemon.after = func(time.Duration) <-chan time.Time {
			cancel()
			return nil
		}

		var reports int
		err := p.daemon.RunEvery(ctx, time.Minute, func(Summary) { reports++ })
		require.NoError(t, err)
		assert.Zero(t, reports)
	})
}
