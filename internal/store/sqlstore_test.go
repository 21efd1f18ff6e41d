package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"gopkg.in/DATA-DOG/go-sqlmock.v1"

	"github.com/johnstcn/freshfiction/internal/models"
	"github.com/johnstcn/freshfiction/internal/testutil/slogtest"
)

var testError = fmt.Errorf("some error")

var (
	storyColumns    = []string{"id", "external_id", "title", "url", "genres", "first_seen", "last_updated"}
	snapshotColumns = []string{"id", "story_id", "snapshot_date", "rating", "followers", "pages", "chapters", "views", "favorites", "ratings_count"}
	historyColumns  = []string{"external_id", "title", "snapshot_date", "rating", "followers", "pages", "chapters", "views", "favorites", "ratings_count"}
)

type SQLStoreTestSuite struct {
	suite.Suite
	store *SQLStore
	mdb   sqlmock.Sqlmock
	now   time.Time
}

func (s *SQLStoreTestSuite) SetupTest() {
	conn, mdb, err := sqlmock.New()
	s.Require().NoError(err)
	s.mdb = mdb
	s.now = time.Unix(1234, 0).UTC()
	s.store = New(sqlx.NewDb(conn, "sqlmock"), slogtest.New(s.T()))
	s.store.now = func() time.Time { return s.now }
}

func (s *SQLStoreTestSuite) TearDownTest() {
	s.NoError(s.mdb.ExpectationsWereMet())
}

func (s *SQLStoreTestSuite) expectKnown(rows *sqlmock.Rows) {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlLoadStories)).WillReturnRows(rows)
}

func (s *SQLStoreTestSuite) TestMigrate_UnsupportedDriver() {
	err := s.store.Migrate(context.Background())
	s.EqualError(err, `unsupported driver "sqlmock"`)
}

func (s *SQLStoreTestSuite) TestUpsertBatch_LoadErr() {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlLoadStories)).WillReturnError(testError)
	res, err := s.store.UpsertBatch(context.Background(), []models.Observation{story("1", models.Metrics{})})
	s.EqualError(err, "load known stories: some error")
	s.Equal(BatchResult{}, res)
}

func (s *SQLStoreTestSuite) TestUpsertBatch_CreateErrRollsBack() {
	s.expectKnown(sqlmock.NewRows(storyColumns))

	s.mdb.ExpectBegin()
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlCreateStory)).WillReturnError(testError)
	s.mdb.ExpectRollback()

	s.mdb.ExpectBegin()
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlCreateStory)).
		WithArgs(int64(2), "Story 2", "https://www.royalroad.com/fiction/2/slug", "Fantasy, Progression", s.now, s.now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	s.mdb.ExpectExec(regexp.QuoteMeta(sqlCreateSnapshot)).
		WithArgs(int64(7), s.now, nil, nil, nil, nil, int64(5), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mdb.ExpectCommit()

	res, err := s.store.UpsertBatch(context.Background(), []models.Observation{
		story("1", models.Metrics{}),
		story("2", models.Metrics{Views: models.Int(5)}),
	})
	s.NoError(err)
	s.Equal(BatchResult{Added: 1, Failed: 1}, res)
}

func (s *SQLStoreTestSuite) TestUpsertBatch_CopyForward() {
	s.expectKnown(sqlmock.NewRows(storyColumns).
		AddRow(int64(3), int64(1), "Story 1", "https://www.royalroad.com/fiction/1/slug", "Fantasy, Progression", s.now, s.now))
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetLatestSnapshot)).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow(int64(11), int64(3), s.now, 4.25, int64(50), nil, nil, int64(100), nil, nil))

	s.mdb.ExpectBegin()
	s.mdb.ExpectExec(regexp.QuoteMeta(sqlUpdateStory)).
		WithArgs("Story 1", "https://www.royalroad.com/fiction/1/slug", "Fantasy, Progression", s.now, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mdb.ExpectExec(regexp.QuoteMeta(sqlCreateSnapshot)).
		WithArgs(int64(3), s.now, 4.25, int64(60), nil, nil, int64(100), nil, nil).
		WillReturnResult(sqlmock.NewResult(12, 1))
	s.mdb.ExpectCommit()

	res, err := s.store.UpsertBatch(context.Background(), []models.Observation{story("1", models.Metrics{Followers: models.Int(60)})})
	s.NoError(err)
	s.Equal(BatchResult{Updated: 1}, res)
}

func (s *SQLStoreTestSuite) TestUpsertBatch_SnapshotErr() {
	s.expectKnown(sqlmock.NewRows(storyColumns).
		AddRow(int64(3), int64(1), "Story 1", "https://www.royalroad.com/fiction/1/slug", nil, s.now, s.now))
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetLatestSnapshot)).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	s.mdb.ExpectBegin()
	s.mdb.ExpectExec(regexp.QuoteMeta(sqlUpdateStory)).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mdb.ExpectExec(regexp.QuoteMeta(sqlCreateSnapshot)).WillReturnError(testError)
	s.mdb.ExpectRollback()

	res, err := s.store.UpsertBatch(context.Background(), []models.Observation{story("1", models.Metrics{Views: models.Int(1)})})
	s.NoError(err)
	s.Equal(BatchResult{Failed: 1}, res)
}

func (s *SQLStoreTestSuite) TestUpsertBatch_LatestSnapshotErr() {
	s.expectKnown(sqlmock.NewRows(storyColumns).
		AddRow(int64(3), int64(1), "Story 1", "https://www.royalroad.com/fiction/1/slug", nil, s.now, s.now))
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetLatestSnapshot)).WillReturnError(testError)

	res, err := s.store.UpsertBatch(context.Background(), []models.Observation{story("1", models.Metrics{Views: models.Int(1)})})
	s.NoError(err)
	s.Equal(BatchResult{Failed: 1}, res)
}

func (s *SQLStoreTestSuite) TestCreateScrapeRun_OK() {
	s.mdb.ExpectBegin()
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlCreateScrapeRun)).
		WithArgs(s.now, 1, 2, 3, "partial", "notes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	s.mdb.ExpectCommit()

	id, err := s.store.CreateScrapeRun(context.Background(), ScrapeRun{
		PagesScraped:   1,
		StoriesAdded:   2,
		StoriesUpdated: 3,
		Status:         ScrapeStatusPartial,
		Notes:          "notes",
	})
	s.NoError(err)
	s.EqualValues(9, id)
}

func (s *SQLStoreTestSuite) TestCreateScrapeRun_BeginErr() {
	s.mdb.ExpectBegin().WillReturnError(testError)
	id, err := s.store.CreateScrapeRun(context.Background(), ScrapeRun{Status: ScrapeStatusFailed})
	s.EqualError(err, "insert scrape run: begin: some error")
	s.Zero(id)
}

func (s *SQLStoreTestSuite) TestGetLatestStories_Err() {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetLatestStories)).WillReturnError(testError)
	stories, err := s.store.GetLatestStories(context.Background())
	s.Nil(stories)
	s.EqualError(err, "some error")
}

func (s *SQLStoreTestSuite) TestGetSnapshotHistory_OK() {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetHistory)).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow(int64(1), "Story 1", s.now, nil, int64(10), nil, nil, nil, nil, nil))
	points, err := s.store.GetSnapshotHistory(context.Background())
	s.NoError(err)
	s.Len(points, 1)
	s.Equal(models.Int(10), points[0].Followers)
	s.Nil(points[0].Rating)
}

func (s *SQLStoreTestSuite) TestGetStoryHistory_NotFound() {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetStoryID)).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	points, err := s.store.GetStoryHistory(context.Background(), 5)
	s.Nil(points)
	s.ErrorIs(err, ErrStoryNotFound)
}

func (s *SQLStoreTestSuite) TestGetStats_Err() {
	s.mdb.ExpectQuery(regexp.QuoteMeta(sqlGetStats)).WillReturnError(testError)
	stats, err := s.store.GetStats(context.Background())
	s.Equal(Stats{}, stats)
	s.EqualError(err, "some error")
}

func TestSQLStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SQLStoreTestSuite))
}
