package data

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/moviematic/internal/validator"
)

func TestNewWatchlistStats(t *testing.T) {
	stats := NewWatchlistStats(map[string]int{StatusWatched: 3, "abandoned": 7})

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{StatusWantToWatch: 0, StatusWatching: 0, StatusWatched: 3}, stats.ByStatus)

	empty := NewWatchlistStats(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Len(t, empty.ByStatus, 3)
}

func TestValidateWatchlistEntry(t *testing.T) {
	rating := 11
	v := validator.New()
	ValidateWatchlistEntry(v, &WatchlistEntry{MovieID: 1, Status: "paused", Rating: &rating})

	assert.Contains(t, v.Errors, "status")
	assert.Contains(t, v.Errors, "rating")
	assert.NotContains(t, v.Errors, "notes")
}

func TestWatchlistInsert(t *testing.T) {
	t.Run("defaults status", func(t *testing.T) {
		models, mock := newMockModels(t)

		mock.ExpectQuery("FROM watchlist WHERE movie_id").
			WithArgs(int64(10), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"movie", "listed"}).AddRow(true, false))
		mock.ExpectQuery("INSERT INTO watchlist").
			WithArgs(int64(2), int64(10), StatusWantToWatch, nil, "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "added_at", "updated_at"}).AddRow(8, testTime, testTime))

		entry := &WatchlistEntry{UserID: 2, MovieID: 10}
		require.NoError(t, models.Watchlist.Insert(context.Background(), entry))
		assert.Equal(t, int64(8), entry.ID)
		assert.Equal(t, StatusWantToWatch, entry.Status)
	})

	t.Run("second add rejected", func(t *testing.T) {
		models, mock := newMockModels(t)

		mock.ExpectQuery("FROM watchlist WHERE movie_id").
			WillReturnRows(sqlmock.NewRows([]string{"movie", "listed"}).AddRow(true, true))

		err := models.Watchlist.Insert(context.Background(), &WatchlistEntry{UserID: 2, MovieID: 10})
		assert.ErrorIs(t, err, ErrAlreadyInWatchlist)
	})

	t.Run("concurrent duplicate translated", func(t *testing.T) {
		models, mock := newMockModels(t)

		mock.ExpectQuery("FROM watchlist WHERE movie_id").
			WillReturnRows(sqlmock.NewRows([]string{"movie", "listed"}).AddRow(true, false))
		mock.ExpectQuery("INSERT INTO watchlist").
			WillReturnError(uniqueViolation("watchlist_user_movie_key"))

		err := models.Watchlist.Insert(context.Background(), &WatchlistEntry{UserID: 2, MovieID: 10})
		assert.ErrorIs(t, err, ErrAlreadyInWatchlist)
	})

	t.Run("unknown movie", func(t *testing.T) {
		models, mock := newMockModels(t)

		mock.ExpectQuery("FROM watchlist WHERE movie_id").
			WillReturnRows(sqlmock.NewRows([]string{"movie", "listed"}).AddRow(false, false))

		err := models.Watchlist.Insert(context.Background(), &WatchlistEntry{UserID: 2, MovieID: 10})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

var watchlistCols = []string{"total", "id", "user_id", "movie_id", "status", "rating", "notes", "added_at", "updated_at",
	"mid", "title", "director", "release_year", "runtime", "mrating", "genres", "portrait_image", "landscape_image"}

func TestWatchlistGetAll(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("FROM watchlist w").
		WithArgs(int64(2), StatusWatched, 20, 0).
		WillReturnRows(sqlmock.NewRows(watchlistCols).
			AddRow(2, 1, 2, 10, StatusWatched, 9, "rewatch", testTime, testTime,
				10, "Alien", "Ridley Scott", 1979, 117, 8.5, []byte("{Horror,Sci-Fi}"), "", "").
			AddRow(2, 2, 2, 11, StatusWatched, nil, "", testTime, testTime,
				nil, nil, nil, nil, nil, nil, nil, nil, nil))

	entries, meta, err := models.Watchlist.GetAll(context.Background(), 2, StatusWatched,
		Filters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 9, *entries[0].Rating)
	assert.Equal(t, []string{"Horror", "Sci-Fi"}, entries[0].Movie.Genres)
	assert.Equal(t, Runtime(117), entries[0].Movie.Runtime)
	assert.Nil(t, entries[1].Rating)
	assert.Nil(t, entries[1].Movie)
	assert.Equal(t, 2, meta.TotalRecords)
}

func TestWatchlistDelete(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectExec("DELETE FROM watchlist").
		WithArgs(int64(2), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, models.Watchlist.Delete(context.Background(), 2, 10), ErrRecordNotFound)
}

func TestWatchlistStats(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("GROUP BY status").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(StatusWatching, 1).
			AddRow(StatusWantToWatch, 4))

	stats, err := models.Watchlist.Stats(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 0, stats.ByStatus[StatusWatched])
	assert.Equal(t, 4, stats.ByStatus[StatusWantToWatch])
}
