package data

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/moviematic/internal/validator"
)

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "", likePattern(""))
	assert.Equal(t, "%star%", likePattern("star"))
	assert.Equal(t, `%100\% \_real\\%`, likePattern(`100% _real\`))
}

func validMovie() *Movie {
	return &Movie{
		Title:       "Alien",
		Director:    "Ridley Scott",
		ReleaseYear: 1979,
		Genres:      []string{"Horror", "Sci-Fi"},
		Rating:      8.5,
		Runtime:     117,
		Description: "In space no one can hear you scream.",
		Cast:        []string{"Sigourney Weaver"},
	}
}

func TestValidateMovie(t *testing.T) {
	v := validator.New()
	ValidateMovie(v, validMovie())
	assert.True(t, v.Valid(), v.Errors)

	m := validMovie()
	m.ReleaseYear = 1800
	m.Genres = []string{"Horror", "Horror", "Space Opera"}
	m.Runtime = 601
	m.Rating = 11
	m.TrailerURL = "youtube.com/watch"
	m.StreamingPlatforms = []StreamingPlatform{{ServiceID: 1, URL: "not a url"}}

	v = validator.New()
	ValidateMovie(v, m)
	for _, key := range []string{"release_year", "genres", "runtime", "rating", "trailer_url", "streaming_platforms"} {
		assert.Contains(t, v.Errors, key)
	}
}

func TestValidateMovieQuery(t *testing.T) {
	bad := 12.0
	v := validator.New()
	ValidateMovieQuery(v, MovieQuery{
		Genre:     "Space Opera",
		MinRating: &bad,
		Filters:   Filters{Page: 1, PageSize: 20, Sort: "-budget", SortSafelist: MovieSortSafelist},
	})

	// 未知类型只是没有匹配结果
	assert.NotContains(t, v.Errors, "genre")
	assert.Contains(t, v.Errors, "min_rating")
	assert.Contains(t, v.Errors, "sort")
}

var movieCols = []string{"id", "created_at", "updated_at", "title", "director", "release_year", "genres", "rating",
	"runtime", "description", "cast_members", "language", "country", "budget", "box_office", "awards", "is_released",
	"movie_of_the_week", "trailer_url", "portrait_image", "landscape_image", "version"}

func movieRow(id int64, title string, featured bool) []driver.Value {
	return []driver.Value{id, testTime, testTime, title, "Director", 1979, []byte("{Sci-Fi}"), 7.5, 110,
		"Description", []byte("{Someone}"), "English", "United States", nil, nil, []byte("{}"), true,
		featured, "", "", "", 1}
}

var platformCols = []string{"movie_id", "url", "sid", "created_at", "updated_at", "name", "base_url", "icon", "is_active"}

func TestMovieGetAllSearch(t *testing.T) {
	models, mock := newMockModels(t)

	rating := 7.0
	q := MovieQuery{
		Text:      "star",
		Genre:     "Sci-Fi",
		MinRating: &rating,
		Filters:   Filters{Page: 1, PageSize: 50, Sort: "-created_at", SortSafelist: MovieSortSafelist},
	}

	rows := sqlmock.NewRows(append([]string{"total"}, movieCols...)).
		AddRow(append([]driver.Value{2}, movieRow(1, "Star Wars", false)...)...).
		AddRow(append([]driver.Value{2}, movieRow(2, "All Stars", false)...)...)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY movies.created_at DESC, movies.id ASC")).
		WithArgs("%star%", "Sci-Fi", 0, 7.0, 50, 0).
		WillReturnRows(rows)
	mock.ExpectQuery("FROM movie_streaming_platforms").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(platformCols).
			AddRow(2, "https://netflix.com/title/2", 4, testTime, testTime, "Netflix", "https://netflix.com", "", true))

	movies, meta, err := models.Movies.GetAll(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, movies, 2)

	assert.Equal(t, "Star Wars", movies[0].Title)
	assert.Empty(t, movies[0].StreamingPlatforms)
	require.Len(t, movies[1].StreamingPlatforms, 1)
	assert.Equal(t, "Netflix", movies[1].StreamingPlatforms[0].Service.Name)
	assert.Equal(t, 2, meta.TotalRecords)
	assert.Equal(t, 1, meta.LastPage)
}

func TestMovieInsertMovieOfTheWeek(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(movieOfTheWeekLock).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE movies SET movie_of_the_week = false").
		WithArgs(int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO movies").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "version"}).
			AddRow(12, testTime, testTime, 1))
	mock.ExpectExec("DELETE FROM movie_streaming_platforms").
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	movie := validMovie()
	movie.MovieOfTheWeek = true

	require.NoError(t, models.Movies.Insert(context.Background(), movie))
	assert.Equal(t, int64(12), movie.ID)
	assert.Equal(t, "English", movie.Language)
	assert.Equal(t, []string{}, movie.Awards)
}

func TestMovieUpdateMovieOfTheWeekRollsBack(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE movies SET movie_of_the_week = false").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE movies SET title").
		WillReturnError(uniqueViolation("movies_movie_of_the_week_idx"))
	mock.ExpectRollback()

	movie := validMovie()
	movie.ID = 7
	movie.Version = 3
	movie.MovieOfTheWeek = true

	assert.ErrorIs(t, models.Movies.Update(context.Background(), movie), ErrEditConflict)
}

func TestMovieUpdateWithoutFlagSkipsLock(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE movies SET title").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at", "version"}))
	mock.ExpectRollback()

	movie := validMovie()
	movie.ID = 7
	movie.Version = 3

	assert.ErrorIs(t, models.Movies.Update(context.Background(), movie), ErrEditConflict)
}

func TestMovieInsertUnknownService(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("FROM streaming_services WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	movie := validMovie()
	movie.StreamingPlatforms = []StreamingPlatform{
		{ServiceID: 1, URL: "https://a.example"},
		{ServiceID: 5, URL: "https://b.example"},
	}

	err := models.Movies.Insert(context.Background(), movie)

	var refErr *InvalidReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "streaming_service", refErr.Kind)
	assert.Equal(t, []int64{5}, refErr.Missing)
}

func TestMovieGetByIDsKeepsOrder(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("FROM movies WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(movieCols).
			AddRow(movieRow(1, "First", false)...).
			AddRow(movieRow(3, "Third", false)...))
	mock.ExpectQuery("FROM movie_streaming_platforms").
		WillReturnRows(sqlmock.NewRows(platformCols))

	movies, err := models.Movies.GetByIDs(context.Background(), []int64{3, 2, 1})
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "Third", movies[0].Title)
	assert.Equal(t, "First", movies[1].Title)
}

func TestMovieGetFeaturedNone(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("WHERE movie_of_the_week LIMIT 1").
		WillReturnRows(sqlmock.NewRows(movieCols))

	_, err := models.Movies.GetFeatured(context.Background())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMovieDelete(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectExec("DELETE FROM movies").
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, models.Movies.Delete(context.Background(), 4), ErrRecordNotFound)
	assert.ErrorIs(t, models.Movies.Delete(context.Background(), 0), ErrRecordNotFound)
}
