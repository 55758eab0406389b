package data

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/moviematic/internal/validator"
)

func TestValidateSection(t *testing.T) {
	v := validator.New()
	ValidateSection(v, &HomepageSection{Title: "", MovieIDs: []int64{1, 1}})

	assert.Equal(t, "must be provided", v.Errors["title"])
	assert.Equal(t, "must not contain duplicate values", v.Errors["movie_ids"])

	v = validator.New()
	ValidateSection(v, &HomepageSection{Title: "Trending"})
	assert.Equal(t, "must contain at least 1 movie", v.Errors["movie_ids"])
}

func TestSectionInsertInvalidReference(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("SELECT id FROM movies WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	section := &HomepageSection{Title: "Trending", MovieIDs: []int64{1, 404}, IsActive: true}
	err := models.Sections.Insert(context.Background(), section)

	var refErr *InvalidReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "movie", refErr.Kind)
	assert.Equal(t, []int64{404}, refErr.Missing)
	assert.Equal(t, 2, refErr.Requested)
	assert.Equal(t, 1, refErr.Resolved)
	assert.Zero(t, section.ID)
}

func TestSectionInsert(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("SELECT id FROM movies WHERE id = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery("INSERT INTO homepage_sections").
		WithArgs("Trending", sqlmock.AnyArg(), 3, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(6, testTime, testTime))

	section := &HomepageSection{Title: "Trending", MovieIDs: []int64{2, 1}, Order: 3, IsActive: true}
	require.NoError(t, models.Sections.Insert(context.Background(), section))
	assert.Equal(t, int64(6), section.ID)
}

func TestSectionUpdateMissing(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("SELECT id FROM movies WHERE id = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("UPDATE homepage_sections").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := models.Sections.Update(context.Background(), &HomepageSection{ID: 9, Title: "X", MovieIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSectionGetAllAndPopulate(t *testing.T) {
	models, mock := newMockModels(t)

	cols := []string{"id", "created_at", "updated_at", "title", "movie_ids", "sort_order", "is_active"}
	mock.ExpectQuery("FROM homepage_sections").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, testTime, testTime, "Trending", []byte("{3,1}"), 0, true))
	mock.ExpectQuery("FROM movies WHERE id = ANY").
		WillReturnRows(sqlmock.NewRows(movieCols).AddRow(movieRow(1, "One", false)...))
	mock.ExpectQuery("FROM movie_streaming_platforms").
		WillReturnRows(sqlmock.NewRows(platformCols))

	sections, err := models.Sections.GetAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, []int64{3, 1}, sections[0].MovieIDs)

	require.NoError(t, models.Sections.Populate(context.Background(), models.Movies, sections))
	require.Len(t, sections[0].Movies, 1)
	assert.Equal(t, "One", sections[0].Movies[0].Title)
}
