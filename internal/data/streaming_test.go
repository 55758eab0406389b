package data

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceInsertDuplicateName(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("lower\\(name\\) = lower\\(\\$1\\)").
		WithArgs("netflix", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := models.Services.Insert(context.Background(), &StreamingService{Name: "  netflix ", BaseURL: "https://netflix.com"})
	assert.ErrorIs(t, err, ErrDuplicateServiceName)
}

func TestServiceInsertRaceTranslated(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("lower\\(name\\)").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO streaming_services").
		WillReturnError(uniqueViolation("streaming_services_name_idx"))

	err := models.Services.Insert(context.Background(), &StreamingService{Name: "Netflix", BaseURL: "https://netflix.com"})
	assert.ErrorIs(t, err, ErrDuplicateServiceName)
}

func TestServiceUpdateKeepsOwnName(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("lower\\(name\\)").
		WithArgs("Netflix", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE streaming_services").
		WithArgs("Netflix", "https://netflix.com", "", false, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(testTime))

	s := &StreamingService{ID: 3, Name: "Netflix", BaseURL: "https://netflix.com"}
	require.NoError(t, models.Services.Update(context.Background(), s))
	assert.Equal(t, testTime, s.UpdatedAt)
}

func TestServiceGetAllActiveOnly(t *testing.T) {
	models, mock := newMockModels(t)

	mock.ExpectQuery("FROM streaming_services").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "name", "base_url", "icon", "is_active"}).
			AddRow(1, testTime, testTime, "Hulu", "https://hulu.com", "", true))

	services, err := models.Services.GetAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Hulu", services[0].Name)
}
