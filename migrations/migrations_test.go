package migrations

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_b.up.sql":   {Data: []byte("CREATE TABLE b ();")},
		"000002_add_b.down.sql": {Data: []byte("DROP TABLE b;")},
		"000001_add_a.up.sql":   {Data: []byte("CREATE TABLE a ();")},
		"README.md":             {Data: []byte("ignored")},
	}

	migrations, err := load(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "add_a", migrations[0].Name)
	assert.Empty(t, migrations[0].Down)
	assert.Equal(t, "add_b", migrations[1].Name)
	assert.Equal(t, "DROP TABLE b;", migrations[1].Down)
}

func TestLoadRejectsMissingUp(t *testing.T) {
	_, err := load(fstest.MapFS{"000003_x.down.sql": {Data: []byte("DROP TABLE x;")}})
	assert.Error(t, err)

	_, err = load(fstest.MapFS{"abc_x.up.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := All()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Down, m.Name)
	}
}

func TestUpSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	all, err := All()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows([]string{"version", "applied_at"})
	for _, m := range all[:len(all)-1] {
		rows.AddRow(m.Version, time.Now())
	}
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").WillReturnRows(rows)

	last := all[len(all)-1]
	mock.ExpectBegin()
	mock.ExpectExec("homepage_sections").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(last.Version, last.Name).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := Up(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
