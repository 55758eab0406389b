package main

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	orig := openDB
	openDB = func(string) (*sql.DB, error) { return db, nil }

	t.Cleanup(func() {
		openDB = orig
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	return mock
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--db-dsn", "postgres://test"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var userCols = []string{"id", "created_at", "first_name", "last_name", "email", "password_hash", "role", "is_active", "version"}

func TestUserPromote(t *testing.T) {
	mock := withMockDB(t)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, time.Now(), "Ada", "Lovelace", "ada@example.com", []byte("hash"), "user", true, 3))
	mock.ExpectQuery("UPDATE users").
		WithArgs("Ada", "Lovelace", "ada@example.com", []byte("hash"), "admin", true, int64(1), 3).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))

	out, err := execute(t, "user", "promote", "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com: role=admin active=true\n", out)
}

func TestUserDeactivateUnknown(t *testing.T) {
	mock := withMockDB(t)

	mock.ExpectQuery("FROM users WHERE email").WillReturnError(sql.ErrNoRows)

	_, err := execute(t, "user", "deactivate", "nobody@example.com")
	assert.EqualError(t, err, "no user with email nobody@example.com")
}

func TestUserCommandNeedsEmail(t *testing.T) {
	_, err := execute(t, "user", "promote")
	assert.Error(t, err)
}

func TestMigrateStatus(t *testing.T) {
	mock := withMockDB(t)

	applied := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, applied))

	out, err := execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Regexp(t, `000001\s+create_users_table\s+2026-05-01T10:00:00Z`, out)
	assert.Regexp(t, `000004\s+create_homepage_sections\s+pending`, out)
}

func TestMigrateDownRequiresPositiveSteps(t *testing.T) {
	_, err := execute(t, "migrate", "down", "--steps", "0")
	assert.EqualError(t, err, "--steps must be at least 1")
}
