// Package migrations 内嵌数据库结构迁移脚本，并记录已执行的版本
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed *.sql
var files embed.FS

// Migration 一个版本的迁移脚本
type Migration struct {
	Version   int
	Name      string
	Up        string
	Down      string
	AppliedAt *time.Time
}

const schemaMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version integer PRIMARY KEY,
		name text NOT NULL,
		applied_at timestamp(0) with time zone NOT NULL DEFAULT now()
	)`

// All 按版本号升序返回所有内嵌的迁移
func All() ([]Migration, error) {
	return load(files)
}

func load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()

		var direction string
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(name, ".down.sql"):
			direction = "down"
		default:
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %q: missing version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: strings.TrimSuffix(strings.TrimSuffix(rest, ".up.sql"), ".down.sql")}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %d (%s): missing up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}

func applied(ctx context.Context, db *sql.DB) (map[int]time.Time, error) {
	if _, err := db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]time.Time)
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		versions[v] = at
	}

	return versions, rows.Err()
}

// Up 依次执行尚未执行的迁移，每个版本一个事务，返回本次执行的数量
func Up(ctx context.Context, db *sql.DB) (int, error) {
	migrations, err := All()
	if err != nil {
		return 0, err
	}

	done, err := applied(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if _, ok := done[m.Version]; ok {
			continue
		}

		if err := run(ctx, db, m.Up, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			return count, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		count++
	}

	return count, nil
}

// Down 回滚最近执行的 steps 个迁移
func Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, err := All()
	if err != nil {
		return 0, err
	}

	done, err := applied(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(migrations) - 1; i >= 0 && count < steps; i-- {
		m := migrations[i]
		if _, ok := done[m.Version]; !ok {
			continue
		}
		if m.Down == "" {
			return count, fmt.Errorf("migration %d (%s): missing down script", m.Version, m.Name)
		}

		if err := run(ctx, db, m.Down, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return count, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		count++
	}

	return count, nil
}

// Status 返回所有迁移，已执行的附带执行时间
func Status(ctx context.Context, db *sql.DB) ([]Migration, error) {
	migrations, err := All()
	if err != nil {
		return nil, err
	}

	done, err := applied(ctx, db)
	if err != nil {
		return nil, err
	}

	for i := range migrations {
		if at, ok := done[migrations[i].Version]; ok {
			migrations[i].AppliedAt = &at
		}
	}

	return migrations, nil
}

func run(ctx context.Context, db *sql.DB, script, record string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}

	return tx.Commit()
}
