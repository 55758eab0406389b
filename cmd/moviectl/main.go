package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// openDB 测试中替换为 sqlmock
var openDB = func(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

type cli struct {
	dsn string
}

func (c *cli) db() (*sql.DB, error) {
	if c.dsn == "" {
		c.dsn = os.Getenv("MOVIEMATIC_DB__DSN")
	}
	if c.dsn == "" {
		return nil, fmt.Errorf("database dsn must be provided with --db-dsn or MOVIEMATIC_DB__DSN")
	}
	return openDB(c.dsn)
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "moviectl",
		Short:         "moviectl manages the moviematic database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.dsn, "db-dsn", "", "PostgreSQL DSN")

	root.AddCommand(c.migrateCmd(), c.userCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
