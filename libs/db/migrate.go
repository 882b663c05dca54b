package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

// DefaultMigrationsTable is the version table used when none is given.
const DefaultMigrationsTable = "schema_migrations"

// Migrate applies the pending NNN_name.up.sql files found in fsys and returns
// the resulting schema version. The version is tracked in table so services
// sharing a database keep separate histories. A database left dirty by a
// failed migration is reported and must be fixed by hand.
func Migrate(ctx context.Context, pool *Pool, fsys fs.FS, table string) (uint, error) {
	if table == "" {
		table = DefaultMigrationsTable
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}

	// The *sql.DB borrows connections from pool; closing it leaves pool open.
	sqlDB := stdlib.OpenDBFromPool(pool.Pool)
	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{MigrationsTable: table})
	if err != nil {
		_ = src.Close()
		_ = sqlDB.Close()
		return 0, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil {
		var dirty migrate.ErrDirty
		switch {
		case errors.Is(err, migrate.ErrNoChange), errors.Is(err, os.ErrNotExist):
		case errors.As(err, &dirty):
			return uint(dirty.Version), fmt.Errorf("migrate: dirty database version %d", dirty.Version)
		default:
			return 0, fmt.Errorf("migrate: %w", err)
		}
	}

	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
