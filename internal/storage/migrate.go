package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"pft/internal/log"
)

// Every state migration must be safe to re-run (IF NOT EXISTS and friends):
// a step interrupted mid-way is replayed rather than repaired by hand.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateState brings the kv schema of the state file at dbPath up to date
// and returns the schema version it ends on.
func MigrateState(dbPath string, logger *log.Logger) (uint, error) {
	logger = log.OrNop(logger)

	// Own connection: closing the migrator closes its database handle.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open state file for schema upgrade: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("attach state schema driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load state schema steps: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("prepare state schema upgrade: %w", err)
	}
	defer m.Close()

	if err := replayDirty(m, src, logger); err != nil {
		return 0, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("upgrade state schema: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read state schema version: %w", err)
	}
	return version, nil
}

// replayDirty rewinds a step left dirty by an interrupted upgrade so the
// following Up applies it again.
func replayDirty(m *migrate.Migrate, src source.Driver, logger *log.Logger) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) || (err == nil && !dirty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state schema version: %w", err)
	}

	target := -1
	prev, err := src.Prev(version)
	switch {
	case err == nil:
		target = int(prev)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("find step before %d: %w", version, err)
	}

	logger.Warn("Replaying interrupted state schema step", "version", version)
	if err := m.Force(target); err != nil {
		return fmt.Errorf("rewind state schema to %d: %w", target, err)
	}
	return nil
}
