package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFiles embed.FS

// MigrationsTable records the applied schema version.
const MigrationsTable = "intake_schema_migrations"

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies the embedded schema for the dialect. An already current
// schema is not an error.
func Migrate(db *sql.DB, d Dialect, dir Direction) error {
	m, err := newMigrator(db, d)
	if err != nil {
		return err
	}
	// Closing m would also close db, which the caller owns.

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unsupported migration direction: %s", dir)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s (%s): %w", dir, d, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		slog.Warn("could not read schema version", "error", verr)
	}
	slog.Info("schema migrated", "dialect", d, "direction", dir, "version", version, "dirty", dirty)
	return nil
}

func newMigrator(db *sql.DB, d Dialect) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations/"+string(d))
	if err != nil {
		return nil, fmt.Errorf("load %s migrations: %w", d, err)
	}

	var driver migratedb.Driver
	switch d {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	case MySQL:
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: MigrationsTable})
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", d)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s migration driver: %w", d, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(d), driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
