package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ledgerMigrations holds the schema of the exports ledger. Per-key data
// tables are created by SaveTable and are not migrated.
//
//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// RunMigrations applies pending ledger migrations. An up-to-date database is
// left unchanged.
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("ledger migration source: %w", err)
	}

	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: "ledger_migrations"})
	if err != nil {
		return fmt.Errorf("ledger migration target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return fmt.Errorf("ledger migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply ledger migrations: %w", err)
	}
	return nil
}
