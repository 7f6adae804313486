package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrator is the part of *migrate.Migrate that Migrate uses.
type Migrator interface {
	Up() error
	Close() (error, error)
}

// Engine opens a Migrator for the embedded migrations against databaseURL.
type Engine func(databaseURL string) (Migrator, error)

func DefaultEngine(databaseURL string) (Migrator, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}

	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// Migrate brings the remote schema up to date. An already current schema is
// not an error.
func Migrate(engine Engine, databaseURL string) (err error) {
	m, err := engine(databaseURL)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	defer func() {
		serr, dberr := m.Close()
		if err == nil {
			err = errors.Join(serr, dberr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
