package migrations

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"

	"ms-seating/internal/config"
	"ms-seating/internal/logger"
)

// SchemaVersion is the last migration that only creates schema. Later
// versions seed the catalog and seats.
const SchemaVersion uint = 1

type MigrateOptions struct {
	MigrationsDir string
	// AutoMigrate runs migrations on service startup.
	AutoMigrate bool
	// SeedData also applies the versions after SchemaVersion.
	SeedData bool
}

func OptionsFrom(cfg config.MigrationsConfig) MigrateOptions {
	return MigrateOptions{
		MigrationsDir: cfg.Dir,
		AutoMigrate:   cfg.Auto,
		SeedData:      cfg.Seed,
	}
}

// Runner applies the SQL files in MigrationsDir to a Postgres database.
type Runner struct {
	db   *bun.DB
	opts MigrateOptions
	log  *logger.Logger
	m    *migrate.Migrate
}

func NewRunner(db *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{db: db, opts: opts, log: log}
}

// Initialize opens the migration source and driver. Every other method
// calls it, so calling it directly is optional.
func (r *Runner) Initialize() error {
	if r.m != nil {
		return nil
	}
	if _, err := os.Stat(r.opts.MigrationsDir); err != nil {
		return fmt.Errorf("migrations directory %s: %w", r.opts.MigrationsDir, err)
	}

	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+r.opts.MigrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	r.m = m
	return nil
}

// apply runs step and treats "no change" as success.
func (r *Runner) apply(name string, step func(m *migrate.Migrate) error) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	if err := step(r.m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	if v, dirty, ok, err := r.Version(); err == nil && ok {
		r.log.Info("MIGRATE", fmt.Sprintf("%s done, schema at version %d (dirty: %t)", name, v, dirty))
	}
	return nil
}

// RunMigrations brings the schema up to SchemaVersion, or to the latest
// version when SeedData is set. A dirty version is forced clean first.
func (r *Runner) RunMigrations() error {
	version, dirty, ok, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		r.log.Warn("MIGRATE", fmt.Sprintf("Schema version %d is dirty, forcing it clean", version))
		if err := r.m.Force(int(version)); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
	}

	switch {
	case r.opts.SeedData:
		return r.apply("up", (*migrate.Migrate).Up)
	case !ok || version < SchemaVersion:
		return r.MigrateTo(SchemaVersion)
	default:
		r.log.Info("MIGRATE", fmt.Sprintf("Schema at version %d, nothing to do", version))
		return nil
	}
}

func (r *Runner) MigrateUp() error {
	return r.apply("up", (*migrate.Migrate).Up)
}

func (r *Runner) MigrateDown() error {
	return r.apply("down", (*migrate.Migrate).Down)
}

func (r *Runner) MigrateTo(version uint) error {
	return r.apply(fmt.Sprintf("to %d", version), func(m *migrate.Migrate) error {
		return m.Migrate(version)
	})
}

// Version reports the applied version; ok is false on an empty database.
func (r *Runner) Version() (version uint, dirty bool, ok bool, err error) {
	if err := r.Initialize(); err != nil {
		return 0, false, false, err
	}
	version, dirty, err = r.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, false, nil
	case err != nil:
		return 0, false, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, true, nil
}

// Close releases the migrator. The postgres driver closes the *sql.DB it
// was built on, so a long-running service should not call it.
func (r *Runner) Close() error {
	if r.m == nil {
		return nil
	}
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}
