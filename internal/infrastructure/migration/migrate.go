package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrDirty is returned when a previous migration failed half way.
// Repair the schema by hand, then Force the last good version.
var ErrDirty = errors.New("schema is dirty")

// Source is the set of migration files to apply
type Source struct {
	name string
	fsys fs.FS
}

// Dir reads migrations from a directory on disk
func Dir(path string) Source {
	return Source{name: path, fsys: os.DirFS(path)}
}

// Embedded reads migrations compiled into the binary
func Embedded(fsys fs.FS) Source {
	return Source{name: "embedded", fsys: fsys}
}

func (s Source) String() string { return s.name }

// Migrator applies the schema migrations to PostgreSQL with golang-migrate.
// Closing it also closes the *sql.DB it was created with.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New creates a Migrator over db
func New(db *sql.DB, src Source, log *zap.Logger) (*Migrator, error) {
	files, err := iofs.New(src.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("open migrations %s: %w", src, err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", files, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLogger{log.Sugar()}
	return &Migrator{m: m, log: log}, nil
}

// Apply opens a dedicated connection to dsn, applies every pending migration
// of src and closes the connection. It returns the resulting version.
func Apply(ctx context.Context, dsn string, src Source, log *zap.Logger) (uint, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return 0, fmt.Errorf("open migration connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("ping migration connection: %w", err)
	}

	m, err := New(db, src, log)
	if err != nil {
		_ = db.Close()
		return 0, err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	if err := m.Up(); err != nil {
		return 0, err
	}
	version, _, err := m.Version()
	return version, err
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	if err := m.refuseDirty(); err != nil {
		return err
	}
	return m.run("up", m.m.Up)
}

// Down rolls back every migration
func (m *Migrator) Down() error {
	return m.run("down", m.m.Down)
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	if err := m.refuseDirty(); err != nil {
		return err
	}
	return m.run(fmt.Sprintf("step %d", n), func() error { return m.m.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	if err := m.refuseDirty(); err != nil {
		return err
	}
	return m.run(fmt.Sprintf("goto %d", version), func() error { return m.m.Migrate(version) })
}

func (m *Migrator) run(name string, step func() error) error {
	err := step()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("Schema already up to date", zap.String("command", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Migration finished",
		zap.String("command", name),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func (m *Migrator) refuseDirty() error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, version)
	}
	return nil
}

// Version returns the applied version, 0 when the schema is empty
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table of the schema
func (m *Migrator) Drop() error {
	m.log.Warn("Dropping every table of the schema")
	if err := m.m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

// Close releases the source and the database
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateLogger routes golang-migrate's progress lines to zap at debug
type migrateLogger struct {
	s *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...any) { l.s.Debugf(format, v...) }

func (l migrateLogger) Verbose() bool { return false }
