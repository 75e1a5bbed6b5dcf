//go:build integration

// Package integration runs the persistence layer against a real PostgreSQL
// started with testcontainers. Run with: go test -tags integration ./tests/...
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mobilsoft/connectors/internal/infrastructure/config"
	"github.com/mobilsoft/connectors/internal/infrastructure/logger"
	"github.com/mobilsoft/connectors/internal/infrastructure/migration"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence"
	"github.com/mobilsoft/connectors/migrations"
)

const (
	testDBName   = "connectors_test"
	testDBUser   = "connectors"
	testDBSecret = "connectors"
)

// TestDB is a migrated database in a throwaway container, opened with the
// same settings as the server
type TestDB struct {
	DB     *gorm.DB
	Config config.DatabaseConfig

	db        *persistence.Database
	container *tcpostgres.PostgresContainer
}

// NewTestDB starts PostgreSQL, applies the embedded migrations and opens the
// pool. Everything is released when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBSecret),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")
	tdb := &TestDB{container: container}
	t.Cleanup(func() { tdb.close(t) })

	tdb.Config = containerConfig(ctx, t, container)

	version, err := migration.Apply(ctx, tdb.Config.DSN(), migration.Embedded(migrations.FS), zap.NewNop())
	require.NoError(t, err, "apply migrations")
	require.NotZero(t, version)

	tdb.db, err = persistence.Open(ctx, &tdb.Config, sqlLogger(t))
	require.NoError(t, err, "open database")
	tdb.DB = tdb.db.DB
	return tdb
}

func containerConfig(ctx context.Context, t *testing.T, c *tcpostgres.PostgresContainer) config.DatabaseConfig {
	t.Helper()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         testDBUser,
		Password:     testDBSecret,
		DBName:       testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

// sqlLogger logs statements to the test output when TEST_DB_DEBUG is set
func sqlLogger(t *testing.T) gormlogger.Interface {
	if os.Getenv("TEST_DB_DEBUG") == "" {
		return gormlogger.Discard
	}
	return logger.NewGormLogger(zaptest.NewLogger(t), logger.GormConfig{Level: gormlogger.Info})
}

func (tdb *TestDB) close(t *testing.T) {
	if tdb.db != nil {
		_ = tdb.db.Close()
	}
	if err := tdb.container.Terminate(context.Background()); err != nil {
		t.Logf("terminate postgres container: %v", err)
	}
}
