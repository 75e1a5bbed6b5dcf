package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

// newPingMockDatabase monitors pings, so gorm's automatic ping on open is disabled
func newPingMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return &Database{DB: gormDB}, mock
}

func TestDatabase_PingAndClose(t *testing.T) {
	db, mock := newPingMockDatabase(t)

	mock.ExpectPing()
	mock.ExpectClose()

	assert.NoError(t, db.PingContext(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PingFailure(t *testing.T) {
	db, mock := newPingMockDatabase(t)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	assert.ErrorContains(t, db.PingContext(context.Background()), "connection refused")
}

func TestDatabase_RegisterPoolMetrics(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	mockDB.SetMaxOpenConns(7)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	require.NoError(t, db.RegisterPoolMetrics(provider.Meter("test")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["db.client.connections.open"])
	assert.True(t, names["db.client.connections.in_use"])
	assert.True(t, names["db.client.connections.waits"])

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 7, stats.MaxOpenConnections)
}

func TestGormStatementLineRepository_PostgresUniqueViolation(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormStatementLineRepository(db.DB)
	account := &banking.BankAccount{BaseEntity: shared.NewBaseEntity(), ExternalAccountID: "A-1"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "statement_lines"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), newTestLine(t, account, "TX-001"))

	assert.ErrorIs(t, err, shared.ErrDuplicateIgnored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueViolation(assertError("UNIQUE constraint failed: statement_lines.bank_import_ref")))
	assert.False(t, isUniqueViolation(assert.AnError))
}

type assertError string

func (e assertError) Error() string { return string(e) }
