package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mobilsoft/connectors/internal/infrastructure/config"
)

// Database owns the GORM handle shared by every repository
type Database struct {
	DB *gorm.DB
}

// Open connects to PostgreSQL, sizes the pool from cfg and pings within ctx.
// Constraint violations surface as gorm.ErrDuplicatedKey through TranslateError.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log gormlogger.Interface) (*Database, error) {
	if log == nil {
		log = gormlogger.Discard
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 log,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Database{DB: db}
	sqlDB, err := d.sqlDB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.DBName, err)
	}
	return d, nil
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close closes the pool
func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PingContext is the database health probe
func (d *Database) PingContext(ctx context.Context) error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns the pool statistics
func (d *Database) Stats() (sql.DBStats, error) {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// RegisterPoolMetrics exports the pool statistics as observable gauges,
// read on every collection
func (d *Database) RegisterPoolMetrics(meter metric.Meter) error {
	open, err := meter.Int64ObservableGauge("db.client.connections.open",
		metric.WithDescription("Open connections in the pool"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	inUse, err := meter.Int64ObservableGauge("db.client.connections.in_use",
		metric.WithDescription("Connections currently checked out"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db.client.connections.waits",
		metric.WithDescription("Times a caller waited for a free connection"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats, err := d.Stats()
		if err != nil {
			return err
		}
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, open, inUse, waits)
	return err
}
