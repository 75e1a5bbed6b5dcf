package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery is the threshold used when GormConfig leaves it zero
const DefaultSlowQuery = 200 * time.Millisecond

// GormConfig tunes the SQL logger
type GormConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LogNotFound reports gorm.ErrRecordNotFound as an error. Lookups of
	// optional rows (a source without a run yet) return it routinely.
	LogNotFound bool
	// LogDuplicates reports unique violations as errors instead of debug.
	// Re-imported statement lines collide on bank_import_ref and are skipped.
	LogDuplicates bool
}

// GormLogger writes GORM statements to zap, tagged with the request and run
// of the calling context
type GormLogger struct {
	log *zap.Logger
	cfg GormConfig
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GORM logger named "gorm" under log
func NewGormLogger(log *zap.Logger, cfg GormConfig) *GormLogger {
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = DefaultSlowQuery
	}
	return &GormLogger{log: log.Named("gorm"), cfg: cfg}
}

// GormLevel maps the application log level onto GORM's levels.
// SQL text is only logged at debug and info.
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace logs failed statements at error, slow ones at warn and, at Info level,
// every other statement at debug
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) && !l.cfg.LogNotFound:
			return
		case errors.Is(err, gorm.ErrDuplicatedKey) && !l.cfg.LogDuplicates:
			l.log.Debug("SQL duplicate key", l.fields(ctx, elapsed, fc)...)
			return
		}
		l.log.Error("SQL error", append(l.fields(ctx, elapsed, fc), zap.Error(err))...)

	case elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		l.log.Warn("Slow SQL", append(l.fields(ctx, elapsed, fc), zap.Duration("threshold", l.cfg.SlowThreshold))...)

	case l.cfg.Level >= gormlogger.Info:
		l.log.Debug("SQL", l.fields(ctx, elapsed, fc)...)
	}
}

func (l *GormLogger) fields(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	fields := make([]zap.Field, 0, 5)
	fields = append(fields,
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetRunID(ctx); id != "" {
		fields = append(fields, zap.String("run_id", id))
	}
	return fields
}
