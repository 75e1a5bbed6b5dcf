package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observedGorm(cfg GormConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func selectLines() (string, int64) {
	return "SELECT * FROM statement_lines WHERE bank_account_id = 'a1'", 12
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := observedGorm(GormConfig{Level: gormlogger.Warn})
	assert.Equal(t, DefaultSlowQuery, gl.cfg.SlowThreshold)

	gl, _ = observedGorm(GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Second})
	assert.Equal(t, time.Second, gl.cfg.SlowThreshold)
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	gl, _ := observedGorm(GormConfig{Level: gormlogger.Info})

	quiet, ok := gl.LogMode(gormlogger.Silent).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Silent, quiet.cfg.Level)
	assert.Equal(t, gormlogger.Info, gl.cfg.Level)
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := observedGorm(GormConfig{Level: gormlogger.Warn})
	ctx := context.Background()

	gl.Info(ctx, "migrated %d tables", 3)
	gl.Warn(ctx, "pool at %d%%", 90)
	gl.Error(ctx, "lost connection to %s", "postgres")

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "pool at 90%", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
	assert.Equal(t, "lost connection to postgres", logs[1].Message)
	assert.Equal(t, "gorm", logs[1].LoggerName)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		cfg       GormConfig
		age       time.Duration
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{"failed statement", GormConfig{Level: gormlogger.Warn}, 0, errors.New("connection reset"), "SQL error", zapcore.ErrorLevel},
		{"not found is quiet", GormConfig{Level: gormlogger.Info}, 0, gorm.ErrRecordNotFound, "", 0},
		{"not found when asked", GormConfig{Level: gormlogger.Warn, LogNotFound: true}, 0, gorm.ErrRecordNotFound, "SQL error", zapcore.ErrorLevel},
		{"duplicate is debug", GormConfig{Level: gormlogger.Warn}, 0, gorm.ErrDuplicatedKey, "SQL duplicate key", zapcore.DebugLevel},
		{"duplicate when asked", GormConfig{Level: gormlogger.Warn, LogDuplicates: true}, 0, gorm.ErrDuplicatedKey, "SQL error", zapcore.ErrorLevel},
		{"slow statement", GormConfig{Level: gormlogger.Warn, SlowThreshold: 10 * time.Millisecond}, 50 * time.Millisecond, nil, "Slow SQL", zapcore.WarnLevel},
		{"plain statement at info", GormConfig{Level: gormlogger.Info}, 0, nil, "SQL", zapcore.DebugLevel},
		{"plain statement at warn", GormConfig{Level: gormlogger.Warn}, 0, nil, "", 0},
		{"silent drops errors", GormConfig{Level: gormlogger.Silent}, 0, errors.New("boom"), "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := observedGorm(tt.cfg)
			gl.Trace(context.Background(), time.Now().Add(-tt.age), selectLines, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantMsg, logs[0].Message)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			assert.Equal(t, int64(12), logs[0].ContextMap()["rows"])
		})
	}
}

func TestGormLogger_Trace_RunContext(t *testing.T) {
	gl, recorded := observedGorm(GormConfig{Level: gormlogger.Info})

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-1")
	ctx, _ = WithRun(ctx, zap.NewNop(), "run-1", "bank_connector", "conn-1")
	gl.Trace(ctx, time.Now(), selectLines, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "run-1", fields["run_id"])
}

func TestGormLevel(t *testing.T) {
	for level, want := range map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"verbose": gormlogger.Warn,
		"":        gormlogger.Warn,
	} {
		assert.Equal(t, want, GormLevel(level), level)
	}
}
