package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger routes gorm's log output into zap. Statement traces carry the
// request and trace fields of the query's context.
type SQLLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	// SlowThreshold marks queries logged at warn; zero disables the check
	SlowThreshold time.Duration
	// LogNotFound also reports gorm.ErrRecordNotFound, which repositories
	// translate into domain errors and is normally noise
	LogNotFound bool
}

// NewGormLogger creates a gorm logger that writes to base under the "gorm" name
func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel) *SQLLogger {
	return &SQLLogger{
		base:          base.Named("gorm"),
		level:         level,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// LogMode returns a copy at level
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, at gormlogger.LogLevel, msg string, data []any) {
	if l.level < at {
		return
	}
	log := Enrich(ctx, l.base)
	text := fmt.Sprintf(msg, data...)
	switch at {
	case gormlogger.Error:
		log.Error(text)
	case gormlogger.Warn:
		log.Warn(text)
	default:
		log.Info(text)
	}
}

// Trace reports failed statements at error, slow ones at warn, and every
// statement at debug when the level is Info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	var at gormlogger.LogLevel
	switch {
	case err != nil && (l.LogNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound)):
		at = gormlogger.Error
	case slow:
		at = gormlogger.Warn
	default:
		at = gormlogger.Info
	}
	if l.level < at {
		return
	}

	sql, rows := fc()
	log := Enrich(ctx, l.base).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql))
	switch at {
	case gormlogger.Error:
		log.Error("SQL Error", zap.Error(err))
	case gormlogger.Warn:
		log.Warn("Slow SQL", zap.Duration("threshold", l.SlowThreshold))
	default:
		log.Debug("SQL Query")
	}
}

// MapGormLogLevel maps the application log level to a gorm level. Statements
// are only traced at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
