package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig holds database instrumentation options.
type DBConfig struct {
	Tracing         bool
	LogFullSQL      bool          // include bind variables in spans; never in production
	SlowQueryThresh time.Duration // Default: 200ms
	DBSystem        string        // Default: "postgresql"
	PoolInterval    time.Duration // Default: 15s
}

// DBInstrumentation traces GORM statements, flags slow ones and reports query
// and connection pool metrics.
type DBInstrumentation struct {
	config DBConfig
	logger *zap.Logger

	queryTotal      *Counter
	queryErrors     *Counter
	slowQueries     *Counter
	queryDuration   *Histogram
	poolConnections *Gauge

	stopChan chan struct{}
	stopOnce sync.Once
}

type queryStartKey struct{}

// NewDBInstrumentation creates the database instruments on meter.
func NewDBInstrumentation(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	if cfg.PoolInterval <= 0 {
		cfg.PoolInterval = 15 * time.Second
	}

	d := &DBInstrumentation{config: cfg, logger: logger, stopChan: make(chan struct{})}
	var err error
	if d.queryTotal, err = NewCounter(meter, "db_query_total", "Total number of database statements", "{queries}"); err != nil {
		return nil, err
	}
	if d.queryErrors, err = NewCounter(meter, "db_query_errors_total", "Database statements that failed", "{queries}"); err != nil {
		return nil, err
	}
	if d.slowQueries, err = NewCounter(meter, "db_slow_query_total", "Database statements slower than the threshold", "{queries}"); err != nil {
		return nil, err
	}
	if d.queryDuration, err = NewHistogram(meter, "db_query_duration_seconds", "Database statement duration", "s", DBDurationBuckets); err != nil {
		return nil, err
	}
	if d.poolConnections, err = NewGauge(meter, "db_pool_connections", "Connections in the pool by state", "{connections}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Register installs the otelgorm plugin (when tracing is on) and the timing
// callbacks on db.
func (d *DBInstrumentation) Register(db *gorm.DB) error {
	if d.config.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.config.DBSystem)}
		if !d.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("printmarket:before_"+h.op, d.before); err != nil {
			return err
		}
		if err := h.after("printmarket:after_"+h.op, d.after(h.op)); err != nil {
			return err
		}
	}

	d.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", d.config.Tracing),
		zap.Bool("log_full_sql", d.config.LogFullSQL),
		zap.Duration("slow_query_threshold", d.config.SlowQueryThresh))
	return nil
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (d *DBInstrumentation) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		operation := statementOperation(op, db.Statement.SQL.String())
		opAttr := AttrDBOperation.String(operation)
		d.queryTotal.Inc(ctx, opAttr)

		failed := db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound)
		if failed {
			d.queryErrors.Inc(ctx, opAttr)
		}

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		d.queryDuration.RecordDuration(ctx, elapsed, opAttr)
		if elapsed <= d.config.SlowQueryThresh {
			return
		}

		d.slowQueries.Inc(ctx, AttrDBTable.String(db.Statement.Table))
		span := trace.SpanFromContext(ctx)
		if span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", d.config.SlowQueryThresh.Milliseconds()),
			))
		}
		d.logger.Warn("Slow database query",
			zap.String("operation", operation),
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed))
	}
}

// statementOperation names raw and row statements by their SQL verb
func statementOperation(op, sqlText string) string {
	if op != "raw" && op != "row" {
		return op
	}
	verb, _, _ := strings.Cut(strings.TrimSpace(sqlText), " ")
	switch v := strings.ToLower(verb); v {
	case "select", "insert", "update", "delete", "with":
		return v
	}
	return op
}

// StartPoolStats reports pool connection counts every PoolInterval until ctx
// ends or Stop is called.
func (d *DBInstrumentation) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	go func() {
		ticker := time.NewTicker(d.config.PoolInterval)
		defer ticker.Stop()
		for {
			d.RecordPoolStats(ctx, sqlDB.Stats())
			select {
			case <-ctx.Done():
				return
			case <-d.stopChan:
				return
			case <-ticker.C:
			}
		}
	}()
}

// RecordPoolStats records one snapshot of pool statistics.
func (d *DBInstrumentation) RecordPoolStats(ctx context.Context, stats sql.DBStats) {
	d.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	d.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	d.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
	d.poolConnections.Record(ctx, int64(stats.MaxOpenConnections), AttrDBState.String("max"))
}

// Stop ends pool stats collection.
func (d *DBInstrumentation) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}
