package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig selects the database instrumentation
type DBConfig struct {
	// Tracing registers otelgorm spans for every statement
	Tracing bool
	// LogFullSQL keeps bound variables in span statements; development only
	LogFullSQL bool
	// DBSystem names the database in spans
	DBSystem string
}

// InstrumentDB adds query tracing and query metrics to db
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) error {
	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	if meter == nil {
		return nil
	}
	plugin, err := NewDBMetricsPlugin(meter, logger)
	if err != nil {
		return err
	}
	if err := db.Use(plugin); err != nil {
		return err
	}
	logger.Info("database instrumentation enabled",
		zap.Bool("tracing", cfg.Tracing),
		zap.String("db_system", cfg.DBSystem),
	)
	return nil
}

// ---------------------------------------------------------------------------
// DBMetricsPlugin
// ---------------------------------------------------------------------------

type dbStartKey struct{}

// DBMetricsPlugin is a GORM plugin counting queries and their latency
type DBMetricsPlugin struct {
	queries  *Counter
	errors   *Counter
	duration *Histogram
	logger   *zap.Logger
}

// NewDBMetricsPlugin creates the plugin's instruments on meter
func NewDBMetricsPlugin(meter metric.Meter, logger *zap.Logger) (*DBMetricsPlugin, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DBMetricsPlugin{logger: logger}
	var err error
	if p.queries, err = NewCounter(meter, "catalogsync_db_query_total", "Database statements executed", "{queries}"); err != nil {
		return nil, err
	}
	if p.errors, err = NewCounter(meter, "catalogsync_db_query_errors_total", "Database statements that failed", "{queries}"); err != nil {
		return nil, err
	}
	if p.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync_db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// Name implements gorm.Plugin
func (p *DBMetricsPlugin) Name() string {
	return "catalogsync:db_metrics"
}

// Initialize implements gorm.Plugin
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	after := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.after(db, op) }
	}
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("db_metrics:before_create", p.before) },
		func() error { return cb.Query().Before("gorm:query").Register("db_metrics:before_query", p.before) },
		func() error { return cb.Update().Before("gorm:update").Register("db_metrics:before_update", p.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", p.before) },
		func() error { return cb.Row().Before("gorm:row").Register("db_metrics:before_row", p.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", p.before) },
		func() error { return cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT")) },
		func() error { return cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT")) },
		func() error { return cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE")) },
		func() error { return cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE")) },
		func() error { return cb.Row().After("gorm:row").Register("db_metrics:after_row", after("")) },
		func() error { return cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", after("")) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func (p *DBMetricsPlugin) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbStartKey{}, time.Now())
}

func (p *DBMetricsPlugin) after(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if op == "" {
		op = statementOperation(db.Statement.SQL.String())
	}
	attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table)}
	p.queries.Inc(ctx, attrs...)
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		p.errors.Inc(ctx, attrs...)
	}
	if started, ok := ctx.Value(dbStartKey{}).(time.Time); ok {
		p.duration.RecordDuration(ctx, time.Since(started), attrs...)
	}
}

func statementOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	default:
		return "OTHER"
	}
}
