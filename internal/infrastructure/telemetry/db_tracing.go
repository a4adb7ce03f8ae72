package telemetry

import (
	"errors"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled        bool
	DBName         string
	WithVariables  bool // include bound values in span statements (development only)
	TracerProvider trace.TracerProvider
}

// RegisterDBTracing installs the otelgorm plugin and a callback that annotates
// each statement span with the table and affected rows before it ends.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.WithVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	registrations := []error{
		cb.Create().After("gorm:create").Before("otel:after_create").Register("catalogsync:annotate_create", annotateSpan),
		cb.Query().After("gorm:query").Before("otel:after_query").Register("catalogsync:annotate_query", annotateSpan),
		cb.Update().After("gorm:update").Before("otel:after_update").Register("catalogsync:annotate_update", annotateSpan),
		cb.Delete().After("gorm:delete").Before("otel:after_delete").Register("catalogsync:annotate_delete", annotateSpan),
		cb.Raw().After("gorm:raw").Before("otel:after_raw").Register("catalogsync:annotate_raw", annotateSpan),
	}
	if err := errors.Join(registrations...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.String("db_name", cfg.DBName), zap.Bool("with_variables", cfg.WithVariables))
	return nil
}

func annotateSpan(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
