package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupTracedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := setupTracedDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, zap.NewNop()))

	assert.Nil(t, db.Callback().Create().Get("catalogsync:annotate_create"))
}

func TestRegisterDBTracing_AnnotatesSpans(t *testing.T) {
	db := setupTracedDB(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{
		Enabled:        true,
		DBName:         "catalogsync",
		TracerProvider: tp,
	}, zap.NewNop()))
	assert.NotNil(t, db.Callback().Create().Get("catalogsync:annotate_create"))

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)

	var table string
	for _, span := range sr.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == "db.sql.table" {
				table = attr.Value.AsString()
			}
		}
	}
	assert.Equal(t, "traced_rows", table)
}
