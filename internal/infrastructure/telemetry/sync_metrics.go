package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/integration"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor receives no meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records the outcome of reconciliation runs.
type SyncMetrics struct {
	runsTotal      *Counter
	itemsTotal     *Counter
	variantsTotal  *Counter
	pagesTotal     *Counter
	lockContention *Counter
	runDuration    *Histogram
}

// NewSyncMetrics registers the sync instruments on the meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	var err error
	if m.runsTotal, err = NewCounter(meter, "catalog_sync_runs_total", "Finalized reconciliation runs", "{runs}"); err != nil {
		return nil, err
	}
	if m.itemsTotal, err = NewCounter(meter, "catalog_sync_items_total", "Top-level catalog items by outcome", "{items}"); err != nil {
		return nil, err
	}
	if m.variantsTotal, err = NewCounter(meter, "catalog_sync_variants_total", "Variants by outcome", "{variants}"); err != nil {
		return nil, err
	}
	if m.pagesTotal, err = NewCounter(meter, "catalog_sync_pages_total", "Remote catalog pages by outcome", "{pages}"); err != nil {
		return nil, err
	}
	if m.lockContention, err = NewCounter(meter, "catalog_sync_lock_contention_total", "Run triggers rejected because a run was in progress", "{triggers}"); err != nil {
		return nil, err
	}
	m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalog_sync_run_duration_seconds",
		Description: "Wall time of finalized reconciliation runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records a finalized run.
func (m *SyncMetrics) RecordRun(ctx context.Context, run *integration.SyncRun) {
	trigger := AttrTrigger.String(string(run.TriggerType))
	status := AttrStatus.String(string(run.Status))

	m.runsTotal.Inc(ctx, trigger, status, AttrErrorKind.String(string(run.ErrorKind)))
	m.runDuration.RecordDuration(ctx, run.Duration(), trigger, status)

	s := run.Stats
	m.addOutcomes(ctx, m.itemsTotal, map[string]int{
		"created":     s.Created,
		"updated":     s.Updated,
		"skipped":     s.Skipped,
		"deactivated": s.Deactivated,
		"failed":      s.Failed,
	})
	m.addOutcomes(ctx, m.variantsTotal, map[string]int{
		"created":      s.VariantsCreated,
		"updated":      s.VariantsUpdated,
		"skipped":      s.VariantsSkipped,
		"fetch_failed": s.VariantFetchFailures,
	})
	m.addOutcomes(ctx, m.pagesTotal, map[string]int{
		"fetched": s.PagesFetched,
		"skipped": s.PagesSkipped,
	})
}

// RecordLockContention counts a trigger that found another run in progress.
func (m *SyncMetrics) RecordLockContention(ctx context.Context, trigger integration.TriggerType) {
	m.lockContention.Inc(ctx, AttrTrigger.String(string(trigger)))
}

func (m *SyncMetrics) addOutcomes(ctx context.Context, c *Counter, outcomes map[string]int) {
	for outcome, n := range outcomes {
		if n > 0 {
			c.Add(ctx, int64(n), AttrOutcome.String(outcome))
		}
	}
}

// RegisterDBPoolMetrics exposes connection pool usage as observable gauges.
func RegisterDBPoolMetrics(meter metric.Meter, stats func() sql.DBStats) error {
	if meter == nil {
		return ErrMeterNil
	}

	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Database pool connections by state"),
		metric.WithUnit("{connections}"))
	if err != nil {
		return fmt.Errorf("failed to create gauge db_pool_connections: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_count",
		metric.WithDescription("Connections waited for since start"),
		metric.WithUnit("{waits}"))
	if err != nil {
		return fmt.Errorf("failed to create counter db_pool_wait_count: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(connections, int64(s.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, connections, waits)
	return err
}
