package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sheets/internal/domain"
	"sheets/internal/metrics"
)

// ─────────────────────────────────────────────────────────────
// Index Repairer: rebuilds the catalog on demand or on a cron schedule
// ─────────────────────────────────────────────────────────────

const EventIndexRepaired = "index:repaired"

const repairTask = "rebuild-index"

// ErrRepairRunning is returned by RunOnce while another rebuild is in progress.
var ErrRepairRunning = errors.New("index rebuild already running")

type IndexRepairer struct {
	store   domain.SheetStore
	emitter EventEmitter
	log     zerolog.Logger
	metrics *metrics.Metrics

	guard taskGuard
	sched *cron.Cron
}

func NewIndexRepairer(store domain.SheetStore, emitter EventEmitter, log zerolog.Logger, m *metrics.Metrics) *IndexRepairer {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &IndexRepairer{store: store, emitter: emitter, log: log, metrics: m}
}

// RunOnce rebuilds the index from the stored sheets.
func (r *IndexRepairer) RunOnce(ctx context.Context) ([]domain.SheetMeta, error) {
	var (
		metas []domain.SheetMeta
		err   error
	)
	if !r.guard.run(repairTask, func() {
		metas, err = r.store.RebuildIndex(ctx)
	}) {
		return nil, ErrRepairRunning
	}
	r.metrics.RecordIndexRepair(err)
	if err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}
	r.log.Info().Int("sheets", len(metas)).Msg("index rebuilt")
	r.emitter.Emit(ctx, EventIndexRepaired, len(metas))
	return metas, nil
}

// Start schedules RunOnce with a standard five-field cron expression.
// Calling Start again replaces the previous schedule.
func (r *IndexRepairer) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrRepairRunning) {
				r.log.Debug().Msg("index repair skipped, previous run still active")
				return
			}
			r.log.Error().Err(err).Msg("scheduled index repair failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid repair schedule %q: %w", schedule, err)
	}

	r.stopScheduler()
	c.Start()
	r.sched = c
	r.log.Info().Str("schedule", schedule).Msg("index repair scheduled")
	return nil
}

// Stop cancels the schedule and waits for a running rebuild, bounded by ctx.
func (r *IndexRepairer) Stop(ctx context.Context) {
	r.stopScheduler()
	if err := r.guard.wait(ctx); err != nil {
		r.log.Warn().Strs("tasks", r.guard.active()).Msg("stopped without waiting for running tasks")
	}
}

func (r *IndexRepairer) stopScheduler() {
	if r.sched != nil {
		r.sched.Stop()
		r.sched = nil
	}
}
