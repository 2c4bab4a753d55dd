package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakhatrans/routegraph/cache"
	"github.com/sakhatrans/routegraph/storage"
)

// ErrPipelineRunning is returned when a run is requested while one is
// already in flight.
var ErrPipelineRunning = errors.New("pipeline already running")

// ErrReinitForbidden guards the destructive reinit flow.
var ErrReinitForbidden = errors.New("reinit is not allowed in production")

// Outcome of one worker within a pipeline run.
type StepReport struct {
	WorkerID string
	Status   string
	Message  string
	Count    int
	Duration time.Duration
}

// Outcome of a full pipeline run.
type RunReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Steps     []StepReport
}

// Orchestrator runs the registered workers in order: ingest, virtual
// augmentation, graph build. A skipped worker does not stop the run; a
// failing worker does. At most one run is in flight at a time.
type Orchestrator struct {
	storage storage.Storage
	cache   cache.Cache
	log     zerolog.Logger

	// Allows Reinit. Never set in production.
	AllowReinit bool

	mu      sync.Mutex
	running bool
	workers []Worker
}

func NewOrchestrator(st storage.Storage, c cache.Cache, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		storage: st,
		cache:   c,
		log:     log.With().Str("module", "pipeline").Logger(),
	}
}

// Appends a worker to the run order.
func (o *Orchestrator) Register(w Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, w)
}

// Worker metadata in registration order.
func (o *Orchestrator) Workers() []Metadata {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Metadata, len(o.workers))
	for i, w := range o.workers {
		out[i] = w.Metadata()
	}
	return out
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Runs the full pipeline once. Returns ErrPipelineRunning if a run is
// already in flight.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrPipelineRunning
	}
	o.running = true
	workers := append([]Worker{}, o.workers...)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	report := &RunReport{StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	for _, w := range workers {
		stepStart := time.Now()

		if ok, reason := w.CanRun(ctx); !ok {
			o.log.Info().Str("worker", w.ID()).Str("reason", reason).Msg("worker skipped")
			report.Steps = append(report.Steps, StepReport{
				WorkerID: w.ID(),
				Status:   StatusSkipped,
				Message:  reason,
				Duration: time.Since(stepStart),
			})
			continue
		}

		res, err := w.Execute(ctx)
		step := StepReport{
			WorkerID: w.ID(),
			Status:   res.Status,
			Message:  res.Message,
			Count:    res.Count,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			step.Status = "error"
			step.Message = err.Error()
			report.Steps = append(report.Steps, step)
			o.log.Error().Err(err).Str("worker", w.ID()).Msg("pipeline aborted")
			return report, fmt.Errorf("worker %s: %w", w.ID(), err)
		}
		report.Steps = append(report.Steps, step)
		o.log.Info().Str("worker", w.ID()).Str("status", res.Status).
			Int("count", res.Count).Msg("worker finished")
	}

	return report, nil
}

// Cancels the in-flight run, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	workers := append([]Worker{}, o.workers...)
	o.mu.Unlock()

	for _, w := range workers {
		w.Cancel()
	}
}

// Wipes storage and cache, then runs the pipeline from scratch.
// Guarded by AllowReinit; production deployments never enable it.
func (o *Orchestrator) Reinit(ctx context.Context) (*RunReport, error) {
	if !o.AllowReinit {
		return nil, ErrReinitForbidden
	}

	o.log.Warn().Msg("reinitializing: wiping storage and cache")
	if err := o.storage.Clear(); err != nil {
		return nil, fmt.Errorf("clearing storage: %w", err)
	}
	if err := o.cache.DeleteByPattern(ctx, "*"); err != nil {
		return nil, fmt.Errorf("clearing cache: %w", err)
	}

	return o.Run(ctx)
}
