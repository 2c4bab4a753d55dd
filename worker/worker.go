package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outcome of one worker run. A "skipped" status lets the pipeline
// continue; only errors abort it.
type Result struct {
	Status  string
	Message string
	Count   int

	// ID of the worker that should run next, if any.
	Next string
}

const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
)

// Run bookkeeping for a worker.
type Metadata struct {
	ID           string
	Runs         int
	LastRun      time.Time
	LastStatus   string
	LastDuration time.Duration
	LastCount    int
	LastError    string
}

// A pipeline stage. Execute does the work; CanRun gates it (cooldown,
// feature flags); Cancel aborts an in-flight run at its next
// suspension point.
type Worker interface {
	ID() string
	Execute(ctx context.Context) (Result, error)
	CanRun(ctx context.Context) (bool, string)
	Cancel()
	Metadata() Metadata
}

// Shared bookkeeping composed into each worker.
type base struct {
	id  string
	log zerolog.Logger

	mu     sync.Mutex
	md     Metadata
	cancel context.CancelFunc
}

func newBase(id string, log zerolog.Logger) base {
	return base{
		id:  id,
		log: log.With().Str("worker", id).Logger(),
		md:  Metadata{ID: id},
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Metadata() Metadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.md
}

func (b *base) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// Wraps the run context so Cancel can abort it.
func (b *base) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return ctx, cancel
}

// Records the outcome of a run.
func (b *base) finish(start time.Time, res Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.md.Runs++
	b.md.LastRun = start
	b.md.LastDuration = time.Since(start)
	b.md.LastCount = res.Count
	b.md.LastError = ""
	if err != nil {
		b.md.LastStatus = "error"
		b.md.LastError = err.Error()
	} else {
		b.md.LastStatus = res.Status
	}
	b.cancel = nil
}
