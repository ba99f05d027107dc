package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"
)

// WorkerConfig holds the optional parts of a Worker.
type WorkerConfig struct {
	// Concurrency is the number of jobs executed in parallel (default 1).
	Concurrency int
	// ErrorBackoff is the pause after a failed dequeue (default 1s).
	ErrorBackoff time.Duration
	Logger       *slog.Logger
	Metrics      Metrics
	Events       Publisher
}

// Worker pulls job ids off the queue and drives each record to a terminal state.
type Worker struct {
	store     Store
	queue     Queue
	catalog   Catalog
	completer Completer
	cfg       WorkerConfig
	logger    *slog.Logger
	metrics   Metrics
	now       func() time.Time
}

// NewWorker wires a Worker. The zero WorkerConfig is usable.
func NewWorker(store Store, queue Queue, catalog Catalog, completer Completer, cfg WorkerConfig) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Worker{
		store:     store,
		queue:     queue,
		catalog:   catalog,
		completer: completer,
		cfg:       cfg,
		logger:    logger.With("component", "worker"),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run starts Concurrency loops and blocks until ctx is cancelled and every
// in-flight job has been written back.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "concurrency", w.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", "slot", slot, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
			continue
		}
		if id == "" {
			continue
		}
		// In-flight jobs outlive shutdown so they still reach a terminal state.
		w.Process(context.WithoutCancel(ctx), id)
	}
}

// Process claims and executes one job. Redelivered ids whose record is no
// longer PENDING are skipped. It never panics and never returns an error:
// every failure ends up in the record or the log.
func (w *Worker) Process(ctx context.Context, id string) {
	log := w.logger.With("job_id", id)

	claimed, err := w.store.Claim(ctx, id, w.now())
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			log.Warn("dequeued job has no record, skipping")
			return
		}
		log.Error("claim failed", "error", err)
		return
	}
	if !claimed {
		log.Debug("job already claimed, skipping")
		return
	}

	rec, err := w.store.Get(ctx, id)
	if err != nil {
		log.Error("load claimed job failed", "error", err)
		w.finish(ctx, log, id, failed("", fmt.Sprintf("load job: %v", err), w.now()), nil, 0)
		return
	}

	start := time.Now()
	outcome := w.execute(ctx, rec)
	w.finish(ctx, log, id, outcome, rec, time.Since(start))
}

// execute turns the remote call into an Outcome, converting panics to FAILURE.
func (w *Worker) execute(ctx context.Context, rec *Record) (out Outcome) {
	model := rec.Model
	defer func() {
		if r := recover(); r != nil {
			out = failed(model, fmt.Sprintf("worker panic: %v", r), w.now())
		}
	}()

	model, err := w.resolveModel(ctx, rec)
	if err != nil {
		return failed(model, err.Error(), w.now())
	}

	text, err := w.completer.Complete(ctx, model, rec.Prompt, rec.Stream)
	if err != nil {
		return failed(model, fmt.Sprintf("completion failed: %v", err), w.now())
	}
	return succeeded(model, text, w.now())
}

// resolveModel checks the target against the catalog as it is now.
func (w *Worker) resolveModel(ctx context.Context, rec *Record) (string, error) {
	if rec.ModelIndex == nil {
		ok, err := w.catalog.Exists(ctx, rec.Model)
		if err != nil {
			return rec.Model, fmt.Errorf("lookup model %q: %w", rec.Model, err)
		}
		if !ok {
			return rec.Model, fmt.Errorf("model %q is not in the catalog", rec.Model)
		}
		return rec.Model, nil
	}

	models, err := w.catalog.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	idx := *rec.ModelIndex
	if len(models) == 0 {
		return "", errors.New("no models available, load models first")
	}
	if idx < 0 || idx >= len(models) {
		return "", fmt.Errorf("model index %d out of range (catalog has %d models)", idx, len(models))
	}
	return models[idx], nil
}

// finish applies the terminal write. rec is nil when the record could not be loaded.
func (w *Worker) finish(ctx context.Context, log *slog.Logger, id string, out Outcome, rec *Record, elapsed time.Duration) {
	ok, err := w.store.Finish(ctx, id, out)
	if err != nil {
		log.Error("terminal write failed", "status", out.Status, "error", err)
		return
	}
	if !ok {
		log.Warn("job left STARTED before terminal write", "status", out.Status)
		return
	}

	w.metrics.RecordFinished(string(out.Status), out.ResolvedModel, elapsed, utf8.RuneCountInString(out.Result))
	if out.Status == StatusFailure {
		log.Warn("job failed", "model", out.ResolvedModel, "error", out.Error)
		return
	}
	log.Info("job succeeded", "model", out.ResolvedModel, "elapsed", elapsed)

	if w.cfg.Events != nil && rec != nil {
		w.cfg.Events.Publish(TopicCompleted, Completion{
			JobID:       id,
			Model:       out.ResolvedModel,
			Prompt:      rec.Prompt,
			Result:      out.Result,
			Streamed:    rec.Stream,
			CompletedAt: out.CompletedAt,
		})
	}
}
