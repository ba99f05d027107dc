package history

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/infra/eventbus"
)

// Saver is the part of Repository the Recorder needs.
type Saver interface {
	Save(ctx context.Context, rec *PromptRecord, tokens int64) (bool, error)
}

// Recorder turns job.Completion events into history rows. Failures are
// logged and never reach the job.
type Recorder struct {
	repo   Saver
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil logger uses slog.Default().
func NewRecorder(repo Saver, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Run consumes events until the channel closes or ctx is done.
func (r *Recorder) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c, isCompletion := evt.Payload.(job.Completion)
			if !isCompletion {
				r.logger.Warn("history: unexpected event payload", "topic", evt.Topic)
				continue
			}
			r.Record(ctx, c)
		}
	}
}

// Record persists one completion. Usage counts characters of the reply.
func (r *Recorder) Record(ctx context.Context, c job.Completion) {
	rec := &PromptRecord{
		JobID:          c.JobID,
		PromptText:     c.Prompt,
		CompletionText: c.Result,
		ModelName:      c.Model,
		Streamed:       c.Streamed,
		CreatedAt:      c.CompletedAt,
	}
	saved, err := r.repo.Save(context.WithoutCancel(ctx), rec, Tokens(c.Result))
	if err != nil {
		r.logger.Error("history: save failed", "job_id", c.JobID, "model", c.Model, "error", err)
		return
	}
	if !saved {
		r.logger.Debug("history: duplicate completion ignored", "job_id", c.JobID)
	}
}

// Tokens is the usage charged for a completion: its length in characters.
func Tokens(completion string) int64 {
	return int64(utf8.RuneCountInString(completion))
}
