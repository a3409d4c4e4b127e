package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"reelcap/internal/history"
	"reelcap/internal/logging"
	"reelcap/internal/services"
	"reelcap/internal/stage"
)

// Options controls stage execution and history persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Store      *history.Store
	Handler    stage.Handler
	StageName  string
	Processing history.Status
	Done       history.Status
	Job        *history.Job
}

// Run executes a stage against a job and persists the status transitions
// around it. The processing status is written before the handler runs; the
// done status is written only when the handler leaves the status untouched,
// so a handler may steer the job somewhere else. A handler failure marks the
// job failed with user-facing guidance and surfaces the original error.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("history store is required")
	}
	if opts.Job == nil {
		return fmt.Errorf("history job is required")
	}

	stageLogger := logging.NewComponentLogger(opts.Logger, opts.StageName)
	started := time.Now()

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int64(logging.FieldJobID, opts.Job.ID),
		logging.String("processing_status", string(opts.Processing)),
	)

	setJobProcessingState(opts.Job, opts.Processing)
	if err := opts.Store.Update(ctx, opts.Job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := opts.Handler.Prepare(ctx, opts.Job); err != nil {
		return handleFailure(ctx, stageLogger, opts.Store, opts.Job, err)
	}
	if err := opts.Store.Update(ctx, opts.Job); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(ctx, opts.Job); err != nil {
		return handleFailure(ctx, stageLogger, opts.Store, opts.Job, err)
	}

	if opts.Job.Status == opts.Processing || opts.Job.Status == "" {
		opts.Job.Status = opts.Done
	}
	if err := opts.Store.Update(ctx, opts.Job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int64(logging.FieldJobID, opts.Job.ID),
		logging.String("next_status", string(opts.Job.Status)),
		logging.Duration("elapsed", time.Since(started)),
	)

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *history.Store, job *history.Job, stageErr error) error {
	job.SetFailed(services.UserMessage(stageErr))

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldErrorHint, job.ErrorMessage),
		logging.Error(stageErr),
	)
	if err := store.Update(ctx, job); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	return stageErr
}

func setJobProcessingState(job *history.Job, processing history.Status) {
	job.Status = processing
	job.ProgressStage = deriveStageLabel(processing)
	job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	job.ProgressPercent = 0
	job.ErrorMessage = ""
}

func deriveStageLabel(status history.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
