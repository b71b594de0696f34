package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/telesite/telesite/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyRedispatch re-runs a notification fan-out that failed inline.
	TaskNotifyRedispatch = "notify:redispatch"
	// TaskNotifyPrune removes notifications past the retention window.
	TaskNotifyPrune = "notify:prune"
)

// NewRedispatchTask wraps a workflow event for queued re-delivery.
func NewRedispatchTask(ev notifications.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyRedispatch, data, asynq.MaxRetry(5)), nil
}

// NewPruneTask builds the scheduled retention cleanup task.
func NewPruneTask() *asynq.Task {
	return asynq.NewTask(TaskNotifyPrune, nil)
}

// RedispatchJob replays failed notification fan-outs. Dispatch is safe to
// re-run for the same event; the worst case is a duplicate notification.
type RedispatchJob struct {
	Dispatcher *notifications.Dispatcher
	Logger     *slog.Logger
}

// Handle processes TaskNotifyRedispatch tasks.
func (j *RedispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	var ev notifications.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return asynq.SkipRetry
	}
	count, err := j.Dispatcher.Dispatch(ctx, ev)
	if err != nil {
		j.Logger.Warn("redispatch failed",
			slog.String("event", string(ev.Kind)),
			slog.String("survey", ev.SurveySessionID),
			slog.Any("error", err))
		return err
	}
	j.Logger.Info("redispatch completed",
		slog.String("event", string(ev.Kind)),
		slog.String("survey", ev.SurveySessionID),
		slog.Int("count", count))
	return nil
}

// PruneJob enforces the 30-day notification retention window.
type PruneJob struct {
	Service *notifications.Service
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewPruneJob initialises the retention cleanup handler.
func NewPruneJob(service *notifications.Service, logger *slog.Logger) *PruneJob {
	return &PruneJob{Service: service, Logger: logger, clock: time.Now}
}

// Handle processes TaskNotifyPrune tasks.
func (j *PruneJob) Handle(ctx context.Context, _ *asynq.Task) error {
	start := j.clock()
	removed, err := j.Service.Prune(ctx)
	if err != nil {
		j.Logger.Error("notification prune failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("notification prune completed",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)))
	return nil
}
