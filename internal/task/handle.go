package task

import (
	"context"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
)

// Handle is the embedding API a caller receives from Registry.Register: a
// read/write view of one running task, deliberately narrower than
// TaskRunner so callers cannot reach into loop internals.
type Handle interface {
	Name() string
	GetDefaultCron() string
	GetActiveCron() string
	IsActive() bool
	IsRunning() bool
	IsOverdue() bool
	RunTimeInMinutes() float64
	GetLastRunCompleted() *time.Time
	GetLastRunStarted() *time.Time
	GetNextRun() *time.Time

	StartTask(ctx context.Context) error
	StopTask(ctx context.Context) error
	RunNow(ctx context.Context) error
	SetOverrideExpression(ctx context.Context, expr *string) error

	GetLastScheduleRun(ctx context.Context) (*model.ScheduleRun, error)
	GetAllScheduleRunsBetween(ctx context.Context, from, to time.Time) ([]model.ScheduleRun, error)
	GetInstance(ctx context.Context, runID int64) (*model.ScheduleRun, error)
	GetLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error)
}

var _ Handle = (*TaskRunner)(nil)
