package task

import (
	"context"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
)

// Repository is the durable-store contract the scheduling engine depends
// on. internal/store provides the MongoDB-backed implementation; tests
// substitute an in-memory fake that satisfies the same interface.
type Repository interface {
	GetSchedule(ctx context.Context, name string) (*model.Schedule, error)
	UpsertSchedule(ctx context.Context, name, defaultCron string, initialNextRun *time.Time) error
	SetActive(ctx context.Context, name string, active bool) error
	SetRunOnce(ctx context.Context, name string, runOnce bool) error
	UpdateNextRun(ctx context.Context, name string, overriddenCron *string, nextRun *time.Time) error
	GetAllSchedules(ctx context.Context) (map[string]model.Schedule, error)

	AddScheduleRun(ctx context.Context, name, hostname string, runStart time.Time, initialMsg string) (int64, error)
	SetStatus(ctx context.Context, runID int64, status model.RunStatus, statusTime time.Time, msg string, stacktrace *string) error
	GetLastRunForSchedule(ctx context.Context, name string) (*model.ScheduleRun, error)
	GetScheduleRunsBetween(ctx context.Context, name string, from, to time.Time) ([]model.ScheduleRun, error)
	GetScheduleRun(ctx context.Context, runID int64) (*model.ScheduleRun, error)
	ExecuteRetentionPolicy(ctx context.Context, name string, policy RetentionPolicy) error

	AddLogEntry(ctx context.Context, runID int64, logTime time.Time, msg string, stacktrace *string) error
	GetLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error)

	TryAcquireLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error)
	KeepLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error)
	GetLock(ctx context.Context, lockName string) (*model.MasterLock, error)
	ReleaseLock(ctx context.Context, lockName, nodeName string) error
}
