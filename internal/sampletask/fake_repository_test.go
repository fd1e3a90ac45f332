package sampletask

import (
	"context"
	"sync"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
	"github.com/dandantas/taskkeeper/internal/task"
)

// fakeRepository is a minimal in-memory task.Repository for exercising a
// Checker's Callback through a real task.Registry in test mode.
type fakeRepository struct {
	mu sync.Mutex

	schedules map[string]*model.Schedule
	runs      map[int64]*model.ScheduleRun
	logs      map[int64][]model.LogEntry
	nextRunID int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		schedules: make(map[string]*model.Schedule),
		runs:      make(map[int64]*model.ScheduleRun),
		logs:      make(map[int64][]model.LogEntry),
	}
}

func (f *fakeRepository) GetSchedule(ctx context.Context, name string) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[name]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepository) UpsertSchedule(ctx context.Context, name, defaultCron string, initialNextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[name]; ok {
		return nil
	}
	f.schedules[name] = &model.Schedule{Name: name, Active: true, NextRun: initialNextRun, LastUpdated: time.Now().UTC()}
	return nil
}

func (f *fakeRepository) SetActive(ctx context.Context, name string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.schedules[name]; ok {
		s.Active = active
	}
	return nil
}

func (f *fakeRepository) SetRunOnce(ctx context.Context, name string, runOnce bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.schedules[name]; ok {
		s.RunOnce = runOnce
	}
	return nil
}

func (f *fakeRepository) UpdateNextRun(ctx context.Context, name string, overriddenCron *string, nextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.schedules[name]; ok {
		s.OverriddenCron = overriddenCron
		s.NextRun = nextRun
	}
	return nil
}

func (f *fakeRepository) GetAllSchedules(ctx context.Context) (map[string]model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.Schedule, len(f.schedules))
	for k, v := range f.schedules {
		out[k] = *v
	}
	return out, nil
}

func (f *fakeRepository) AddScheduleRun(ctx context.Context, name, hostname string, runStart time.Time, initialMsg string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRunID++
	id := f.nextRunID
	f.runs[id] = &model.ScheduleRun{
		RunID:        id,
		ScheduleName: name,
		Hostname:     hostname,
		Status:       model.RunStatusStarted,
		StatusMsg:    initialMsg,
		RunStart:     runStart,
		StatusTime:   runStart,
	}
	return id, nil
}

func (f *fakeRepository) SetStatus(ctx context.Context, runID int64, status model.RunStatus, statusTime time.Time, msg string, stacktrace *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.runs[runID]; ok {
		r.Status = status
		r.StatusTime = statusTime
		r.StatusMsg = msg
		r.StatusStacktrace = stacktrace
	}
	return nil
}

func (f *fakeRepository) GetLastRunForSchedule(ctx context.Context, name string) (*model.ScheduleRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.ScheduleRun
	for _, r := range f.runs {
		if r.ScheduleName != name {
			continue
		}
		if latest == nil || r.RunStart.After(latest.RunStart) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRepository) GetScheduleRunsBetween(ctx context.Context, name string, from, to time.Time) ([]model.ScheduleRun, error) {
	return nil, nil
}

func (f *fakeRepository) GetScheduleRun(ctx context.Context, runID int64) (*model.ScheduleRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepository) ExecuteRetentionPolicy(ctx context.Context, name string, policy task.RetentionPolicy) error {
	return nil
}

func (f *fakeRepository) AddLogEntry(ctx context.Context, runID int64, logTime time.Time, msg string, stacktrace *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[runID] = append(f.logs[runID], model.LogEntry{RunID: runID, LogTime: logTime, Message: msg, Stacktrace: stacktrace})
	return nil
}

func (f *fakeRepository) GetLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.LogEntry(nil), f.logs[runID]...)
	return out, nil
}

func (f *fakeRepository) TryAcquireLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error) {
	return true, nil
}

func (f *fakeRepository) KeepLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error) {
	return true, nil
}

func (f *fakeRepository) GetLock(ctx context.Context, lockName string) (*model.MasterLock, error) {
	return nil, nil
}

func (f *fakeRepository) ReleaseLock(ctx context.Context, lockName, nodeName string) error {
	return nil
}

var _ task.Repository = (*fakeRepository)(nil)
