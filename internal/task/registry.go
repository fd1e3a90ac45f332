package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
)

// Listener is notified of registry-wide lifecycle events. Embedding
// applications use it to, for example, expose newly registered tasks on an
// admin surface without polling the registry.
type Listener interface {
	OnScheduledTaskCreated(name string)
}

// Registry owns the master lock keeper and every TaskRunner in this
// process. It is the single entry point an embedding application uses to
// register tasks and to inspect or control the whole scheduling engine.
type Registry struct {
	repo     Repository
	nodeName string
	testMode bool

	lockKeeper *MasterLockKeeper

	mu        sync.RWMutex
	runners   map[string]*TaskRunner
	order     []string
	listeners []Listener
}

// NewRegistry constructs a Registry against repo, identifying this process
// as nodeName in the master lock table. In testMode, registered tasks never
// start a background loop and RunNow executes synchronously, so unit tests
// do not depend on wall-clock sleeps.
func NewRegistry(repo Repository, nodeName string, testMode bool) *Registry {
	reg := &Registry{
		repo:     repo,
		nodeName: nodeName,
		testMode: testMode,
		runners:  make(map[string]*TaskRunner),
	}
	reg.lockKeeper = NewMasterLockKeeper(repo, nodeName, reg.onLockAcquired)
	return reg
}

// Start begins the master lock keeper's acquire/heartbeat loop. Call this
// once, before serving traffic; Register may be called before or after it.
func (reg *Registry) Start(ctx context.Context) {
	if reg.testMode {
		return
	}
	reg.lockKeeper.Start(ctx)
}

func (reg *Registry) onLockAcquired() {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, r := range reg.runners {
		r.Notify()
	}
}

// HasMasterLock reports whether this node currently holds the cluster-wide
// lock.
func (reg *Registry) HasMasterLock() bool {
	if reg.testMode {
		return true
	}
	return reg.lockKeeper.HasLock()
}

// GetMasterLock returns the current state of the lock row, for the admin
// surface's cluster status view.
func (reg *Registry) GetMasterLock(ctx context.Context) (*model.MasterLock, error) {
	return reg.repo.GetLock(ctx, masterLockName)
}

// Register seeds cfg's schedule in the store (if it doesn't already exist)
// and starts a TaskRunner for it. It is safe to call before or after
// Start; a runner started before the lock is acquired simply behaves as a
// non-master node until the keeper notifies it.
func (reg *Registry) Register(ctx context.Context, cfg Config, callback Callback) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	if _, exists := reg.runners[cfg.Name]; exists {
		reg.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRegistered, cfg.Name)
	}
	reg.mu.Unlock()

	initialNext, err := nextFireTime(cfg.CronExpression, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := reg.repo.UpsertSchedule(ctx, cfg.Name, cfg.CronExpression, initialNext); err != nil {
		return nil, err
	}

	hasLock := reg.HasMasterLock
	if reg.testMode {
		hasLock = func() bool { return true }
	}

	runner := NewTaskRunner(cfg, callback, reg.repo, reg.nodeName, hasLock, reg.testMode)
	if err := runner.Start(ctx); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	reg.runners[cfg.Name] = runner
	reg.order = append(reg.order, cfg.Name)
	listeners := append([]Listener(nil), reg.listeners...)
	reg.mu.Unlock()

	for _, l := range listeners {
		l.OnScheduledTaskCreated(cfg.Name)
	}

	slog.Info("task registry: registered task", "task", cfg.Name, "cron", cfg.CronExpression)
	return runner, nil
}

// Get returns the Handle for a registered task by name.
func (reg *Registry) Get(name string) (Handle, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runners[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return r, nil
}

// GetScheduledTasks returns every registered task's Handle, in registration
// order.
func (reg *Registry) GetScheduledTasks() []Handle {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Handle, 0, len(reg.order))
	for _, name := range reg.order {
		out = append(out, reg.runners[name])
	}
	return out
}

// GetSchedulesFromRepository returns the persisted state of every schedule
// this process knows about, bypassing each runner's cached view.
func (reg *Registry) GetSchedulesFromRepository(ctx context.Context) (map[string]model.Schedule, error) {
	return reg.repo.GetAllSchedules(ctx)
}

// GetRun looks up one run by its global id, regardless of which task
// produced it. Run ids are minted from a single counter shared across all
// schedules, so this does not need a task name.
func (reg *Registry) GetRun(ctx context.Context, runID int64) (*model.ScheduleRun, error) {
	return reg.repo.GetScheduleRun(ctx, runID)
}

// GetRunLogEntries returns the log trail recorded against a run id.
func (reg *Registry) GetRunLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error) {
	return reg.repo.GetLogEntries(ctx, runID)
}

// AddListener registers l for future OnScheduledTaskCreated notifications.
// It is not notified retroactively for tasks already registered.
func (reg *Registry) AddListener(l Listener) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.listeners = append(reg.listeners, l)
}

// Shutdown stops every runner's loop, then the lock keeper, releasing the
// master lock if held. It blocks until all in-flight runs' bookkeeping
// goroutines have returned; it does not cancel a run already in progress.
func (reg *Registry) Shutdown(ctx context.Context) {
	reg.mu.RLock()
	runners := make([]*TaskRunner, 0, len(reg.runners))
	for _, r := range reg.runners {
		runners = append(runners, r)
	}
	reg.mu.RUnlock()

	for _, r := range runners {
		r.Stop()
	}

	if !reg.testMode {
		reg.lockKeeper.Stop(ctx)
	}
}
