package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
)

const (
	// masterSleepClamp bounds how long a runner that believes it holds the
	// master lock will sleep before re-checking, so a lock loss or an
	// override written by another node is noticed quickly.
	masterSleepClamp = 2 * time.Minute

	// nonMasterSleep is how long a runner sleeps when this node does not
	// hold the master lock. It only needs to wake occasionally to notice
	// that the lock changed hands.
	nonMasterSleep = 15 * time.Minute

	// errorBackoff is how long the runner waits after an unexpected error
	// (a Repository call failing) before trying the cycle again, so a
	// transient store outage does not spin the loop.
	errorBackoff = 5 * time.Second
)

// TaskRunner drives a single named task through the sleep/evaluate/execute
// cycle described by the original ScheduledTaskRunner: sleep until the next
// fire time (at most masterSleepClamp at a stretch, or nonMasterSleep when
// this node is not master),
// re-read the schedule on every wake since another node may have changed
// it, then either skip (paused), execute, or go back to sleep.
type TaskRunner struct {
	cfg           Config
	callback      Callback
	repo          Repository
	hostname      string
	hasMasterLock func() bool
	testMode      bool

	wake   *wakeSignal
	stopCh chan struct{}
	wg     sync.WaitGroup

	runFlag atomic.Bool

	mu                sync.RWMutex
	overrideCron      *string
	nextRun           *time.Time
	active            bool
	isRunning         bool
	currentRunStarted *time.Time
	lastRunCompleted  *time.Time
	lastRunStarted    *time.Time
}

// NewTaskRunner builds a runner for cfg. It does not touch the store or
// start its goroutine; call Start for that. hasMasterLock is polled on
// every wake to decide whether this node is allowed to execute.
func NewTaskRunner(cfg Config, callback Callback, repo Repository, hostname string, hasMasterLock func() bool, testMode bool) *TaskRunner {
	return &TaskRunner{
		cfg:           cfg,
		callback:      callback,
		repo:          repo,
		hostname:      hostname,
		hasMasterLock: hasMasterLock,
		testMode:      testMode,
		wake:          newWakeSignal(),
		stopCh:        make(chan struct{}),
		active:        true,
	}
}

// Start seeds the runner's cached state from the store and, outside test
// mode, launches its background loop.
func (r *TaskRunner) Start(ctx context.Context) error {
	sched, err := r.repo.GetSchedule(ctx, r.cfg.Name)
	if err != nil {
		return err
	}
	if sched == nil {
		return fmt.Errorf("%w: %q", ErrScheduleNotFound, r.cfg.Name)
	}
	r.mu.Lock()
	r.overrideCron = sched.OverriddenCron
	r.nextRun = sched.NextRun
	r.active = sched.Active
	r.mu.Unlock()

	r.runFlag.Store(true)
	if r.testMode {
		return nil
	}

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish. It does not
// touch the persisted schedule.
func (r *TaskRunner) Stop() {
	if !r.runFlag.CompareAndSwap(true, false) {
		return
	}
	if r.testMode {
		return
	}
	close(r.stopCh)
	r.wake.notify()
	r.wg.Wait()
}

// Notify wakes the runner's sleep phase immediately, used by the Registry
// when the master lock changes hands and by control-plane writes that
// touch this task's schedule.
func (r *TaskRunner) Notify() {
	r.wake.notify()
}

func (r *TaskRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	for r.runFlag.Load() {
		if err := r.cycle(ctx); err != nil {
			if !r.runFlag.Load() {
				return
			}
			slog.Warn("task runner: cycle failed, backing off", "task", r.cfg.Name, "error", err)
			r.wake.wait(errorBackoff, r.stopCh)
		}
	}
}

// cycle runs one full sleep-then-maybe-execute pass. A non-nil error means
// a Repository call failed; the caller backs off and retries. Every other
// outcome (skip, execute, override change) returns nil.
func (r *TaskRunner) cycle(ctx context.Context) error {
	sched, err := r.sleepUntilDue(ctx)
	if err != nil {
		return err
	}
	if sched == nil {
		// the runner was stopped while sleeping
		return nil
	}

	if !sched.Active {
		return r.skipAndReschedule(ctx, sched)
	}

	r.runTask(ctx, sched)

	if err := r.repo.ExecuteRetentionPolicy(ctx, r.cfg.Name, r.cfg.RetentionPolicy); err != nil {
		slog.Warn("task runner: retention policy failed", "task", r.cfg.Name, "error", err)
	}
	return nil
}

// sleepUntilDue sleeps in a loop until either a run is due (returns the
// schedule that made it due) or the runner is stopped (returns nil, nil).
func (r *TaskRunner) sleepUntilDue(ctx context.Context) (*model.Schedule, error) {
	for {
		sched, err := r.repo.GetSchedule(ctx, r.cfg.Name)
		if err != nil {
			return nil, err
		}
		if sched == nil {
			return nil, fmt.Errorf("%w: %q", ErrScheduleNotFound, r.cfg.Name)
		}

		r.mu.Lock()
		r.overrideCron = sched.OverriddenCron
		r.nextRun = sched.NextRun
		r.active = sched.Active
		r.mu.Unlock()

		r.wake.wait(r.sleepDuration(sched), r.stopCh)

		if !r.runFlag.Load() {
			return nil, nil
		}

		if !r.hasMasterLock() {
			continue
		}

		// Re-read: the wake may have been caused by another node's write,
		// or by nothing at all if the poll interval simply elapsed.
		sched, err = r.repo.GetSchedule(ctx, r.cfg.Name)
		if err != nil {
			return nil, err
		}
		if sched == nil {
			return nil, fmt.Errorf("%w: %q", ErrScheduleNotFound, r.cfg.Name)
		}

		r.mu.Lock()
		r.overrideCron = sched.OverriddenCron
		r.nextRun = sched.NextRun
		r.active = sched.Active
		r.mu.Unlock()

		if sched.RunOnce {
			if err := r.repo.SetRunOnce(ctx, r.cfg.Name, false); err != nil {
				return nil, err
			}
			return sched, nil
		}

		if sched.NextRun == nil {
			// nothing scheduled to fire again; only a run_once or an
			// override write can wake this up productively
			continue
		}
		if time.Now().UTC().Before(*sched.NextRun) {
			continue
		}
		return sched, nil
	}
}

func (r *TaskRunner) sleepDuration(sched *model.Schedule) time.Duration {
	if !r.hasMasterLock() {
		return nonMasterSleep
	}
	if sched.NextRun == nil {
		return nonMasterSleep
	}
	until := time.Until(*sched.NextRun)
	if until < 0 {
		until = 0
	}
	if until > masterSleepClamp {
		until = masterSleepClamp
	}
	return until
}

func (r *TaskRunner) skipAndReschedule(ctx context.Context, sched *model.Schedule) error {
	next, err := nextFireTime(sched.ActiveCron(r.cfg.CronExpression), time.Now().UTC())
	if err != nil {
		return err
	}
	if err := r.repo.UpdateNextRun(ctx, r.cfg.Name, sched.OverriddenCron, next); err != nil {
		return err
	}
	r.mu.Lock()
	r.nextRun = next
	r.mu.Unlock()
	return nil
}

// runTask executes one run of the callback and persists its outcome. It
// swallows errors from the store beyond logging them, since a run that
// already started must not wedge the loop.
func (r *TaskRunner) runTask(ctx context.Context, sched *model.Schedule) {
	now := time.Now().UTC()
	r.mu.Lock()
	r.isRunning = true
	r.currentRunStarted = &now
	r.lastRunStarted = &now
	r.mu.Unlock()

	defer func() {
		completed := time.Now().UTC()
		r.mu.Lock()
		r.isRunning = false
		r.currentRunStarted = nil
		r.lastRunCompleted = &completed
		r.mu.Unlock()
	}()

	previous, err := r.repo.GetLastRunForSchedule(ctx, r.cfg.Name)
	if err != nil {
		slog.Warn("task runner: could not load previous run", "task", r.cfg.Name, "error", err)
	}

	runID, err := r.repo.AddScheduleRun(ctx, r.cfg.Name, r.hostname, now, "Schedule run starting.")
	if err != nil {
		slog.Error("task runner: could not record run start", "task", r.cfg.Name, "error", err)
		return
	}

	rc := newRunContext(runID, r.cfg.Name, r.hostname, now, r.repo, previous)
	if sched.RunOnce {
		_ = rc.Log(ctx, "Manually started.")
	}

	r.invokeCallback(ctx, rc)

	next, err := nextFireTime(sched.ActiveCron(r.cfg.CronExpression), time.Now().UTC())
	if err != nil {
		slog.Error("task runner: could not compute next run", "task", r.cfg.Name, "error", err)
		return
	}
	if err := r.repo.UpdateNextRun(ctx, r.cfg.Name, sched.OverriddenCron, next); err != nil {
		slog.Error("task runner: could not persist next run", "task", r.cfg.Name, "error", err)
		return
	}
	r.mu.Lock()
	r.nextRun = next
	r.mu.Unlock()
}

// invokeCallback calls the registered Callback, recovering a panic as a
// FAILED run and catching the contract violation of returning without
// calling Done, Failed or Dispatched.
func (r *TaskRunner) invokeCallback(ctx context.Context, rc *RunContext) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("task %q panicked: %v", r.cfg.Name, rec)
			slog.Error(msg, "task", r.cfg.Name, "run_id", rc.runID, "stack", string(debug.Stack()))
			if !rc.terminalCalled {
				if _, err := rc.FailedWithError(ctx, msg, fmt.Errorf("%v", rec)); err != nil {
					slog.Error("task runner: could not record panic status", "task", r.cfg.Name, "error", err)
				}
			}
		}
	}()

	status, err := r.callback(rc)
	_ = status

	if err != nil {
		if !rc.terminalCalled {
			if _, ferr := rc.FailedWithError(ctx, fmt.Sprintf("callback returned an error: %v", err), err); ferr != nil {
				slog.Error("task runner: could not record failure status", "task", r.cfg.Name, "error", ferr)
			}
		}
		return
	}

	if !rc.terminalCalled {
		if _, ferr := rc.Failed(ctx, fmt.Sprintf("%v", ErrContractViolation)); ferr != nil {
			slog.Error("task runner: could not record contract violation", "task", r.cfg.Name, "error", ferr)
		}
	}
}

// RunNow requests an immediate, out-of-schedule execution. In test mode it
// runs the callback synchronously on the caller's goroutine; otherwise it
// flags run_once in the store and wakes the loop.
func (r *TaskRunner) RunNow(ctx context.Context) error {
	if r.testMode {
		if err := r.repo.SetRunOnce(ctx, r.cfg.Name, true); err != nil {
			return err
		}
		if err := r.repo.SetRunOnce(ctx, r.cfg.Name, false); err != nil {
			return err
		}
		sched, err := r.repo.GetSchedule(ctx, r.cfg.Name)
		if err != nil {
			return err
		}
		if sched == nil {
			return fmt.Errorf("%w: %q", ErrScheduleNotFound, r.cfg.Name)
		}
		sched.RunOnce = true
		r.runTask(ctx, sched)
		return nil
	}
	if err := r.repo.SetRunOnce(ctx, r.cfg.Name, true); err != nil {
		return err
	}
	r.wake.notify()
	return nil
}

// StartTask reactivates a paused task.
func (r *TaskRunner) StartTask(ctx context.Context) error {
	if err := r.repo.SetActive(ctx, r.cfg.Name, true); err != nil {
		return err
	}
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	r.wake.notify()
	return nil
}

// StopTask pauses a task; its runner keeps sleeping and re-scheduling but
// skips execution until reactivated.
func (r *TaskRunner) StopTask(ctx context.Context) error {
	if err := r.repo.SetActive(ctx, r.cfg.Name, false); err != nil {
		return err
	}
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	r.wake.notify()
	return nil
}

// SetOverrideExpression sets or clears the runtime cron override, recomputes
// next_run against the newly active expression, and wakes the loop so the
// change takes effect without waiting out the current sleep.
func (r *TaskRunner) SetOverrideExpression(ctx context.Context, expr *string) error {
	var effective string
	if expr != nil && *expr != "" {
		if _, err := parseCron(*expr); err != nil {
			return err
		}
		effective = *expr
	} else {
		effective = r.cfg.CronExpression
	}

	next, err := nextFireTime(effective, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := r.repo.UpdateNextRun(ctx, r.cfg.Name, expr, next); err != nil {
		return err
	}

	r.mu.Lock()
	r.overrideCron = expr
	r.nextRun = next
	r.mu.Unlock()

	r.wake.notify()
	return nil
}

func (r *TaskRunner) GetDefaultCron() string { return r.cfg.CronExpression }

func (r *TaskRunner) GetActiveCron() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.overrideCron != nil && *r.overrideCron != "" {
		return *r.overrideCron
	}
	return r.cfg.CronExpression
}

func (r *TaskRunner) IsActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *TaskRunner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

// IsOverdue reports whether the current run has been executing longer
// than the task's max expected run time.
func (r *TaskRunner) IsOverdue() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isRunning || r.currentRunStarted == nil {
		return false
	}
	return time.Since(*r.currentRunStarted).Minutes() >= float64(r.cfg.MaxExpectedMinutesToRun)
}

// RunTimeInMinutes returns how long the current run has been executing, or
// zero if the task is idle.
func (r *TaskRunner) RunTimeInMinutes() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isRunning || r.currentRunStarted == nil {
		return 0
	}
	return time.Since(*r.currentRunStarted).Minutes()
}

func (r *TaskRunner) GetLastRunCompleted() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRunCompleted
}

func (r *TaskRunner) GetLastRunStarted() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRunStarted
}

func (r *TaskRunner) GetNextRun() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextRun
}

func (r *TaskRunner) GetLastScheduleRun(ctx context.Context) (*model.ScheduleRun, error) {
	return r.repo.GetLastRunForSchedule(ctx, r.cfg.Name)
}

func (r *TaskRunner) GetAllScheduleRunsBetween(ctx context.Context, from, to time.Time) ([]model.ScheduleRun, error) {
	return r.repo.GetScheduleRunsBetween(ctx, r.cfg.Name, from, to)
}

func (r *TaskRunner) GetInstance(ctx context.Context, runID int64) (*model.ScheduleRun, error) {
	return r.repo.GetScheduleRun(ctx, runID)
}

func (r *TaskRunner) GetLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error) {
	return r.repo.GetLogEntries(ctx, runID)
}

func (r *TaskRunner) Name() string { return r.cfg.Name }
