package task

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
)

// ValidStatus is the sentinel a Callback must return by calling exactly
// one of RunContext.Done, RunContext.Failed or RunContext.Dispatched.
// It carries no data. The runner does not inspect the returned value; it
// detects a contract violation by whether one of the terminal methods was
// called on the RunContext.
type ValidStatus struct {
	_ struct{}
}

var validStatus = ValidStatus{}

// Callback is user code registered against a task. It must terminate by
// calling exactly one of RunContext's terminal methods and returning the
// ValidStatus it produced.
type Callback func(ctx *RunContext) (ValidStatus, error)

// RunContext is the handle passed into a Callback for one run. It records
// log lines and the terminal status against a single run id.
type RunContext struct {
	runID        int64
	scheduleName string
	hostname     string
	runStart     time.Time
	repo         Repository
	previousRun  *model.ScheduleRun

	status           model.RunStatus
	statusMsg        string
	statusStacktrace *string
	statusTime       time.Time
	terminalCalled   bool
}

func newRunContext(runID int64, scheduleName, hostname string, runStart time.Time, repo Repository, previousRun *model.ScheduleRun) *RunContext {
	return &RunContext{
		runID:        runID,
		scheduleName: scheduleName,
		hostname:     hostname,
		runStart:     runStart,
		repo:         repo,
		previousRun:  previousRun,
		status:       model.RunStatusStarted,
	}
}

func (c *RunContext) GetRunID() int64            { return c.runID }
func (c *RunContext) GetScheduledName() string   { return c.scheduleName }
func (c *RunContext) GetHostname() string        { return c.hostname }
func (c *RunContext) GetRunStarted() time.Time   { return c.runStart }
func (c *RunContext) GetStatus() model.RunStatus { return c.status }
func (c *RunContext) GetStatusMsg() string       { return c.statusMsg }
func (c *RunContext) GetStatusTime() time.Time   { return c.statusTime }

func (c *RunContext) GetStatusStacktrace() string {
	if c.statusStacktrace == nil {
		return ""
	}
	return *c.statusStacktrace
}

// GetPreviousRun returns the run that preceded this one for the same
// schedule, if any.
func (c *RunContext) GetPreviousRun() *model.ScheduleRun {
	return c.previousRun
}

// GetLogEntries returns every log line recorded so far against this run.
func (c *RunContext) GetLogEntries(ctx context.Context) ([]model.LogEntry, error) {
	return c.repo.GetLogEntries(ctx, c.runID)
}

// Log appends a plain log line to the run.
func (c *RunContext) Log(ctx context.Context, msg string) error {
	return c.repo.AddLogEntry(ctx, c.runID, time.Now().UTC(), msg, nil)
}

// LogError appends a log line together with a captured error's message as
// its stacktrace field.
func (c *RunContext) LogError(ctx context.Context, msg string, err error) error {
	trace := errorToStacktrace(err)
	return c.repo.AddLogEntry(ctx, c.runID, time.Now().UTC(), msg, &trace)
}

// Done marks the run as successfully completed.
func (c *RunContext) Done(ctx context.Context, msg string) (ValidStatus, error) {
	if err := c.setTerminal(ctx, model.RunStatusDone, msg, nil); err != nil {
		return ValidStatus{}, err
	}
	return validStatus, c.Log(ctx, fmt.Sprintf("[%s] %s", model.RunStatusDone, msg))
}

// Failed marks the run as failed with a plain message.
func (c *RunContext) Failed(ctx context.Context, msg string) (ValidStatus, error) {
	if err := c.setTerminal(ctx, model.RunStatusFailed, msg, nil); err != nil {
		return ValidStatus{}, err
	}
	return validStatus, c.Log(ctx, fmt.Sprintf("[%s] %s", model.RunStatusFailed, msg))
}

// FailedWithError marks the run as failed, capturing err's message as the
// run's stacktrace.
func (c *RunContext) FailedWithError(ctx context.Context, msg string, err error) (ValidStatus, error) {
	trace := errorToStacktrace(err)
	if terr := c.setTerminal(ctx, model.RunStatusFailed, msg, &trace); terr != nil {
		return ValidStatus{}, terr
	}
	return validStatus, c.LogError(ctx, fmt.Sprintf("[%s] %s", model.RunStatusFailed, msg), err)
}

// Dispatched marks the run as handed off to another asynchronous worker.
// From the scheduling engine's perspective the run is complete; the
// eventual success or failure of the dispatched work is out of scope.
func (c *RunContext) Dispatched(ctx context.Context, msg string) (ValidStatus, error) {
	if err := c.setTerminal(ctx, model.RunStatusDispatched, msg, nil); err != nil {
		return ValidStatus{}, err
	}
	return validStatus, c.Log(ctx, fmt.Sprintf("[%s] %s", model.RunStatusDispatched, msg))
}

func (c *RunContext) setTerminal(ctx context.Context, status model.RunStatus, msg string, stacktrace *string) error {
	now := time.Now().UTC()
	if err := c.repo.SetStatus(ctx, c.runID, status, now, msg, stacktrace); err != nil {
		return err
	}
	c.status = status
	c.statusMsg = msg
	c.statusStacktrace = stacktrace
	c.statusTime = now
	c.terminalCalled = true
	return nil
}

func errorToStacktrace(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
