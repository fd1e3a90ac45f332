package task

import "errors"

var (
	// ErrScheduleNotFound is returned by TaskRunner when Repository.GetSchedule
	// finds no row for its task (the repository reports that as nil, nil).
	ErrScheduleNotFound = errors.New("task: schedule not found")

	// ErrInvalidCron is returned when an operator supplies a cron
	// expression that fails to parse. It is surfaced synchronously to the
	// caller of SetOverrideExpression and is never stored.
	ErrInvalidCron = errors.New("task: invalid cron expression")

	// ErrLockNotHeld is returned by ReleaseLock when the caller does not
	// currently hold the named lock. KeepLock reports the same condition as
	// false with a nil error.
	ErrLockNotHeld = errors.New("task: lock not held")

	// ErrContractViolation is recorded as a run's failure message when a
	// Callback returns without calling Done, Failed or Dispatched.
	ErrContractViolation = errors.New("task: callback returned without calling done, failed or dispatched")

	// ErrUnknownTask is returned by Registry lookups for a name that was
	// never registered.
	ErrUnknownTask = errors.New("task: unknown task")

	// ErrAlreadyRegistered is returned by Register when the name is
	// already in use in this process.
	ErrAlreadyRegistered = errors.New("task: already registered")
)
