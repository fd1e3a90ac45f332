package task

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser is the standard 5-field (minute hour dom month dow) parser,
// used for both the default and the runtime override expression.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseCron validates a cron expression, returning ErrInvalidCron-wrapped
// errors so callers can distinguish a bad operator input from a storage
// failure.
func parseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	return sched, nil
}

// nextFireTime computes the next fire time after `from` for the given
// cron expression. It returns (nil, nil) when the expression can never
// fire again (robfig/cron reports this by returning the zero time.Time),
// letting the runner set next_run to null.
func nextFireTime(expr string, from time.Time) (*time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return nil, err
	}
	next := sched.Next(from)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}
