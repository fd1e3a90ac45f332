package model

import "time"

// LogEntry is one append-only line of a run's log trail.
type LogEntry struct {
	RunID      int64     `bson:"run_id"`
	LogTime    time.Time `bson:"log_time"`
	Message    string    `bson:"message"`
	Stacktrace *string   `bson:"stacktrace,omitempty"`
}
