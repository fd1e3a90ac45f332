package model

import "time"

// Schedule is the durable, one-row-per-task record of when a task should
// next fire and whether it is currently allowed to run.
type Schedule struct {
	Name           string     `bson:"name"`
	Active         bool       `bson:"active"`
	OverriddenCron *string    `bson:"overridden_cron,omitempty"`
	NextRun        *time.Time `bson:"next_run"`
	RunOnce        bool       `bson:"run_once"`
	LastUpdated    time.Time  `bson:"last_updated"`
}

// ActiveCron returns the cron expression that governs the next fire time:
// the override when one has been set at runtime, otherwise defaultCron.
func (s *Schedule) ActiveCron(defaultCron string) string {
	if s.OverriddenCron != nil && *s.OverriddenCron != "" {
		return *s.OverriddenCron
	}
	return defaultCron
}
