package task

import "fmt"

// Criticality classifies how severely a missed or failing run should be
// treated by an operator dashboard or alerting system.
type Criticality string

const (
	CriticalityMissionCritical Criticality = "MISSION_CRITICAL"
	CriticalityVital           Criticality = "VITAL"
	CriticalityImportant       Criticality = "IMPORTANT"
	CriticalityMinor           Criticality = "MINOR"
)

// Recovery describes how an operator is expected to respond to a failure.
type Recovery string

const (
	RecoverySelfHealing        Recovery = "SELF_HEALING"
	RecoveryManualIntervention Recovery = "MANUAL_INTERVENTION"
)

// RetentionPolicy bounds how much run/log history a schedule keeps.
type RetentionPolicy struct {
	// MaxAge is the oldest a run is allowed to be before retention deletes
	// it. Zero means no age-based limit.
	MaxAge int64 // seconds
	// MaxCount is the largest number of runs kept per schedule. Zero means
	// no count-based limit.
	MaxCount int
	// DeleteLogs, when true, deletes a run's log entries along with the
	// run itself.
	DeleteLogs bool
}

// Config is the immutable, per-process registration of a scheduled task.
// It is supplied to Registry.Register and is never itself persisted —
// only the Schedule it seeds is.
type Config struct {
	Name                    string
	CronExpression          string
	MaxExpectedMinutesToRun int
	Criticality             Criticality
	Recovery                Recovery
	RetentionPolicy         RetentionPolicy
}

// Validate checks that a Config is well formed enough to register.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("task: name is required")
	}
	if c.CronExpression == "" {
		return fmt.Errorf("task: cron_expression is required")
	}
	switch c.Criticality {
	case CriticalityMissionCritical, CriticalityVital, CriticalityImportant, CriticalityMinor, "":
	default:
		return fmt.Errorf("task: invalid criticality %q", c.Criticality)
	}
	switch c.Recovery {
	case RecoverySelfHealing, RecoveryManualIntervention, "":
	default:
		return fmt.Errorf("task: invalid recovery %q", c.Recovery)
	}
	return nil
}
