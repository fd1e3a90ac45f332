package adminapi

import (
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
	"github.com/dandantas/taskkeeper/internal/task"
)

// taskSummary is the compact view returned for the task collection
// endpoint; taskDetail extends it with the fields only worth fetching for
// one task at a time.
type taskSummary struct {
	Name             string     `json:"name"`
	DefaultCron      string     `json:"default_cron"`
	ActiveCron       string     `json:"active_cron"`
	Active           bool       `json:"active"`
	Running          bool       `json:"running"`
	Overdue          bool       `json:"overdue"`
	NextRun          *time.Time `json:"next_run,omitempty"`
	LastRunStarted   *time.Time `json:"last_run_started,omitempty"`
	LastRunCompleted *time.Time `json:"last_run_completed,omitempty"`
	RunTimeInMinutes float64    `json:"run_time_minutes"`
}

type taskDetail struct {
	taskSummary
	LastRun *runSummary `json:"last_run,omitempty"`
}

type runSummary struct {
	RunID            int64     `json:"run_id"`
	ScheduleName     string    `json:"schedule_name"`
	Hostname         string    `json:"hostname"`
	Status           string    `json:"status"`
	StatusMsg        string    `json:"status_msg"`
	StatusStacktrace string    `json:"status_stacktrace,omitempty"`
	RunStart         time.Time `json:"run_start"`
	StatusTime       time.Time `json:"status_time"`
}

type runDetail struct {
	runSummary
	LogEntries []logEntryDTO `json:"log_entries"`
}

type logEntryDTO struct {
	RunID      int64     `json:"run_id"`
	LogTime    time.Time `json:"log_time"`
	Message    string    `json:"message"`
	Stacktrace string    `json:"stacktrace,omitempty"`
}

type overrideRequest struct {
	Cron *string `json:"cron"`
}

func toTaskSummary(h task.Handle) taskSummary {
	return taskSummary{
		Name:             h.Name(),
		DefaultCron:      h.GetDefaultCron(),
		ActiveCron:       h.GetActiveCron(),
		Active:           h.IsActive(),
		Running:          h.IsRunning(),
		Overdue:          h.IsOverdue(),
		NextRun:          h.GetNextRun(),
		LastRunStarted:   h.GetLastRunStarted(),
		LastRunCompleted: h.GetLastRunCompleted(),
		RunTimeInMinutes: h.RunTimeInMinutes(),
	}
}

func toRunSummary(r *model.ScheduleRun) runSummary {
	s := runSummary{
		RunID:        r.RunID,
		ScheduleName: r.ScheduleName,
		Hostname:     r.Hostname,
		Status:       string(r.Status),
		StatusMsg:    r.StatusMsg,
		RunStart:     r.RunStart,
		StatusTime:   r.StatusTime,
	}
	if r.StatusStacktrace != nil {
		s.StatusStacktrace = *r.StatusStacktrace
	}
	return s
}

func toRunSummaries(runs []model.ScheduleRun) []runSummary {
	out := make([]runSummary, 0, len(runs))
	for i := range runs {
		out = append(out, toRunSummary(&runs[i]))
	}
	return out
}

func toLogEntryDTO(e model.LogEntry) logEntryDTO {
	d := logEntryDTO{
		RunID:   e.RunID,
		LogTime: e.LogTime,
		Message: e.Message,
	}
	if e.Stacktrace != nil {
		d.Stacktrace = *e.Stacktrace
	}
	return d
}

func toLogEntryDTOs(entries []model.LogEntry) []logEntryDTO {
	out := make([]logEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLogEntryDTO(e))
	}
	return out
}
