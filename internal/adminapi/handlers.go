package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dandantas/taskkeeper/internal/task"
)

// TaskHandler serves the JSON control-plane endpoints backed by a single
// task.Registry.
type TaskHandler struct {
	registry *task.Registry
}

// NewTaskHandler constructs a TaskHandler against registry.
func NewTaskHandler(registry *task.Registry) *TaskHandler {
	return &TaskHandler{registry: registry}
}

// ListTasks handles GET /api/v1/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	handles := h.registry.GetScheduledTasks()
	summaries := make([]taskSummary, 0, len(handles))
	for _, hd := range handles {
		summaries = append(summaries, toTaskSummary(hd))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleTaskByName routes every /api/v1/tasks/{name}... sub-resource.
func (h *TaskHandler) handleTaskByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	if path == "" {
		writeError(w, http.StatusNotFound, "task name required")
		return
	}

	switch {
	case strings.HasSuffix(path, "/start"):
		h.startOrStop(w, r, strings.TrimSuffix(path, "/start"), true)
	case strings.HasSuffix(path, "/stop"):
		h.startOrStop(w, r, strings.TrimSuffix(path, "/stop"), false)
	case strings.HasSuffix(path, "/run-now"):
		h.runNow(w, r, strings.TrimSuffix(path, "/run-now"))
	case strings.HasSuffix(path, "/override"):
		h.override(w, r, strings.TrimSuffix(path, "/override"))
	case strings.HasSuffix(path, "/runs"):
		h.listRuns(w, r, strings.TrimSuffix(path, "/runs"))
	default:
		h.getTask(w, r, path)
	}
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hd, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	detail := taskDetail{taskSummary: toTaskSummary(hd)}
	lastRun, err := hd.GetLastScheduleRun(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lastRun != nil {
		s := toRunSummary(lastRun)
		detail.LastRun = &s
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *TaskHandler) startOrStop(w http.ResponseWriter, r *http.Request, name string, start bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hd, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if start {
		err = hd.StartTask(r.Context())
	} else {
		err = hd.StopTask(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toTaskSummary(hd))
}

func (h *TaskHandler) runNow(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hd, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := hd.RunNow(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, toTaskSummary(hd))
}

func (h *TaskHandler) override(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hd, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var body overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := hd.SetOverrideExpression(r.Context(), body.Cron); err != nil {
		if errors.Is(err, task.ErrInvalidCron) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toTaskSummary(hd))
}

func (h *TaskHandler) listRuns(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hd, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	now := time.Now().UTC()
	from := parseQueryTime(r, "from", now.AddDate(0, 0, -7))
	to := parseQueryTime(r, "to", now)

	runs, err := hd.GetAllScheduleRunsBetween(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toRunSummaries(runs))
}

// GetRun handles GET /api/v1/runs/{run_id}.
func (h *TaskHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	runID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "run_id must be an integer")
		return
	}

	run, err := h.registry.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	entries, err := h.registry.GetRunLogEntries(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runDetail{
		runSummary: toRunSummary(run),
		LogEntries: toLogEntryDTOs(entries),
	})
}
