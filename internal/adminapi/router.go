// Package adminapi exposes the scheduling engine's control plane as a
// small JSON HTTP API: task inspection, start/stop, run-now, cron
// overrides and run/log history. It is new wire surface built around
// task.Registry, not a port of any prior HTML admin view.
package adminapi

import (
	"net/http"

	"github.com/dandantas/taskkeeper/internal/task"
	"github.com/dandantas/taskkeeper/pkg/middleware"
)

// Router wires the admin API's routes and middleware chain.
type Router struct {
	taskHandler *TaskHandler
	corsConfig  middleware.CORSConfig
}

// NewRouter constructs a Router serving registry's tasks under corsConfig.
func NewRouter(registry *task.Registry, corsConfig middleware.CORSConfig) *Router {
	return &Router{
		taskHandler: NewTaskHandler(registry),
		corsConfig:  corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware applied.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/tasks", rt.taskHandler.ListTasks)
	mux.HandleFunc("/api/v1/tasks/", rt.taskHandler.handleTaskByName)
	mux.HandleFunc("/api/v1/runs/", rt.taskHandler.GetRun)

	// CORS first so preflight requests never reach the handlers.
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}
