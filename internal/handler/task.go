package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/tasktable"
)

// TaskSource lists the caller's upcoming provider events as tasks.
type TaskSource interface {
	Tasks(ctx context.Context) ([]model.Task, error)
}

type TaskHandler struct {
	source TaskSource
	logger *slog.Logger
}

func NewTaskHandler(source TaskSource, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{source: source, logger: logger}
}

// List serves GET /tasks. Query parameters title, status and priority
// filter; sort names a column and order=desc reverses it.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	if auth.AccessToken(r.Context()) == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	tasks, err := h.source.Tasks(r.Context())
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			h.logger.Error("list tasks", "error", err)
			writeError(w, status, "Failed to fetch tasks")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	table := tasktable.New(tasks)
	q := r.URL.Query()
	for _, col := range tasktable.Filterable {
		if v := q.Get(string(col)); v != "" {
			table.SetFilter(col, v)
		}
	}
	if col := q.Get("sort"); col != "" {
		if err := table.SortBy(tasktable.Column(col)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if q.Get("order") == "desc" {
			table.SortBy(tasktable.Column(col))
		}
	}

	rows := table.Rows()
	if rows == nil {
		rows = []model.Task{}
	}
	writeJSON(w, http.StatusOK, rows)
}
