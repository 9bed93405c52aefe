package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/planwise/internal/metrics"
	"github.com/dukerupert/planwise/internal/model"
	"github.com/dukerupert/planwise/internal/planner"
)

const (
	maxUploadBytes = 10 << 20
	maxFormMemory  = 2 << 20
)

// Suggester returns the raw planner reply for a request.
type Suggester interface {
	Suggest(ctx context.Context, req planner.Request) (string, error)
}

type PlanHandler struct {
	suggester Suggester
	logger    *slog.Logger
}

func NewPlanHandler(s Suggester, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{suggester: s, logger: logger}
}

// Plan accepts a multipart form {title, description, location, file} and
// replies {message} with the model's proposal.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		writeError(w, http.StatusServiceUnavailable, "planner is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := planner.Request{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Location:    strings.TrimSpace(r.FormValue("location")),
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	req.File = &model.Attachment{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	msg, err := h.suggester.Suggest(r.Context(), req)
	if errors.Is(err, planner.ErrNoFile) {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	if err != nil {
		h.logger.Error("planner request", "error", err)
		metrics.TrackPlan(planner.Failure{Reason: planner.ReasonUnavailable})
		writeError(w, http.StatusBadGateway, "Error processing request")
		return
	}

	metrics.TrackPlan(planner.ParseMessage(msg))
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}
