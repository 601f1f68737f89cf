package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/reportnavi/internal/apperror"
	"github.com/sakif/reportnavi/internal/auth"
	"github.com/sakif/reportnavi/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
	stats   *service.StatsService
	logger  *slog.Logger
}

func NewReportHandler(reports *service.ReportService, stats *service.StatsService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, stats: stats, logger: logger}
}

// currentUser writes a 401 and returns false when the request is anonymous.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
	}
	return username, ok
}

// HandleList handles GET /api/reports.
func (h *ReportHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleListMine handles GET /api/reports/mine.
func (h *ReportHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	reports, err := h.reports.ListByOwner(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleGet handles GET /api/reports/{id}.
func (h *ReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleStats handles GET /api/reports/stats.
func (h *ReportHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	d, err := h.stats.Dashboard(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleSubmit handles POST /api/reports.
func (h *ReportHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.reports.Submit(r.Context(), username, service.Draft{
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Files:       req.Files,
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// HandleTransition handles POST /api/reports/{id}/status with {"status": "..."}.
func (h *ReportHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.reports.TransitionByID(r.Context(), chi.URLParam(r, "id"), username, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleDelete handles DELETE /api/reports/{id}.
func (h *ReportHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.reports.RemoveByID(r.Context(), chi.URLParam(r, "id"), username); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
