package handler

import (
	"net/http"
)

// BackendInfo is the part of the store the health check reads.
type BackendInfo interface {
	IsRemote() bool
}

type HealthHandler struct {
	backend BackendInfo
}

func NewHealthHandler(backend BackendInfo) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// HandleHealth reports liveness and which storage backend is active.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	mode := "local"
	if h.backend.IsRemote() {
		mode = "remote"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": mode})
}
