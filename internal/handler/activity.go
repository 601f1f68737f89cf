package handler

import (
	"net/http"

	"github.com/sakif/reportnavi/internal/ledger"
)

type ActivityHandler struct {
	ledger *ledger.Ledger
}

func NewActivityHandler(l *ledger.Ledger) *ActivityHandler {
	return &ActivityHandler{ledger: l}
}

// HandleMine handles GET /api/me/activities.
func (h *ActivityHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.History(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
