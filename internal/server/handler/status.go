package handler

import (
	"net/http"
)

// StatusHandler serves the process mode and the screened pairs.
type StatusHandler struct {
	Mode  string
	Pairs map[string][]string // pair name -> eligible venue names
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, pairs map[string][]string) *StatusHandler {
	return &StatusHandler{Mode: mode, Pairs: pairs}
}

// GetStatus responds with the current mode and pairs.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	pairs := h.Pairs
	if pairs == nil {
		pairs = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":  h.Mode,
		"pairs": pairs,
	})
}
