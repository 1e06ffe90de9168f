package handler

import (
	"net/http"
	"strconv"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/service"
)

// RoundHandler handles round history endpoints.
type RoundHandler struct {
	roundSvc *service.RoundService
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(roundSvc *service.RoundService) *RoundHandler {
	return &RoundHandler{roundSvc: roundSvc}
}

// ListRounds handles GET /api/v1/rooms/{id}/rounds
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.roundSvc.ListRounds(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rounds == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// RoundLog handles GET /api/v1/rooms/{id}/rounds/{round}/log. Private
// entries are filtered by the caller's id.
func (h *RoundHandler) RoundLog(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("round"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	userID := auth.UserIDFromContext(r.Context())
	entries, err := h.roundSvc.RoundLog(r.Context(), r.PathValue("id"), number, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
