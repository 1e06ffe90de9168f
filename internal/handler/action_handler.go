package handler

import (
	"net/http"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/service"
)

// ActionHandler handles action submission and results acknowledgement.
type ActionHandler struct {
	actionSvc *service.ActionService
	roundSvc  *service.RoundService
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actionSvc *service.ActionService, roundSvc *service.RoundService) *ActionHandler {
	return &ActionHandler{actionSvc: actionSvc, roundSvc: roundSvc}
}

// SubmitAction handles POST /api/v1/rooms/{id}/actions
func (h *ActionHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req service.ActionInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AbilityID == "" {
		writeError(w, http.StatusBadRequest, "ability_id is required")
		return
	}

	action, err := h.actionSvc.SubmitAction(r.Context(), roomID, userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// MarkReady handles POST /api/v1/rooms/{id}/ready
func (h *ActionHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.roundSvc.MarkReady(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Eligibility handles GET /api/v1/rooms/{id}/eligibility
func (h *ActionHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	e, err := h.actionSvc.Eligibility(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
