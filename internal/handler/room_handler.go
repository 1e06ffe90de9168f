package handler

import (
	"net/http"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/service"
)

// RoomHandler handles room lifecycle endpoints.
type RoomHandler struct {
	roomSvc  *service.RoomService
	roundSvc *service.RoundService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomSvc *service.RoomService, roundSvc *service.RoundService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc, roundSvc: roundSvc}
}

// CreateRoom handles POST /api/v1/rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name           string `json:"name"`
		ActionTimeout  string `json:"action_timeout,omitempty"`
		ResultsTimeout string `json:"results_timeout,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	rm, err := h.roomSvc.CreateRoom(r.Context(), req.Name, userID, req.ActionTimeout, req.ResultsTimeout)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rm)
}

// ListRooms handles GET /api/v1/rooms
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	rooms, err := h.roomSvc.ListRooms(r.Context(), userID, r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rooms == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoom handles GET /api/v1/rooms/{id}. The response carries the room
// record plus the live view filtered for the caller.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	rm, err := h.roomSvc.GetRoom(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := h.roundSvc.View(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": rm, "view": view})
}

// JoinRoom handles POST /api/v1/rooms/{id}/join
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.roomSvc.JoinRoom(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// LeaveRoom handles POST /api/v1/rooms/{id}/leave
func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.roomSvc.LeaveRoom(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// OpenCharacterSelect handles POST /api/v1/rooms/{id}/character-select
func (h *RoomHandler) OpenCharacterSelect(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.roomSvc.OpenCharacterSelect(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "character_select"})
}

// SelectCharacter handles PUT /api/v1/rooms/{id}/character
func (h *RoomHandler) SelectCharacter(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Race  string `json:"race"`
		Class string `json:"class"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Race == "" || req.Class == "" {
		writeError(w, http.StatusBadRequest, "race and class are required")
		return
	}
	if err := h.roomSvc.SelectCharacter(r.Context(), roomID, userID, req.Race, req.Class); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"race": req.Race, "class": req.Class})
}

// StartRoom handles POST /api/v1/rooms/{id}/start
func (h *RoomHandler) StartRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	rm, err := h.roomSvc.StartRoom(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// DeleteRoom handles DELETE /api/v1/rooms/{id}
func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.roomSvc.DeleteRoom(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
