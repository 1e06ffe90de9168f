package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/model"
	"github.com/freeeve/warlock/api/internal/repository"
	"github.com/freeeve/warlock/api/internal/service"
)

const maxMessageLen = 1000

// MessageHandler handles room chat endpoints.
type MessageHandler struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	roundRepo   repository.RoundRepository
	hub         *Hub
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(messageRepo repository.MessageRepository, roomRepo repository.RoomRepository, roundRepo repository.RoundRepository, hub *Hub) *MessageHandler {
	return &MessageHandler{messageRepo: messageRepo, roomRepo: roomRepo, roundRepo: roundRepo, hub: hub}
}

func seated(rm *model.Room, userID string) bool {
	for _, p := range rm.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ListMessages handles GET /api/v1/rooms/{id}/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	messages, err := h.messageRepo.ListByRoom(r.Context(), roomID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/v1/rooms/{id}/messages. Only seated players
// may post, and a private message must go to another seated player.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		RecipientID string `json:"recipient_id,omitempty"`
		Content     string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "content is too long")
		return
	}

	rm, err := h.roomRepo.FindByID(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rm == nil {
		writeServiceError(w, service.ErrRoomNotFound)
		return
	}
	if !seated(rm, userID) {
		writeServiceError(w, service.ErrNotInRoom)
		return
	}
	if req.RecipientID != "" && (req.RecipientID == userID || !seated(rm, req.RecipientID)) {
		writeError(w, http.StatusBadRequest, "recipient is not in this room")
		return
	}

	round := 0
	if rd, err := h.roundRepo.CurrentRound(r.Context(), roomID); err == nil && rd != nil {
		round = rd.Number
	}

	msg, err := h.messageRepo.Create(r.Context(), roomID, userID, req.RecipientID, req.Content, round)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debug().Str("roomId", roomID).Str("senderId", userID).Bool("private", req.RecipientID != "").Msg("Message sent")

	// Private messages go to both parties only.
	if req.RecipientID != "" {
		h.hub.SendToUser(req.RecipientID, roomID, service.EventMessage, msg)
		h.hub.SendToUser(userID, roomID, service.EventMessage, msg)
	} else {
		h.hub.BroadcastRoomEvent(roomID, service.EventMessage, msg)
	}

	writeJSON(w, http.StatusCreated, msg)
}
