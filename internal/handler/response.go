package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warlock/api/internal/repository"
	"github.com/freeeve/warlock/api/internal/service"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) int {
	var verr *warlock.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrRoundNotFound),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRoomNotOpen),
		errors.Is(err, service.ErrRoomNotActive),
		errors.Is(err, warlock.ErrWrongPhase),
		errors.Is(err, warlock.ErrRoomFull),
		errors.Is(err, warlock.ErrAlreadyJoined),
		errors.Is(err, warlock.ErrNotInPhase):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotInRoom),
		errors.Is(err, warlock.ErrUnknownPlayer),
		errors.Is(err, warlock.ErrNotEnoughPlayers),
		errors.Is(err, warlock.ErrNoCharacter),
		errors.Is(err, warlock.ErrUnknownRace),
		errors.Is(err, warlock.ErrUnknownClass),
		errors.Is(err, warlock.ErrIncompatibleClass):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status statusFor picks.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}
