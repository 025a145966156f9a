package main

import (
	"encoding/json"
	"errors"
	"music-player-go/circuitbreaker"
	"music-player-go/lyrics"
	"music-player-go/middleware"
	"music-player-go/player"
	"music-player-go/services/catalog"
	"net/http"
)

// APIResponse handles consistent header setting and JSON responses.
// It centralizes the X-Request-ID, X-Track-ID and X-Lyrics-Status headers.
type APIResponse struct {
	w            http.ResponseWriter
	r            *http.Request
	trackID      string
	lyricsStatus string
}

// Respond creates a response helper from request context
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetTrack sets the X-Track-ID header value
func (a *APIResponse) SetTrack(id player.TrackID) *APIResponse {
	a.trackID = id.String()
	return a
}

// SetLyricsStatus sets the X-Lyrics-Status header value
func (a *APIResponse) SetLyricsStatus(status lyrics.Status) *APIResponse {
	a.lyricsStatus = status.String()
	return a
}

// writeHeaders sets all standard headers based on context
func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.trackID != "" {
		a.w.Header().Set("X-Track-ID", a.trackID)
	}
	if a.lyricsStatus != "" {
		a.w.Header().Set("X-Lyrics-Status", a.lyricsStatus)
	}
	if id := middleware.RequestID(a.r.Context()); id != "" {
		a.w.Header().Set("X-Request-ID", id)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Fail maps err onto a status code and writes it as an ErrorResponse
func (a *APIResponse) Fail(err error) error {
	return a.Error(statusFor(err), ErrorResponse{Error: err.Error()})
}

// BadRequest writes a 400 with msg
func (a *APIResponse) BadRequest(msg string) error {
	return a.Error(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// statusFor picks the HTTP status for an engine or upstream error
func statusFor(err error) int {
	switch {
	case errors.Is(err, player.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, player.ErrQueueEmpty), errors.Is(err, player.ErrNoCurrentTrack):
		return http.StatusUnprocessableEntity
	case errors.Is(err, player.ErrStaleResolution), errors.Is(err, lyrics.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrNoURL):
		return http.StatusBadGateway
	default:
		var ce *catalog.Error
		if errors.As(err, &ce) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
