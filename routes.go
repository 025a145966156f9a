package main

import (
	"music-player-go/stats"
	"net/http"

	"github.com/gorilla/mux"
)

// counted records the request under group before serving it
func counted(group string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats.Get().RecordRequest(group)
		h(w, r)
	}
}

// setupRoutes configures all HTTP routes for the control API
func setupRoutes(router *mux.Router) {
	// Read model
	router.HandleFunc("/state", counted("state", getState)).Methods(http.MethodGet)
	router.HandleFunc("/history", counted("state", getHistory)).Methods(http.MethodGet)
	router.HandleFunc("/history", counted("state", clearHistory)).Methods(http.MethodDelete)

	// Transport controls
	router.HandleFunc("/play", counted("control", playHandler)).Methods(http.MethodPost)
	router.HandleFunc("/play/{index:-?[0-9]+}", counted("control", playIndexHandler)).Methods(http.MethodPost)
	router.HandleFunc("/pause", counted("control", pauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/resume", counted("control", resumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/toggle", counted("control", toggleHandler)).Methods(http.MethodPost)
	router.HandleFunc("/stop", counted("control", stopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/next", counted("control", nextHandler)).Methods(http.MethodPost)
	router.HandleFunc("/previous", counted("control", previousHandler)).Methods(http.MethodPost)
	router.HandleFunc("/seek", counted("control", seekHandler)).Methods(http.MethodPost)
	router.HandleFunc("/seek/progress", counted("control", seekProgressHandler)).Methods(http.MethodPost)
	router.HandleFunc("/volume", counted("control", volumeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/mute", counted("control", muteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/mode", counted("control", modeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/mode/toggle", counted("control", toggleModeHandler)).Methods(http.MethodPost)
	router.HandleFunc("/error/clear", counted("control", clearErrorHandler)).Methods(http.MethodPost)

	// Queue management
	router.HandleFunc("/queue", counted("queue", getQueue)).Methods(http.MethodGet)
	router.HandleFunc("/queue", counted("queue", setQueueHandler)).Methods(http.MethodPut)
	router.HandleFunc("/queue", counted("queue", clearQueueHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/queue/add", counted("queue", addToQueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/queue/remove", counted("queue", removeManyHandler)).Methods(http.MethodPost)
	router.HandleFunc("/queue/move", counted("queue", moveHandler)).Methods(http.MethodPost)
	router.HandleFunc("/queue/next/{id}", counted("queue", queueNextHandler)).Methods(http.MethodPost)
	router.HandleFunc("/queue/{id}", counted("queue", removeFromQueueHandler)).Methods(http.MethodDelete)

	// Lyrics
	router.HandleFunc("/lyrics", counted("lyrics", getLyricsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/lyrics/active", counted("lyrics", activeLyricHandler)).Methods(http.MethodGet)
	router.HandleFunc("/lyrics/reload", counted("lyrics", reloadLyricsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/lyrics/cache", counted("lyrics", lyricsCacheHandler)).Methods(http.MethodGet)
	router.HandleFunc("/lyrics/cache", counted("lyrics", clearLyricsCacheHandler)).Methods(http.MethodDelete)

	// Preferences
	router.HandleFunc("/preferences", counted("other", getPreferences)).Methods(http.MethodGet)
	router.HandleFunc("/preferences", counted("other", updatePreferences)).Methods(http.MethodPut)

	// Health and stats endpoints
	router.HandleFunc("/health", counted("health", getHealthStatus)).Methods(http.MethodGet)
	router.HandleFunc("/stats", counted("stats", getStats)).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", counted("stats", getCircuitBreakerStatus)).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", counted("stats", resetCircuitBreaker)).Methods(http.MethodPost)

	// Help endpoint
	router.HandleFunc("/", counted("other", helpHandler)).Methods(http.MethodGet)
}
