package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"music-player-go/logcolors"
	"music-player-go/player"
	"music-player-go/settings"
	"music-player-go/stats"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// respondStatus writes the player read model, tagged with the current track
func respondStatus(w http.ResponseWriter, r *http.Request) {
	status := musicPlayer.Status()
	resp := Respond(w, r)
	if status.CurrentTrack != nil {
		resp.SetTrack(status.CurrentTrack.ID)
	}
	resp.JSON(status)
}

// control wraps a player action that may fail and answers with the new status
func control(action func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(r); err != nil {
			log.Warnf("%s %s %s failed: %v", logcolors.LogPlayer, r.Method, r.URL.Path, err)
			Respond(w, r).Fail(err)
			return
		}
		respondStatus(w, r)
	}
}

// ---- State ----

func getState(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, r)
}

func getQueue(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(musicPlayer.Queue())
}

func getHistory(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"history": musicPlayer.History(),
	})
}

func clearHistory(w http.ResponseWriter, r *http.Request) {
	musicPlayer.ClearHistory()
	Respond(w, r).JSON(map[string]interface{}{
		"message": "History cleared",
	})
}

// ---- Transport ----

func playHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeBody(r, &req, true); err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}

	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	if req.Track != nil && req.Track.ID == "" {
		Respond(w, r).BadRequest("track id is required")
		return
	}

	control(func(r *http.Request) error {
		return musicPlayer.Play(r.Context(), req.Track, index)
	})(w, r)
}

func playIndexHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		Respond(w, r).BadRequest("index must be an integer")
		return
	}
	control(func(r *http.Request) error {
		return musicPlayer.PlayByIndex(r.Context(), index)
	})(w, r)
}

var (
	pauseHandler = control(func(r *http.Request) error {
		musicPlayer.Pause()
		return nil
	})
	resumeHandler = control(func(r *http.Request) error {
		return musicPlayer.Resume(r.Context())
	})
	toggleHandler = control(func(r *http.Request) error {
		return musicPlayer.Toggle(r.Context())
	})
	stopHandler = control(func(r *http.Request) error {
		musicPlayer.Stop()
		return nil
	})
	nextHandler = control(func(r *http.Request) error {
		return musicPlayer.Next(r.Context())
	})
	previousHandler = control(func(r *http.Request) error {
		return musicPlayer.Previous(r.Context())
	})
	muteHandler = control(func(r *http.Request) error {
		musicPlayer.ToggleMute()
		return nil
	})
	toggleModeHandler = control(func(r *http.Request) error {
		musicPlayer.TogglePlayMode()
		return nil
	})
	clearErrorHandler = control(func(r *http.Request) error {
		musicPlayer.ClearError()
		return nil
	})
)

func seekHandler(w http.ResponseWriter, r *http.Request) {
	t, err := queryFloat(r, "t")
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	musicPlayer.Seek(t)
	respondStatus(w, r)
}

func seekProgressHandler(w http.ResponseWriter, r *http.Request) {
	pct, err := queryFloat(r, "pct")
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	musicPlayer.SeekByProgress(pct)
	respondStatus(w, r)
}

func volumeHandler(w http.ResponseWriter, r *http.Request) {
	v, err := queryFloat(r, "v")
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	musicPlayer.SetVolume(v)
	respondStatus(w, r)
}

func modeHandler(w http.ResponseWriter, r *http.Request) {
	mode, err := player.ParsePlayMode(r.URL.Query().Get("m"))
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	musicPlayer.SetPlayMode(mode)
	respondStatus(w, r)
}

// ---- Queue ----

func setQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req setQueueRequest
	if err := decodeBody(r, &req, false); err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}

	musicPlayer.SetQueue(req.Tracks, req.StartIndex)
	if req.Autoplay && len(req.Tracks) > 0 {
		control(func(r *http.Request) error {
			return musicPlayer.Play(r.Context(), nil, -1)
		})(w, r)
		return
	}
	Respond(w, r).JSON(musicPlayer.Queue())
}

func addToQueueHandler(w http.ResponseWriter, r *http.Request) {
	var tracks []player.Track
	if err := decodeBody(r, &tracks, false); err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}

	added := musicPlayer.AddMany(tracks)
	Respond(w, r).JSON(map[string]interface{}{
		"added":   added,
		"skipped": len(tracks) - added,
		"queue":   musicPlayer.Queue(),
	})
}

func removeFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	id := player.TrackID(mux.Vars(r)["id"])
	if err := musicPlayer.Remove(r.Context(), id); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).JSON(musicPlayer.Queue())
}

func removeManyHandler(w http.ResponseWriter, r *http.Request) {
	var ids []player.TrackID
	if err := decodeBody(r, &ids, false); err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	if len(ids) == 0 {
		Respond(w, r).BadRequest("no track ids given")
		return
	}
	if err := musicPlayer.RemoveMany(r.Context(), ids); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	Respond(w, r).JSON(musicPlayer.Queue())
}

func moveHandler(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from")
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	to, err := queryInt(r, "to")
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	musicPlayer.Move(from, to)
	Respond(w, r).JSON(musicPlayer.Queue())
}

func queueNextHandler(w http.ResponseWriter, r *http.Request) {
	id := player.TrackID(mux.Vars(r)["id"])
	musicPlayer.QueueNext(id)
	Respond(w, r).JSON(musicPlayer.Queue())
}

func clearQueueHandler(w http.ResponseWriter, r *http.Request) {
	musicPlayer.Clear()
	Respond(w, r).JSON(musicPlayer.Queue())
}

// ---- Lyrics ----

func getLyricsHandler(w http.ResponseWriter, r *http.Request) {
	pos := musicPlayer.State().PositionSec
	status := lyricSyncer.Status()

	Respond(w, r).SetLyricsStatus(status).JSON(LyricsResponse{
		TrackID:     lyricSyncer.LoadedID(),
		Status:      status,
		Lines:       lyricSyncer.Lines(),
		ActiveIndex: lyricSyncer.ActiveIndex(pos),
		Position:    pos,
	})
}

// activeLyricHandler answers for ?t= when given, else for the live position
func activeLyricHandler(w http.ResponseWriter, r *http.Request) {
	pos := musicPlayer.State().PositionSec
	if r.URL.Query().Get("t") != "" {
		t, err := queryFloat(r, "t")
		if err != nil {
			Respond(w, r).BadRequest(err.Error())
			return
		}
		pos = t
	}

	lines := lyricSyncer.Lines()
	idx := lyricSyncer.ActiveIndex(pos)
	resp := ActiveLineResponse{Index: idx, Position: pos}
	if idx >= 0 && idx < len(lines) {
		resp.Line = &lines[idx]
		resp.Time = lines[idx].Time
	}
	Respond(w, r).SetLyricsStatus(lyricSyncer.Status()).JSON(resp)
}

func reloadLyricsHandler(w http.ResponseWriter, r *http.Request) {
	cur, ok := musicPlayer.CurrentTrack()
	if !ok {
		Respond(w, r).Fail(player.ErrNoCurrentTrack)
		return
	}

	if err := lyricSyncer.Reload(r.Context(), cur.ID.String()); err != nil {
		Respond(w, r).SetTrack(cur.ID).Fail(err)
		return
	}
	getLyricsHandler(w, r)
}

func lyricsCacheHandler(w http.ResponseWriter, r *http.Request) {
	if lyricsCache == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "lyrics cache is disabled"})
		return
	}
	keys, sizeKB := lyricsCache.Stats()
	Respond(w, r).JSON(LyricsCacheResponse{
		NumberOfKeys: keys,
		SizeInKB:     sizeKB,
		HitRate:      stats.Get().LyricsCacheHitRate(),
	})
}

func clearLyricsCacheHandler(w http.ResponseWriter, r *http.Request) {
	if lyricsCache == nil {
		Respond(w, r).Error(http.StatusNotFound, ErrorResponse{Error: "lyrics cache is disabled"})
		return
	}
	if err := lyricsCache.Clear(); err != nil {
		Respond(w, r).Fail(err)
		return
	}
	log.Infof("%s Lyrics cache cleared via API", logcolors.LogStore)
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Lyrics cache cleared",
	})
}

// ---- Preferences ----

func getPreferences(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(userSettings.Get())
}

// updatePreferences applies a partial JSON document on top of the current
// preferences and writes the file
func updatePreferences(w http.ResponseWriter, r *http.Request) {
	next := userSettings.Get()
	if err := decodeBody(r, &next, false); err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}

	saved, err := userSettings.Update(func(p *settings.Preferences) { *p = next })
	if err != nil {
		Respond(w, r).BadRequest(err.Error())
		return
	}
	Respond(w, r).JSON(saved)
}

// ---- Stats / health ----

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()
	snapshot["circuit_breaker"] = catalogClient.Breaker().Snapshot()
	if lyricsCache != nil {
		keys, sizeKB := lyricsCache.Stats()
		snapshot["lyrics_cache"] = map[string]interface{}{
			"number_of_keys": keys,
			"size_kb":        sizeKB,
		}
	}
	Respond(w, r).JSON(snapshot)
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	breaker := catalogClient.Breaker()
	state := musicPlayer.State()

	health := map[string]interface{}{
		"status":          "ok",
		"uptime":          stats.Get().Uptime().Round(time.Second).String(),
		"circuit_breaker": breaker.State().String(),
		"playing":         state.IsPlaying,
	}

	if breaker.IsOpen() {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = breaker.TimeUntilRetry().Round(time.Second).String()
	}
	if state.LastError != "" {
		health["last_error"] = state.LastError
	}

	Respond(w, r).JSON(health)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"breaker": catalogClient.Breaker().Snapshot(),
		"config": map[string]interface{}{
			"threshold":    conf.Catalog.CircuitBreakerThreshold,
			"cooldown_sec": conf.Catalog.CircuitBreakerCooldownSecs,
		},
	})
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	catalogClient.Breaker().Reset()
	log.Infof("%s Reset via API", logcolors.CircuitBreakerPrefix(catalogClient.Breaker().Snapshot().Name))

	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"name": "music-player-go",
		"endpoints": map[string]string{
			"GET /state":                  "Transport state, current track and play mode",
			"GET /queue":                  "Active and base queue",
			"PUT /queue":                  "Replace the queue: {tracks, startIndex, autoplay}",
			"POST /queue/add":             "Append tracks, skipping duplicates",
			"DELETE /queue/{id}":          "Remove one track",
			"POST /queue/remove":          "Remove a list of track ids",
			"POST /queue/move":            "Reorder: ?from=&to=",
			"POST /queue/next/{id}":       "Play a queued track next",
			"DELETE /queue":               "Stop and clear the queue",
			"POST /play":                  "Play the current track, or {track, index}",
			"POST /play/{index}":          "Play the queue entry at index",
			"POST /pause|resume|toggle":   "Transport controls",
			"POST /stop|next|previous":    "Transport controls",
			"POST /seek":                  "Seek: ?t=seconds",
			"POST /seek/progress":         "Seek: ?pct=0-100",
			"POST /volume":                "Volume: ?v=0-1",
			"POST /mute":                  "Toggle mute",
			"POST /mode":                  "Play mode: ?m=sequential|single|shuffle",
			"POST /mode/toggle":           "Cycle play mode",
			"POST /error/clear":           "Clear the last error",
			"GET /lyrics":                 "Merged lyric lines and the active index",
			"GET /lyrics/active":          "Active line for ?t= or the live position",
			"POST /lyrics/reload":         "Refetch lyrics for the current track",
			"GET|DELETE /lyrics/cache":    "Lyrics cache stats / clear",
			"GET|PUT /preferences":        "User preferences",
			"GET /history":                "Play history",
			"DELETE /history":             "Clear play history",
			"GET /stats":                  "Counters",
			"GET /health":                 "Health",
			"GET /circuit-breaker":        "Catalog circuit breaker",
			"POST /circuit-breaker/reset": "Reset the catalog circuit breaker",
		},
	})
}
