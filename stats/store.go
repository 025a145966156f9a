package stats

import (
	"time"

	"music-player-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// PersistedStats represents the stats data that gets persisted to disk
type PersistedStats struct {
	// Cumulative counters (these accumulate across restarts)
	TotalRequests     int64 `json:"total_requests"`
	StateRequests     int64 `json:"state_requests"`
	ControlRequests   int64 `json:"control_requests"`
	QueueRequests     int64 `json:"queue_requests"`
	LyricsRequests    int64 `json:"lyrics_requests"`
	StatsRequests     int64 `json:"stats_requests"`
	HealthRequests    int64 `json:"health_requests"`
	OtherRequests     int64 `json:"other_requests"`
	TracksStarted     int64 `json:"tracks_started"`
	ResolveFailures   int64 `json:"resolve_failures"`
	PlaybackErrors    int64 `json:"playback_errors"`
	RecoveryAttempts  int64 `json:"recovery_attempts"`
	RecoverySuccesses int64 `json:"recovery_successes"`
	LyricsFetches     int64 `json:"lyrics_fetches"`
	LyricsFailures    int64 `json:"lyrics_failures"`
	LyricsDropped     int64 `json:"lyrics_dropped"`
	LyricsCacheHits   int64 `json:"lyrics_cache_hits"`
	LyricsCacheMisses int64 `json:"lyrics_cache_misses"`
	RateLimitNormal   int64 `json:"rate_limit_normal"`
	RateLimitRead     int64 `json:"rate_limit_read"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	// Response time tracking
	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`

	// Metadata
	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// Export captures the counters for persistence
func (s *Stats) Export() PersistedStats {
	return PersistedStats{
		TotalRequests:     s.TotalRequests.Load(),
		StateRequests:     s.StateRequests.Load(),
		ControlRequests:   s.ControlRequests.Load(),
		QueueRequests:     s.QueueRequests.Load(),
		LyricsRequests:    s.LyricsRequests.Load(),
		StatsRequests:     s.StatsRequests.Load(),
		HealthRequests:    s.HealthRequests.Load(),
		OtherRequests:     s.OtherRequests.Load(),
		TracksStarted:     s.TracksStarted.Load(),
		ResolveFailures:   s.ResolveFailures.Load(),
		PlaybackErrors:    s.PlaybackErrors.Load(),
		RecoveryAttempts:  s.RecoveryAttempts.Load(),
		RecoverySuccesses: s.RecoverySuccesses.Load(),
		LyricsFetches:     s.LyricsFetches.Load(),
		LyricsFailures:    s.LyricsFailures.Load(),
		LyricsDropped:     s.LyricsDropped.Load(),
		LyricsCacheHits:   s.LyricsCacheHits.Load(),
		LyricsCacheMisses: s.LyricsCacheMisses.Load(),
		RateLimitNormal:   s.RateLimitNormal.Load(),
		RateLimitRead:     s.RateLimitRead.Load(),
		RateLimitExceeded: s.RateLimitExceeded.Load(),
		Status2xx:         s.Status2xx.Load(),
		Status4xx:         s.Status4xx.Load(),
		Status5xx:         s.Status5xx.Load(),
		TotalResponseTime: s.totalResponseTime.Load(),
		ResponseCount:     s.responseCount.Load(),
		MinResponseTime:   s.minResponseTime.Load(),
		MaxResponseTime:   s.maxResponseTime.Load(),
		LastSaved:         time.Now(),
		FirstStarted:      s.StartTime,
	}
}

// Import applies persisted counters on top of a fresh instance
func (s *Stats) Import(persisted PersistedStats) {
	s.TotalRequests.Store(persisted.TotalRequests)
	s.StateRequests.Store(persisted.StateRequests)
	s.ControlRequests.Store(persisted.ControlRequests)
	s.QueueRequests.Store(persisted.QueueRequests)
	s.LyricsRequests.Store(persisted.LyricsRequests)
	s.StatsRequests.Store(persisted.StatsRequests)
	s.HealthRequests.Store(persisted.HealthRequests)
	s.OtherRequests.Store(persisted.OtherRequests)
	s.TracksStarted.Store(persisted.TracksStarted)
	s.ResolveFailures.Store(persisted.ResolveFailures)
	s.PlaybackErrors.Store(persisted.PlaybackErrors)
	s.RecoveryAttempts.Store(persisted.RecoveryAttempts)
	s.RecoverySuccesses.Store(persisted.RecoverySuccesses)
	s.LyricsFetches.Store(persisted.LyricsFetches)
	s.LyricsFailures.Store(persisted.LyricsFailures)
	s.LyricsDropped.Store(persisted.LyricsDropped)
	s.LyricsCacheHits.Store(persisted.LyricsCacheHits)
	s.LyricsCacheMisses.Store(persisted.LyricsCacheMisses)
	s.RateLimitNormal.Store(persisted.RateLimitNormal)
	s.RateLimitRead.Store(persisted.RateLimitRead)
	s.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	s.Status2xx.Store(persisted.Status2xx)
	s.Status4xx.Store(persisted.Status4xx)
	s.Status5xx.Store(persisted.Status5xx)
	s.totalResponseTime.Store(persisted.TotalResponseTime)
	s.responseCount.Store(persisted.ResponseCount)

	// Only update min/max if we have valid persisted values
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < int64(^uint64(0)>>1) {
		s.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		s.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		s.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (tracks started: %d, first started: %s)",
		logcolors.LogStats, persisted.TracksStarted, persisted.FirstStarted.Format(time.RFC3339))
}
