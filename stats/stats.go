package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all daemon statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests   atomic.Int64
	StateRequests   atomic.Int64
	ControlRequests atomic.Int64
	QueueRequests   atomic.Int64
	LyricsRequests  atomic.Int64
	StatsRequests   atomic.Int64
	HealthRequests  atomic.Int64
	OtherRequests   atomic.Int64

	// Playback
	TracksStarted     atomic.Int64
	ResolveFailures   atomic.Int64
	PlaybackErrors    atomic.Int64
	RecoveryAttempts  atomic.Int64
	RecoverySuccesses atomic.Int64

	// Lyrics
	LyricsFetches     atomic.Int64
	LyricsFailures    atomic.Int64
	LyricsDropped     atomic.Int64 // requests ignored while another fetch was in flight
	LyricsCacheHits   atomic.Int64
	LyricsCacheMisses atomic.Int64

	// Rate limiting
	RateLimitNormal   atomic.Int64 // Control requests served
	RateLimitRead     atomic.Int64 // Read-only requests served under the read tier
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

// Global stats instance
var global = &Stats{
	StartTime: time.Now(),
}

func init() {
	// Initialize min to a high value
	global.minResponseTime.Store(int64(^uint64(0) >> 1)) // Max int64
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request by endpoint group
func (s *Stats) RecordRequest(group string) {
	s.TotalRequests.Add(1)
	switch group {
	case "state":
		s.StateRequests.Add(1)
	case "control":
		s.ControlRequests.Add(1)
	case "queue":
		s.QueueRequests.Add(1)
	case "lyrics":
		s.LyricsRequests.Add(1)
	case "stats":
		s.StatsRequests.Add(1)
	case "health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

func (s *Stats) RecordTrackStarted() {
	s.TracksStarted.Add(1)
}

func (s *Stats) RecordResolveFailure() {
	s.ResolveFailures.Add(1)
}

func (s *Stats) RecordPlaybackError() {
	s.PlaybackErrors.Add(1)
}

func (s *Stats) RecordRecoveryAttempt() {
	s.RecoveryAttempts.Add(1)
}

func (s *Stats) RecordRecoverySuccess() {
	s.RecoverySuccesses.Add(1)
}

// RecordLyricsFetch records a finished lyric fetch
func (s *Stats) RecordLyricsFetch(ok bool) {
	s.LyricsFetches.Add(1)
	if !ok {
		s.LyricsFailures.Add(1)
	}
}

func (s *Stats) RecordLyricsDropped() {
	s.LyricsDropped.Add(1)
}

func (s *Stats) RecordLyricsCacheHit() {
	s.LyricsCacheHits.Add(1)
}

func (s *Stats) RecordLyricsCacheMiss() {
	s.LyricsCacheMisses.Add(1)
}

// RecordRateLimit records rate limit tier usage
func (s *Stats) RecordRateLimit(tier string) {
	switch tier {
	case "normal":
		s.RateLimitNormal.Add(1)
	case "read":
		s.RateLimitRead.Add(1)
	case "exceeded":
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the daemon uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// LyricsCacheHitRate returns the lyric cache hit rate as a percentage
func (s *Stats) LyricsCacheHitRate() float64 {
	hits := s.LyricsCacheHits.Load()
	total := hits + s.LyricsCacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == int64(^uint64(0)>>1) {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":   s.TotalRequests.Load(),
			"state":   s.StateRequests.Load(),
			"control": s.ControlRequests.Load(),
			"queue":   s.QueueRequests.Load(),
			"lyrics":  s.LyricsRequests.Load(),
			"stats":   s.StatsRequests.Load(),
			"health":  s.HealthRequests.Load(),
			"other":   s.OtherRequests.Load(),
		},
		"playback": map[string]interface{}{
			"tracks_started":     s.TracksStarted.Load(),
			"resolve_failures":   s.ResolveFailures.Load(),
			"playback_errors":    s.PlaybackErrors.Load(),
			"recovery_attempts":  s.RecoveryAttempts.Load(),
			"recovery_successes": s.RecoverySuccesses.Load(),
		},
		"lyrics": map[string]interface{}{
			"fetches":        s.LyricsFetches.Load(),
			"failures":       s.LyricsFailures.Load(),
			"dropped":        s.LyricsDropped.Load(),
			"cache_hits":     s.LyricsCacheHits.Load(),
			"cache_misses":   s.LyricsCacheMisses.Load(),
			"cache_hit_rate": s.LyricsCacheHitRate(),
		},
		"rate_limiting": map[string]interface{}{
			"normal_tier": s.RateLimitNormal.Load(),
			"read_tier":   s.RateLimitRead.Load(),
			"exceeded":    s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
