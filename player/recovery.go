package player

import (
	"context"
	"errors"
	"music-player-go/logcolors"
	"music-player-go/stats"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultRetryWindow is how long a track id stays blocked after a recovery attempt
const DefaultRetryWindow = 10 * time.Second

var errEmptyURL = errors.New("resolver returned an empty url")

// retryRegistry remembers when each track id last attempted recovery
type retryRegistry struct {
	mu       sync.Mutex
	window   time.Duration
	attempts map[TrackID]time.Time
	now      func() time.Time
}

func newRetryRegistry(window time.Duration) *retryRegistry {
	if window <= 0 {
		window = DefaultRetryWindow
	}
	return &retryRegistry{
		window:   window,
		attempts: make(map[TrackID]time.Time),
		now:      time.Now,
	}
}

// allow reports whether id may retry now and, if so, records the attempt
func (r *retryRegistry) allow(id TrackID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, at := range r.attempts {
		if now.Sub(at) > r.window {
			delete(r.attempts, key)
		}
	}

	if _, blocked := r.attempts[id]; blocked {
		return false
	}
	r.attempts[id] = now
	return true
}

// recover re-resolves the current track once per window and tries to play it
// again. It never returns an error; failures are only logged.
func (p *Player) recover(ctx context.Context) bool {
	p.mu.Lock()
	cur := p.queue.current
	if cur == nil {
		p.mu.Unlock()
		return false
	}
	id := cur.ID
	if cur.IsLocal {
		p.mu.Unlock()
		log.Debugf("%s Skipping recovery for local track %s", logcolors.LogRecovery, logcolors.Track(id.String()))
		return false
	}
	if !p.retries.allow(id) {
		p.mu.Unlock()
		log.Debugf("%s Recovery for %s already attempted within %v", logcolors.LogRecovery, logcolors.Track(id.String()), p.retries.window)
		return false
	}
	p.state.IsLoading = true
	gen := p.generation
	quality := p.audioQuality()
	p.mu.Unlock()

	stats.Get().RecordRecoveryAttempt()
	log.Infof("%s Refreshing URL for %s", logcolors.LogRecovery, logcolors.Track(id.String()))

	url, err := p.resolver.ResolvePlayableURL(ctx, id, quality)
	if err == nil && url == "" {
		err = errEmptyURL
	}
	if err != nil {
		p.mu.Lock()
		if p.attemptCurrentLocked(gen, cur) {
			p.state.IsLoading = false
		}
		p.mu.Unlock()
		log.Warnf("%s Refresh failed for %s: %v", logcolors.LogRecovery, logcolors.Track(id.String()), err)
		return false
	}

	p.mu.Lock()
	if !p.attemptCurrentLocked(gen, cur) {
		p.mu.Unlock()
		log.Debugf("%s Dropping stale refresh for %s", logcolors.LogRecovery, logcolors.Track(id.String()))
		return false
	}
	p.storeResolvedURL(cur, url)
	reload := p.device.Source() != url
	p.mu.Unlock()

	if reload {
		p.device.Load(url)
	}
	err = p.device.Play(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.IsLoading = false
	if err != nil {
		log.Warnf("%s Replay failed for %s: %v", logcolors.LogRecovery, logcolors.Track(id.String()), err)
		return false
	}
	if p.attemptCurrentLocked(gen, cur) {
		p.state.IsPlaying = true
		p.state.IsPaused = false
		p.state.LastError = ""
	}
	stats.Get().RecordRecoverySuccess()
	log.Infof("%s Recovered playback of %s", logcolors.LogRecovery, logcolors.Track(id.String()))
	return true
}
