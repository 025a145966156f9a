package player

import (
	"context"
	"fmt"
	"math"
	"music-player-go/logcolors"
	"music-player-go/stats"

	log "github.com/sirupsen/logrus"
)

// User-visible error strings carried on TransportState.LastError
const (
	MsgResolveFailed = "Failed to get the audio URL"
	MsgPlayFailed    = "Playback failed, please check your network connection"
	MsgDeviceError   = "Playback error, please retry"
)

// TransportState mirrors what the device is doing with the current track
type TransportState struct {
	IsPlaying      bool    `json:"isPlaying"`
	IsPaused       bool    `json:"isPaused"`
	IsLoading      bool    `json:"isLoading"`
	PositionSec    float64 `json:"positionSec"`
	DurationSec    float64 `json:"durationSec"`
	Volume         float64 `json:"volume"`
	IsMuted        bool    `json:"isMuted"`
	PreviousVolume float64 `json:"previousVolume"`
	LastError      string  `json:"lastError,omitempty"`
}

// Progress is the position as a percentage of the duration
func (s TransportState) Progress() float64 {
	if s.DurationSec <= 0 {
		return 0
	}
	return s.PositionSec / s.DurationSec * 100
}

// FormatTime renders seconds as mm:ss
func FormatTime(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return "00:00"
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

// Play makes track current and starts it. A nil track plays the current one.
// The URL is resolved first when the track has none and is not local.
func (p *Player) Play(ctx context.Context, track *Track, index int) error {
	p.ensureInit()
	defer p.notifyCurrent()

	p.mu.Lock()
	if track != nil {
		p.selectTrack(track, index)
	}
	cur := p.queue.current
	if cur == nil {
		p.mu.Unlock()
		return ErrNoCurrentTrack
	}
	p.generation++
	gen := p.generation
	p.state.LastError = ""

	if cur.ResolvedURL == "" && !cur.IsLocal {
		p.state.IsLoading = true
		quality := p.audioQuality()
		p.mu.Unlock()
		p.notifyCurrent()

		log.Debugf("%s Resolving %s at %s", logcolors.LogResolve, logcolors.Track(cur.ID.String()), quality)
		url, err := p.resolver.ResolvePlayableURL(ctx, cur.ID, quality)
		if err == nil && url == "" {
			err = errEmptyURL
		}

		p.mu.Lock()
		if !p.attemptCurrentLocked(gen, cur) {
			p.mu.Unlock()
			log.Debugf("%s Discarding resolution for %s, track changed", logcolors.LogResolve, logcolors.Track(cur.ID.String()))
			return ErrStaleResolution
		}
		if err != nil {
			p.state.LastError = MsgResolveFailed
			p.state.IsLoading = false
			p.mu.Unlock()
			stats.Get().RecordResolveFailure()
			log.Warnf("%s Failed to resolve %s: %v", logcolors.LogResolve, logcolors.Track(cur.ID.String()), err)
			return fmt.Errorf("resolve %s: %w", cur.ID, err)
		}
		p.storeResolvedURL(cur, url)
	}

	src := cur.ResolvedURL
	reload := p.device.Source() != src
	p.mu.Unlock()

	if reload {
		p.device.Load(src)
	}
	err := p.device.Play(ctx)

	p.mu.Lock()
	if !p.attemptCurrentLocked(gen, cur) {
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		p.state.LastError = MsgPlayFailed
		p.state.IsLoading = false
		p.mu.Unlock()
		stats.Get().RecordPlaybackError()
		log.Warnf("%s Device rejected %s: %v", logcolors.LogTransport, logcolors.Track(cur.ID.String()), err)
		if p.recover(ctx) {
			return nil
		}
		return fmt.Errorf("start %s: %w", cur.ID, err)
	}

	p.state.IsPlaying = true
	p.state.IsPaused = false
	p.state.IsLoading = false
	p.history.Add(cur)
	p.mu.Unlock()

	stats.Get().RecordTrackStarted()
	log.Infof("%s Playing %s (%s)", logcolors.LogTransport, logcolors.Track(cur.ID.String()), cur.Name)
	return nil
}

// attemptCurrentLocked reports whether the attempt started under gen for cur
// still owns the transport
func (p *Player) attemptCurrentLocked(gen uint64, cur *Track) bool {
	return gen == p.generation && p.queue.current == cur
}

// Pause only acts while playing
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.IsPlaying {
		return
	}
	p.device.Pause()
	p.state.IsPlaying = false
	p.state.IsPaused = true
}

// Resume continues the loaded source, or goes through Play when nothing
// has been loaded yet.
func (p *Player) Resume(ctx context.Context) error {
	p.mu.Lock()
	if p.state.IsPlaying {
		p.mu.Unlock()
		return nil
	}
	if p.queue.current == nil {
		p.mu.Unlock()
		return ErrNoCurrentTrack
	}
	loaded := p.device.Source() != "" && p.device.Source() == p.queue.current.ResolvedURL
	p.mu.Unlock()

	if !loaded {
		return p.Play(ctx, nil, -1)
	}

	if err := p.device.Play(ctx); err != nil {
		p.mu.Lock()
		p.state.LastError = MsgPlayFailed
		p.mu.Unlock()
		if p.recover(ctx) {
			return nil
		}
		return fmt.Errorf("resume: %w", err)
	}

	p.mu.Lock()
	p.state.IsPlaying = true
	p.state.IsPaused = false
	p.mu.Unlock()
	return nil
}

// Toggle pauses when playing, otherwise plays the current track,
// falling back to the head of the queue.
func (p *Player) Toggle(ctx context.Context) error {
	p.ensureInit()

	p.mu.Lock()
	if p.state.IsPlaying {
		p.mu.Unlock()
		p.Pause()
		return nil
	}
	if p.queue.current == nil && p.queue.len() > 0 {
		p.queue.setCurrent(0)
	}
	if p.queue.current == nil {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	p.mu.Unlock()

	return p.Play(ctx, nil, -1)
}

// Stop rewinds and clears the playing flags. The current track stays.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	p.generation++
	p.device.Pause()
	p.device.Seek(0)
	p.state.IsPlaying = false
	p.state.IsPaused = false
	p.state.IsLoading = false
	p.state.PositionSec = 0
}

// Seek is ignored until the duration is known
func (p *Player) Seek(sec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekLocked(sec)
}

func (p *Player) seekLocked(sec float64) {
	if p.state.DurationSec <= 0 || math.IsNaN(sec) {
		return
	}
	t := clamp(sec, 0, p.state.DurationSec)
	p.device.Seek(t)
	p.state.PositionSec = t
}

// SeekByProgress maps a 0-100 percentage onto the duration
func (p *Player) SeekByProgress(pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.DurationSec <= 0 {
		return
	}
	p.seekLocked(pct / 100 * p.state.DurationSec)
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setVolumeLocked(v)
}

func (p *Player) setVolumeLocked(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = clamp(v, 0, 1)
	p.device.SetVolume(v)
	p.state.Volume = v
}

// ToggleMute remembers the volume on mute and restores it on unmute
func (p *Player) ToggleMute() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.IsMuted {
		p.device.SetMuted(false)
		p.state.IsMuted = false
		restore := p.state.PreviousVolume
		if restore <= 0 {
			restore = 1
		}
		p.setVolumeLocked(restore)
		return
	}

	p.state.PreviousVolume = p.state.Volume
	p.device.SetMuted(true)
	p.state.IsMuted = true
	p.setVolumeLocked(0)
}

func (p *Player) ClearError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LastError = ""
}

// HandleEvent applies one device event to the transport state
func (p *Player) HandleEvent(ctx context.Context, ev Event) {
	p.mu.Lock()

	switch ev.Kind {
	case EventStarted:
		p.state.IsPlaying = true
		p.state.IsPaused = false
		p.state.LastError = ""
		cur := p.queue.current.Clone()
		hook := p.onTrackStarted
		p.mu.Unlock()
		if hook != nil && cur != nil {
			hook(*cur)
		}
		return

	case EventPaused:
		p.state.IsPlaying = false
		p.state.IsPaused = true

	case EventEnded:
		p.state.IsPlaying = false
		p.mu.Unlock()
		p.handleTrackEnd(ctx)
		return

	case EventLoadStart:
		p.state.IsLoading = true

	case EventCanPlay:
		p.state.IsLoading = false
		p.state.DurationSec = math.Max(ev.Duration, 0)

	case EventTimeUpdate:
		p.state.PositionSec = math.Max(ev.Position, 0)

	case EventVolumeChange:
		p.state.Volume = clamp(ev.Volume, 0, 1)
		p.state.IsMuted = ev.Muted

	case EventError:
		p.state.LastError = MsgDeviceError
		p.state.IsLoading = false
		p.state.IsPlaying = false
		p.mu.Unlock()
		stats.Get().RecordPlaybackError()
		log.Errorf("%s Device error: %v", logcolors.LogDevice, ev.Err)
		p.recover(ctx)
		return
	}

	p.mu.Unlock()
}

// handleTrackEnd replays in single-repeat mode and advances otherwise
func (p *Player) handleTrackEnd(ctx context.Context) {
	p.mu.Lock()
	mode := p.queue.mode
	p.mu.Unlock()

	var err error
	if mode == ModeSingleRepeat {
		err = p.Play(ctx, nil, -1)
	} else {
		err = p.Next(ctx)
	}
	if err != nil {
		log.Warnf("%s Could not continue after track end: %v", logcolors.LogTransport, err)
	}
}
