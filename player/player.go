package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"music-player-go/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultAudioQuality is used when no preferences are wired in
const DefaultAudioQuality = "exhigh"

var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrNoCurrentTrack   = errors.New("no current track")
	ErrStaleResolution  = errors.New("resolution finished for a track that is no longer current")
	errResolverRequired = errors.New("player: resolver is required")
)

// Config wires a Player to its collaborators
type Config struct {
	Device       Device
	Resolver     Resolver
	Preferences  Preferences
	HistoryLimit int
	RetryWindow  time.Duration
	Rand         *rand.Rand // nil uses the global generator

	// OnTrackStarted runs after the device reports a start, outside the lock
	OnTrackStarted func(Track)
	// OnCurrentChanged runs outside the lock whenever the current track id
	// changes. It gets nil once nothing is current.
	OnCurrentChanged func(*Track)
}

// Player owns the queue, the transport state and the single output device
type Player struct {
	mu sync.Mutex

	device   Device
	resolver Resolver
	prefs    Preferences
	rng      *rand.Rand

	queue   *queue
	state   TransportState
	history *History
	retries *retryRegistry

	// generation increments whenever the current playback attempt is superseded
	generation uint64

	initOnce         sync.Once
	startOnce        sync.Once
	onTrackStarted   func(Track)
	onCurrentChanged func(*Track)
	notifiedID       TrackID
}

func New(cfg Config) (*Player, error) {
	if cfg.Device == nil {
		return nil, errors.New("player: device is required")
	}
	if cfg.Resolver == nil {
		return nil, errResolverRequired
	}

	return &Player{
		device:           cfg.Device,
		resolver:         cfg.Resolver,
		prefs:            cfg.Preferences,
		rng:              cfg.Rand,
		queue:            newQueue(),
		state:            TransportState{Volume: 1, PreviousVolume: 1},
		history:          NewHistory(cfg.HistoryLimit),
		retries:          newRetryRegistry(cfg.RetryWindow),
		onTrackStarted:   cfg.OnTrackStarted,
		onCurrentChanged: cfg.OnCurrentChanged,
	}, nil
}

// SetOnTrackStarted replaces the start hook
func (p *Player) SetOnTrackStarted(fn func(Track)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrackStarted = fn
}

// SetOnCurrentChanged replaces the current-track hook
func (p *Player) SetOnCurrentChanged(fn func(*Track)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCurrentChanged = fn
}

// notifyCurrent reports the current track when its id differs from the
// last one reported. Callers must not hold the lock.
func (p *Player) notifyCurrent() {
	p.mu.Lock()
	var cur *Track
	var id TrackID
	if p.queue.current != nil {
		cur = p.queue.current.Clone()
		id = cur.ID
	}
	if id == p.notifiedID {
		p.mu.Unlock()
		return
	}
	p.notifiedID = id
	hook := p.onCurrentChanged
	p.mu.Unlock()

	if hook != nil {
		hook(cur)
	}
}

// Start binds the device event stream. Calling it again does nothing.
func (p *Player) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ensureInit()
		events := p.device.Events()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						log.Infof("%s Device event stream closed", logcolors.LogDevice)
						return
					}
					p.HandleEvent(ctx, ev)
				}
			}
		}()
		log.Infof("%s Bound device events", logcolors.LogPlayer)
	})
}

// ensureInit preloads the restored current track and device levels on first use
func (p *Player) ensureInit() {
	p.initOnce.Do(func() {
		defer p.notifyCurrent()

		p.mu.Lock()
		if p.queue.len() > 0 {
			idx := p.queue.index
			if !p.queue.inRange(idx) {
				idx = 0
			}
			if p.queue.current == nil || p.queue.indexOf(p.queue.current.ID) != idx {
				p.queue.setCurrent(idx)
			}
		}
		var src string
		if p.queue.current != nil {
			src = p.queue.current.ResolvedURL
		}
		p.device.SetVolume(p.state.Volume)
		p.device.SetMuted(p.state.IsMuted)
		p.mu.Unlock()

		if src != "" {
			p.device.Load(src)
		}
	})
}

func (p *Player) audioQuality() string {
	if p.prefs == nil {
		return DefaultAudioQuality
	}
	if q := p.prefs.AudioQuality(); q != "" {
		return q
	}
	return DefaultAudioQuality
}

// selectTrack makes track current. When it is the queued entry at index the
// queue slot itself is used so a resolved URL lands there too.
func (p *Player) selectTrack(track *Track, index int) {
	if p.queue.inRange(index) && p.queue.active[index].ID == track.ID {
		p.queue.setCurrent(index)
		return
	}
	if idx := p.queue.indexOf(track.ID); idx >= 0 {
		p.queue.setCurrent(idx)
		return
	}
	p.queue.current = track.Clone()
	p.queue.index = index
}

// storeResolvedURL writes url to the current track and its queue slot
func (p *Player) storeResolvedURL(cur *Track, url string) {
	cur.ResolvedURL = url
	idx := p.queue.index
	if p.queue.inRange(idx) && p.queue.active[idx].ID == cur.ID {
		p.queue.active[idx].ResolvedURL = url
	}
}

// SetQueue replaces the queue without starting playback
func (p *Player) SetQueue(tracks []Track, startIndex int) {
	defer p.notifyCurrent()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.queue.set(cloneTracks(tracks), startIndex)
	log.Infof("%s Loaded %d tracks (start %d)", logcolors.LogQueue, len(tracks), startIndex)
}

func (p *Player) PlayByIndex(ctx context.Context, i int) error {
	p.mu.Lock()
	if !p.queue.inRange(i) {
		p.mu.Unlock()
		return fmt.Errorf("play index %d: %w", i, ErrIndexOutOfRange)
	}
	track := p.queue.active[i]
	p.mu.Unlock()

	return p.Play(ctx, track, i)
}

func (p *Player) Next(ctx context.Context) error {
	p.mu.Lock()
	i := p.queue.nextIndex(p.rng)
	if i < 0 {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	track := p.queue.active[i]
	p.mu.Unlock()

	return p.Play(ctx, track, i)
}

func (p *Player) Previous(ctx context.Context) error {
	p.mu.Lock()
	i := p.queue.previousIndex(p.rng, p.history)
	if i < 0 {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	track := p.queue.active[i]
	p.mu.Unlock()

	return p.Play(ctx, track, i)
}

func (p *Player) SetPlayMode(mode PlayMode) {
	defer p.notifyCurrent()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue.setMode(mode, p.rng)
	log.Infof("%s Play mode set to %s", logcolors.LogQueue, mode)
}

// TogglePlayMode cycles sequential, single repeat and shuffle
func (p *Player) TogglePlayMode() PlayMode {
	defer p.notifyCurrent()
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.queue.mode.Next()
	p.queue.setMode(next, p.rng)
	log.Infof("%s Play mode toggled to %s", logcolors.LogQueue, next)
	return next
}

// Add appends t unless it is already queued
func (p *Player) Add(t Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.add(t.Clone())
}

// AddMany appends every track not yet queued and returns how many were added
func (p *Player) AddMany(tracks []Track) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, t := range cloneTracks(tracks) {
		if p.queue.add(t) {
			added++
		}
	}
	if added > 0 {
		log.Debugf("%s Added %d of %d tracks", logcolors.LogQueue, added, len(tracks))
	}
	return added
}

func (p *Player) Remove(ctx context.Context, id TrackID) error {
	return p.RemoveMany(ctx, []TrackID{id})
}

// RemoveMany drops every listed id. When the current track goes, the track
// now in its slot starts; an emptied queue stops playback instead.
func (p *Player) RemoveMany(ctx context.Context, ids []TrackID) error {
	defer p.notifyCurrent()
	p.mu.Lock()

	removedCurrent := false
	slot := -1
	found := 0
	for _, id := range ids {
		idx, wasCurrent, ok := p.queue.remove(id)
		if !ok {
			continue
		}
		found++
		switch {
		case wasCurrent:
			removedCurrent = true
			slot = idx
		case removedCurrent && idx < slot:
			slot--
		}
	}

	if found == 0 {
		p.mu.Unlock()
		log.Debugf("%s Nothing to remove, none of %d ids queued", logcolors.LogQueue, len(ids))
		return nil
	}
	if !removedCurrent {
		p.mu.Unlock()
		return nil
	}

	if p.queue.len() == 0 {
		p.stopLocked()
		p.queue.setCurrent(-1)
		p.mu.Unlock()
		log.Infof("%s Removed the last track, playback stopped", logcolors.LogQueue)
		return nil
	}

	next := min(slot, p.queue.len()-1)
	track := p.queue.active[next]
	p.mu.Unlock()

	return p.Play(ctx, track, next)
}

// Move reorders the active list. Invalid indices are ignored; the result
// reports whether anything moved.
func (p *Player) Move(from, to int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if from == to {
		return false
	}
	if !p.queue.move(from, to) {
		log.Debugf("%s Ignoring move %d -> %d on %d tracks", logcolors.LogQueue, from, to, p.queue.len())
		return false
	}
	return true
}

// QueueNext places id so it plays right after the current track. Unknown
// ids are ignored.
func (p *Player) QueueNext(id TrackID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.queue.queueNext(id) {
		log.Debugf("%s Ignoring queue next for %s, not queued", logcolors.LogQueue, logcolors.Track(id.String()))
		return false
	}
	return true
}

// Clear stops playback and empties both lists
func (p *Player) Clear() {
	defer p.notifyCurrent()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.queue.clear()
	log.Infof("%s Cleared", logcolors.LogQueue)
}

func (p *Player) ClearHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history.Clear()
	log.Infof("%s Cleared", logcolors.LogHistory)
}

// Status is the read model served to the UI
type Status struct {
	Transport    TransportState `json:"transport"`
	CurrentTrack *Track         `json:"currentTrack"`
	CurrentIndex int            `json:"currentIndex"`
	PlayMode     PlayMode       `json:"playMode"`
	ModeLabel    string         `json:"playModeLabel"`
	Progress     float64        `json:"progress"`
	PositionText string         `json:"positionText"`
	DurationText string         `json:"durationText"`
	HasNext      bool           `json:"hasNext"`
	HasPrevious  bool           `json:"hasPrevious"`
	QueueLength  int            `json:"queueLength"`
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		Transport:    p.state,
		CurrentTrack: p.queue.current.Clone(),
		CurrentIndex: p.queue.index,
		PlayMode:     p.queue.mode,
		ModeLabel:    p.queue.mode.Label(),
		Progress:     p.state.Progress(),
		PositionText: FormatTime(p.state.PositionSec),
		DurationText: FormatTime(p.state.DurationSec),
		HasNext:      p.queue.hasNext(),
		HasPrevious:  p.queue.hasPrevious(),
		QueueLength:  p.queue.len(),
	}
}

// QueueView is a copy of the queue for read-only use
type QueueView struct {
	Tracks       []Track  `json:"tracks"`
	Base         []Track  `json:"base"`
	CurrentIndex int      `json:"currentIndex"`
	PlayMode     PlayMode `json:"playMode"`
}

func (p *Player) Queue() QueueView {
	p.mu.Lock()
	defer p.mu.Unlock()

	return QueueView{
		Tracks:       trackValues(p.queue.active),
		Base:         trackValues(p.queue.base),
		CurrentIndex: p.queue.index,
		PlayMode:     p.queue.mode,
	}
}

func (p *Player) History() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Items()
}

func (p *Player) CurrentTrack() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue.current == nil {
		return Track{}, false
	}
	return *p.queue.current, true
}

func (p *Player) State() TransportState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close stops playback and releases the device
func (p *Player) Close() error {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
	return p.device.Close()
}
