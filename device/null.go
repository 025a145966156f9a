package device

import (
	"context"
	"errors"
	"music-player-go/logcolors"
	"music-player-go/player"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Null is a silent device that advances a virtual clock. It reports the
// same events as a real output and is used headless and in tests.
type Null struct {
	*emitter
	opts Options

	mu       sync.Mutex
	src      string
	position float64
	duration float64
	volume   float64
	muted    bool
	playing  bool
	closed   bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

var _ player.Device = (*Null)(nil)

func NewNull(opts Options) *Null {
	return &Null{
		emitter: newEmitter(),
		opts:    opts.withDefaults(),
		volume:  1,
	}
}

func (d *Null) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.src
}

func (d *Null) Load(src string) {
	d.mu.Lock()
	d.haltLocked()
	d.src = src
	d.position = 0
	d.duration = 0
	d.mu.Unlock()

	d.emit(player.Event{Kind: player.EventLoadStart})
}

func (d *Null) Play(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("device closed")
	}
	if d.src == "" {
		return ErrNoSource
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.duration == 0 {
		d.duration = d.opts.TrackDuration.Seconds()
		d.emit(player.Event{Kind: player.EventCanPlay, Duration: d.duration})
	}
	if d.playing {
		return nil
	}
	if d.position >= d.duration {
		d.position = 0
	}

	d.playing = true
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go d.run(d.stop)

	d.emit(player.Event{Kind: player.EventStarted})
	log.Debugf("%s Null device playing %s", logcolors.LogDevice, d.src)
	return nil
}

// run advances the clock one tick at a time until paused, replaced or ended
func (d *Null) run(stop chan struct{}) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.opts.Tick)
	defer ticker.Stop()

	step := d.opts.Tick.Seconds()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			if !d.playing || d.stop != stop {
				d.mu.Unlock()
				return
			}
			d.position += step
			ended := d.position >= d.duration
			if ended {
				d.position = d.duration
				d.playing = false
			}
			pos := d.position
			d.mu.Unlock()

			d.emit(player.Event{Kind: player.EventTimeUpdate, Position: pos})
			if ended {
				d.emit(player.Event{Kind: player.EventEnded})
				return
			}
		}
	}
}

// haltLocked stops the clock goroutine without emitting anything
func (d *Null) haltLocked() {
	if d.playing {
		d.playing = false
		close(d.stop)
	}
}

func (d *Null) Pause() {
	d.mu.Lock()
	wasPlaying := d.playing
	d.haltLocked()
	d.mu.Unlock()

	if wasPlaying {
		d.emit(player.Event{Kind: player.EventPaused})
	}
}

func (d *Null) Seek(sec float64) {
	d.mu.Lock()
	if sec < 0 {
		sec = 0
	}
	if d.duration > 0 && sec > d.duration {
		sec = d.duration
	}
	d.position = sec
	d.mu.Unlock()

	d.emit(player.Event{Kind: player.EventTimeUpdate, Position: sec})
}

func (d *Null) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = clampUnit(v)
	ev := player.Event{Kind: player.EventVolumeChange, Volume: d.volume, Muted: d.muted}
	d.mu.Unlock()

	d.emit(ev)
}

func (d *Null) SetMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	ev := player.Event{Kind: player.EventVolumeChange, Volume: d.volume, Muted: d.muted}
	d.mu.Unlock()

	d.emit(ev)
}

func (d *Null) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *Null) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

func (d *Null) Close() error {
	d.mu.Lock()
	d.haltLocked()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	d.emitter.close()
	return nil
}
