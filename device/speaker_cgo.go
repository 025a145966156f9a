//go:build (linux && cgo) || windows || darwin

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"music-player-go/logcolors"
	"music-player-go/player"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	log "github.com/sirupsen/logrus"
)

const outputRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	return speakerErr
}

// Speaker plays through the system audio output. The source is fetched
// and decoded on the first Play after a Load.
type Speaker struct {
	*emitter
	opts Options
	sess session

	mu       sync.Mutex
	src      string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	attached bool
	volume   float64
	muted    bool
	playing  bool
	closed   bool
	ticker   chan struct{}
	wg       sync.WaitGroup
}

var _ player.Device = (*Speaker)(nil)

func NewSpeaker(opts Options) (player.Device, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	log.Infof("%s Speaker initialized at %d Hz", logcolors.LogDevice, outputRate)
	return &Speaker{
		emitter: newEmitter(),
		opts:    opts.withDefaults(),
		volume:  1,
	}, nil
}

func (d *Speaker) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.src
}

func (d *Speaker) Load(src string) {
	d.mu.Lock()
	d.releaseLocked()
	d.src = src
	d.sess.next()
	d.mu.Unlock()

	d.emit(player.Event{Kind: player.EventLoadStart})
}

// releaseLocked stops output and frees the decoded stream
func (d *Speaker) releaseLocked() {
	d.stopTickerLocked()
	d.playing = false
	if d.attached {
		speaker.Clear()
		d.attached = false
	}
	if d.streamer != nil {
		d.streamer.Close()
	}
	d.streamer = nil
	d.ctrl = nil
	d.vol = nil
}

func (d *Speaker) Play(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("device closed")
	}
	if d.src == "" {
		d.mu.Unlock()
		return ErrNoSource
	}

	if d.streamer == nil {
		src := d.src
		id := d.sess.id
		d.mu.Unlock()

		streamer, format, err := d.open(ctx, src)
		if err != nil {
			return err
		}

		d.mu.Lock()
		if !d.sess.current(id) || d.closed {
			d.mu.Unlock()
			streamer.Close()
			return errors.New("source replaced while loading")
		}
		d.streamer = streamer
		d.format = format
		d.emit(player.Event{Kind: player.EventCanPlay, Duration: format.SampleRate.D(streamer.Len()).Seconds()})
	}
	defer d.mu.Unlock()

	if d.playing {
		return nil
	}
	if !d.attached {
		if err := d.attachLocked(); err != nil {
			return err
		}
	}

	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
	d.playing = true
	d.startTickerLocked()
	d.rampLocked()

	d.emit(player.Event{Kind: player.EventStarted})
	return nil
}

func (d *Speaker) open(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
	data, err := fetchSource(ctx, d.opts.HTTPClient, src, d.opts.MaxBytes)
	if err != nil {
		return nil, beep.Format{}, err
	}

	switch kind := detectFormat(data, src); kind {
	case "mp3", "":
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case "wav":
		return wav.Decode(bytes.NewReader(data))
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}

// attachLocked hands the stream to the mixer, rewinding a finished track
func (d *Speaker) attachLocked() error {
	speaker.Lock()
	if d.streamer.Position() >= d.streamer.Len() {
		if err := d.streamer.Seek(0); err != nil {
			speaker.Unlock()
			return err
		}
	}
	speaker.Unlock()

	id := d.sess.id
	resampled := beep.Resample(4, d.format.SampleRate, outputRate, d.streamer)
	d.ctrl = &beep.Ctrl{Streamer: resampled, Paused: true}
	d.vol = &effects.Volume{Streamer: d.ctrl, Base: 2}
	d.applyVolumeLocked(d.volume)

	speaker.Play(beep.Seq(d.vol, beep.Callback(func() {
		// Runs inside the mixer; must not take the speaker lock
		go d.finished(id)
	})))
	d.attached = true
	return nil
}

func (d *Speaker) finished(id string) {
	d.mu.Lock()
	if !d.sess.current(id) || !d.attached {
		d.mu.Unlock()
		return
	}
	d.attached = false
	d.playing = false
	d.stopTickerLocked()
	dur := d.format.SampleRate.D(d.streamer.Len()).Seconds()
	d.mu.Unlock()

	d.emit(player.Event{Kind: player.EventTimeUpdate, Position: dur})
	d.emit(player.Event{Kind: player.EventEnded})
}

func (d *Speaker) Pause() {
	d.mu.Lock()
	if !d.playing || d.ctrl == nil {
		d.mu.Unlock()
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
	d.playing = false
	d.stopTickerLocked()
	d.mu.Unlock()

	d.emit(player.Event{Kind: player.EventPaused})
}

func (d *Speaker) Seek(sec float64) {
	d.mu.Lock()
	if d.streamer == nil {
		d.mu.Unlock()
		return
	}
	n := d.format.SampleRate.N(time.Duration(sec * float64(time.Second)))
	if n < 0 {
		n = 0
	}
	if last := d.streamer.Len() - 1; n > last {
		n = last
	}
	speaker.Lock()
	err := d.streamer.Seek(n)
	speaker.Unlock()
	pos := d.format.SampleRate.D(n).Seconds()
	d.mu.Unlock()

	if err != nil {
		log.Warnf("%s Seek failed: %v", logcolors.LogDevice, err)
		d.emit(player.Event{Kind: player.EventError, Err: err})
		return
	}
	d.emit(player.Event{Kind: player.EventTimeUpdate, Position: pos})
}

func (d *Speaker) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = clampUnit(v)
	d.applyVolumeLocked(d.volume)
	ev := player.Event{Kind: player.EventVolumeChange, Volume: d.volume, Muted: d.muted}
	d.mu.Unlock()

	d.emit(ev)
}

func (d *Speaker) SetMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	d.applyVolumeLocked(d.volume)
	ev := player.Event{Kind: player.EventVolumeChange, Volume: d.volume, Muted: d.muted}
	d.mu.Unlock()

	d.emit(ev)
}

// applyVolumeLocked maps a linear gain onto the exponential volume effect
func (d *Speaker) applyVolumeLocked(gain float64) {
	if d.vol == nil {
		return
	}
	speaker.Lock()
	d.vol.Silent = d.muted || gain <= 0
	if gain > 0 {
		d.vol.Volume = math.Log2(gain)
	}
	speaker.Unlock()
}

// rampLocked fades in from silence over the configured ramp
func (d *Speaker) rampLocked() {
	ramp := d.opts.VolumeRamp
	if ramp <= 0 || d.muted {
		return
	}

	const steps = 10
	id := d.sess.id
	d.applyVolumeLocked(0)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for i := 1; i <= steps; i++ {
			time.Sleep(ramp / steps)
			d.mu.Lock()
			if !d.sess.current(id) || !d.playing {
				d.mu.Unlock()
				return
			}
			d.applyVolumeLocked(d.volume * float64(i) / steps)
			d.mu.Unlock()
		}
	}()
}

func (d *Speaker) startTickerLocked() {
	d.stopTickerLocked()
	stop := make(chan struct{})
	d.ticker = stop

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		t := time.NewTicker(d.opts.Tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				d.emit(player.Event{Kind: player.EventTimeUpdate, Position: d.Position()})
			}
		}
	}()
}

func (d *Speaker) stopTickerLocked() {
	if d.ticker != nil {
		close(d.ticker)
		d.ticker = nil
	}
}

func (d *Speaker) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := d.streamer.Position()
	speaker.Unlock()
	return d.format.SampleRate.D(pos).Seconds()
}

func (d *Speaker) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0
	}
	return d.format.SampleRate.D(d.streamer.Len()).Seconds()
}

func (d *Speaker) Close() error {
	d.mu.Lock()
	d.releaseLocked()
	d.closed = true
	d.sess.next()
	d.mu.Unlock()

	d.wg.Wait()
	d.emitter.close()
	return nil
}
