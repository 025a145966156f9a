package device

import (
	"errors"
	"fmt"
	"music-player-go/logcolors"
	"music-player-go/player"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	KindSpeaker = "speaker"
	KindNull    = "null"

	eventBuffer      = 64
	defaultTick      = 250 * time.Millisecond
	defaultMaxBytes  = 200 << 20
	defaultNullTrack = 180 * time.Second
)

var (
	ErrNoSource          = errors.New("no source loaded")
	ErrAudioUnavailable  = errors.New("audio output not available in this build")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Options configures a device. Zero values fall back to defaults.
type Options struct {
	HTTPClient *http.Client
	MaxBytes   int64
	VolumeRamp time.Duration
	Tick       time.Duration

	// TrackDuration is what the null device reports for every source
	TrackDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.Tick <= 0 {
		o.Tick = defaultTick
	}
	if o.TrackDuration <= 0 {
		o.TrackDuration = defaultNullTrack
	}
	return o
}

// New builds the device named by kind. A speaker that cannot be opened
// falls back to the null device so the control API stays usable.
func New(kind string, opts Options) (player.Device, error) {
	switch strings.ToLower(kind) {
	case KindNull:
		return NewNull(opts), nil
	case KindSpeaker, "":
		d, err := NewSpeaker(opts)
		if err != nil {
			log.Warnf("%s Speaker unavailable (%v), using null device", logcolors.LogDevice, err)
			return NewNull(opts), nil
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown device %q", kind)
	}
}

// emitter delivers events without ever blocking the audio path. When the
// buffer is full the event is dropped; time updates are frequent enough
// that losing one is harmless.
type emitter struct {
	mu     sync.Mutex
	ch     chan player.Event
	closed bool
}

func newEmitter() *emitter {
	return &emitter{ch: make(chan player.Event, eventBuffer)}
}

func (e *emitter) Events() <-chan player.Event {
	return e.ch
}

func (e *emitter) emit(ev player.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		if ev.Kind != player.EventTimeUpdate {
			log.Warnf("%s Event buffer full, dropped %s", logcolors.LogDevice, ev.Kind)
		}
	}
}

// close ends the event stream; later emits are discarded
func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}

// session identifies one loaded source. Callbacks from a previous source
// carry an old id and are ignored.
type session struct {
	mu sync.Mutex
	id string
}

func (s *session) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	return s.id
}

func (s *session) current(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id == id
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
