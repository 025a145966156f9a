package player

import "context"

// EventKind names a state change reported by the output device
type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventEnded
	EventLoadStart
	EventCanPlay
	EventTimeUpdate
	EventVolumeChange
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventEnded:
		return "ended"
	case EventLoadStart:
		return "load-start"
	case EventCanPlay:
		return "can-play"
	case EventTimeUpdate:
		return "time-update"
	case EventVolumeChange:
		return "volume-change"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one message from the device to the transport.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Position float64 // seconds, EventTimeUpdate
	Duration float64 // seconds, EventCanPlay
	Volume   float64 // EventVolumeChange
	Muted    bool    // EventVolumeChange
	Err      error   // EventError
}

// Device is the single audio output owned by the Player.
// Implementations must not block when delivering events.
type Device interface {
	Events() <-chan Event
	Source() string
	Load(src string)
	Play(ctx context.Context) error
	Pause()
	Seek(sec float64)
	SetVolume(v float64)
	SetMuted(muted bool)
	Position() float64
	Duration() float64
	Close() error
}

// Resolver turns a track id into a playable, usually time-limited, URL
type Resolver interface {
	ResolvePlayableURL(ctx context.Context, id TrackID, quality string) (string, error)
}

// Preferences supplies the audio quality used for resolution
type Preferences interface {
	AudioQuality() string
}
