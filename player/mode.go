package player

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlayMode decides what happens on next/previous and at the end of a track
type PlayMode int

const (
	ModeSequential   PlayMode = iota // Wrap-around linear order
	ModeSingleRepeat                 // Replay the current track
	ModeShuffle                      // Randomized order, history-backed previous
)

var modeCycle = []PlayMode{ModeSequential, ModeSingleRepeat, ModeShuffle}

func (m PlayMode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeSingleRepeat:
		return "single"
	case ModeShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// Label is the human readable name shown next to the mode button
func (m PlayMode) Label() string {
	switch m {
	case ModeSequential:
		return "List loop"
	case ModeSingleRepeat:
		return "Single loop"
	case ModeShuffle:
		return "Shuffle"
	default:
		return "Unknown"
	}
}

// Next returns the mode that follows m in the toggle cycle
func (m PlayMode) Next() PlayMode {
	for i, mode := range modeCycle {
		if mode == m {
			return modeCycle[(i+1)%len(modeCycle)]
		}
	}
	return ModeSequential
}

func (m PlayMode) Valid() bool {
	return m >= ModeSequential && m <= ModeShuffle
}

// ParsePlayMode accepts the canonical names plus the aliases used by older clients
func ParsePlayMode(s string) (PlayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential", "list", "loop", "0":
		return ModeSequential, nil
	case "single", "single-repeat", "repeat-one", "1":
		return ModeSingleRepeat, nil
	case "shuffle", "random", "2":
		return ModeShuffle, nil
	default:
		return ModeSequential, fmt.Errorf("unknown play mode %q", s)
	}
}

func (m PlayMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *PlayMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid play mode: %s", string(data))
		}
		if !PlayMode(n).Valid() {
			return fmt.Errorf("invalid play mode: %d", n)
		}
		*m = PlayMode(n)
		return nil
	}
	mode, err := ParsePlayMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
