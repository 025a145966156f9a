package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"music-player-go/logcolors"
	"music-player-go/stats"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrBusy is returned when a request arrives while another fetch is in flight.
// The request is dropped, not queued.
var ErrBusy = errors.New("lyrics fetch already in progress")

// Payload is the raw LRC text of the three tracks; empty means absent
type Payload struct {
	Original        string `json:"original"`
	Translation     string `json:"translation,omitempty"`
	Transliteration string `json:"transliteration,omitempty"`
}

// Fetcher loads the lyric payload for a track id
type Fetcher interface {
	FetchLyrics(ctx context.Context, id string) (*Payload, error)
}

// Invalidator is implemented by fetchers that cache; a forced reload drops
// the cached entry first.
type Invalidator interface {
	Invalidate(id string)
}

// Preferences controls placeholder language and which sub-lines are shown
type Preferences interface {
	Language() string
	ShowTranslation() bool
	ShowTransliteration() bool
}

// Status of the current lyric set
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, st := range []Status{StatusEmpty, StatusLoading, StatusReady, StatusFailed} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown lyrics status %q", name)
}

type SyncerConfig struct {
	Fetcher     Fetcher
	Preferences Preferences // optional
	Epsilon     float64
}

// Syncer holds the lyric set of the current track and answers
// position queries against it
type Syncer struct {
	mu      sync.Mutex
	fetcher Fetcher
	prefs   Preferences
	eps     float64

	original        []RawLine
	translation     []RawLine
	transliteration []RawLine
	merged          []Line

	loadedID  string
	pendingID string
	status    Status
	busy      bool
	// bumped by every reset; a fetch started under an older generation is discarded
	gen uint64

	// wantID is the track set by Follow; fetches for any other id are superseded
	wantID    string
	followCtx context.Context
}

func NewSyncer(cfg SyncerConfig) *Syncer {
	eps := cfg.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Syncer{
		fetcher: cfg.Fetcher,
		prefs:   cfg.Preferences,
		eps:     eps,
	}
}

// Request loads lyrics for id. An empty id clears the set. The fetch is
// skipped when id is already loaded unless force is set.
func (s *Syncer) Request(ctx context.Context, id string, force bool) error {
	return s.request(ctx, id, force, false)
}

// Follow points the syncer at the current track. An empty id clears the set
// right away. Otherwise the fetch runs in the background; when another fetch
// is in flight, id is fetched as soon as that one lands.
func (s *Syncer) Follow(ctx context.Context, id string) {
	s.mu.Lock()
	s.wantID = id
	s.followCtx = ctx
	if id == "" {
		s.resetLocked()
		s.mu.Unlock()
		return
	}
	if id != s.loadedID {
		// lines of the previous track must not outlive it
		s.dropLinesLocked()
		s.status = StatusLoading
	}
	busy := s.busy
	s.mu.Unlock()

	if !busy {
		go s.request(ctx, id, false, true)
	}
}

func (s *Syncer) request(ctx context.Context, id string, force, follow bool) error {
	s.mu.Lock()
	if follow && s.wantID != id {
		s.mu.Unlock()
		return nil
	}
	if id == "" {
		s.resetLocked()
		s.mu.Unlock()
		return nil
	}
	if !force && s.loadedID == id && s.status == StatusReady {
		s.mu.Unlock()
		return nil
	}
	if s.busy {
		pending := s.pendingID
		s.mu.Unlock()
		stats.Get().RecordLyricsDropped()
		log.Debugf("%s Dropping request for %s, still fetching %s",
			logcolors.LogLyrics, logcolors.Track(id), logcolors.Track(pending))
		return ErrBusy
	}
	s.busy = true
	s.pendingID = id
	s.status = StatusLoading
	gen := s.gen
	msgs := MessagesFor(s.language())
	s.mu.Unlock()

	if force {
		if inv, ok := s.fetcher.(Invalidator); ok {
			inv.Invalidate(id)
		}
	}

	log.Debugf("%s Fetching lyrics for %s", logcolors.LogLyricsFetch, logcolors.Track(id))
	payload, err := s.fetcher.FetchLyrics(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.pendingID = ""

	want := s.wantID
	if want != "" && want != id && s.followCtx != nil {
		go s.request(s.followCtx, want, false, true)
	}

	if s.gen != gen {
		s.status = StatusEmpty
		log.Debugf("%s Discarding lyrics for %s, set was cleared", logcolors.LogLyricsFetch, logcolors.Track(id))
		return nil
	}
	if want != "" && want != id {
		log.Debugf("%s Discarding lyrics for %s, current track is %s",
			logcolors.LogLyricsFetch, logcolors.Track(id), logcolors.Track(want))
		return nil
	}

	if err != nil {
		s.original = []RawLine{{Time: 0, Text: msgs.Unavailable}}
		s.translation = nil
		s.transliteration = nil
		s.loadedID = ""
		s.status = StatusFailed
		s.remergeLocked()
		stats.Get().RecordLyricsFetch(false)
		log.Warnf("%s Lyrics for %s unavailable: %v", logcolors.LogLyricsFetch, logcolors.Track(id), err)
		return fmt.Errorf("fetch lyrics %s: %w", id, err)
	}
	if payload == nil {
		payload = &Payload{}
	}

	s.original = ParseLRC(payload.Original)
	s.translation = ParseLRC(payload.Translation)
	s.transliteration = ParseLRC(payload.Transliteration)
	if len(s.original) == 0 {
		s.original = []RawLine{{Time: 0, Text: msgs.NoLyrics}}
	}
	s.loadedID = id
	s.status = StatusReady
	s.remergeLocked()
	stats.Get().RecordLyricsFetch(true)

	log.Debugf("%s Parsed %s: %d original, %d translated, %d transliterated",
		logcolors.LogLyricsParse, logcolors.Track(id), len(s.original), len(s.translation), len(s.transliteration))
	return nil
}

// Reload forces a refetch of the loaded (or last requested) track
func (s *Syncer) Reload(ctx context.Context, id string) error {
	return s.Request(ctx, id, true)
}

func (s *Syncer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wantID = ""
	s.resetLocked()
}

func (s *Syncer) resetLocked() {
	s.dropLinesLocked()
	s.gen++
	if !s.busy {
		s.status = StatusEmpty
	}
}

func (s *Syncer) dropLinesLocked() {
	s.original = nil
	s.translation = nil
	s.transliteration = nil
	s.merged = nil
	s.loadedID = ""
}

func (s *Syncer) remergeLocked() {
	s.merged = Merge(s.original, s.translation, s.transliteration, s.eps)
}

func (s *Syncer) language() string {
	if s.prefs == nil {
		return ""
	}
	return s.prefs.Language()
}

// Lines returns the merged lines with hidden sub-lines blanked
func (s *Syncer) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	showTrans, showRoma := true, false
	if s.prefs != nil {
		showTrans = s.prefs.ShowTranslation()
		showRoma = s.prefs.ShowTransliteration()
	}

	out := make([]Line, len(s.merged))
	for i, l := range s.merged {
		if !showTrans {
			l.Translation = ""
		}
		if !showRoma {
			l.Transliteration = ""
		}
		out[i] = l
	}
	return out
}

// Timeline is the start time of every merged line
func (s *Syncer) Timeline() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, len(s.merged))
	for i, l := range s.merged {
		out[i] = l.Time
	}
	return out
}

// ActiveIndex is the last line starting at or before pos, or -1
func (s *Syncer) ActiveIndex(pos float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activeIndex(s.merged, pos)
}

func activeIndex(lines []Line, pos float64) int {
	return sort.Search(len(lines), func(i int) bool {
		return lines[i].Time > pos
	}) - 1
}

// TimeForIndex is the start of line i, 0 when out of range
func (s *Syncer) TimeForIndex(i int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.merged) {
		return 0
	}
	return s.merged[i].Time
}

func (s *Syncer) LoadedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedID
}

func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Syncer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
