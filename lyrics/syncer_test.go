package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu          sync.Mutex
	payloads    map[string]*Payload
	err         error
	calls       []string
	invalidated []string
	block       chan struct{}
	started     chan struct{}
}

func (f *fakeFetcher) FetchLyrics(ctx context.Context, id string) (*Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads[id], nil
}

func (f *fakeFetcher) Invalidate(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type staticPrefs struct {
	lang     string
	trans    bool
	translit bool
}

func (p staticPrefs) Language() string          { return p.lang }
func (p staticPrefs) ShowTranslation() bool     { return p.trans }
func (p staticPrefs) ShowTransliteration() bool { return p.translit }

func newTestSyncer(f *fakeFetcher, prefs Preferences) *Syncer {
	return NewSyncer(SyncerConfig{Fetcher: f, Preferences: prefs})
}

func TestSyncerLoadsAndMerges(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{
		"1": {
			Original:        "[00:01.00]你好\n[00:04.00]世界",
			Translation:     "[00:01.20]Hello\n[00:04.10]World",
			Transliteration: "[00:01.00]ni hao",
		},
	}}
	s := newTestSyncer(f, staticPrefs{lang: "en", trans: true, translit: true})

	if err := s.Request(context.Background(), "1", false); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if s.Status() != StatusReady {
		t.Errorf("Expected ready, got %s", s.Status())
	}
	if s.LoadedID() != "1" {
		t.Errorf("Expected loaded id 1, got %q", s.LoadedID())
	}

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Translation != "Hello" || lines[0].Transliteration != "ni hao" {
		t.Errorf("Expected first line fully aligned, got %+v", lines[0])
	}
	if lines[1].Translation != "World" || lines[1].Transliteration != "" {
		t.Errorf("Expected second line with translation only, got %+v", lines[1])
	}
}

func TestSyncerSkipsLoadedTrack(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{"1": {Original: "[00:01.00]a"}}}
	s := newTestSyncer(f, nil)
	ctx := context.Background()

	s.Request(ctx, "1", false)
	s.Request(ctx, "1", false)
	if f.callCount() != 1 {
		t.Errorf("Expected 1 fetch for repeated id, got %d", f.callCount())
	}

	if err := s.Reload(ctx, "1"); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("Expected forced reload to fetch, got %d calls", f.callCount())
	}
	if len(f.invalidated) != 1 || f.invalidated[0] != "1" {
		t.Errorf("Expected cache invalidated for 1, got %v", f.invalidated)
	}
}

func TestSyncerPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		lang     string
		payload  *Payload
		err      error
		expected string
		status   Status
	}{
		{"no lyrics english", "en", &Payload{}, nil, "No lyrics", StatusReady},
		{"no lyrics chinese", "zh-CN", &Payload{Original: "[ti:x]"}, nil, "暂无歌词", StatusReady},
		{"nil payload", "ja", nil, nil, "歌詞がありません", StatusReady},
		{"fetch failure", "en", nil, errors.New("timeout"), "Lyrics unavailable", StatusFailed},
		{"fetch failure chinese", "zh", nil, errors.New("timeout"), "歌词获取失败", StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{payloads: map[string]*Payload{"7": tt.payload}, err: tt.err}
			s := newTestSyncer(f, staticPrefs{lang: tt.lang, trans: true})

			err := s.Request(context.Background(), "7", false)
			if (err != nil) != (tt.err != nil) {
				t.Errorf("Expected error %v, got %v", tt.err, err)
			}
			if s.Status() != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, s.Status())
			}

			lines := s.Lines()
			if len(lines) != 1 || lines[0].Original != tt.expected || lines[0].Time != 0 {
				t.Errorf("Expected single placeholder %q at 0, got %+v", tt.expected, lines)
			}
		})
	}
}

func TestSyncerFailureAllowsRetry(t *testing.T) {
	f := &fakeFetcher{err: errors.New("offline")}
	s := newTestSyncer(f, nil)
	ctx := context.Background()

	s.Request(ctx, "1", false)
	if s.LoadedID() != "" {
		t.Errorf("Expected no loaded id after failure, got %q", s.LoadedID())
	}

	f.err = nil
	f.payloads = map[string]*Payload{"1": {Original: "[00:01.00]back"}}
	if err := s.Request(ctx, "1", false); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("Expected retry to fetch again, got %d calls", f.callCount())
	}
	if s.Lines()[0].Original != "back" {
		t.Errorf("Expected fresh lyrics, got %+v", s.Lines())
	}
}

func TestSyncerDropsWhileBusy(t *testing.T) {
	f := &fakeFetcher{
		payloads: map[string]*Payload{"1": {Original: "[00:01.00]one"}},
		block:    make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	s := newTestSyncer(f, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Request(ctx, "1", false) }()
	<-f.started

	if !s.Busy() || s.Status() != StatusLoading {
		t.Errorf("Expected busy loading state, got busy=%v status=%s", s.Busy(), s.Status())
	}
	if err := s.Request(ctx, "2", false); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if s.LoadedID() != "1" {
		t.Errorf("Expected dropped request not to replace lyrics, got %q", s.LoadedID())
	}
	if f.callCount() != 1 {
		t.Errorf("Expected dropped request not to fetch, got %d calls", f.callCount())
	}
}

func TestSyncerClearDiscardsInFlightFetch(t *testing.T) {
	f := &fakeFetcher{
		payloads: map[string]*Payload{"1": {Original: "[00:01.00]one"}},
		block:    make(chan struct{}),
		started:  make(chan struct{}, 1),
	}
	s := newTestSyncer(f, nil)

	done := make(chan error, 1)
	go func() { done <- s.Request(context.Background(), "1", false) }()
	<-f.started

	s.Clear()
	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if s.Status() != StatusEmpty || s.LoadedID() != "" || len(s.Lines()) != 0 {
		t.Errorf("Expected cleared set to stay empty, got status=%s id=%q lines=%d", s.Status(), s.LoadedID(), len(s.Lines()))
	}
	if s.Busy() {
		t.Error("Expected busy flag released")
	}
}

func waitLoaded(t *testing.T, s *Syncer, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.LoadedID() == id && s.Status() == StatusReady {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %q, loaded %q (%s)", id, s.LoadedID(), s.Status())
}

func TestSyncerFollowLoadsInBackground(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{"1": {Original: "[00:01.00]one"}}}
	s := newTestSyncer(f, nil)

	s.Follow(context.Background(), "1")
	waitLoaded(t, s, "1")

	s.Follow(context.Background(), "1")
	time.Sleep(20 * time.Millisecond)
	if f.callCount() != 1 {
		t.Errorf("Expected loaded track not to be refetched, got %d calls", f.callCount())
	}
}

func TestSyncerFollowSupersedesInFlightFetch(t *testing.T) {
	f := &fakeFetcher{
		payloads: map[string]*Payload{
			"1": {Original: "[00:01.00]one"},
			"2": {Original: "[00:02.00]two"},
		},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	s := newTestSyncer(f, nil)
	ctx := context.Background()

	s.Follow(ctx, "1")
	<-f.started

	s.Follow(ctx, "2")
	if len(s.Lines()) != 0 || s.Status() != StatusLoading {
		t.Errorf("Expected old lines dropped while loading, got %d lines status=%s", len(s.Lines()), s.Status())
	}

	close(f.block)
	waitLoaded(t, s, "2")
	if lines := s.Lines(); len(lines) != 1 || lines[0].Original != "two" {
		t.Errorf("Expected lines of track 2, got %+v", lines)
	}
}

func TestSyncerFollowEmptyClears(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{"1": {Original: "[00:01.00]a"}}}
	s := newTestSyncer(f, nil)
	s.Follow(context.Background(), "1")
	waitLoaded(t, s, "1")

	s.Follow(context.Background(), "")
	if s.Status() != StatusEmpty || s.LoadedID() != "" || len(s.Lines()) != 0 {
		t.Errorf("Expected empty set, got status=%s id=%q lines=%d", s.Status(), s.LoadedID(), len(s.Lines()))
	}
}

func TestStatusJSON(t *testing.T) {
	for _, st := range []Status{StatusEmpty, StatusLoading, StatusReady, StatusFailed} {
		data, err := json.Marshal(st)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var back Status
		if err := json.Unmarshal(data, &back); err != nil || back != st {
			t.Errorf("Expected %s back, got %s (%v)", st, back, err)
		}
	}
	var st Status
	if err := json.Unmarshal([]byte(`"bogus"`), &st); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestSyncerEmptyIDClears(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{"1": {Original: "[00:01.00]a"}}}
	s := newTestSyncer(f, nil)
	s.Request(context.Background(), "1", false)

	if err := s.Request(context.Background(), "", false); err != nil {
		t.Fatalf("Clearing failed: %v", err)
	}
	if s.Status() != StatusEmpty || len(s.Lines()) != 0 || s.LoadedID() != "" {
		t.Errorf("Expected empty state, got status=%s lines=%d id=%q", s.Status(), len(s.Lines()), s.LoadedID())
	}
}

func TestSyncerDisplayToggles(t *testing.T) {
	payload := &Payload{
		Original:        "[00:01.00]a",
		Translation:     "[00:01.00]b",
		Transliteration: "[00:01.00]c",
	}

	tests := []struct {
		name     string
		prefs    Preferences
		trans    string
		translit string
	}{
		{"defaults without preferences", nil, "b", ""},
		{"both shown", staticPrefs{trans: true, translit: true}, "b", "c"},
		{"both hidden", staticPrefs{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{payloads: map[string]*Payload{"1": payload}}
			s := newTestSyncer(f, tt.prefs)
			s.Request(context.Background(), "1", false)

			line := s.Lines()[0]
			if line.Translation != tt.trans || line.Transliteration != tt.translit {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.trans, tt.translit, line.Translation, line.Transliteration)
			}
		})
	}
}

func TestSyncerActiveIndex(t *testing.T) {
	f := &fakeFetcher{payloads: map[string]*Payload{
		"1": {Original: "[00:01.00]a\n[00:03.00]b\n[00:05.00]c"},
	}}
	s := newTestSyncer(f, nil)
	s.Request(context.Background(), "1", false)

	tests := []struct {
		pos      float64
		expected int
	}{
		{0, -1},
		{0.99, -1},
		{1, 0},
		{2.5, 0},
		{3, 1},
		{4.99, 1},
		{5, 2},
		{100, 2},
	}

	for _, tt := range tests {
		if got := s.ActiveIndex(tt.pos); got != tt.expected {
			t.Errorf("ActiveIndex(%v): expected %d, got %d", tt.pos, tt.expected, got)
		}
	}

	if got := s.TimeForIndex(1); got != 3 {
		t.Errorf("Expected line 1 at 3s, got %v", got)
	}
	if got := s.TimeForIndex(9); got != 0 {
		t.Errorf("Expected 0 for out-of-range index, got %v", got)
	}
	timeline := s.Timeline()
	if len(timeline) != 3 || timeline[2] != 5 {
		t.Errorf("Expected timeline [1 3 5], got %v", timeline)
	}
}
