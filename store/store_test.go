package store

import (
	"context"
	"errors"
	"music-player-go/lyrics"
	"music-player-go/player"
	"music-player-go/stats"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, compression bool) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "player.db")
	s, err := Open(path, compression)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, path
}

func sampleSnapshot() player.Snapshot {
	tracks := []*player.Track{
		{ID: "1", Name: "First", ArtistName: "A"},
		{ID: "2", Name: "Second", ArtistName: "B", IsLocal: true, ResolvedURL: "/music/b.flac"},
	}
	return player.Snapshot{
		CurrentTrack: tracks[1],
		CurrentIndex: 1,
		Playlist:     tracks,
		Original:     tracks,
		PlayMode:     player.ModeShuffle,
		Volume:       0.4,
		IsMuted:      true,
		History:      tracks[:1],
	}
}

func TestSessionRoundTrip(t *testing.T) {
	for _, compression := range []bool{true, false} {
		s, _ := openTestStore(t, compression)

		if _, ok, err := s.LoadSession(); ok || err != nil {
			t.Errorf("Expected no session in a fresh store, got ok=%v err=%v", ok, err)
		}

		if err := s.SaveSession(sampleSnapshot()); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
		got, ok, err := s.LoadSession()
		if err != nil || !ok {
			t.Fatalf("LoadSession failed: ok=%v err=%v", ok, err)
		}

		if got.CurrentTrack == nil || got.CurrentTrack.ID != "2" {
			t.Errorf("Expected current track 2, got %+v", got.CurrentTrack)
		}
		if len(got.Playlist) != 2 || got.Playlist[1].ResolvedURL != "/music/b.flac" {
			t.Errorf("Expected playlist restored, got %+v", got.Playlist)
		}
		if got.PlayMode != player.ModeShuffle || got.Volume != 0.4 || !got.IsMuted {
			t.Errorf("Expected transport fields restored, got %+v", got)
		}

		s.Close()
	}
}

func TestSessionSurvivesCompressionToggle(t *testing.T) {
	s, path := openTestStore(t, true)
	s.SaveSession(sampleSnapshot())
	s.db.Close()

	plain, err := Open(path, false)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer plain.db.Close()

	got, ok, err := plain.LoadSession()
	if err != nil || !ok {
		t.Fatalf("Expected compressed session readable after toggle: ok=%v err=%v", ok, err)
	}
	if len(got.Playlist) != 2 {
		t.Errorf("Expected 2 tracks, got %d", len(got.Playlist))
	}
}

func TestClearSession(t *testing.T) {
	s, _ := openTestStore(t, false)
	defer s.db.Close()

	s.SaveSession(sampleSnapshot())
	if err := s.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if _, ok, _ := s.LoadSession(); ok {
		t.Error("Expected session removed")
	}
}

func TestStatsPersistence(t *testing.T) {
	s, _ := openTestStore(t, false)
	defer s.db.Close()

	st := stats.Get()
	st.TracksStarted.Store(17)
	st.LyricsCacheHits.Store(4)

	if err := s.SaveStats(); err != nil {
		t.Fatalf("SaveStats failed: %v", err)
	}

	st.TracksStarted.Store(0)
	st.LyricsCacheHits.Store(0)

	if err := s.LoadStats(); err != nil {
		t.Fatalf("LoadStats failed: %v", err)
	}
	if st.TracksStarted.Load() != 17 || st.LyricsCacheHits.Load() != 4 {
		t.Errorf("Expected counters restored, got %d / %d", st.TracksStarted.Load(), st.LyricsCacheHits.Load())
	}
}

func TestCloseWritesFinalSession(t *testing.T) {
	s, path := openTestStore(t, true)

	calls := 0
	s.StartAutoSave(time.Hour, func() player.Snapshot {
		calls++
		return sampleSnapshot()
	})
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected one final snapshot on close, got %d", calls)
	}

	reopened, err := Open(path, true)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.db.Close()
	if _, ok, _ := reopened.LoadSession(); !ok {
		t.Error("Expected session written on close")
	}
}

func TestAutoSaveTicks(t *testing.T) {
	s, _ := openTestStore(t, false)

	saved := make(chan struct{}, 8)
	s.StartAutoSave(10*time.Millisecond, func() player.Snapshot {
		select {
		case saved <- struct{}{}:
		default:
		}
		return sampleSnapshot()
	})

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Error("Expected auto-save to run")
	}
	s.Close()
}

type countingFetcher struct {
	calls   int
	payload *lyrics.Payload
	err     error
}

func (f *countingFetcher) FetchLyrics(ctx context.Context, id string) (*lyrics.Payload, error) {
	f.calls++
	return f.payload, f.err
}

func TestLyricsCache(t *testing.T) {
	for _, compression := range []bool{true, false} {
		s, _ := openTestStore(t, compression)
		lc := NewLyricsCache(s, 0)

		payload := &lyrics.Payload{Original: "[00:01.00]你好", Translation: "[00:01.00]Hello"}
		if err := lc.Set("1", payload); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, ok := lc.Get("1")
		if !ok || *got != *payload {
			t.Errorf("Expected %+v, got %+v (ok=%v)", payload, got, ok)
		}

		if n, _ := lc.Stats(); n != 1 {
			t.Errorf("Expected 1 entry, got %d", n)
		}

		// A fresh cache on the same database sees persisted entries
		reloaded := NewLyricsCache(s, 0)
		if _, ok := reloaded.Get("1"); !ok {
			t.Error("Expected entry preloaded from disk")
		}

		lc.Delete("1")
		if _, ok := lc.Get("1"); ok {
			t.Error("Expected entry deleted")
		}

		lc.Set("2", payload)
		if err := lc.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if n, _ := lc.Stats(); n != 0 {
			t.Errorf("Expected empty cache after Clear, got %d", n)
		}

		s.db.Close()
	}
}

func TestLyricsCacheExpiry(t *testing.T) {
	s, _ := openTestStore(t, false)
	defer s.db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lc := NewLyricsCache(s, time.Hour)
	lc.now = func() time.Time { return now }

	lc.Set("1", &lyrics.Payload{Original: "[00:01.00]a"})

	now = now.Add(59 * time.Minute)
	if _, ok := lc.Get("1"); !ok {
		t.Error("Expected entry within ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := lc.Get("1"); ok {
		t.Error("Expected entry expired")
	}
}

func TestCachedFetcher(t *testing.T) {
	s, _ := openTestStore(t, true)
	defer s.db.Close()

	next := &countingFetcher{payload: &lyrics.Payload{Original: "[00:01.00]a"}}
	f := NewCachedFetcher(next, NewLyricsCache(s, 0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := f.FetchLyrics(ctx, "1")
		if err != nil || got.Original != "[00:01.00]a" {
			t.Fatalf("FetchLyrics failed: %v %+v", err, got)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", next.calls)
	}

	f.Invalidate("1")
	f.FetchLyrics(ctx, "1")
	if next.calls != 2 {
		t.Errorf("Expected invalidation to refetch, got %d calls", next.calls)
	}
}

func TestCachedFetcherDoesNotCacheErrors(t *testing.T) {
	s, _ := openTestStore(t, false)
	defer s.db.Close()

	next := &countingFetcher{err: errors.New("offline")}
	f := NewCachedFetcher(next, NewLyricsCache(s, 0))
	ctx := context.Background()

	f.FetchLyrics(ctx, "1")
	f.FetchLyrics(ctx, "1")
	if next.calls != 2 {
		t.Errorf("Expected errors not cached, got %d calls", next.calls)
	}
}
