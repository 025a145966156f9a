package catalog

import (
	"context"
	"errors"
	"music-player-go/circuitbreaker"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		BaseURL: srv.URL,
		Cookie:  "MUSIC_U=abc",
		Now:     func() time.Time { return time.UnixMilli(1700000000000) },
	})
	return c, srv
}

func TestSongURLResponseShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "data array",
			body:     `{"code":200,"data":[{"id":1,"url":"https://cdn.example.com/a.mp3"}]}`,
			expected: "https://cdn.example.com/a.mp3",
		},
		{
			name:     "nested data",
			body:     `{"code":200,"data":{"data":[{"id":1,"url":"https://cdn.example.com/b.mp3"}]}}`,
			expected: "https://cdn.example.com/b.mp3",
		},
		{
			name:     "bare url",
			body:     `{"code":200,"url":"https://cdn.example.com/c.mp3"}`,
			expected: "https://cdn.example.com/c.mp3",
		},
		{
			name:     "catalog cdn upgraded to https",
			body:     `{"code":200,"data":[{"url":"http://m701.music.126.net/x/a.mp3"}]}`,
			expected: "https://m701.music.126.net/x/a.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			got, err := c.SongURL(context.Background(), "1", QualityLossless)
			if err != nil {
				t.Fatalf("SongURL failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSongURLRequest(t *testing.T) {
	var gotPath, gotLevel, gotID, gotTimestamp, gotCookie string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.URL.Query().Get("id")
		gotLevel = r.URL.Query().Get("level")
		gotTimestamp = r.URL.Query().Get("timestamp")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"data":[{"url":"https://cdn.example.com/a.mp3"}]}`))
	})

	if _, err := c.ResolvePlayableURL(context.Background(), "42", "bogus"); err != nil {
		t.Fatalf("ResolvePlayableURL failed: %v", err)
	}

	if gotPath != "/song/url/v1" {
		t.Errorf("Expected /song/url/v1, got %q", gotPath)
	}
	if gotID != "42" {
		t.Errorf("Expected id 42, got %q", gotID)
	}
	if gotLevel != QualityExHigh {
		t.Errorf("Expected unknown level to fall back to exhigh, got %q", gotLevel)
	}
	if gotTimestamp != "1700000000000" {
		t.Errorf("Expected timestamp param, got %q", gotTimestamp)
	}
	if gotCookie != "MUSIC_U=abc" {
		t.Errorf("Expected cookie header, got %q", gotCookie)
	}
}

func TestSongURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty data", http.StatusOK, `{"data":[{"url":null}]}`, ErrNoURL},
		{"not found", http.StatusNotFound, ``, ErrNotFound},
		{"bad json", http.StatusOK, `{`, nil},
		{"server error", http.StatusBadGateway, ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.SongURL(context.Background(), "1", QualityStandard)
			if err == nil {
				t.Fatal("Expected an error")
			}
			var catErr *Error
			if !errors.As(err, &catErr) {
				t.Errorf("Expected *Error, got %T", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSongURLEmptyID(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:0"})
	if _, err := c.SongURL(context.Background(), "", QualityStandard); err == nil {
		t.Error("Expected error for empty id")
	}
}

func TestFetchLyrics(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lyric" {
			t.Errorf("Expected /lyric, got %q", r.URL.Path)
		}
		w.Write([]byte(`{"code":200,"lrc":{"lyric":"[00:01.00]a"},"tlyric":{"lyric":"[00:01.00]b"},"romalrc":{"lyric":""}}`))
	})

	payload, err := c.FetchLyrics(context.Background(), "9")
	if err != nil {
		t.Fatalf("FetchLyrics failed: %v", err)
	}
	if payload.Original != "[00:01.00]a" || payload.Translation != "[00:01.00]b" || payload.Transliteration != "" {
		t.Errorf("Unexpected payload: %+v", payload)
	}
}

func TestFetchLyricsMissingBlocks(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"nolyric":true}`))
	})

	payload, err := c.FetchLyrics(context.Background(), "9")
	if err != nil {
		t.Fatalf("FetchLyrics failed: %v", err)
	}
	if payload.Original != "" {
		t.Errorf("Expected empty original, got %q", payload.Original)
	}
}

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL: srv.URL,
		Breaker: circuitbreaker.New(circuitbreaker.Config{Name: "test", Threshold: 2, Cooldown: time.Hour}),
	})

	ctx := context.Background()
	c.SongURL(ctx, "1", QualityStandard)
	c.SongURL(ctx, "1", QualityStandard)

	_, err := c.SongURL(ctx, "1", QualityStandard)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL: srv.URL,
		Breaker: circuitbreaker.New(circuitbreaker.Config{Name: "test", Threshold: 1, Cooldown: time.Hour}),
	})

	c.FetchLyrics(context.Background(), "1")
	if c.Breaker().IsOpen() {
		t.Error("Expected 404 not to open the breaker")
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"https://cdn.example.com/a.mp3"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RatePerSecond: 0.001, Burst: 1})

	ctx := context.Background()
	if _, err := c.SongURL(ctx, "1", QualityStandard); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := c.SongURL(ctx, "1", QualityStandard)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("Expected rate limit error, got %v", err)
	}
}
