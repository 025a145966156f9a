package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"music-player-go/circuitbreaker"
	"music-player-go/logcolors"
	"music-player-go/lyrics"
	"music-player-go/player"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	songURLPath = "/song/url/v1"
	lyricPath   = "/lyric"

	defaultTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL          string
	Cookie           string
	MediaProxyPrefix string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	Breaker          *circuitbreaker.CircuitBreaker
	HTTPClient       *http.Client
	Now              func() time.Time
}

// Client talks to the music catalog API. It resolves playable URLs for the
// player and fetches lyric payloads for the syncer.
type Client struct {
	baseURL     string
	cookie      string
	proxyPrefix string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *circuitbreaker.CircuitBreaker
	now         func() time.Time
}

var (
	_ player.Resolver = (*Client)(nil)
	_ lyrics.Fetcher  = (*Client)(nil)
)

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{Name: "Catalog"})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		cookie:      opts.Cookie,
		proxyPrefix: opts.MediaProxyPrefix,
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     opts.Breaker,
		now:         opts.Now,
	}
}

// Breaker exposes the upstream circuit breaker for the stats endpoint
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// ResolvePlayableURL returns a fresh, normalized streaming URL for id
func (c *Client) ResolvePlayableURL(ctx context.Context, id player.TrackID, quality string) (string, error) {
	return c.SongURL(ctx, id.String(), quality)
}

// SongURL fetches the streaming URL for id at the given quality level.
// Unknown levels fall back to exhigh.
func (c *Client) SongURL(ctx context.Context, id, quality string) (string, error) {
	if id == "" {
		return "", &Error{Op: "song url", Message: "empty track id"}
	}
	if !ValidQuality(quality) {
		quality = QualityExHigh
	}

	params := url.Values{}
	params.Set("id", id)
	params.Set("level", quality)

	log.Debugf("%s Resolving %s at %s", logcolors.LogCatalog, logcolors.Track(id), quality)

	body, err := c.get(ctx, songURLPath, params)
	if err != nil {
		return "", &Error{Op: "song url", Message: "request failed", Err: err}
	}

	var resp songURLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Op: "song url", Message: "failed to parse response", Err: err}
	}

	raw := extractSongURL(resp)
	if raw == "" {
		return "", &Error{Op: "song url", Message: "track " + id, Err: ErrNoURL}
	}
	return NormalizeMediaURL(raw, c.proxyPrefix), nil
}

func extractSongURL(resp songURLResponse) string {
	data := bytes.TrimSpace(resp.Data)
	if len(data) > 0 {
		switch data[0] {
		case '[':
			var entries []songURLEntry
			if json.Unmarshal(data, &entries) == nil && len(entries) > 0 && entries[0].URL != "" {
				return entries[0].URL
			}
		case '{':
			var nested struct {
				Data []songURLEntry `json:"data"`
			}
			if json.Unmarshal(data, &nested) == nil && len(nested.Data) > 0 && nested.Data[0].URL != "" {
				return nested.Data[0].URL
			}
		}
	}
	return resp.URL
}

// FetchLyrics returns the original, translated and transliterated LRC
// tracks for id. Missing tracks come back empty.
func (c *Client) FetchLyrics(ctx context.Context, id string) (*lyrics.Payload, error) {
	params := url.Values{}
	params.Set("id", id)

	body, err := c.get(ctx, lyricPath, params)
	if err != nil {
		return nil, &Error{Op: "lyric", Message: "request failed", Err: err}
	}

	var resp lyricResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Op: "lyric", Message: "failed to parse response", Err: err}
	}

	return &lyrics.Payload{
		Original:        resp.Lrc.Lyric,
		Translation:     resp.Tlyric.Lyric,
		Transliteration: resp.Romalrc.Lyric,
	}, nil
}

// get performs a rate-limited, breaker-guarded GET and returns the body
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	requestURL := c.baseURL + path + "?" + params.Encode()

	var body []byte
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}, func(err error) bool {
		// A missing track or a cancelled caller says nothing about upstream health
		return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			log.Warnf("%s Upstream unavailable, retry in %v", logcolors.LogCatalog, c.breaker.TimeUntilRetry().Round(time.Second))
		}
		return nil, err
	}
	return body, nil
}
