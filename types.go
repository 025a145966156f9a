package main

import (
	"music-player-go/lyrics"
	"music-player-go/player"
)

// playRequest is the optional body of POST /play. An empty body plays the
// current track.
type playRequest struct {
	Track *player.Track `json:"track"`
	Index *int          `json:"index"`
}

// setQueueRequest is the body of PUT /queue
type setQueueRequest struct {
	Tracks     []player.Track `json:"tracks"`
	StartIndex int            `json:"startIndex"`
	Autoplay   bool           `json:"autoplay"`
}

// LyricsResponse is the response format for /lyrics
type LyricsResponse struct {
	TrackID     string        `json:"trackId"`
	Status      lyrics.Status `json:"status"`
	Lines       []lyrics.Line `json:"lines"`
	ActiveIndex int           `json:"activeIndex"`
	Position    float64       `json:"position"`
}

// ActiveLineResponse is the response format for /lyrics/active
type ActiveLineResponse struct {
	Index    int          `json:"index"`
	Time     float64      `json:"time"`
	Line     *lyrics.Line `json:"line,omitempty"`
	Position float64      `json:"position"`
}

// LyricsCacheResponse is the response format for /lyrics/cache
type LyricsCacheResponse struct {
	NumberOfKeys int     `json:"number_of_keys"`
	SizeInKB     int     `json:"size_kb"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}
