package catalog

import (
	"encoding/json"
	"errors"
)

// Audio quality levels accepted by the song URL endpoint, lowest first
const (
	QualityStandard = "standard"
	QualityHigher   = "higher"
	QualityExHigh   = "exhigh"
	QualityLossless = "lossless"
	QualityHiRes    = "hires"
	QualityEffect   = "jyeffect"
	QualitySky      = "sky"
	QualityMaster   = "jymaster"
)

var qualities = []string{
	QualityStandard, QualityHigher, QualityExHigh, QualityLossless,
	QualityHiRes, QualityEffect, QualitySky, QualityMaster,
}

// Qualities lists every supported level
func Qualities() []string {
	return append([]string(nil), qualities...)
}

// ValidQuality reports whether q is a known level
func ValidQuality(q string) bool {
	for _, v := range qualities {
		if v == q {
			return true
		}
	}
	return false
}

var (
	ErrNotFound = errors.New("not found upstream")
	ErrNoURL    = errors.New("no playable url in response")
)

// Error carries the catalog operation that failed
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "catalog " + e.Op + ": " + e.Message + ": " + e.Err.Error()
	}
	return "catalog " + e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// songURLEntry is one element of the song URL "data" array
type songURLEntry struct {
	URL string `json:"url"`
}

// songURLResponse covers the shapes the endpoint is known to return:
// data as an array, data wrapping another data array, or a bare url
type songURLResponse struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	URL  string          `json:"url"`
}

type lyricBlock struct {
	Lyric string `json:"lyric"`
}

type lyricResponse struct {
	Code    int        `json:"code"`
	Lrc     lyricBlock `json:"lrc"`
	Tlyric  lyricBlock `json:"tlyric"`
	Romalrc lyricBlock `json:"romalrc"`
}
