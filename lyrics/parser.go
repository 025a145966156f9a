package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// RawLine is one timed line of a single lyric track
type RawLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// timeTagPattern matches [mm:ss], [mm:ss.xx] and [mm:ss.xxx]
var timeTagPattern = regexp.MustCompile(`\[(\d{1,3}):(\d{1,2})(?:[.:](\d{1,6}))?\]`)

// ParseLRC parses an LRC payload into lines sorted by time. A line with
// several leading tags yields one entry per tag; lines without text are dropped.
func ParseLRC(lrc string) []RawLine {
	if strings.TrimSpace(lrc) == "" {
		return nil
	}

	var result []RawLine
	for _, raw := range strings.Split(lrc, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if raw == "" {
			continue
		}

		matches := timeTagPattern.FindAllStringSubmatch(raw, -1)
		if len(matches) == 0 {
			continue
		}

		text := strings.TrimSpace(timeTagPattern.ReplaceAllString(raw, ""))
		if text == "" {
			continue
		}

		for _, m := range matches {
			result = append(result, RawLine{Time: tagSeconds(m[1], m[2], m[3]), Text: text})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})
	return result
}

// tagSeconds converts the captured minute, second and fraction groups.
// The fraction is read as decimal digits and truncated to milliseconds.
func tagSeconds(min, sec, frac string) float64 {
	m, _ := strconv.Atoi(min)
	s, _ := strconv.Atoi(sec)

	ms := 0
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		frac += strings.Repeat("0", 3-len(frac))
		ms, _ = strconv.Atoi(frac)
	}

	return float64(m*60+s) + float64(ms)/1000
}
