package lyrics

import (
	"math"
	"regexp"
	"strings"
)

// DefaultEpsilon is the widest gap, in seconds, at which an auxiliary line
// still belongs to an original line
const DefaultEpsilon = 0.5

// Line is one display unit: the original text plus any aligned
// translation and transliteration
type Line struct {
	Time            float64 `json:"time"`
	Original        string  `json:"original"`
	Translation     string  `json:"translation,omitempty"`
	Transliteration string  `json:"transliteration,omitempty"`
}

var punctuationOnly = regexp.MustCompile(`^[\p{P}\s]+$`)

// Merge walks the original track once, attaching the nearest translation and
// transliteration within eps. When there is no translation track, mixed
// Latin/CJK lines are split into original and translation.
func Merge(original, translation, transliteration []RawLine, eps float64) []Line {
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	out := make([]Line, 0, len(original))
	j, k := 0, 0
	for _, o := range original {
		for j+1 < len(translation) && translation[j+1].Time <= o.Time+eps {
			j++
		}
		for k+1 < len(transliteration) && transliteration[k+1].Time <= o.Time+eps {
			k++
		}

		line := Line{Time: o.Time, Original: o.Text}

		if len(translation) > 0 {
			if math.Abs(translation[j].Time-o.Time) <= eps {
				line.Translation = translation[j].Text
			}
		} else {
			line.Original, line.Translation = SplitBilingual(o.Text)
		}

		if len(transliteration) > 0 && math.Abs(transliteration[k].Time-o.Time) <= eps {
			line.Transliteration = transliteration[k].Text
		}

		out = append(out, line)
	}
	return out
}

// SplitBilingual splits "Left text 右侧中文" at the first CJK ideograph.
// No split happens when the ideograph is first or the left side is only
// punctuation and spaces.
func SplitBilingual(text string) (original, translation string) {
	idx := strings.IndexFunc(text, isCJKIdeograph)
	if idx <= 0 {
		return text, ""
	}

	left := strings.TrimSpace(text[:idx])
	right := strings.TrimSpace(text[idx:])
	if left == "" || punctuationOnly.MatchString(left) {
		return text, ""
	}
	if right == "" || right == left {
		return left, ""
	}
	return left, right
}

func isCJKIdeograph(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
