package player

import (
	"github.com/samber/lo"
)

// DefaultHistoryLimit bounds the play history
const DefaultHistoryLimit = 100

// History is the bounded, id-deduplicated list of recently started tracks.
// It is not safe for concurrent use; the Player guards it.
type History struct {
	limit int
	items []*Track
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Add appends t, moving an existing entry with the same id to the tail
func (h *History) Add(t *Track) {
	if t == nil {
		return
	}
	h.items = lo.Reject(h.items, func(item *Track, _ int) bool {
		return item.ID == t.ID
	})
	h.items = append(h.items, t.Clone())
	if len(h.items) > h.limit {
		h.items = h.items[len(h.items)-h.limit:]
	}
}

// Previous returns the entry before the most recent one
func (h *History) Previous() (*Track, bool) {
	if len(h.items) < 2 {
		return nil, false
	}
	return h.items[len(h.items)-2], true
}

func (h *History) Len() int {
	return len(h.items)
}

func (h *History) Items() []Track {
	return trackValues(h.items)
}

func (h *History) Clear() {
	h.items = nil
}

// replace swaps in a restored history, trimming it to the limit
func (h *History) replace(items []*Track) {
	h.items = nil
	for _, t := range items {
		h.Add(t)
	}
}
