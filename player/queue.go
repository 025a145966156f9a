package player

import (
	"math/rand"

	"github.com/samber/lo"
)

// queue holds the ordered track lists and the current pointer.
// active is what plays; base keeps the pre-shuffle order.
type queue struct {
	active  []*Track
	base    []*Track
	index   int
	current *Track
	mode    PlayMode
}

func newQueue() *queue {
	return &queue{index: -1}
}

func (q *queue) len() int {
	return len(q.active)
}

func (q *queue) indexOf(id TrackID) int {
	_, idx, ok := lo.FindIndexOf(q.active, func(t *Track) bool {
		return t.ID == id
	})
	if !ok {
		return -1
	}
	return idx
}

func (q *queue) contains(id TrackID) bool {
	return q.indexOf(id) >= 0
}

func (q *queue) inRange(i int) bool {
	return i >= 0 && i < len(q.active)
}

// set replaces both lists. An out-of-range start leaves nothing current.
func (q *queue) set(tracks []*Track, start int) {
	q.active = tracks
	q.base = append([]*Track(nil), tracks...)
	if q.inRange(start) {
		q.index = start
		q.current = q.active[start]
		return
	}
	q.index = -1
	q.current = nil
}

// setCurrent points the queue at slot i
func (q *queue) setCurrent(i int) {
	if !q.inRange(i) {
		q.index = -1
		q.current = nil
		return
	}
	q.index = i
	q.current = q.active[i]
}

// relocate recomputes index from the current track's identity
func (q *queue) relocate() {
	if q.current == nil {
		if !q.inRange(q.index) {
			q.index = -1
		}
		return
	}
	idx := q.indexOf(q.current.ID)
	if idx < 0 {
		if len(q.active) == 0 {
			q.index = -1
			q.current = nil
			return
		}
		idx = 0
		q.current = q.active[0]
	}
	q.index = idx
}

func (q *queue) setMode(mode PlayMode, r *rand.Rand) {
	q.mode = mode

	if mode == ModeShuffle {
		if len(q.active) == 0 {
			return
		}
		if len(q.base) == 0 {
			q.base = append([]*Track(nil), q.active...)
		}
		q.active = Shuffle(q.active, r)
		q.relocate()
		return
	}

	if len(q.base) > 0 {
		q.active = append([]*Track(nil), q.base...)
		q.relocate()
	}
}

// add appends t unless a track with the same id is queued
func (q *queue) add(t *Track) bool {
	if q.contains(t.ID) {
		return false
	}
	q.active = append(q.active, t)
	if len(q.base) > 0 {
		q.base = append(q.base, t)
	}
	return true
}

// remove drops id from both lists and reports the removed slot and
// whether it was the current one. The current pointer is cleared in that case.
func (q *queue) remove(id TrackID) (removedIndex int, wasCurrent bool, ok bool) {
	idx := q.indexOf(id)
	if idx < 0 {
		return -1, false, false
	}
	q.active = append(q.active[:idx:idx], q.active[idx+1:]...)

	_, baseIdx, found := lo.FindIndexOf(q.base, func(t *Track) bool {
		return t.ID == id
	})
	if found {
		q.base = append(q.base[:baseIdx:baseIdx], q.base[baseIdx+1:]...)
	}

	switch {
	case idx == q.index:
		q.index = -1
		q.current = nil
		return idx, true, true
	case idx < q.index:
		q.index--
	}
	return idx, false, true
}

// move reorders one entry. base follows only while not shuffled and both
// lists still line up.
func (q *queue) move(from, to int) bool {
	if from == to || !q.inRange(from) || !q.inRange(to) {
		return false
	}
	if q.mode != ModeShuffle && len(q.base) == len(q.active) {
		q.base = moveItem(q.base, from, to)
	}
	q.active = moveItem(q.active, from, to)

	switch {
	case q.index == from:
		q.index = to
	case from < q.index && to >= q.index:
		q.index--
	case from > q.index && to <= q.index:
		q.index++
	}
	return true
}

// queueNext places id directly after the current track
func (q *queue) queueNext(id TrackID) bool {
	if len(q.active) == 0 {
		return false
	}
	idx := q.indexOf(id)
	if idx < 0 {
		return false
	}
	if idx == q.index {
		return true
	}
	target := q.index + 1
	if idx < q.index {
		target = q.index
	}
	if target > len(q.active)-1 {
		target = len(q.active) - 1
	}
	if idx == target {
		return true
	}
	return q.move(idx, target)
}

func (q *queue) clear() {
	q.active = nil
	q.base = nil
	q.index = -1
	q.current = nil
}

// nextIndex picks the slot to play on "next"
func (q *queue) nextIndex(r *rand.Rand) int {
	n := len(q.active)
	if n == 0 {
		return -1
	}

	switch q.mode {
	case ModeSingleRepeat:
		if q.inRange(q.index) {
			return q.index
		}
		return 0

	case ModeShuffle:
		candidates := make([]int, 0, n)
		for i := 0; i < n; i++ {
			if i != q.index {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return max(q.index, 0)
		}
		return candidates[randIntn(r)(len(candidates))]

	default:
		return (q.index + 1) % n
	}
}

// previousIndex picks the slot to play on "previous". In shuffle mode the
// second-to-last history entry wins when it is still queued.
func (q *queue) previousIndex(r *rand.Rand, h *History) int {
	n := len(q.active)
	if n == 0 {
		return -1
	}

	switch q.mode {
	case ModeSingleRepeat:
		if q.inRange(q.index) {
			return q.index
		}
		return 0

	case ModeShuffle:
		if prev, ok := h.Previous(); ok {
			if idx := q.indexOf(prev.ID); idx >= 0 {
				return idx
			}
		}
		return randIntn(r)(n)

	default:
		if q.index <= 0 {
			return n - 1
		}
		return q.index - 1
	}
}

func (q *queue) hasNext() bool {
	if q.mode == ModeSingleRepeat {
		return true
	}
	return q.index < len(q.active)-1
}

func (q *queue) hasPrevious() bool {
	if q.mode == ModeSingleRepeat {
		return true
	}
	return q.index > 0
}

func moveItem(items []*Track, from, to int) []*Track {
	item := items[from]
	out := make([]*Track, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	out = append(out[:to], append([]*Track{item}, out[to:]...)...)
	return out
}
