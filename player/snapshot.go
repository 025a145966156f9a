package player

import (
	"music-player-go/logcolors"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Snapshot is the allow-listed part of the player that survives a restart
type Snapshot struct {
	CurrentTrack *Track   `json:"currentTrack"`
	CurrentIndex int      `json:"currentIndex"`
	Playlist     []*Track `json:"playlist"`
	Original     []*Track `json:"originalPlaylist"`
	PlayMode     PlayMode `json:"playMode"`
	Volume       float64  `json:"volume"`
	IsMuted      bool     `json:"isMuted"`
	History      []*Track `json:"playHistory"`
}

// Snapshot captures the persisted subset. Resolved streaming URLs expire, so
// they are dropped unless keepURLs is set; local paths are always kept.
func (p *Player) Snapshot(keepURLs bool) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	strip := func(t *Track, _ int) *Track {
		c := t.Clone()
		if !keepURLs && !c.IsLocal {
			c.ResolvedURL = ""
		}
		return c
	}

	var current *Track
	if p.queue.current != nil {
		current = strip(p.queue.current, 0)
	}

	return Snapshot{
		CurrentTrack: current,
		CurrentIndex: p.queue.index,
		Playlist:     lo.Map(p.queue.active, strip),
		Original:     lo.Map(p.queue.base, strip),
		PlayMode:     p.queue.mode,
		Volume:       p.state.Volume,
		IsMuted:      p.state.IsMuted,
		History:      lo.Map(p.history.items, strip),
	}
}

// Restore loads a snapshot. It must run before Start.
func (p *Player) Restore(s Snapshot) {
	defer p.notifyCurrent()
	p.mu.Lock()
	defer p.mu.Unlock()

	valid := func(t *Track, _ int) bool { return t != nil && t.ID != "" }
	clone := func(t *Track, _ int) *Track { return t.Clone() }
	byID := func(t *Track) TrackID { return t.ID }

	p.generation++
	p.queue.active = lo.Map(lo.UniqBy(lo.Filter(s.Playlist, valid), byID), clone)
	p.queue.base = lo.Map(lo.UniqBy(lo.Filter(s.Original, valid), byID), clone)
	if s.PlayMode.Valid() {
		p.queue.mode = s.PlayMode
	}

	p.queue.index = -1
	p.queue.current = nil
	if s.CurrentTrack != nil && s.CurrentTrack.ID != "" {
		if idx := p.queue.indexOf(s.CurrentTrack.ID); idx >= 0 {
			p.queue.setCurrent(idx)
		} else {
			p.queue.current = s.CurrentTrack.Clone()
		}
	} else if p.queue.inRange(s.CurrentIndex) {
		p.queue.setCurrent(s.CurrentIndex)
	}

	p.state.Volume = clamp(s.Volume, 0, 1)
	p.state.IsMuted = s.IsMuted
	if p.state.IsMuted && p.state.Volume > 0 {
		p.state.PreviousVolume = p.state.Volume
	}
	p.history.replace(lo.Filter(s.History, valid))

	log.Infof("%s Restored %d queued tracks, %d history entries, mode %s",
		logcolors.LogPlayer, len(p.queue.active), p.history.Len(), p.queue.mode)
}
