package player

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TrackID identifies a logical track. Catalog ids arrive as JSON numbers,
// local ids as strings; both decode into the same representation.
type TrackID string

func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid track id: %w", err)
		}
		*id = TrackID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid track id %s: %w", string(data), err)
	}
	*id = TrackID(n.String())
	return nil
}

func (id TrackID) String() string {
	return string(id)
}

// Track is a single playable entry. Two tracks with the same ID are the same
// logical track even when the other fields differ.
type Track struct {
	ID          TrackID `json:"id"`
	Name        string  `json:"name"`
	ArtistName  string  `json:"artistName"`
	AlbumName   string  `json:"albumName,omitempty"`
	DurationMs  int     `json:"durationMs"`
	ResolvedURL string  `json:"resolvedUrl,omitempty"`
	IsLocal     bool    `json:"isLocal"`
	Cover       string  `json:"cover,omitempty"`
}

// Clone returns a copy that shares no state with t.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// cloneTracks copies a list of tracks into fresh pointers.
func cloneTracks(tracks []Track) []*Track {
	out := make([]*Track, 0, len(tracks))
	for i := range tracks {
		t := tracks[i]
		out = append(out, &t)
	}
	return out
}

// trackValues flattens a pointer list for read-only projections.
func trackValues(tracks []*Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, *t)
	}
	return out
}
