//go:build !((linux && cgo) || windows || darwin)

package device

import "music-player-go/player"

// NewSpeaker reports that no audio output exists in builds without cgo
func NewSpeaker(opts Options) (player.Device, error) {
	return nil, ErrAudioUnavailable
}
