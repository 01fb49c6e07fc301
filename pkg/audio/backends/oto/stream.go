package oto

import (
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

const drainPollInterval = 10 * time.Millisecond

type Stream struct {
	Player *oto.Player
}

var _ types.PlayStream = (*Stream)(nil)

func newStream(player *oto.Player) *Stream {
	return &Stream{
		Player: player,
	}
}

// Drain blocks until the player consumed the whole reader (or got paused).
func (s *Stream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(drainPollInterval)
	}
	return s.Player.Err()
}

func (s *Stream) Pause() error {
	s.Player.Pause()
	return s.Player.Err()
}

func (s *Stream) Resume() error {
	s.Player.Play()
	return s.Player.Err()
}

func (s *Stream) IsPlaying() bool {
	return s.Player.IsPlaying()
}

func (s *Stream) Close() error {
	return s.Player.Close()
}
