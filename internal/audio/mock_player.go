package audio

import (
	"sync"
)

// MockPlayer records clips instead of playing them.
type MockPlayer struct {
	mu      sync.Mutex
	played  [][]byte
	playing bool
	volume  float64
	closed  bool

	// PlayErr, when set, is returned by Play.
	PlayErr error
}

// NewMockPlayer returns a silent player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{volume: 1.0}
}

// Play implements Player. Clips are validated like the real player would.
func (m *MockPlayer) Play(wav []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	if len(wav) == 0 {
		return ErrEmptyClip
	}
	if _, err := DecodeWAV(wav); err != nil {
		return err
	}
	clip := make([]byte, len(wav))
	copy(clip, wav)
	m.played = append(m.played, clip)
	m.playing = true
	return nil
}

// Stop implements Player.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

// Finish simulates the current clip running out.
func (m *MockPlayer) Finish() {
	_ = m.Stop()
}

// IsPlaying implements Player.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// SetVolume implements Player.
func (m *MockPlayer) SetVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	return nil
}

// Volume returns the last volume set.
func (m *MockPlayer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Played returns the clips passed to Play.
func (m *MockPlayer) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.played))
	copy(out, m.played)
	return out
}

// Close implements Player.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	m.closed = true
	return nil
}

var _ Player = (*MockPlayer)(nil)
