package speech

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/dgnsrekt/narrate/internal/audio"
)

const (
	mockSampleRate = 22050
	mockWordLength = 0.25 // seconds per word
)

// Mock produces a quiet tone whose length follows the word count. It needs no
// external tools.
type Mock struct {
	mu    sync.Mutex
	calls []string
}

// NewMock returns a mock engine.
func NewMock() *Mock { return &Mock{} }

// Name implements Engine.
func (m *Mock) Name() string { return "mock" }

// Synthesize implements Engine.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	words := len(strings.Fields(text))
	n := int(float64(words) * mockWordLength * mockSampleRate)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := 0.1 * math.Sin(2*math.Pi*440*float64(i)/mockSampleRate)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return audio.EncodeWAV(pcm, mockSampleRate, 1), nil
}

// Validate implements Engine.
func (m *Mock) Validate() error { return nil }

// Calls returns the texts synthesized so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
