package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
)

// ErrNoOutput is returned by Speak when there is no audio device.
var ErrNoOutput = errors.New("no audio output available")

// Cache stores synthesized clips.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Speaker synthesizes text and plays the result.
type Speaker struct {
	engine Engine
	voice  string
	player audio.Player
	cache  Cache
	logger *log.Logger
}

// NewSpeaker wires an engine to a player. player and cache may be nil; without
// a player the speaker can only Render.
func NewSpeaker(engine Engine, voice string, player audio.Player, cache Cache) *Speaker {
	return &Speaker{
		engine: engine,
		voice:  voice,
		player: player,
		cache:  cache,
		logger: log.Default().WithPrefix("speech"),
	}
}

// Render returns the WAV clip for text, from cache when possible.
func (s *Speaker) Render(ctx context.Context, text string) ([]byte, error) {
	text, err := Normalize(text)
	if err != nil {
		return nil, err
	}

	key := cacheKey(s.engine.Name(), s.voice, text)
	if s.cache != nil {
		if clip, ok := s.cache.Get(key); ok {
			s.logger.Debug("speech cache hit", "engine", s.engine.Name(), "chars", len(text))
			return clip, nil
		}
	}

	clip, err := s.engine.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Put(key, clip); err != nil {
			s.logger.Debug("unable to cache clip", "err", err)
		}
	}
	return clip, nil
}

// Speak renders text and starts playing it.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if s.player == nil {
		return ErrNoOutput
	}
	clip, err := s.Render(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(clip)
}

// Stop silences the player.
func (s *Speaker) Stop() error {
	if s.player == nil {
		return nil
	}
	return s.player.Stop()
}

// IsSpeaking reports whether audio is playing.
func (s *Speaker) IsSpeaking() bool {
	return s.player != nil && s.player.IsPlaying()
}

func cacheKey(engine, voice, text string) string {
	return cache.Key("speech", engine, voice, text)
}
