// Package library retrieves produced narrations, keeping a cached copy so
// replaying or exporting a file does not download it again.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/export"
)

// ErrNoAudio is returned for files without a produced narration.
var ErrNoAudio = errors.New("no audio available yet")

// Fetcher downloads audio.
type Fetcher interface {
	FetchAudio(ctx context.Context, audioURL string) ([]byte, error)
}

// Cache stores downloaded clips.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Library downloads, plays and exports narrations.
type Library struct {
	fetcher Fetcher
	cache   Cache
	player  audio.Player
	logger  *log.Logger
}

// New returns a library. cache and player may be nil.
func New(fetcher Fetcher, c Cache, player audio.Player) *Library {
	return &Library{
		fetcher: fetcher,
		cache:   c,
		player:  player,
		logger:  log.Default().WithPrefix("library"),
	}
}

// Audio returns the clip at audioURL.
func (l *Library) Audio(ctx context.Context, audioURL string) ([]byte, error) {
	if audioURL == "" {
		return nil, ErrNoAudio
	}
	key := cache.Key("audio", audioURL)
	if l.cache != nil {
		if clip, ok := l.cache.Get(key); ok {
			l.logger.Debug("audio cache hit", "url", audioURL)
			return clip, nil
		}
	}

	clip, err := l.fetcher.FetchAudio(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("unable to download audio: %w", err)
	}
	if _, err := audio.DecodeWAV(clip); err != nil {
		return nil, fmt.Errorf("downloaded audio is unusable: %w", err)
	}
	if l.cache != nil {
		if err := l.cache.Put(key, clip); err != nil {
			l.logger.Debug("unable to cache audio", "url", audioURL, "err", err)
		}
	}
	return clip, nil
}

// Play downloads audioURL if needed and starts playback.
func (l *Library) Play(ctx context.Context, audioURL string) error {
	if l.player == nil {
		return errors.New("no audio output available")
	}
	clip, err := l.Audio(ctx, audioURL)
	if err != nil {
		return err
	}
	return l.player.Play(clip)
}

// Stop halts playback.
func (l *Library) Stop() error {
	if l.player == nil {
		return nil
	}
	return l.player.Stop()
}

// IsPlaying reports whether a clip is playing.
func (l *Library) IsPlaying() bool {
	return l.player != nil && l.player.IsPlaying()
}

// Export saves the narration of the file called name.
func (l *Library) Export(ctx context.Context, e export.Exporter, name, audioURL string) (string, error) {
	if e == nil {
		return "", export.ErrNoTarget
	}
	clip, err := l.Audio(ctx, audioURL)
	if err != nil {
		return "", err
	}
	return e.Export(ctx, name, clip)
}
