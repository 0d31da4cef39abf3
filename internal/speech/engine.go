// Package speech speaks typed text aloud through a local synthesis engine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxTextLength bounds a single utterance.
const MaxTextLength = 5000

var (
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrTextTooLong is returned for text over MaxTextLength.
	ErrTextTooLong = errors.New("text too long")
	// ErrUnknownEngine is returned by New for unsupported engine names.
	ErrUnknownEngine = errors.New("unknown speech engine")
)

// Engine turns text into a WAV clip.
type Engine interface {
	// Name identifies the engine in config and cache keys.
	Name() string
	// Synthesize returns a WAV clip for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// Validate checks that the engine can run on this machine.
	Validate() error
}

// Config selects and tunes an engine.
type Config struct {
	Engine     string  // "espeak", "piper" or "mock"
	Voice      string  // espeak voice, e.g. "en" or "fr"
	Rate       float64 // speed multiplier, 1.0 is normal
	PiperModel string  // path to a piper .onnx model
	SampleRate int     // piper model sample rate
}

// New returns the engine named in cfg.
func New(cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", "espeak", "espeak-ng":
		return NewEspeak(cfg), nil
	case "piper":
		return NewPiper(cfg)
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q (want espeak, piper or mock)", ErrUnknownEngine, cfg.Engine)
	}
}

// Normalize prepares text for synthesis: NFC normalization and collapsed
// whitespace.
func Normalize(text string) (string, error) {
	text = strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	if text == "" {
		return "", ErrEmptyText
	}
	if n := len([]rune(text)); n > MaxTextLength {
		return "", fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, MaxTextLength)
	}
	return text, nil
}
