package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/mitchellh/go-homedir"
)

// Piper synthesizes with the piper neural TTS binary.
type Piper struct {
	binary      string
	model       string
	lengthScale float64
	sampleRate  int
}

// NewPiper returns a piper engine for cfg.PiperModel.
func NewPiper(cfg Config) (*Piper, error) {
	if cfg.PiperModel == "" {
		return nil, errors.New("piper requires a model path (speech.piper_model)")
	}
	model, err := homedir.Expand(cfg.PiperModel)
	if err != nil {
		return nil, fmt.Errorf("invalid piper model path: %w", err)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = 22050
	}
	return &Piper{
		binary:      "piper",
		model:       model,
		lengthScale: 1 / rate,
		sampleRate:  sr,
	}, nil
}

// Name implements Engine.
func (p *Piper) Name() string { return "piper" }

// Synthesize implements Engine. Piper streams raw PCM which is wrapped into
// a WAV clip.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	pcm, err := run(ctx, defaultTimeout, text, p.binary,
		"--model", p.model,
		"--output_raw",
		"--length_scale", strconv.FormatFloat(p.lengthScale, 'f', 2, 64),
	)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAV(pcm, p.sampleRate, 1), nil
}

// Validate implements Engine.
func (p *Piper) Validate() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", p.binary, err)
	}
	if _, err := os.Stat(p.model); err != nil {
		return fmt.Errorf("piper model %s: %w", p.model, err)
	}
	return nil
}
