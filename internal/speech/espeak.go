package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// espeak's default speaking rate in words per minute.
const espeakBaseWPM = 175

// Espeak synthesizes with the espeak-ng command line tool.
type Espeak struct {
	binary string
	voice  string
	wpm    int
}

// NewEspeak returns an espeak-ng engine.
func NewEspeak(cfg Config) *Espeak {
	voice := cfg.Voice
	if voice == "" {
		voice = "en"
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1
	}
	return &Espeak{
		binary: "espeak-ng",
		voice:  voice,
		wpm:    int(espeakBaseWPM * rate),
	}
}

// Name implements Engine.
func (e *Espeak) Name() string { return "espeak" }

// Synthesize implements Engine. Text is passed on stdin so it never reaches
// the argument list.
func (e *Espeak) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return run(ctx, defaultTimeout, text, e.binary,
		"--stdout",
		"-v", e.voice,
		"-s", strconv.Itoa(e.wpm),
	)
}

// Validate implements Engine.
func (e *Espeak) Validate() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w\n\nInstall espeak-ng from your package manager", e.binary, err)
	}
	return nil
}
