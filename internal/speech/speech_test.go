package speech

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"collapses whitespace", "  hello \n\t world  ", "hello world", nil},
		{"composes accents", "café", "café", nil},
		{"blank", " \n ", "", ErrEmptyText},
		{"too long", strings.Repeat("a", MaxTextLength+1), "", ErrTextTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{Config{}, "espeak", false},
		{Config{Engine: "mock"}, "mock", false},
		{Config{Engine: "piper", PiperModel: "/models/en.onnx"}, "piper", false},
		{Config{Engine: "piper"}, "", true},
		{Config{Engine: "sapi"}, "", true},
	}
	for _, tt := range tests {
		e, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) error = %v", tt.cfg, err)
			continue
		}
		if err == nil && e.Name() != tt.want {
			t.Errorf("New(%+v).Name() = %q, want %q", tt.cfg, e.Name(), tt.want)
		}
	}
}

func TestSpeakerCachesClips(t *testing.T) {
	engine := NewMock()
	player := audio.NewMockPlayer()
	c := cache.NewMemoryCache(1 << 20)
	s := NewSpeaker(engine, "en", player, c)

	for i := 0; i < 2; i++ {
		if err := s.Speak(context.Background(), "hello   there"); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
	}
	if calls := engine.Calls(); len(calls) != 1 || calls[0] != "hello there" {
		t.Errorf("engine calls = %q, want one normalized call", calls)
	}
	if got := len(player.Played()); got != 2 {
		t.Errorf("played %d clips, want 2", got)
	}
	if !s.IsSpeaking() {
		t.Error("IsSpeaking() = false while playing")
	}
	_ = s.Stop()
	if s.IsSpeaking() {
		t.Error("IsSpeaking() = true after Stop")
	}
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	s := NewSpeaker(NewMock(), "", audio.NewMockPlayer(), nil)
	if err := s.Speak(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Speak() error = %v, want ErrEmptyText", err)
	}
}

func TestMockClipLength(t *testing.T) {
	clip, err := NewMock().Synthesize(context.Background(), "one two three four")
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := audio.DecodeWAV(clip)
	if err != nil {
		t.Fatalf("mock clip is not valid WAV: %v", err)
	}
	if d := decoded.Duration().Seconds(); d < 0.99 || d > 1.01 {
		t.Errorf("Duration() = %.2fs, want 1s for four words", d)
	}
}

func TestSpeakWithoutOutput(t *testing.T) {
	s := NewSpeaker(NewMock(), "", nil, nil)
	if err := s.Speak(context.Background(), "hello"); !errors.Is(err, ErrNoOutput) {
		t.Errorf("Speak() error = %v, want ErrNoOutput", err)
	}
	if _, err := s.Render(context.Background(), "hello"); err != nil {
		t.Errorf("Render() without output error = %v", err)
	}
	if s.IsSpeaking() || s.Stop() != nil {
		t.Error("a speaker without output is never speaking")
	}
}
