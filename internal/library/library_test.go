package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/export"
)

type countingFetcher struct {
	clip  []byte
	err   error
	calls int
}

func (f *countingFetcher) FetchAudio(context.Context, string) ([]byte, error) {
	f.calls++
	return f.clip, f.err
}

func clip() []byte {
	return audio.EncodeWAV(make([]byte, 200), 22050, 1)
}

func TestAudioCachesDownloads(t *testing.T) {
	fetcher := &countingFetcher{clip: clip()}
	lib := New(fetcher, cache.NewMemoryCache(1<<20), nil)

	for i := 0; i < 3; i++ {
		got, err := lib.Audio(context.Background(), "http://backend.test/static/audio/a.wav")
		if err != nil {
			t.Fatalf("Audio() error = %v", err)
		}
		if len(got) != len(fetcher.clip) {
			t.Errorf("Audio() returned %d bytes", len(got))
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("fetched %d times, want 1", fetcher.calls)
	}
}

func TestAudioErrors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		fetcher *countingFetcher
		want    error
	}{
		{"no url", "", &countingFetcher{}, ErrNoAudio},
		{"download fails", "http://x/a.wav", &countingFetcher{err: errors.New("boom")}, nil},
		{"not a wav", "http://x/a.wav", &countingFetcher{clip: []byte("<html>")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fetcher, nil, nil).Audio(context.Background(), tt.url)
			if err == nil {
				t.Fatal("Audio() should fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Audio() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPlayAndStop(t *testing.T) {
	player := audio.NewMockPlayer()
	lib := New(&countingFetcher{clip: clip()}, nil, player)

	if err := lib.Play(context.Background(), "http://x/a.wav"); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !lib.IsPlaying() || len(player.Played()) != 1 {
		t.Error("clip should be playing")
	}
	_ = lib.Stop()
	if lib.IsPlaying() {
		t.Error("Stop() should halt playback")
	}

	if err := New(&countingFetcher{clip: clip()}, nil, nil).Play(context.Background(), "http://x/a.wav"); err == nil {
		t.Error("Play() without a player should fail")
	}
}

func TestExport(t *testing.T) {
	lib := New(&countingFetcher{clip: clip()}, nil, nil)
	dir := t.TempDir()

	loc, err := lib.Export(context.Background(), export.DirExporter{Dir: dir}, "a.pdf", "http://x/a.wav")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if loc != filepath.Join(dir, "a.wav") {
		t.Errorf("Export() = %q", loc)
	}
	if _, err := lib.Export(context.Background(), nil, "a.pdf", "http://x/a.wav"); !errors.Is(err, export.ErrNoTarget) {
		t.Errorf("Export() without target error = %v", err)
	}
}
