package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Device format every clip is converted to.
const (
	DeviceSampleRate = 44100
	DeviceChannels   = 1
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("player is closed")
	// ErrEmptyClip is returned for zero-length audio.
	ErrEmptyClip = errors.New("audio data is empty")
)

// PlayerState is the playback state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Player plays WAV clips.
type Player interface {
	// Play starts playing a WAV clip, replacing whatever is playing.
	Play(wav []byte) error
	// Stop stops playback. Stopping an idle player is a no-op.
	Stop() error
	// IsPlaying reports whether a clip is audible right now.
	IsPlaying() bool
	// SetVolume sets the volume in [0, 1].
	SetVolume(volume float64) error
	// Close stops playback and releases the player.
	Close() error
}

// oto allows one context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func deviceContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   DeviceSampleRate,
			ChannelCount: DeviceChannels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// OtoPlayer plays clips on the system audio device.
type OtoPlayer struct {
	mu      sync.Mutex
	ctx     *oto.Context
	player  *oto.Player
	pcm     []byte // kept alive for the duration of playback
	started time.Time
	length  time.Duration
	volume  float64
	closed  bool
}

// NewOtoPlayer opens the audio device.
func NewOtoPlayer() (*OtoPlayer, error) {
	ctx, err := deviceContext()
	if err != nil {
		return nil, err
	}
	return &OtoPlayer{ctx: ctx, volume: 1.0}, nil
}

// Play implements Player.
func (p *OtoPlayer) Play(wav []byte) error {
	if len(wav) == 0 {
		return ErrEmptyClip
	}
	clip, err := DecodeWAV(wav)
	if err != nil {
		return err
	}
	pcm := clip.PCM16Mono(DeviceSampleRate)
	if len(pcm) == 0 {
		return ErrEmptyClip
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.stopLocked()

	p.pcm = pcm
	p.player = p.ctx.NewPlayer(bytes.NewReader(p.pcm))
	p.player.SetVolume(p.volume)
	p.started = time.Now()
	p.length = clip.Duration()
	p.player.Play()
	return nil
}

// Stop implements Player.
func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *OtoPlayer) stopLocked() {
	if p.player == nil {
		return
	}
	p.player.Pause()
	_ = p.player.Close()
	p.player = nil
	p.pcm = nil
}

// IsPlaying implements Player.
func (p *OtoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && p.player.IsPlaying()
}

// Position returns how far into the current clip playback is.
func (p *OtoPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return 0
	}
	return min(time.Since(p.started), p.length)
}

// State returns the current state.
func (p *OtoPlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return StateClosed
	case p.player != nil && p.player.IsPlaying():
		return StatePlaying
	default:
		return StateStopped
	}
}

// SetVolume implements Player.
func (p *OtoPlayer) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.player != nil {
		p.player.SetVolume(volume)
	}
	return nil
}

// Close implements Player. The shared oto context stays open; v3 has no way
// to close it.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
	return nil
}

var _ Player = (*OtoPlayer)(nil)
