package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// WAV format tags.
const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

var (
	// ErrNotWAV is returned for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")
	// ErrUnsupportedFormat is returned for WAV encodings we cannot play.
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding")
)

// Clip is decoded PCM audio.
type Clip struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Float      bool
	Data       []byte // interleaved little-endian samples
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	frame := c.Channels * c.BitDepth / 8
	if frame == 0 || c.SampleRate == 0 {
		return 0
	}
	frames := len(c.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE file.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	r := bytes.NewReader(data[12:])
	var (
		clip    Clip
		haveFmt bool
		format  uint16
	)
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Clip{}, fmt.Errorf("unable to read chunk header: %w", err)
		}
		size := int64(hdr.Size)
		if size > int64(r.Len()) {
			// streamed WAVs sometimes carry a bogus data size
			size = int64(r.Len())
		}

		switch string(hdr.ID[:]) {
		case "fmt ":
			var f struct {
				Format        uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			chunk := make([]byte, size)
			if _, err := io.ReadFull(r, chunk); err != nil {
				return Clip{}, fmt.Errorf("unable to read fmt chunk: %w", err)
			}
			_ = binary.Read(bytes.NewReader(chunk), binary.LittleEndian, &f)
			format = f.Format
			if format == formatExtensible && len(chunk) >= 26 {
				format = binary.LittleEndian.Uint16(chunk[24:26])
			}
			clip.Channels = int(f.Channels)
			clip.SampleRate = int(f.SampleRate)
			clip.BitDepth = int(f.BitsPerSample)
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data before fmt chunk", ErrUnsupportedFormat)
			}
			clip.Data = make([]byte, size)
			if _, err := io.ReadFull(r, clip.Data); err != nil {
				return Clip{}, fmt.Errorf("unable to read data chunk: %w", err)
			}
		default:
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return Clip{}, err
			}
		}
		if size%2 == 1 && r.Len() > 0 {
			_, _ = r.Seek(1, io.SeekCurrent)
		}
	}

	if !haveFmt || clip.Data == nil {
		return Clip{}, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	switch {
	case format == formatPCM && (clip.BitDepth == 8 || clip.BitDepth == 16):
	case format == formatFloat && clip.BitDepth == 32:
		clip.Float = true
	default:
		return Clip{}, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, format, clip.BitDepth)
	}
	if clip.Channels < 1 || clip.SampleRate < 1 {
		return Clip{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, clip.Channels, clip.SampleRate)
	}
	return clip, nil
}

// EncodeWAV writes 16-bit PCM samples as a WAV file.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	blockAlign := channels * 2
	_, _ = buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	_, _ = buf.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16),
		uint16(formatPCM),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * blockAlign),
		uint16(blockAlign),
		uint16(16),
	} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	_, _ = buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	_, _ = buf.Write(pcm)
	return buf.Bytes()
}

// samples returns the clip as mono float samples in [-1, 1].
func (c Clip) samples() []float64 {
	width := c.BitDepth / 8
	frame := width * c.Channels
	n := len(c.Data) / frame
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < c.Channels; ch++ {
			off := i*frame + ch*width
			switch {
			case c.Float:
				sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(c.Data[off:])))
			case width == 1:
				sum += (float64(c.Data[off]) - 128) / 128
			default:
				sum += float64(int16(binary.LittleEndian.Uint16(c.Data[off:]))) / 32768
			}
		}
		out[i] = sum / float64(c.Channels)
	}
	return out
}

// PCM16Mono converts the clip to signed 16-bit mono at the given rate using
// linear interpolation.
func (c Clip) PCM16Mono(rate int) []byte {
	in := c.samples()
	if len(in) == 0 || rate <= 0 {
		return nil
	}

	n := int(int64(len(in)) * int64(rate) / int64(c.SampleRate))
	out := make([]byte, n*2)
	step := float64(c.SampleRate) / float64(rate)
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		j := int(pos)
		v := in[j]
		if j+1 < len(in) {
			frac := pos - float64(j)
			v += (in[j+1] - v) * frac
		}
		v = math.Max(-1, math.Min(1, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(v*32767))))
	}
	return out
}
