package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/vidsrt/internal/ffmpeg"
)

// Decoder turns any container ffmpeg understands into a mono waveform.
type Decoder struct {
	SampleRate int

	ffmpegPath func() (string, error)
}

func NewDecoder() *Decoder {
	return &Decoder{
		SampleRate: SampleRate,
		ffmpegPath: ffmpegbin.FFmpegPath,
	}
}

// Decode extracts the first audio stream of mediaPath, downmixed to mono
// and resampled to d.SampleRate. Video streams are ignored.
func (d *Decoder) Decode(ctx context.Context, mediaPath string) (*Waveform, error) {
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("media file not found: %s", mediaPath)
	}

	binPath, err := d.ffmpegPath()
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binPath, decodeArgs(mediaPath, d.SampleRate)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %s: %w", msg, err)
	}

	samples := decodeFloat32LE(stdout.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio found in %s", mediaPath)
	}

	return &Waveform{Samples: samples, SampleRate: d.SampleRate}, nil
}

// raw little-endian float32 PCM on stdout
func decodeArgs(mediaPath string, sampleRate int) []string {
	stream := ffmpeg.Input(mediaPath).
		Output("pipe:1", ffmpeg.KwArgs{
			"vn":     "",
			"ac":     Channels,
			"ar":     sampleRate,
			"acodec": "pcm_f32le",
			"f":      "f32le",
		})

	// global options must precede the first input
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	return append(args, stream.GetArgs()...)
}

func decodeFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
