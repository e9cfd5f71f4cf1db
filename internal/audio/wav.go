package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WriteWAV encodes mono float samples as 16-bit PCM WAV.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, wavBitDepth, Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: Channels,
			SampleRate:  sampleRate,
		},
		Data:           toPCM16(samples),
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return f.Close()
}

func toPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = int(s * 32767)
	}
	return out
}

// duration of a WAV file read from its header
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid wav file: %s", path)
	}

	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("failed to read wav data chunk: %w", err)
	}

	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth/8)
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("invalid wav header: %s", path)
	}
	return time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec), nil
}
