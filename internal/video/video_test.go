package video

import (
	"context"
	"path/filepath"
	"testing"
)

func TestExtractKwArgs(t *testing.T) {
	tests := []struct {
		name      string
		opts      ExtractAudioOptions
		wantCodec string
		wantRate  string
		wantErr   bool
	}{
		{"defaults", ExtractAudioOptions{}, "pcm_s16le", "", false},
		{"wav", DefaultExtractAudioOptions(), "pcm_s16le", "", false},
		{"mp3 bitrate", ExtractAudioOptions{Format: "mp3", Bitrate: "128k"}, "libmp3lame", "128k", false},
		{"flac ignores bitrate", ExtractAudioOptions{Format: "flac", Bitrate: "128k"}, "flac", "", false},
		{"unknown", ExtractAudioOptions{Format: "ogg"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kwargs, err := extractKwArgs(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractKwArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if kwargs["acodec"] != tt.wantCodec {
				t.Errorf("acodec = %v, want %s", kwargs["acodec"], tt.wantCodec)
			}
			if kwargs["ar"] != 16000 || kwargs["ac"] != 1 {
				t.Errorf("expected 16 kHz mono, got ar=%v ac=%v", kwargs["ar"], kwargs["ac"])
			}
			bitrate, _ := kwargs["b:a"].(string)
			if bitrate != tt.wantRate {
				t.Errorf("b:a = %q, want %q", bitrate, tt.wantRate)
			}
		})
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"":     ".wav",
		"wav":  ".wav",
		"MP3":  ".mp3",
		"flac": ".flac",
	}
	for in, want := range tests {
		if got := ExtensionFor(in); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractAudioMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	err := ExtractAudio(context.Background(), "missing.mp4", out, DefaultExtractAudioOptions())
	if err == nil {
		t.Error("expected error for missing input")
	}
}
