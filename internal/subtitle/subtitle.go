package subtitle

import (
	"fmt"
	"strings"
)

// represents transcribed audio segment, times in seconds from media start
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// represents supported subtitle formats
type Format string

const (
	SRT Format = "srt"
	VTT Format = "vtt"
)

// interface for writing subtitles to files
type Writer interface {
	Write(segments []Segment, path string) error
}

// parses a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "srt":
		return SRT, nil
	case "vtt":
		return VTT, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use srt or vtt", s)
	}
}

// file extension for a format
func ExtensionForFormat(format Format) string {
	switch format {
	case VTT:
		return ".vtt"
	default:
		return ".srt"
	}
}
