package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case SRT:
		return &SRTWriter{}, nil
	case VTT:
		return &VTTWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// writes the segments to an SRT file
func (w *SRTWriter) Write(segments []Segment, path string) error {
	return writeFile(path, FormatSRT(segments))
}

// writes the segments to a VTT file
func (w *VTTWriter) Write(segments []Segment, path string) error {
	return writeFile(path, FormatVTT(segments))
}

// FormatVTT renders segments as WebVTT. Timing rules match FormatSRT,
// with a period as the fractional separator.
func FormatVTT(segments []Segment) string {
	var sb strings.Builder

	sb.WriteString("WEBVTT\n\n")

	for i, seg := range segments {
		// optional cue identifier
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteByte('\n')

		sb.WriteString(timecode(seg.Start, "."))
		sb.WriteString(" --> ")
		sb.WriteString(timecode(seg.End, "."))
		sb.WriteByte('\n')

		sb.WriteString(strings.TrimSpace(seg.Text))
		sb.WriteString("\n\n")
	}

	return sb.String()
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	return nil
}
