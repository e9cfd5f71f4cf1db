package subtitle

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFormatSRTEmpty(t *testing.T) {
	if got := FormatSRT(nil); got != "" {
		t.Errorf("FormatSRT(nil) = %q, want empty string", got)
	}
	if got := FormatSRT([]Segment{}); got != "" {
		t.Errorf("FormatSRT([]) = %q, want empty string", got)
	}
}

func TestFormatSRTSingleSegment(t *testing.T) {
	got := FormatSRT([]Segment{{Start: 0, End: 1.5, Text: "hello"}})
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n"
	if got != want {
		t.Errorf("FormatSRT() = %q, want %q", got, want)
	}
}

func TestFormatSRTTrimsText(t *testing.T) {
	got := FormatSRT([]Segment{{Start: 0, End: 1, Text: "  hi  "}})
	want := "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"
	if got != want {
		t.Errorf("FormatSRT() = %q, want %q", got, want)
	}
}

func TestFormatSRTSequentialIndices(t *testing.T) {
	segments := make([]Segment, 12)
	for i := range segments {
		segments[i] = Segment{Start: float64(i), End: float64(i) + 0.5, Text: "x"}
	}

	blocks := strings.Split(strings.TrimSuffix(FormatSRT(segments), "\n\n"), "\n\n")
	if len(blocks) != len(segments) {
		t.Fatalf("expected %d blocks, got %d", len(segments), len(blocks))
	}
	for i, block := range blocks {
		index := strings.SplitN(block, "\n", 2)[0]
		if want := strconv.Itoa(i + 1); index != want {
			t.Errorf("block %d: index = %q, want %q", i, index, want)
		}
	}
}

func TestFormatSRTSplitIsNotConcatenation(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "one"},
		{Start: 1, End: 2, Text: "two"},
		{Start: 2, End: 3, Text: "three"},
		{Start: 3, End: 4, Text: "four"},
	}

	whole := FormatSRT(segments)
	halves := FormatSRT(segments[:2]) + FormatSRT(segments[2:])
	if whole == halves {
		t.Error("expected block numbering to depend on position in the sequence")
	}
	if !strings.HasPrefix(FormatSRT(segments[2:]), "1\n") {
		t.Error("expected second half to be renumbered from 1")
	}
}

func TestTimecode(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{60, "00:01:00,000"},
		{3599.5, "00:59:59,500"},
		{3661.25, "01:01:01,250"},
		{36000, "10:00:00,000"},
		{360000.125, "100:00:00,125"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Timecode(tt.seconds); got != tt.want {
				t.Errorf("Timecode(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatVTT(t *testing.T) {
	got := FormatVTT([]Segment{{Start: 3661.25, End: 3662, Text: " line "}})
	want := "WEBVTT\n\n1\n01:01:01.250 --> 01:01:02.000\nline\n\n"
	if got != want {
		t.Errorf("FormatVTT() = %q, want %q", got, want)
	}
}

func TestParseSRTRoundTrip(t *testing.T) {
	segments := []Segment{
		{Start: 1, End: 4, Text: "Hello, world!"},
		{Start: 5.5, End: 8.2, Text: "This is a test.\nWith multiple lines."},
		{Start: 3661.25, End: 3665, Text: "Final subtitle."},
	}

	parsed, err := ParseSRT(strings.NewReader(FormatSRT(segments)))
	if err != nil {
		t.Fatalf("ParseSRT() error: %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("expected %d segments, got %d", len(segments), len(parsed))
	}
	for i := range segments {
		if parsed[i] != segments[i] {
			t.Errorf("segment %d: got %+v, want %+v", i, parsed[i], segments[i])
		}
	}
}

func TestParseSRTWithBOM(t *testing.T) {
	content := "\ufeff1\n00:00:01,000 --> 00:00:02,000\nHi\n\n"
	parsed, err := ParseSRT(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseSRT() error: %v", err)
	}
	if len(parsed) != 1 || parsed[0].Text != "Hi" || parsed[0].Start != 1 {
		t.Errorf("unexpected result: %+v", parsed)
	}
}

func TestWriterWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "captions.srt")

	writer, err := NewWriter(SRT)
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := writer.Write([]Segment{{Start: 0, End: 1.5, Text: "hello"}}, path); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(data) != "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n" {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", SRT, false},
		{"srt", SRT, false},
		{" SRT ", SRT, false},
		{"vtt", VTT, false},
		{"ass", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
