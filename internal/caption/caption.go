// Package caption renders transcript segments for display: one line per
// segment, revealed one at a time.
package caption

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mgpai22/vidsrt/internal/subtitle"
)

// pause between two revealed lines
const DefaultPause = 200 * time.Millisecond

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Line formats a segment as "[MM:SS.mmm --> MM:SS.mmm] text". Minutes are
// not wrapped at 60.
func Line(seg subtitle.Segment) string {
	return fmt.Sprintf("[%s --> %s] %s", clock(seg.Start), clock(seg.End), strings.TrimSpace(seg.Text))
}

func Lines(segments []subtitle.Segment) []string {
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = Line(seg)
	}
	return lines
}

func clock(seconds float64) string {
	return fmt.Sprintf("%02d:%06.3f", int(math.Floor(seconds/60)), math.Mod(seconds, 60))
}

// Reveal yields the caption line of each segment in order with pause
// between consecutive lines. Iteration stops when ctx is done.
func Reveal(ctx context.Context, segments []subtitle.Segment, pause time.Duration) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for i, seg := range segments {
			if i > 0 && pause > 0 {
				if timer == nil {
					timer = time.NewTimer(pause)
				} else {
					timer.Reset(pause)
				}
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return
			}

			if !yield(i, Line(seg)) {
				return
			}
		}
	}
}

// Markdown wraps the lines in a fenced code block, blank line between.
func Markdown(lines []string) string {
	return "```\n" + strings.Join(lines, "\n\n") + "\n```\n"
}

// RenderMarkdown renders the caption block to HTML.
func RenderMarkdown(lines []string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(lines)), &buf); err != nil {
		return "", fmt.Errorf("failed to render captions: %w", err)
	}
	return buf.String(), nil
}
