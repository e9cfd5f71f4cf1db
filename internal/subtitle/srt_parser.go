package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var srtTimestampRegex = regexp.MustCompile(
	`(\d{2,}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2}),(\d{3})`,
)

// ParseSRT reads a SubRip document. Block numbers are ignored; the
// returned slice is in document order. Multi-line cue text is joined
// with "\n".
func ParseSRT(r io.Reader) ([]Segment, error) {
	var (
		segments  []Segment
		current   *Segment
		textLines []string
		lineNum   int
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			segments = append(segments, *current)
		}
		current = nil
		textLines = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			matches := srtTimestampRegex.FindStringSubmatch(line)
			if len(matches) != 9 {
				// index line
				continue
			}
			start, err := parseSRTTimestamp(matches[1:5])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseSRTTimestamp(matches[5:9])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Segment{Start: start, End: end}
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT: %w", err)
	}

	return segments, nil
}

func parseSRTTimestamp(parts []string) (float64, error) {
	var fields [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		fields[i] = v
	}
	return float64(fields[0]*3600+fields[1]*60+fields[2]) + float64(fields[3])/1000, nil
}
