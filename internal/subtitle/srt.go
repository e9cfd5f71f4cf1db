package subtitle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatSRT renders segments as a SubRip document. Block numbers follow
// the position in the slice, so the output for a sub-slice is not a
// substring of the output for the whole.
func FormatSRT(segments []Segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteByte('\n')
		sb.WriteString(Timecode(seg.Start))
		sb.WriteString(" --> ")
		sb.WriteString(Timecode(seg.End))
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(seg.Text))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Timecode formats seconds as HH:MM:SS,mmm. Hours are not wrapped and
// grow past two digits for very long media.
func Timecode(seconds float64) string {
	return timecode(seconds, ",")
}

func timecode(seconds float64, sep string) string {
	hours := int(math.Floor(seconds / 3600))
	minutes := int(math.Floor(math.Mod(seconds, 3600) / 60))
	rest := fmt.Sprintf("%06.3f", math.Mod(seconds, 60))
	return fmt.Sprintf("%02d:%02d:%s", hours, minutes, strings.Replace(rest, ".", sep, 1))
}
