package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// clipLine flattens newlines and truncates to the given display width,
// counting wide runes correctly.
func clipLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width-3, "") + "..."
}

// padLine right-pads to the given display width so selection highlights
// span the full row.
func padLine(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// formatWhen renders a message timestamp: time of day for today, month and
// day within the year, full date beyond that.
func formatWhen(ts int64) string {
	if ts <= 0 {
		return ""
	}
	t := time.Unix(ts, 0).Local()
	now := time.Now()
	switch {
	case t.Year() == now.Year() && t.YearDay() == now.YearDay():
		return t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 02")
	default:
		return t.Format("2006-01-02")
	}
}

// formatCount formats a result count for the footer line.
func formatCount(count int) string {
	switch count {
	case 0:
		return "no results"
	case 1:
		return "1 result"
	default:
		return fmt.Sprintf("%d results", count)
	}
}
