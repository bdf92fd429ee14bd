package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateFormats are the absolute forms accepted wherever a date appears:
// rule condition values and the engine's date-range filters.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
}

var relativeDateRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

// ParseDate parses an absolute date like 2024-05-01 or 2024/05/01, or a
// relative age like 7d, 2w, 1m, 1y counted back from now. The result is
// midnight UTC for absolute dates, the exact instant for relative ones.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC(), nil
		}
	}
	if m := relativeDateRe.FindStringSubmatch(strings.ToLower(value)); m != nil {
		amount, _ := strconv.Atoi(m[1])
		now := time.Now().UTC()
		switch m[2] {
		case "d":
			return now.AddDate(0, 0, -amount), nil
		case "w":
			return now.AddDate(0, 0, -amount*7), nil
		case "m":
			return now.AddDate(0, -amount, 0), nil
		case "y":
			return now.AddDate(-amount, 0, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD or a relative age like 7d)", value)
}
