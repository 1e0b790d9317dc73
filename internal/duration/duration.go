// Package duration converts human-entered work-time strings ("1h 30m",
// "2d", "1.5h") to and from integer minutes. Weeks and days use working
// time: 1w = 5 working days of 8 hours, 1d = 8 hours.
package duration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Minutes per unit.
const (
	MinutesPerHour = 60
	MinutesPerDay  = 8 * MinutesPerHour
	MinutesPerWeek = 5 * MinutesPerDay
)

// tokenRe matches one duration token: a number (optionally fractional)
// with an optional unit suffix.
var tokenRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([wdhm]?)$`)

// Parse converts a work-time string to integer minutes. Tokens are
// whitespace-separated and additive; a bare number is minutes. Returns
// ok=false for empty or malformed input.
func Parse(input string) (minutes int, ok bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return 0, false
	}

	total := 0.0
	for _, f := range fields {
		m := tokenRe.FindStringSubmatch(f)
		if m == nil {
			return 0, false
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		switch m[2] {
		case "w":
			total += n * MinutesPerWeek
		case "d":
			total += n * MinutesPerDay
		case "h":
			total += n * MinutesPerHour
		default: // "m" or bare number
			total += n
		}
	}
	return int(math.Round(total)), true
}

// Format renders minutes as "{h}h {m}m" for display, omitting zero parts.
// Zero and negative values render as "0m".
func Format(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	h := minutes / MinutesPerHour
	m := minutes % MinutesPerHour
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
