package ffmpeg

import (
	"math"
	"strconv"
	"strings"
)

// ParseClock converts an ffmpeg timestamp to seconds. It accepts
// HH:MM:SS[.f], MM:SS[.f] and bare seconds. Anything else, including the
// negative and N/A values ffmpeg prints before the first frame, yields 0.
func ParseClock(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0.0
	for i, part := range parts {
		if part == "" || !isUnsignedNumber(part, i == len(parts)-1) {
			return 0
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		total = total*60 + v
	}
	return total
}

// isUnsignedNumber rejects signs, exponents and the words ParseFloat would
// otherwise accept. Only the last field may carry a fraction.
func isUnsignedNumber(s string, allowFraction bool) bool {
	dots := 0
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && allowFraction:
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}
