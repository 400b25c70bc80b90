// Package expiry parses compact token lifetimes such as "15m" or "7d".
package expiry

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Default is the lifetime used whenever a value cannot be parsed.
const Default = 15 * time.Minute

// Parse converts "<integer><unit>" with unit s, m, h or d into a duration.
// Any malformed value, including an unknown unit or a missing integer prefix,
// yields Default. So does a value too large to fit in a time.Duration.
func Parse(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return Default
	}

	var unit time.Duration
	switch raw[len(raw)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return Default
	}

	value, ok := leadingInt(raw[:len(raw)-1])
	if !ok || value > math.MaxInt64/int64(unit) {
		return Default
	}
	return time.Duration(value) * unit
}

// Millis is Parse expressed in milliseconds.
func Millis(raw string) int64 {
	return Parse(raw).Milliseconds()
}

// leadingInt reads the integer prefix of s, ignoring anything after it.
func leadingInt(s string) (int64, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
