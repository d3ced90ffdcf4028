package utils

import (
	"strconv"
	"strings"
)

// ParseClock parses an "HH:MM" 24-hour string. A trailing qualifier word
// ("08:00 AM") is tolerated by reading only the portion before the first
// space. Returns ok=false when either segment is not a valid integer or
// is out of range.
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}
	if idx := strings.Index(s, " "); idx != -1 {
		s = s[:idx]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// TimeToMinutes converts an "HH:MM" string to minutes since midnight.
// Unparseable input maps to 0.
func TimeToMinutes(timeStr string) int {
	h, m, ok := ParseClock(timeStr)
	if !ok {
		return 0
	}
	return h*60 + m
}
