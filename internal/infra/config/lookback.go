package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseLookback accepts Go durations plus d (day) and w (week) units, e.g.
// "1d", "-6h", "2w", "1d12h". A leading minus is ignored: the window always
// reaches back from now.
func ParseLookback(expr string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(expr))
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return 0, fmt.Errorf("empty lookback")
	}

	var total time.Duration
	rest := s
	for rest != "" {
		// peel off leading "<n>d" / "<n>w" groups, hand the remainder to time.ParseDuration
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 || i == len(rest) || (rest[i] != 'd' && rest[i] != 'w') {
			break
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid lookback %q: %w", expr, err)
		}
		unit := day
		if rest[i] == 'w' {
			unit = week
		}
		total += time.Duration(n) * unit
		rest = rest[i+1:]
	}

	if rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid lookback %q: %w", expr, err)
		}
		total += d
	}

	if total <= 0 {
		return 0, fmt.Errorf("lookback %q must be positive", expr)
	}
	return total, nil
}
