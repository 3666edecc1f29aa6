package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts Go duration syntax ("90s", "1h30m") and .NET TimeSpan
// syntax ("00:05:00", "1.00:00:00", "7"), which is what existing deployments
// of the poller carry in their settings files.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	d, err := parseTimeSpan(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// parseTimeSpan parses [-]d | [-][d.]hh:mm[:ss[.fffffff]].
func parseTimeSpan(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	if !strings.Contains(s, ":") {
		days, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("expected days or hh:mm[:ss]")
		}
		return sign(neg, time.Duration(days)*24*time.Hour), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("expected hh:mm or hh:mm:ss")
	}

	var days int
	head := parts[0]
	if i := strings.Index(head, "."); i >= 0 {
		d, err := strconv.Atoi(head[:i])
		if err != nil {
			return 0, fmt.Errorf("bad days %q", head[:i])
		}
		days = d
		head = head[i+1:]
	}

	hours, err := component(head, 23, "hours")
	if err != nil {
		return 0, err
	}
	minutes, err := component(parts[1], 59, "minutes")
	if err != nil {
		return 0, err
	}

	var seconds int
	var fraction time.Duration
	if len(parts) == 3 {
		secPart := parts[2]
		if i := strings.Index(secPart, "."); i >= 0 {
			fraction, err = ticks(secPart[i+1:])
			if err != nil {
				return 0, err
			}
			secPart = secPart[:i]
		}
		seconds, err = component(secPart, 59, "seconds")
		if err != nil {
			return 0, err
		}
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		fraction
	return sign(neg, total), nil
}

func component(value string, max int, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > max {
		return 0, fmt.Errorf("bad %s %q", name, value)
	}
	return n, nil
}

// ticks converts up to seven fractional-second digits (100ns ticks).
func ticks(digits string) (time.Duration, error) {
	if digits == "" || len(digits) > 7 {
		return 0, fmt.Errorf("bad fraction %q", digits)
	}
	n, err := strconv.Atoi(digits + strings.Repeat("0", 7-len(digits)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad fraction %q", digits)
	}
	return time.Duration(n) * 100 * time.Nanosecond, nil
}

func sign(neg bool, d time.Duration) time.Duration {
	if neg {
		return -d
	}
	return d
}
