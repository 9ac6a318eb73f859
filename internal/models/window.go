package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWindow parses a max-offline window. The provisioning data uses
// HH:MM:SS text ("00:30:00"); Go duration strings ("30m") are also
// accepted for rows written by newer tooling.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty offline window")
	}

	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		sec, err3 := strconv.Atoi(parts[2])
		if err1 == nil && err2 == nil && err3 == nil && h >= 0 && m >= 0 && m < 60 && sec >= 0 && sec < 60 {
			return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
		}
		return 0, fmt.Errorf("invalid HH:MM:SS window %q", s)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offline window %q", s)
	}
	return d, nil
}
