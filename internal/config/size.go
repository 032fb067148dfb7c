package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize converts a human-readable size to bytes. SI ("MB") and IEC
// ("MiB") suffixes are accepted; a bare number is raw bytes. Empty string
// and "0" return 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(n), nil
}

// ParseRate parses a transfer rate such as "5MB/s" or "100KiB" into bytes
// per second. The "/s" suffix is optional; "0" and "" mean unlimited.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[len(s)-2:], "/s") {
		s = s[:len(s)-2]
	}

	n, err := ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate: %w", err)
	}

	return n, nil
}

func formatRate(bytesPerSec int64) string {
	if bytesPerSec <= 0 {
		return "unlimited"
	}

	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
