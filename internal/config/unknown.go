package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds "did you mean?" suggestions.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of every section.
var knownKeys = map[string][]string{
	"server":    {"space_webdav_url", "token_file", "url", "user_id", "username"},
	"transfers": {"bandwidth_limit", "chunk_size", "chunking_threshold", "parallel_downloads"},
	"network":   {"connect_timeout", "force_http_11", "user_agent"},
	"logging":   {"log_format", "log_level"},
	"ledger":    {"enabled", "path"},
}

// knownSections is sorted so equal-distance suggestions are deterministic.
var knownSections = slices.Sorted(maps.Keys(knownKeys))

// checkUnknownKeys turns every undecoded TOML key into an error, suggesting
// the closest known section or key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := unknownKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]

	fields, ok := knownKeys[section]
	if !ok {
		if home := sectionOf(section); home != "" {
			return fmt.Errorf("config key %q must be in the [%s] section", section, home)
		}

		return suggest(fmt.Sprintf("unknown config section %q", section), section, knownSections)
	}

	if len(key) < 2 {
		return nil
	}

	return suggest(fmt.Sprintf("unknown key %q in [%s]", key[1], section), key[1], fields)
}

// sectionOf returns the section a bare key belongs to, or "".
func sectionOf(key string) string {
	for _, section := range knownSections {
		if slices.Contains(knownKeys[section], key) {
			return section
		}
	}

	return ""
}

func suggest(msg, unknown string, known []string) error {
	if s := closestMatch(unknown, known); s != "" {
		return fmt.Errorf("%s, did you mean %q?", msg, s)
	}

	return errors.New(msg)
}

// closestMatch finds the closest known key by Levenshtein distance, or ""
// when nothing is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
