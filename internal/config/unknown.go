package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"github":  {"api_url", "raw_url", "client_id", "token_file"},
	"content": {"placeholder_name", "commit_prefix"},
	"cache":   {"blob_cache", "blob_cache_dir", "max_blob_size", "max_cache_size"},
	"logging": {"log_level", "log_format"},
	"network": {"connect_timeout", "data_timeout", "user_agent"},
	"mount":   {"allow_other", "read_only", "stream_threshold", "attr_timeout"},
}

// knownSections is the sorted section list for Levenshtein matching.
// Sorted for deterministic suggestions when two candidates have the same
// edit distance.
var knownSections = func() []string {
	out := make([]string, 0, len(knownKeys))
	for s := range knownKeys {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool)

	for _, key := range undecoded {
		err := unknownKeyError(key)

		if msg := err.Error(); !seen[msg] {
			seen[msg] = true
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// unknownKeyError describes one undecoded key, suggesting the closest
// valid section or key.
func unknownKeyError(key toml.Key) error {
	section := key[0]

	keys, ok := knownKeys[section]
	if !ok {
		if s := closestMatch(section, knownSections); s != "" {
			return fmt.Errorf("unknown config key %q: did you mean section [%s]?", section, s)
		}

		return fmt.Errorf("unknown config key %q", section)
	}

	if len(key) < 2 {
		return fmt.Errorf("unknown config key %q", key.String())
	}

	field := key[1]

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	if s := closestMatch(field, sorted); s != "" {
		return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", field, section, s)
	}

	return fmt.Errorf("unknown config key %q in [%s]", strings.Join(key[1:], "."), section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
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
