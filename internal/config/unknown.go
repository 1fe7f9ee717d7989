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

// knownKeys are the valid dotted "section.key" names in the config file.
var knownKeys = map[string]bool{
	"auth.client_secret_file": true, "auth.token_path": true,
	"api.base_url": true, "api.default_volume": true, "api.mesh_name": true,
	"fetch.workers": true, "fetch.batch_size": true, "fetch.max_retries": true,
	"fetch.retry_backoff": true, "fetch.requests_per_second": true, "fetch.segment_chunk_size": true,
	"network.timeout": true, "network.user_agent": true,
	"logging.log_level": true,
}

// knownKeysList is the sorted slice form of knownKeys. Sorted so that ties
// in edit distance resolve deterministically.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// knownSections is the set of valid top-level table names.
var knownSections = func() map[string]bool {
	sections := make(map[string]bool)
	for k := range knownKeys {
		sections[strings.SplitN(k, ".", 2)[0]] = true
	}

	return sections
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	errs := make([]error, 0, len(undecoded))
	for _, key := range undecoded {
		errs = append(errs, unknownKeyError(key.String()))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes an unknown key, suggesting the closest known one.
// A bare key at the top level is matched against the leaf names too, so
// "workers = 4" outside [fetch] suggests "fetch.workers".
func unknownKeyError(keyStr string) error {
	if !strings.Contains(keyStr, ".") && !knownSections[keyStr] {
		if full := sectionFor(keyStr); full != "" {
			return fmt.Errorf("unknown config key %q: did you mean %q?", keyStr, full)
		}
	}

	if suggestion := closestMatch(keyStr, knownKeysList); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean %q?", keyStr, suggestion)
	}

	return fmt.Errorf("unknown config key %q", keyStr)
}

// sectionFor returns the dotted name of the known key whose leaf is leaf.
func sectionFor(leaf string) string {
	for _, k := range knownKeysList {
		if strings.HasSuffix(k, "."+leaf) {
			return k
		}
	}

	return ""
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

	// Single-row optimization; no full matrix.
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
