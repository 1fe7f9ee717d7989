package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"workers", "workers", 0},
		{"workrs", "workers", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "fetch.batch_size", closestMatch("fetch.batchsize", knownKeysList))
	assert.Empty(t, closestMatch("completely.unrelated", knownKeysList))
}

func TestUnknownKeyError(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"api.mesh_nme", `unknown config key "api.mesh_nme": did you mean "api.mesh_name"?`},
		{"workers", `unknown config key "workers": did you mean "fetch.workers"?`},
		{"zzz.qqq", `unknown config key "zzz.qqq"`},
	}

	for _, tt := range tests {
		assert.EqualError(t, unknownKeyError(tt.key), tt.want)
	}
}

func TestLoad_TopLevelKeyOutsideSection(t *testing.T) {
	path := writeTestConfig(t, "log_level = \"debug\"\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, `did you mean "logging.log_level"`)
}
