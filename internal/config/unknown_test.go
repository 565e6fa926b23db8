package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_setting = "value"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[content]\nplaceholder_nam = \".keep\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), "placeholder_name")
}

func TestLoad_UnknownSection_Suggestion(t *testing.T) {
	path := writeTestConfig(t, "[mnt]\nread_only = true\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[mount]")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
[cache]
completely_unrelated_key = true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"log_levl", "log_level", 1},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	known := []string{"log_format", "log_level"}
	assert.Equal(t, "log_level", closestMatch("log_levl", known))
	assert.Equal(t, "", closestMatch("completely_unrelated", known))
}
