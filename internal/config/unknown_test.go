package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKeyMessages(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"typo in section", "[servr]\nurl = \"https://x.example.com\"\n", `unknown config section "servr", did you mean "server"?`},
		{"unrelated section", "[completely_unrelated]\nx = 1\n", `unknown config section "completely_unrelated"`},
		{"key outside section", "log_level = \"debug\"\n", `config key "log_level" must be in the [logging] section`},
		{"typo in key", "[network]\nuser_agnt = \"x\"\n", `did you mean "user_agent"?`},
		{"unrelated key", "[ledger]\nfrobnicate = true\n", `unknown key "frobnicate" in [ledger]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnknownSectionReportedOnce(t *testing.T) {
	_, err := Load(writeTestConfig(t, "[servr]\nurl = \"a\"\nuser_id = \"b\"\n"))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "servr"))
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "chunk_size", closestMatch("chunk_sze", knownKeys["transfers"]))
	assert.Empty(t, closestMatch("zzzzzzzzzz", knownKeys["transfers"]))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("abc", ""))
	assert.Equal(t, 1, levenshtein("kitten", "sitten"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
