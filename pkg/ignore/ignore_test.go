package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	matcher, err := NewMatcher(t.TempDir(), "")
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".hoover", true},
		{".hoover/ledger.db", true},
		{".hoover-123456", true},
		{".git", true},
		{".hooverignore", true},
		{".DS_Store", true},
		{"app.darshan", false},
		{"logs/job.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, FileName), []byte("# scratch output\r\n*.tmp\r\nscratch\n"), 0644))

	extra := filepath.Join(t.TempDir(), "site-ignore")
	require.NoError(t, os.WriteFile(extra, []byte("*.core\n!keep.core"), 0644))

	matcher, err := NewMatcher(tmpDir, extra)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".hoover", true},
		{"a.tmp", true},
		{"deep/b.tmp", true},
		{"scratch/file", true},
		{"app.core", true},
		{"keep.core", false},
		{"app.darshan", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_MissingExtraFile(t *testing.T) {
	_, err := NewMatcher(t.TempDir(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}
