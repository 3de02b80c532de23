package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rank(n int) *int { return &n }

func TestGetColorLabel(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, LeaderValue, GetColorLabel(rank(1)))
	assert.Equal(t, PodiumValue, GetColorLabel(rank(3)))
	assert.Equal(t, TopTenValue, GetColorLabel(rank(7)))
	assert.Equal(t, RankedValue, GetColorLabel(rank(11)))
	assert.Equal(t, UnrankedValue, GetColorLabel(nil))
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "out.csv")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.FileExists(t, path)

	_, err = SelectOutputFile(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "a-very...", TruncateText("a-very-long-email@example.com", 9))
	assert.Equal(t, "résu...", TruncateText("résumé-project", 7))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1", " true "} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestDBFilePaths(t *testing.T) {
	assert.True(t, strings.HasSuffix(GetCacheDBFilePath(), ".tally_cache.db"))
	assert.True(t, strings.HasSuffix(GetSnapshotDBFilePath(), ".tally_snapshots.db"))
	assert.NotEqual(t, GetCacheDBFilePath(), GetSnapshotDBFilePath())
}
