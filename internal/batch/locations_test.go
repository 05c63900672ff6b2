package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dir  string
		want string
	}{
		{filepath.Join("exp", "B02_cropped", "Tracking Result"), "B02"},
		{filepath.Join("exp", "B03", "Tracking Result"), "B03"},
		{filepath.Join("exp", "B04_cropped"), "B04"},
		{filepath.Join("exp", "B05"), "B05"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, displayName(tc.dir), "dir %s", tc.dir)
	}
}

func TestLocationForDir(t *testing.T) {
	t.Parallel()

	loc := LocationForDir(filepath.Join("exp", "B02_cropped", "Tracking Result"))
	assert.Equal(t, "B02", loc.Name)
	assert.Equal(t, filepath.Join("exp", "B02_cropped", "Tracking Result"), loc.Dir)
}

func TestFindLocations(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{
		filepath.Join("expA", "B02_cropped", "Tracking Result"),
		filepath.Join("expA", "B03", "Tracking Result"),
		filepath.Join("expB", "nested", "C01_cropped", "Tracking Result"),
		filepath.Join("expB", "notes"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	// A result directory is not scanned for nested results.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "expA", "B02_cropped", "Tracking Result", "Tracking Result"), 0o755))

	locs, err := FindLocations(root)
	require.NoError(t, err)
	require.Len(t, locs, 3)

	names := make([]string, len(locs))
	for i, loc := range locs {
		names[i] = loc.Name
	}
	assert.Equal(t, []string{"B02", "B03", "C01"}, names, "walk order is lexical")
}

func TestFindLocationsMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := FindLocations(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
