package monitors_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rymc/roomserver/internal/v1/monitors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmptySet(t *testing.T) {
	s, err := monitors.Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(7))
}

func TestLoadParsesIDsOnePerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.txt")
	require.NoError(t, os.WriteFile(path, []byte("7\n99\n\n  15  \n"), 0o644))
	s, err := monitors.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(7))
	assert.True(t, s.Contains(99))
	assert.True(t, s.Contains(15))
	assert.False(t, s.Contains(1))
}

func TestReloadReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.txt")
	require.NoError(t, os.WriteFile(path, []byte("7\n"), 0o644))
	s, err := monitors.Load(path)
	require.NoError(t, err)
	require.True(t, s.Contains(7))

	require.NoError(t, os.WriteFile(path, []byte("99\n"), 0o644))
	require.NoError(t, s.Reload(path))
	assert.False(t, s.Contains(7))
	assert.True(t, s.Contains(99))
}
