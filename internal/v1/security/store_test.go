package security_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBanPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := security.New(path)
	require.NoError(t, s.Load())
	require.NoError(t, s.AddBan(security.BanTypeID, "42", 0, "cheating"))

	reloaded := security.New(path)
	require.NoError(t, reloaded.Load())
	ban, ok := reloaded.IsBanned(security.BanTypeID, "42")
	require.True(t, ok)
	assert.Equal(t, "cheating", ban.Reason)
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := security.New(path)
	assert.NoError(t, s.Load())
	assert.False(t, s.IsBlacklistedIP("1.2.3.4"))
}

func TestBanExpiresAfterTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := security.New(path)
	require.NoError(t, s.Load())
	require.NoError(t, s.AddBan(security.BanTypeIP, "1.2.3.4", time.Millisecond, "test"))
	time.Sleep(5 * time.Millisecond)
	_, ok := s.IsBanned(security.BanTypeIP, "1.2.3.4")
	assert.False(t, ok)
}

func TestOpAndDeop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := security.New(path)
	require.NoError(t, s.Load())
	require.NoError(t, s.Op("42"))
	assert.True(t, s.IsOp("42"))
	require.NoError(t, s.Deop("42"))
	assert.False(t, s.IsOp("42"))
}

func TestRemoveBlacklistIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := security.New(path)
	require.NoError(t, s.Load())
	require.NoError(t, s.AddBlacklistIP("9.9.9.9", 0))
	assert.True(t, s.IsBlacklistedIP("9.9.9.9"))
	require.NoError(t, s.RemoveBlacklistIP("9.9.9.9"))
	assert.False(t, s.IsBlacklistedIP("9.9.9.9"))
}
