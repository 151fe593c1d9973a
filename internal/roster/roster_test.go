package roster

import (
	"testing"

	"nexuschat/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReplacesSet(t *testing.T) {
	c := NewCache()

	c.SetOnline(1)
	c.ReplaceAlive([]int64{2, 5, 9})

	assert.Equal(t, []int64{2, 5, 9}, c.AliveIDs())
	assert.False(t, c.IsOnline(1))
	assert.True(t, c.IsOnline(5))
}

func TestPresenceDeltas(t *testing.T) {
	c := NewCache()
	c.ReplaceAlive([]int64{2, 5})

	assert.True(t, c.SetOnline(9))
	assert.False(t, c.SetOnline(9), "repeated add is reported")
	c.SetOffline(2)

	assert.Equal(t, []int64{5, 9}, c.AliveIDs())
}

func TestOfflineUnknownIDIsNoOp(t *testing.T) {
	c := NewCache()
	c.ReplaceAlive([]int64{2})
	c.SetOffline(99)
	assert.Equal(t, []int64{2}, c.AliveIDs())
}

func TestDirectoryInfoCache(t *testing.T) {
	c := NewCache()

	_, ok := c.Info(2)
	assert.False(t, ok)

	c.StoreInfos([]protocol.UserInfo{
		{ID: 2, Name: "ada"},
		{ID: 5, Name: "grace"},
	})

	info, ok := c.Info(2)
	require.True(t, ok)
	assert.Equal(t, "ada", info.Name)

	// Later merges refresh existing records without touching others.
	c.StoreInfos([]protocol.UserInfo{{ID: 2, Name: "ada lovelace"}})
	info, _ = c.Info(2)
	assert.Equal(t, "ada lovelace", info.Name)
	info, _ = c.Info(5)
	assert.Equal(t, "grace", info.Name)
}

func TestPublicKeyRecords(t *testing.T) {
	c := NewCache()

	_, ok := c.PublicKey(7)
	assert.False(t, ok, "missing record must be reported, never a zero key")

	c.StorePublicKey(7, "v1", "base64-key")
	rec, ok := c.PublicKey(7)
	require.True(t, ok)
	assert.Equal(t, "v1", rec.Version)
	assert.Equal(t, "base64-key", rec.PublicKey)
	assert.False(t, rec.FetchedAt.IsZero())
}

func TestSelf(t *testing.T) {
	c := NewCache()

	_, ok := c.Self()
	assert.False(t, ok)

	c.SetSelf(protocol.UserInfo{ID: 1, Name: "me"})
	self, ok := c.Self()
	require.True(t, ok)
	assert.Equal(t, int64(1), self.ID)
}

func TestClear(t *testing.T) {
	c := NewCache()
	c.ReplaceAlive([]int64{2, 5})
	c.StoreInfos([]protocol.UserInfo{{ID: 2, Name: "ada"}})
	c.StorePublicKey(7, "v1", "key")
	c.SetSelf(protocol.UserInfo{ID: 1})

	c.Clear()

	assert.Empty(t, c.AliveIDs())
	_, ok := c.Info(2)
	assert.False(t, ok)
	_, ok = c.PublicKey(7)
	assert.False(t, ok)
	_, ok = c.Self()
	assert.False(t, ok)
}
