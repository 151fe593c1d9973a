// Package roster tracks which peers are currently online plus a best-effort
// cache of their directory info and published public keys.
package roster

import (
	"sort"
	"sync"
	"time"

	"nexuschat/internal/protocol"
)

// PublicKeyRecord is a soft cache entry for a peer's published key. Staleness
// is tolerated; absence means encryption must fail closed.
type PublicKeyRecord struct {
	UserID    int64
	Version   string
	PublicKey string
	FetchedAt time.Time
}

// Cache is the presence and directory cache. It is pure data owned by the
// connection state machine; it never talks to the network itself.
type Cache struct {
	mu       sync.RWMutex
	alive    map[int64]struct{}
	infos    map[int64]protocol.UserInfo
	pubKeys  map[int64]PublicKeyRecord
	selfInfo *protocol.UserInfo
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		alive:   make(map[int64]struct{}),
		infos:   make(map[int64]protocol.UserInfo),
		pubKeys: make(map[int64]PublicKeyRecord),
	}
}

// ReplaceAlive installs a full presence snapshot, discarding the current set.
func (c *Cache) ReplaceAlive(ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		c.alive[id] = struct{}{}
	}
}

// SetOnline applies a UserOnline delta. It reports whether the id was new;
// a repeated add is tolerated but worth a warning upstream.
func (c *Cache) SetOnline(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.alive[id]; ok {
		return false
	}
	c.alive[id] = struct{}{}
	return true
}

// SetOffline applies a UserOffline delta.
func (c *Cache) SetOffline(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.alive, id)
}

// AliveIDs returns the online id set in ascending order.
func (c *Cache) AliveIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.alive))
	for id := range c.alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsOnline reports whether a peer is in the alive set.
func (c *Cache) IsOnline(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.alive[id]
	return ok
}

// StoreInfos merges resolved directory records into the cache.
func (c *Cache) StoreInfos(infos []protocol.UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, info := range infos {
		c.infos[info.ID] = info
	}
}

// Info returns the cached directory record for a peer, if any.
func (c *Cache) Info(id int64) (protocol.UserInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[id]
	return info, ok
}

// SetSelf caches the current user's own directory record.
func (c *Cache) SetSelf(info protocol.UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfInfo = &info
}

// Self returns the current user's record, if fetched.
func (c *Cache) Self() (protocol.UserInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selfInfo == nil {
		return protocol.UserInfo{}, false
	}
	return *c.selfInfo, true
}

// StorePublicKey caches a peer's published key.
func (c *Cache) StorePublicKey(id int64, version, publicKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pubKeys[id] = PublicKeyRecord{
		UserID:    id,
		Version:   version,
		PublicKey: publicKey,
		FetchedAt: time.Now(),
	}
}

// PublicKey returns the cached key record for a peer, if any.
func (c *Cache) PublicKey(id int64) (PublicKeyRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.pubKeys[id]
	return rec, ok
}

// Clear drops all presence, directory and key state. Used on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = make(map[int64]struct{})
	c.infos = make(map[int64]protocol.UserInfo)
	c.pubKeys = make(map[int64]PublicKeyRecord)
	c.selfInfo = nil
}
