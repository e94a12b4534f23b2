// Package manifest caches folder manifests on a freshness window so repeated
// folder loads within that window skip the network entirely.
package manifest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

// Fetcher retrieves a folder manifest from the data server.
type Fetcher interface {
	FetchManifest(ctx context.Context, folderName string) (*protocol.Folder, error)
}

type entry struct {
	folder    *protocol.Folder
	expiresAt time.Time
}

// Cache holds folder manifests with a time-to-live. Concurrent misses for
// the same folder are coalesced into a single upstream fetch, so a quick
// page reload or double-tap never issues duplicate manifest requests.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]*entry

	group singleflight.Group
}

// New creates a Cache. ttl below or at zero disables expiry.
func New(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Get returns the folder's manifest, fetching it on a miss or after the
// freshness window lapses. A fresh entry is served without touching the
// network.
func (c *Cache) Get(ctx context.Context, folderName string) (*protocol.Folder, error) {
	if folder, ok := c.lookup(folderName); ok {
		metrics.RecordManifestLookup(true)
		return folder, nil
	}
	metrics.RecordManifestLookup(false)

	v, err, _ := c.group.Do(folderName, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while this one
		// waited on the flight group.
		if folder, ok := c.lookup(folderName); ok {
			return folder, nil
		}

		start := time.Now()
		folder, err := c.fetcher.FetchManifest(ctx, folderName)
		if err != nil {
			return nil, err
		}
		metrics.RecordManifestFetch(time.Since(start))

		c.mu.Lock()
		c.entries[folderName] = &entry{folder: folder, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return folder, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*protocol.Folder), nil
}

// Invalidate drops the cached manifest for a folder.
func (c *Cache) Invalidate(folderName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, folderName)
}

// Clear drops every cached manifest.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *Cache) lookup(folderName string) (*protocol.Folder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[folderName]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.folder, true
}
