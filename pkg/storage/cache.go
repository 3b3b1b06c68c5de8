package storage

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DocumentCache implements an LRU cache of compressed documents. An entry is
// only served while the file still has the size and modification time it
// had when it was compressed.
type DocumentCache struct {
	compressor *Compressor
	capacity   int
	ttl        time.Duration
	mu         sync.Mutex
	cache      map[string]*cacheEntry
	lru        *list.List
	hits       uint64
	misses     uint64
}

// cacheEntry represents a cached compressed document
type cacheEntry struct {
	key       string
	data      []byte
	modTime   time.Time
	size      int64
	timestamp time.Time
	element   *list.Element
}

// NewDocumentCache creates a new document cache
func NewDocumentCache(compressor *Compressor, capacity int, ttl time.Duration) *DocumentCache {
	if capacity < 1 {
		capacity = 1
	}
	return &DocumentCache{
		compressor: compressor,
		capacity:   capacity,
		ttl:        ttl,
		cache:      make(map[string]*cacheEntry),
		lru:        list.New(),
	}
}

// Compressed returns the compressed bytes of the document at path, compressing
// it again when the file changed since it was cached
func (dc *DocumentCache) Compressed(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	key := filepath.Clean(path)
	if data, ok := dc.get(key, info); ok {
		return data, nil
	}

	data, err := dc.compressor.CompressFile(path)
	if err != nil {
		return nil, err
	}

	dc.put(key, info, data)
	return data, nil
}

// get retrieves a cached entry that still matches the file on disk
func (dc *DocumentCache) get(key string, info os.FileInfo) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, exists := dc.cache[key]
	if !exists {
		dc.misses++
		return nil, false
	}

	// Check if entry has expired or the document was rewritten
	if time.Since(entry.timestamp) > dc.ttl ||
		!entry.modTime.Equal(info.ModTime()) ||
		entry.size != info.Size() {
		dc.removeLocked(key)
		dc.misses++
		return nil, false
	}

	// Move to front of LRU list (most recently used)
	dc.lru.MoveToFront(entry.element)
	dc.hits++

	return entry.data, true
}

// put stores compressed bytes in the cache
func (dc *DocumentCache) put(key string, info os.FileInfo, data []byte) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, exists := dc.cache[key]; exists {
		entry.data = data
		entry.modTime = info.ModTime()
		entry.size = info.Size()
		entry.timestamp = time.Now()
		dc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		data:      data,
		modTime:   info.ModTime(),
		size:      info.Size(),
		timestamp: time.Now(),
	}

	entry.element = dc.lru.PushFront(entry)
	dc.cache[key] = entry

	// Evict oldest entry if cache is full
	if dc.lru.Len() > dc.capacity {
		oldest := dc.lru.Back()
		if oldest != nil {
			oldestEntry := oldest.Value.(*cacheEntry)
			dc.removeLocked(oldestEntry.key)
		}
	}
}

// removeLocked removes an entry from the cache (must hold lock)
func (dc *DocumentCache) removeLocked(key string) {
	if entry, exists := dc.cache[key]; exists {
		dc.lru.Remove(entry.element)
		delete(dc.cache, key)
	}
}

// Clear clears all cache entries
func (dc *DocumentCache) Clear() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.cache = make(map[string]*cacheEntry)
	dc.lru = list.New()
}

// Size returns the current cache size
func (dc *DocumentCache) Size() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.cache)
}

// Stats returns cache statistics
func (dc *DocumentCache) Stats() CacheStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	expired := 0
	for _, entry := range dc.cache {
		if time.Since(entry.timestamp) > dc.ttl {
			expired++
		}
	}

	return CacheStats{
		Size:     len(dc.cache),
		Capacity: dc.capacity,
		Expired:  expired,
		Hits:     dc.hits,
		Misses:   dc.misses,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Expired  int
	Hits     uint64
	Misses   uint64
}

// HitRate returns the cache hit rate as a percentage
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total) * 100.0
}
