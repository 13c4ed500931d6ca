package fileserver

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/webvisor/webvisor/internal/metrics"
	"github.com/webvisor/webvisor/pkg/logger"
)

// Cache keeps served file contents in memory so repeated fetches during a
// test run never touch the disk twice. Entries are invalidated through
// fsnotify when the underlying file changes, and dropped when the size cap
// would be exceeded.
type Cache struct {
	maxBytes int64
	reg      *metrics.Registry
	log      *logger.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	size    int64
	entries map[string][]byte
	closed  bool
}

// NewCache creates a cache bounded to maxBytes of file content. A cap of
// zero disables caching entirely; every read goes to disk.
func NewCache(maxBytes int64, reg *metrics.Registry, log *logger.Logger) (*Cache, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	c := &Cache{
		maxBytes: maxBytes,
		reg:      reg,
		log:      log,
		watcher:  watcher,
		entries:  make(map[string][]byte),
	}
	go c.watch()

	return c, nil
}

// Get returns the contents of the file at the given canonical path, serving
// from memory when possible.
func (c *Cache) Get(path string) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.entries[path]; ok {
		c.mu.Unlock()
		c.reg.CacheHits.Inc()
		return data, nil
	}
	c.mu.Unlock()

	c.reg.CacheMisses.Inc()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c.store(path, data)
	return data, nil
}

func (c *Cache) store(path string, data []byte) {
	n := int64(len(data))
	if n > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if _, ok := c.entries[path]; ok {
		return
	}

	// Drop entries until the new one fits. Which entries go is unspecified.
	for key, old := range c.entries {
		if c.size+n <= c.maxBytes {
			break
		}
		c.evictLocked(key, old)
	}

	c.entries[path] = data
	c.size += n
	if err := c.watcher.Add(path); err != nil {
		c.log.Debug("failed to watch cached file", zap.String("path", path), zap.Error(err))
	}
}

func (c *Cache) evictLocked(path string, data []byte) {
	delete(c.entries, path)
	c.size -= int64(len(data))
	c.watcher.Remove(path)
	c.reg.CacheEvictions.Inc()
}

// Invalidate removes a path from the cache. The next Get reads from disk.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if data, ok := c.entries[path]; ok {
		c.evictLocked(path, data)
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) watch() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.log.Debug("invalidating cached file", zap.String("path", event.Name))
				c.Invalidate(event.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Debug("cache watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and drops all entries. Safe to call repeatedly.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.entries = make(map[string][]byte)
	c.size = 0
	c.mu.Unlock()

	return c.watcher.Close()
}
