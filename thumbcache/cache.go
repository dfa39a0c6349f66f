// Package thumbcache resolves mod thumbnail paths to encoded image
// payloads through tiered lookups, so listing refreshes never re-read or
// re-encode an image the process has already seen.
package thumbcache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ImageReader reads and encodes a thumbnail straight from disk.
type ImageReader interface {
	ReadImage(ctx context.Context, path string) (string, error)
}

// BulkReader serves previously cached payloads in one batch. The
// capability is optional and best-effort: errors degrade to misses.
type BulkReader interface {
	BulkReadCachedImages(ctx context.Context, paths []string) (map[string]string, error)
}

// Writer stores a payload in the persistent cache, best-effort.
type Writer interface {
	WriteCachedImage(ctx context.Context, path string, payload string) error
}

// Cache resolves thumbnail paths through four tiers in strict order:
// the warm tier (this render pass's results), the session tier (process
// lifetime), the bulk persistent cache, and finally direct reads.
type Cache struct {
	reader ImageReader
	bulk   BulkReader // may be nil
	writer Writer     // may be nil
	log    *zap.SugaredLogger

	mu      sync.Mutex
	warm    map[string]string
	session map[string]string

	writes sync.WaitGroup // detached persistent-cache writes
}

// New builds a cache around the direct reader. bulk and writer may be
// nil; resolution then degrades to direct reads with session memoization.
func New(reader ImageReader, bulk BulkReader, writer Writer, log *zap.SugaredLogger) *Cache {
	return &Cache{
		reader:  reader,
		bulk:    bulk,
		writer:  writer,
		log:     log,
		warm:    make(map[string]string),
		session: make(map[string]string),
	}
}

// BeginPass clears the warm tier. Call it when a fresh render pass
// starts; the session tier is untouched and keeps its entries for the
// process lifetime.
func (c *Cache) BeginPass() {
	c.mu.Lock()
	c.warm = make(map[string]string)
	c.mu.Unlock()
}

// Resolve maps each path to its encoded payload. Paths that cannot be
// resolved are simply absent from the result; callers render a
// placeholder. A failure for one path never aborts the rest.
func (c *Cache) Resolve(ctx context.Context, paths []string) map[string]string {
	result := make(map[string]string, len(paths))

	// Tier 1+2: warm, then session.
	var missing []string
	c.mu.Lock()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, done := result[path]; done {
			continue
		}
		if payload, ok := c.warm[path]; ok {
			result[path] = payload
			continue
		}
		if payload, ok := c.session[path]; ok {
			result[path] = payload
			c.warm[path] = payload
			continue
		}
		missing = append(missing, path)
	}
	c.mu.Unlock()

	// Tier 3: one batch against the persistent cache. Absence or failure
	// of the capability means zero hits, never an overall failure.
	if len(missing) > 0 && c.bulk != nil {
		cached, err := c.bulk.BulkReadCachedImages(ctx, missing)
		if err != nil {
			c.log.Warnw("Bulk thumbnail cache unavailable, falling back to direct reads", zap.Error(err))
		} else {
			remaining := missing[:0]
			for _, path := range missing {
				if payload, ok := cached[path]; ok {
					result[path] = payload
					c.store(path, payload)
				} else {
					remaining = append(remaining, path)
				}
			}
			missing = remaining
		}
	}

	// Tier 4: direct reads, isolated per path.
	for _, path := range missing {
		payload, err := c.reader.ReadImage(ctx, path)
		if err != nil {
			c.log.Debugw("Thumbnail unavailable", zap.String("path", path), zap.Error(err))
			continue
		}
		result[path] = payload
		c.store(path, payload)
		c.writeBack(path, payload)
	}

	return result
}

// store records a resolved payload in the warm and session tiers. The
// session tier is append-only: the first payload written for a path wins
// for the process lifetime.
func (c *Cache) store(path, payload string) {
	c.mu.Lock()
	c.warm[path] = payload
	if _, ok := c.session[path]; !ok {
		c.session[path] = payload
	}
	c.mu.Unlock()
}

// writeBack persists a payload as a detached task. Caching is an
// optimization: the failure is logged and never joined by resolution.
func (c *Cache) writeBack(path, payload string) {
	if c.writer == nil {
		return
	}
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		if err := c.writer.WriteCachedImage(context.Background(), path, payload); err != nil {
			c.log.Warnw("Thumbnail cache write failed", zap.String("path", path), zap.Error(err))
		}
	}()
}

// Flush waits for detached cache writes to finish. Intended for shutdown
// and tests.
func (c *Cache) Flush() {
	c.writes.Wait()
}
