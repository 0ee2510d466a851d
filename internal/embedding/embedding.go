package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/triagedesk/backend/internal/logger"
)

// Embedder produces a vector representation of a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Cache wraps an Embedder with a content-addressed vector cache. Keys are
// the hex SHA-256 of the exact text, so identical content always maps to
// the same entry across restarts and goroutines.
type Cache struct {
	embedder Embedder

	mu      sync.RWMutex
	vectors map[string][]float32

	// bounded is non-nil when EMBED_CACHE_SIZE caps the cache.
	bounded *lru.Cache[string, []float32]
}

// NewCache builds a cache around the given embedder. A positive
// EMBED_CACHE_SIZE switches to a bounded LRU; otherwise entries are kept
// for the life of the process.
func NewCache(embedder Embedder) *Cache {
	c := &Cache{embedder: embedder}

	if size, err := strconv.Atoi(os.Getenv("EMBED_CACHE_SIZE")); err == nil && size > 0 {
		bounded, err := lru.New[string, []float32](size)
		if err == nil {
			c.bounded = bounded
			logger.Info("Embedding cache bounded", map[string]interface{}{
				"size": size,
			})
			return c
		}
		logger.Warn("Failed to build bounded embedding cache, falling back to unbounded", map[string]interface{}{
			"error": err.Error(),
		})
	}

	c.vectors = make(map[string][]float32)
	return c
}

// Key returns the cache key for a piece of text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the vector for text, computing and caching it on a miss.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)

	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.put(key, vec)
	return vec, nil
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vectors[key]
	return vec, ok
}

func (c *Cache) put(key string, vec []float32) {
	if c.bounded != nil {
		c.bounded.Add(key, vec)
		return
	}
	c.mu.Lock()
	c.vectors[key] = vec
	c.mu.Unlock()
}

// Len reports how many vectors are cached.
func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Warm pre-computes embeddings for the given texts. Individual failures are
// logged and skipped so one bad document never aborts startup; the return
// value is the number of vectors actually cached.
func (c *Cache) Warm(ctx context.Context, texts []string) int {
	warmed := 0
	for _, text := range texts {
		if ctx.Err() != nil {
			break
		}
		if _, err := c.Embed(ctx, text); err != nil {
			logger.Warn("Embedding warm-up skipped a document", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		warmed++
	}
	return warmed
}
