package embeddings

import (
	"context"
)

// CachingEmbedder wraps an Embedder with an LRUEmbeddingCache keyed by
// (role, text). Deliberation rounds frequently re-embed near-identical
// phrasing across personas and rounds for dedup/novelty scoring
// (internal/quality); this avoids paying for the same embedding call twice
// within a session. Role is folded into the cache key by prefixing the
// text, since LRUEmbeddingCache itself only hashes raw text.
type CachingEmbedder struct {
	inner Embedder
	cache *LRUEmbeddingCache
}

// NewCachingEmbedder wraps inner with an LRUEmbeddingCache of the given
// capacity. A capacity of 0 uses DefaultLRUCacheConfig's 10000 entries / 24
// hour TTL, with no disk persistence.
func NewCachingEmbedder(inner Embedder, maxEntries int) *CachingEmbedder {
	cfg := DefaultLRUCacheConfig()
	cfg.PersistPath = ""
	if maxEntries > 0 {
		cfg.MaxEntries = maxEntries
	}
	// Only errors when loading a configured PersistPath fails; none is set.
	c, _ := NewLRUEmbeddingCache(cfg)
	return &CachingEmbedder{inner: inner, cache: c}
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string, role Role) ([]float32, error) {
	key := roleKey(role, text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	vec, err := c.inner.Embed(ctx, text, role)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch serves cache hits for any text already embedded under the same
// role, whether by Embed or by an earlier EmbedBatch; the remainder is
// delegated to inner in one batch call and the results are cached for later
// Embed and EmbedBatch lookups.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := c.cache.Get(roleKey(role, t)); ok {
			result[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts, role)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		result[i] = vecs[j]
		c.cache.Set(roleKey(role, missTexts[j]), vecs[j])
	}
	return result, nil
}

func (c *CachingEmbedder) Dimension() int   { return c.inner.Dimension() }
func (c *CachingEmbedder) Model() string    { return c.inner.Model() }
func (c *CachingEmbedder) Provider() string { return c.inner.Provider() }

// Stats exposes the underlying cache's hit/miss counters for diagnostics.
func (c *CachingEmbedder) Stats() map[string]interface{} { return c.cache.Stats() }

// roleKey folds role into the text before it reaches LRUEmbeddingCache's own
// hashing, so document and query embeddings of the same text never collide.
func roleKey(role Role, text string) string {
	return string(role) + "\x00" + text
}
