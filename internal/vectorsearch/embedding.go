// Package vectorsearch implements similarity search over any backend
// table that exposes an embedding column, grounded in
// runtime/src/embeddings/vector_search.rs's VectorSearch/EmbeddingModelStore
// split between orchestration and per-model inference, and in the
// teacher's internal/metrics/redis.go instrumented-client pattern for
// the embedding cache.
package vectorsearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nullstream/sqlfed/internal/obs"
)

// EmbeddingModel is the external collaborator that turns query text
// into a vector. Each named model (e.g. "text-embedding-3-small") is
// registered once with the Store.
type EmbeddingModel interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingModelStore holds every registered model and serializes
// inference per model, matching the original's
// Arc<RwLock<EmbeddingModelStore>>: many callers may read the set of
// registered models concurrently, but two concurrent calls into the
// same model's Embed are serialized, since most embedding client
// implementations are not safe for concurrent use on one connection.
type EmbeddingModelStore struct {
	mu     sync.RWMutex
	models map[string]*lockedModel
	cache  *EmbeddingCache
}

type lockedModel struct {
	model EmbeddingModel
	mu    sync.Mutex
}

// NewEmbeddingModelStore creates an empty store. cache may be nil to
// disable caching (every Embed call reaches the model).
func NewEmbeddingModelStore(cache *EmbeddingCache) *EmbeddingModelStore {
	return &EmbeddingModelStore{models: make(map[string]*lockedModel), cache: cache}
}

// Register adds model to the store, keyed by its Name().
func (s *EmbeddingModelStore) Register(model EmbeddingModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[model.Name()] = &lockedModel{model: model}
}

// Embed returns the embedding for text under modelName, consulting the
// cache first when one is configured.
func (s *EmbeddingModelStore) Embed(ctx context.Context, modelName, text string) ([]float32, error) {
	s.mu.RLock()
	lm, ok := s.models[modelName]
	s.mu.RUnlock()
	if !ok {
		return nil, &UnknownModelError{ModelName: modelName}
	}

	if s.cache != nil {
		if cached, hit, err := s.cache.Get(ctx, modelName, text); err == nil && hit {
			return cached, nil
		}
	}

	lm.mu.Lock()
	vec, err := lm.model.Embed(ctx, text)
	lm.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, modelName, text, vec)
	}
	return vec, nil
}

// UnknownModelError reports a request for a model that was never
// registered.
type UnknownModelError struct {
	ModelName string
}

func (e *UnknownModelError) Error() string {
	return "vectorsearch: unknown embedding model " + e.ModelName
}

// EmbeddingCache is a Redis-backed cache of (model, query text) ->
// embedding, keyed by a sha256 of the query text so arbitrarily long
// queries still produce a bounded Redis key, the same hashing
// convention the teacher's Redis-backed caches use elsewhere.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	hits   int64
	misses int64
	mu     sync.Mutex
}

// NewEmbeddingCache wraps client with a fixed per-entry ttl.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, ttl: ttl}
}

func (c *EmbeddingCache) key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sqlfed:embedding:" + model + ":" + hex.EncodeToString(sum[:])
}

// Get looks up model+text, reporting (nil, false, nil) on a cache
// miss rather than an error, since a miss is an expected outcome, not
// a failure.
func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	val, err := c.client.Get(ctx, c.key(model, text)).Result()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == redis.Nil {
		c.misses++
		c.updateHitRate(model)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.hits++
	c.updateHitRate(model)

	var vec []float32
	if err := json.Unmarshal([]byte(val), &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores vec under model+text with the cache's configured ttl.
func (c *EmbeddingCache) Set(ctx context.Context, model, text string, vec []float32) error {
	encoded, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(model, text), encoded, c.ttl).Err()
}

func (c *EmbeddingCache) updateHitRate(model string) {
	total := c.hits + c.misses
	if total == 0 {
		return
	}
	obs.UpdateEmbeddingCacheHitRate(model, float64(c.hits)/float64(total))
}
