package vectorsearch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewEmbeddingCache(client, time.Hour)
}

func TestEmbeddingCache_MissThenHit(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, hit, err := cache.Get(ctx, "model-a", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatal("expected a miss on an empty cache")
	}

	want := []float32{0.1, 0.2, 0.3}
	if err := cache.Set(ctx, "model-a", "hello", want); err != nil {
		t.Fatalf("unexpected error setting cache: %v", err)
	}

	got, hit, err := cache.Get(ctx, "model-a", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit after Set")
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected vector length: got %d want %d", len(got), len(want))
	}
}

func TestEmbeddingCache_DifferentModelsDontCollide(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "model-a", "hello", []float32{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, hit, err := cache.Get(ctx, "model-b", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Fatal("expected a different model to miss the cache")
	}
}

type stubModel struct {
	name  string
	calls int
}

func (m *stubModel) Name() string       { return m.name }
func (m *stubModel) Dimensions() int    { return 3 }
func (m *stubModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return []float32{1, 2, 3}, nil
}

func TestEmbeddingModelStore_CachesAcrossCalls(t *testing.T) {
	cache := newTestCache(t)
	store := NewEmbeddingModelStore(cache)
	model := &stubModel{name: "model-a"}
	store.Register(model)

	ctx := context.Background()
	if _, err := store.Embed(ctx, "model-a", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Embed(ctx, "model-a", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("expected the model to be called once due to caching, got %d calls", model.calls)
	}
}

func TestEmbeddingModelStore_UnknownModel(t *testing.T) {
	store := NewEmbeddingModelStore(nil)
	if _, err := store.Embed(context.Background(), "missing", "hello"); err == nil {
		t.Fatal("expected an error for an unregistered model")
	}
}
