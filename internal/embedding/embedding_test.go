package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *countingEmbedder) Name() string { return "counting" }

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail {
		return nil, fmt.Errorf("embedder unavailable")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyIsContentAddressed(t *testing.T) {
	if Key("database timeout") != Key("database timeout") {
		t.Error("identical text produced different keys")
	}
	if Key("database timeout") == Key("database timeout ") {
		t.Error("different text produced the same key")
	}
	if len(Key("")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Key("")))
	}
}

func TestCacheHitSkipsEmbedder(t *testing.T) {
	embedder := &countingEmbedder{}
	cache := NewCache(embedder)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "payment service is down")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cache.Embed(ctx, "payment service is down")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embedder.calls != 1 {
		t.Errorf("expected 1 embedder call, got %d", embedder.calls)
	}
	if Cosine(first, second) != 1.0 {
		t.Error("cache returned a different vector for the same text")
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached vector, got %d", cache.Len())
	}
}

func TestCacheMissPropagatesError(t *testing.T) {
	cache := NewCache(&countingEmbedder{fail: true})
	if _, err := cache.Embed(context.Background(), "anything"); err == nil {
		t.Error("expected embedder failure to propagate")
	}
	if cache.Len() != 0 {
		t.Error("failed embedding must not be cached")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	embedder := &countingEmbedder{}
	cache := NewCache(embedder)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				text := fmt.Sprintf("ticket %d", (n+j)%8)
				if _, err := cache.Embed(ctx, text); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 8 {
		t.Errorf("expected 8 cached vectors, got %d", cache.Len())
	}
}

func TestWarmCachesAllTexts(t *testing.T) {
	embedder := &countingEmbedder{}
	cache := NewCache(embedder)

	texts := []string{"login broken", "login broken", "export slow"}
	warmed := cache.Warm(context.Background(), texts)

	if warmed != 3 {
		t.Errorf("expected 3 warmed texts, got %d", warmed)
	}
	if cache.Len() != 2 {
		t.Errorf("expected 2 distinct vectors, got %d", cache.Len())
	}
	if embedder.calls != 2 {
		t.Errorf("expected 2 embedder calls, got %d", embedder.calls)
	}
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	e := NewHashingEmbedder()
	ctx := context.Background()

	a, _ := e.Embed(ctx, "database connection timeout in production")
	b, _ := e.Embed(ctx, "database connection timeout in production")
	if Cosine(a, b) != 1.0 {
		t.Error("same text must embed identically")
	}

	c, _ := e.Embed(ctx, "database connection refused in production")
	d, _ := e.Embed(ctx, "button color looks slightly off")
	if Cosine(a, c) <= Cosine(a, d) {
		t.Error("overlapping text should score higher than unrelated text")
	}
}
