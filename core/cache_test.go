package core

import (
	"context"
	"testing"
	"time"
)

func cachedSummary(text string) *SummaryData {
	return &SummaryData{Summary: text}
}

func TestCacheKeyNormalizesWhitespace(t *testing.T) {
	a := CacheKey("hello   world", "en", "m", "v2")
	b := CacheKey("  hello world  ", "en", "m", "v2")
	if a != b {
		t.Error("whitespace differences should not change the key")
	}
}

func TestCacheKeyDiscriminates(t *testing.T) {
	base := CacheKey("hello world", "en", "m", "v2")
	variants := []string{
		CacheKey("hello there", "en", "m", "v2"),
		CacheKey("hello world", "es", "m", "v2"),
		CacheKey("hello world", "en", "m2", "v2"),
		CacheKey("hello world", "en", "m", "v3"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Stop()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Put(ctx, "k", cachedSummary("v"))
	got, ok := c.Get(ctx, "k")
	if !ok || got.Summary != "v" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	hits, misses, _ := c.Metrics().Snapshot()
	if hits != 1 || misses != 1 {
		t.Errorf("metrics hits=%d misses=%d", hits, misses)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(15*time.Millisecond, 0)
	defer c.Stop()
	ctx := context.Background()

	c.Put(ctx, "k", cachedSummary("v"))
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("fresh entry should hit")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
}

func TestMemoryCacheCapacityEviction(t *testing.T) {
	c := NewMemoryCache(time.Minute, 2)
	defer c.Stop()
	ctx := context.Background()

	c.Put(ctx, "a", cachedSummary("1"))
	time.Sleep(time.Millisecond)
	c.Put(ctx, "b", cachedSummary("2"))
	time.Sleep(time.Millisecond)
	c.Get(ctx, "a") // refresh a so b is the eviction candidate
	time.Sleep(time.Millisecond)
	c.Put(ctx, "c", cachedSummary("3"))

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("least recently accessed entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("recently accessed entry was evicted")
	}
	_, _, evictions := c.Metrics().Snapshot()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestMemoryCachePutIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Stop()
	ctx := context.Background()

	c.Put(ctx, "k", cachedSummary("v"))
	c.Put(ctx, "k", cachedSummary("v"))
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestMemoryCacheIgnoresNil(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Stop()
	c.Put(context.Background(), "k", nil)
	if c.Len() != 0 {
		t.Error("nil value should not be stored")
	}
}
