package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkTTLCache_Get_Hit measures cache hit performance.
func BenchmarkTTLCache_Get_Hit(b *testing.B) {
	c := NewTTLCache[string](time.Hour)
	c.Set("key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get("key")
	}
}

// BenchmarkTTLCache_Get_Miss measures cache miss performance.
func BenchmarkTTLCache_Get_Miss(b *testing.B) {
	c := NewTTLCache[string](time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get("missing")
	}
}

// BenchmarkTTLCache_Set measures write performance.
func BenchmarkTTLCache_Set(b *testing.B) {
	c := NewTTLCache[string](time.Hour)
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(keys[i%len(keys)], "value")
	}
}

// BenchmarkTTLCache_Cleanup measures a purge over a populated cache.
func BenchmarkTTLCache_Cleanup(b *testing.B) {
	c := NewTTLCache[int](time.Hour)
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Cleanup()
	}
}

// BenchmarkLoader_Get_Concurrent measures read-heavy shared access.
func BenchmarkLoader_Get_Concurrent(b *testing.B) {
	l := NewLoader(NewTTLCache[string](time.Hour))
	ctx := context.Background()
	load := func(context.Context, string) (string, error) { return "v", nil }
	for i := 0; i < 100; i++ {
		_, _ = l.Get(ctx, fmt.Sprintf("key-%d", i), load)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = l.Get(ctx, fmt.Sprintf("key-%d", i%100), load)
			i++
		}
	})
}

// BenchmarkDefaultKeyer_Key measures key generation.
func BenchmarkDefaultKeyer_Key(b *testing.B) {
	keyer := NewDefaultKeyer()
	params := map[string]any{
		"db":     "prod",
		"region": "us-east-1",
		"columns": []any{
			"id", "vector",
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = keyer.Key("table.describe", "items", params)
	}
}
