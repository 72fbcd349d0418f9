package benchmarks

import (
	"context"
	"testing"

	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/index/redisdb"
)

// openRedis skips when no server answers on localhost:6379.
func openRedis(b *testing.B) index.Index {
	b.Helper()
	db, err := redisdb.Open(context.Background(), index.Config{
		KeySize:   8,
		ValueSize: 8,
		Threads:   4,
		Options:   map[string]string{"namespace": "kvbench-bench:", "timeout": "500ms"},
	})
	if err != nil {
		b.Skipf("Redis not available for comparison: %v", err)
	}
	b.Cleanup(func() { db.Close() })
	return db
}

func BenchmarkVsRedis_Find(b *testing.B) {
	const n = 10_000
	targets := map[string]func(*testing.B) index.Index{
		"btreemap": func(b *testing.B) index.Index { return openIndex(b, "btreemap", 8) },
		"redis":    openRedis,
	}
	for name, open := range targets {
		b.Run(name, func(b *testing.B) {
			idx := open(b)
			keys := populate(b, idx, n, 8)
			out := make([]byte, 8)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx.Find(keys.Next(false), out)
			}
		})
	}
}

func BenchmarkVsRedis_Insert(b *testing.B) {
	targets := map[string]func(*testing.B) index.Index{
		"btreemap": func(b *testing.B) index.Index { return openIndex(b, "btreemap", 8) },
		"redis":    openRedis,
	}
	for name, open := range targets {
		b.Run(name, func(b *testing.B) {
			idx := open(b)
			keys := generator.NewKeyGenerator(uint64(b.N), 8, true, nil, generator.NewUniform(1))
			values := generator.NewValueGenerator(8)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx.Insert(keys.Next(true), values.Next())
			}
		})
	}
}
