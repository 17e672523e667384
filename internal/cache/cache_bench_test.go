package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache(1000, time.Hour)
	ctx := context.Background()
	_ = c.Set(ctx, "open_meteo:5:london", candidates("London", "London", "London", "London", "London"), time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "open_meteo:5:london")
	}
}

func BenchmarkInMemoryCache_Set(b *testing.B) {
	c := NewInMemoryCache(1000, time.Hour)
	ctx := context.Background()
	val := candidates("London")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "q"+strconv.Itoa(i%1000), val, time.Hour)
	}
}

func BenchmarkInMemoryCache_Parallel(b *testing.B) {
	c := NewInMemoryCache(1000, time.Hour)
	ctx := context.Background()
	val := candidates("London")
	_ = c.Set(ctx, "hot", val, time.Hour)

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%10 == 0 {
				_ = c.Set(ctx, "hot", val, time.Hour)
			} else {
				_, _, _ = c.Get(ctx, "hot")
			}
			i++
		}
	})
}
