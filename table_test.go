package articlestore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertGetDelete(t *testing.T) {
	table := NewStringTable[int](16)

	table.Insert("a", 1)
	table.Insert("b", 2)
	require.Equal(t, 2, table.Len())

	v, ok := table.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	table.Insert("a", 10)
	assert.Equal(t, 2, table.Len(), "replacing a value must not change the count")
	v, _ = table.Get("a")
	assert.Equal(t, 10, v)

	assert.True(t, table.Delete("a"))
	assert.False(t, table.Delete("a"))
	assert.False(t, table.Exists("a"))
	assert.True(t, table.Exists("b"))
	assert.Equal(t, 1, table.Len())

	_, ok = table.Get("missing")
	assert.False(t, ok)
}

func TestTableCollisions(t *testing.T) {
	// Every key lands in bucket 0.
	table := NewTable[string, string](8, func(string) uint64 { return 0 })
	for i := 0; i < 10; i++ {
		table.Insert(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
	}
	require.Equal(t, 10, table.Len())

	assert.True(t, table.Delete("k4"))
	for i := 0; i < 10; i++ {
		v, ok := table.Get(fmt.Sprintf("k%d", i))
		if i == 4 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("v%d", i), v)
	}

	// Within a bucket, values keep insertion order.
	assert.Equal(t, []string{"v0", "v1", "v2", "v3", "v5", "v6", "v7", "v8", "v9"}, table.Values())

	stats := table.Stats()
	assert.Equal(t, 9, stats.LongestBucket)
	assert.Equal(t, 7, stats.EmptyBuckets)
}

func TestTableValuesBucketOrder(t *testing.T) {
	table := NewTable[int, int](4, func(k int) uint64 { return uint64(k) })
	for _, k := range []int{7, 2, 5, 0, 4} {
		table.Insert(k, k)
	}
	// Buckets: 0 -> [0 4], 1 -> [5], 2 -> [2], 3 -> [7].
	assert.Equal(t, []int{0, 4, 5, 2, 7}, table.Values())
}

func TestTableDefaultCapacity(t *testing.T) {
	table := NewStringTable[int](0)
	assert.Equal(t, DefaultTableCapacity, table.Capacity())

	for i := 0; i < 400; i++ {
		table.Insert(fmt.Sprintf("key-%d", i), i)
	}
	stats := table.Stats()
	assert.Equal(t, 400, stats.Count)
	assert.InDelta(t, 2.0, stats.LoadFactor, 1e-9)
}

func BenchmarkTableInsert(b *testing.B) {
	table := NewStringTable[int](DefaultTableCapacity)
	for i := 0; i < b.N; i++ {
		table.Insert(fmt.Sprintf("key-%d", i%10000), i)
	}
}

func BenchmarkTableGet(b *testing.B) {
	table := NewStringTable[int](DefaultTableCapacity)
	for i := 0; i < 10000; i++ {
		table.Insert(fmt.Sprintf("key-%d", i), i)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, ok := table.Get(fmt.Sprintf("key-%d", i%10000)); !ok {
			b.Fatal("missing key")
		}
	}
}
