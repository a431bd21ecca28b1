package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomFilter_AddContains_NoFalseNegatives(t *testing.T) {
	f, err := NewBloomFilter(1<<16, 8)
	require.NoError(t, err)

	items := make([][]byte, 200)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("item-%d", i))
		f.Add(items[i])
	}
	for _, item := range items {
		assert.True(t, f.Contains(item), "no false negatives allowed")
	}
}

func TestBloomFilter_RejectsZeroParameters(t *testing.T) {
	_, err := NewBloomFilter(0, 4)
	require.Error(t, err)
	_, err = NewBloomFilter(1024, 0)
	require.Error(t, err)
}

func TestBloomFilter_SerializeRoundTrip(t *testing.T) {
	f, err := NewBloomFilter(4096, 5)
	require.NoError(t, err)
	f.Add([]byte("eicar-test-hash"))
	f.Add([]byte("another-hash"))

	data := f.Serialize()
	restored, err := DeserializeBloomFilter(data)
	require.NoError(t, err)

	assert.Equal(t, f.SizeBits(), restored.SizeBits())
	assert.Equal(t, f.NumHashes(), restored.NumHashes())
	assert.True(t, restored.Contains([]byte("eicar-test-hash")))
	assert.True(t, restored.Contains([]byte("another-hash")))
	assert.Equal(t, f.BitsSet(), restored.BitsSet())
}

func TestBloomFilter_MergeRejectsMismatchedShapes(t *testing.T) {
	a, _ := NewBloomFilter(1024, 4)
	b, _ := NewBloomFilter(2048, 4)
	require.Error(t, a.Merge(b))
}

func TestBloomFilter_FalsePositiveRateWithinBound(t *testing.T) {
	// Size for ~1000 items at ~1% theoretical FPR.
	f, err := NewBloomFilter(10000, 7)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("known-%d", i)))
	}

	falsePositives := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		if f.Contains([]byte(fmt.Sprintf("unknown-%d", i))) {
			falsePositives++
		}
	}
	measured := float64(falsePositives) / float64(trials)
	theoretical := f.EstimatedFalsePositiveRate()
	assert.LessOrEqual(t, measured, theoretical*1.5, "measured FPR should be within 1.5x theoretical")
}

func TestLRUCache_GetPutPromotes(t *testing.T) {
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "a" is now MRU, "b" is LRU; inserting "c" should evict "b".
	c.Put("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)

	metrics := c.GetMetrics()
	assert.Equal(t, uint64(1), metrics.Evictions)
}

func TestLRUCache_EvictionCountMatchesOverflow(t *testing.T) {
	const capacity = 10
	const distinctKeys = 37
	c := NewLRUCache[int, int](capacity)
	for i := 0; i < distinctKeys; i++ {
		c.Put(i, i*i)
	}
	assert.Equal(t, capacity, c.Len())
	assert.Equal(t, uint64(distinctKeys-capacity), c.GetMetrics().Evictions)
}

func TestLRUCache_InvalidateClearsAndCounts(t *testing.T) {
	c := NewLRUCache[string, int](4)
	c.Put("x", 1)
	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.GetMetrics().Invalidations)
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestLRUCache_HitRate(t *testing.T) {
	c := NewLRUCache[string, int](4)
	c.Put("k", 1)
	c.Get("k")
	c.Get("k")
	c.Get("missing")
	m := c.GetMetrics()
	assert.InDelta(t, 66.67, m.HitRate(), 0.1)
}
