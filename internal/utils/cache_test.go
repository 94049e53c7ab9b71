package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	cache := NewCache[[]float64]()

	missing := cache.Missing([]string{"a", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, missing)
	assert.Equal(t, 0.0, cache.HitRate())

	cache.Add("a", []float64{1})
	cache.Add("b", []float64{2})
	assert.Equal(t, 2, cache.Size())

	assert.Empty(t, cache.Missing([]string{"b", "a"}))
	assert.InDelta(t, 2.0/5.0, cache.HitRate(), 1e-9)

	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []float64{1}, v)

	_, ok = cache.Get("c")
	assert.False(t, ok)
}
