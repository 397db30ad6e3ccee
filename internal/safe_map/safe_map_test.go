package safe_map

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMap_Basic(t *testing.T) {
	m := NewSafeMap[string, int]()

	_, ok := m.Load("missing")
	assert.False(t, ok)

	m.Store("a", 1)
	m.Store("b", 2)
	assert.Equal(t, 2, m.Len())

	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Load("a")
	assert.False(t, ok)

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_ConcurrentAccess(t *testing.T) {
	m := NewSafeMap[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Store(n*100+j, j)
				m.Load(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, m.Len())
}
