package collection

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncMap_Take(t *testing.T) {
	m := NewSyncMap[uint64, string]()
	m.Put(7, "tools/list")

	var taken atomic.Int32
	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, ok := m.Take(7); ok {
				taken.Add(1)
			}
		}()
	}
	waitGroup.Wait()
	assert.EqualValues(t, 1, taken.Load())
	_, ok := m.Take(7)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestSyncMap_Drain(t *testing.T) {
	m := NewSyncMap[uint64, string]()
	m.Put(1, "a")
	m.Put(2, "b")
	m.Put(3, "c")
	m.Delete(2)
	assert.Equal(t, 2, m.Len())

	values := m.Drain()
	sort.Strings(values)
	assert.Equal(t, []string{"a", "c"}, values)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Drain())
}
