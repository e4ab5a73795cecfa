package collection

import "sync"

// Mirror holds the latest listing of one capability kind in listing order.
type Mirror[V any] struct {
	mux        sync.RWMutex
	items      []V
	generation uint64
	seq        uint64
}

// Begin reserves a generation for a listing about to start.
func (m *Mirror[V]) Begin() uint64 {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.seq++
	return m.seq
}

// Replace swaps in items listed under generation gen. It returns false, leaving
// the mirror untouched, when a newer generation has already been applied.
// Later items win over earlier ones sharing a key.
func (m *Mirror[V]) Replace(gen uint64, items []V, keyOf func(V) string) bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	if gen < m.generation {
		return false
	}
	index := make(map[string]int, len(items))
	ret := make([]V, 0, len(items))
	for _, item := range items {
		key := keyOf(item)
		if i, ok := index[key]; ok {
			ret[i] = item
			continue
		}
		index[key] = len(ret)
		ret = append(ret, item)
	}
	m.items = ret
	m.generation = gen
	return true
}

// Values returns a copy of the mirrored items.
func (m *Mirror[V]) Values() []V {
	m.mux.RLock()
	defer m.mux.RUnlock()
	ret := make([]V, len(m.items))
	copy(ret, m.items)
	return ret
}

func (m *Mirror[V]) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.items)
}

func NewMirror[V any]() *Mirror[V] {
	return &Mirror[V]{}
}
