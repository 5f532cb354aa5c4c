package ledger

// orderedMap accumulates values by key and remembers the order keys were first seen.
// Bucket output order is first appearance, never sorted, so a plain map will not do.
type orderedMap[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

func newOrderedMap[K comparable, V any](capacity int) *orderedMap[K, V] {
	return &orderedMap[K, V]{
		index: make(map[K]int, capacity),
		keys:  make([]K, 0, capacity),
		vals:  make([]V, 0, capacity),
	}
}

// at returns a pointer to the value for k, inserting init() first if k is new.
func (m *orderedMap[K, V]) at(k K, init func() V) *V {
	i, ok := m.index[k]
	if !ok {
		i = len(m.keys)
		m.index[k] = i
		m.keys = append(m.keys, k)
		m.vals = append(m.vals, init())
	}
	return &m.vals[i]
}

func (m *orderedMap[K, V]) has(k K) bool {
	_, ok := m.index[k]
	return ok
}

func (m *orderedMap[K, V]) len() int {
	return len(m.keys)
}

// each visits entries in insertion order.
func (m *orderedMap[K, V]) each(fn func(k K, v V)) {
	for i, k := range m.keys {
		fn(k, m.vals[i])
	}
}
