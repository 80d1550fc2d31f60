package feedback

// Multiset is a bag of row keys. It remembers the order in which keys were
// first added so that iteration is deterministic.
type Multiset struct {
	counts map[string]int
	order  []string
	size   int
}

func NewMultiset(keys ...string) *Multiset {
	m := &Multiset{counts: make(map[string]int, len(keys))}
	for _, k := range keys {
		m.Add(k)
	}
	return m
}

func (m *Multiset) Add(key string) {
	m.addN(key, 1)
}

func (m *Multiset) addN(key string, n int) {
	if n <= 0 {
		return
	}
	if _, ok := m.counts[key]; !ok {
		m.order = append(m.order, key)
	}
	m.counts[key] += n
	m.size += n
}

// Remove drops up to n occurrences of key and reports how many were removed.
func (m *Multiset) Remove(key string, n int) int {
	c := m.counts[key]
	if n > c {
		n = c
	}
	if n <= 0 {
		return 0
	}
	m.counts[key] = c - n
	m.size -= n
	return n
}

func (m *Multiset) Count(key string) int {
	return m.counts[key]
}

func (m *Multiset) Contains(key string) bool {
	return m.counts[key] > 0
}

// Len is the number of elements counting repetitions.
func (m *Multiset) Len() int {
	return m.size
}

// Difference returns m minus other: every key with its count in m reduced
// by its count in other, dropping keys that reach zero.
func (m *Multiset) Difference(other *Multiset) *Multiset {
	d := NewMultiset()
	for _, k := range m.order {
		d.addN(k, m.counts[k]-other.Count(k))
	}
	return d
}

// Keys returns every element, repeated as many times as it occurs.
func (m *Multiset) Keys() []string {
	keys := make([]string, 0, m.size)
	for _, k := range m.order {
		for i := 0; i < m.counts[k]; i++ {
			keys = append(keys, k)
		}
	}
	return keys
}
