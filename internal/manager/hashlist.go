package manager

import "github.com/cespare/xxhash/v2"

// hashList is an insertion-ordered collection of uniquely named items with
// hashed lookup. Iteration order is declaration order, which is the order
// classes and histograms are printed and written in.
type hashList[T any] struct {
	names []string
	items []T
	index map[uint64][]int // xxhash(name) -> positions, collisions chained
}

func newHashList[T any]() *hashList[T] {
	return &hashList[T]{index: make(map[uint64][]int)}
}

func (l *hashList[T]) find(name string) int {
	for _, pos := range l.index[xxhash.Sum64String(name)] {
		if l.names[pos] == name {
			return pos
		}
	}
	return -1
}

// Get returns the item registered under name.
func (l *hashList[T]) Get(name string) (T, bool) {
	if pos := l.find(name); pos >= 0 {
		return l.items[pos], true
	}
	var zero T
	return zero, false
}

// Add appends item under name. It reports false and leaves the list
// unchanged when the name is already taken.
func (l *hashList[T]) Add(name string, item T) bool {
	if l.find(name) >= 0 {
		return false
	}
	h := xxhash.Sum64String(name)
	l.index[h] = append(l.index[h], len(l.items))
	l.names = append(l.names, name)
	l.items = append(l.items, item)
	return true
}

// Len returns the number of items.
func (l *hashList[T]) Len() int { return len(l.items) }

// Items returns the items in insertion order. The slice is shared.
func (l *hashList[T]) Items() []T { return l.items }

// Names returns a copy of the names in insertion order.
func (l *hashList[T]) Names() []string {
	cp := make([]string, len(l.names))
	copy(cp, l.names)
	return cp
}
