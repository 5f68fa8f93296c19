package set

import (
	"cmp"
	"slices"
)

// Set is a collection of unique elements. The zero value is not usable, use New.
//
// A Set published inside a directory snapshot is never mutated again, so
// writers always Clone before changing one.
type Set[T comparable] struct {
	items map[T]struct{}
}

// New creates and returns a new empty Set.
func New[T comparable]() *Set[T] {
	return &Set[T]{
		items: make(map[T]struct{}),
	}
}

// FromSlice creates a new Set from the provided slice of items.
// Any duplicate items in the slice will only be represented once in the Set.
func FromSlice[T comparable](items []T) *Set[T] {
	set := New[T]()
	for _, item := range items {
		set.Add(item)
	}
	return set
}

// Add adds an item to the Set.
func (s *Set[T]) Add(item T) {
	s.items[item] = struct{}{}
}

// Remove removes an item from the Set. Removing a missing item is a no-op.
func (s *Set[T]) Remove(item T) {
	delete(s.items, item)
}

// Contains checks if the item exists in the Set. A nil Set contains nothing.
func (s *Set[T]) Contains(item T) bool {
	if s == nil {
		return false
	}
	_, exists := s.items[item]
	return exists
}

// Size returns the number of items in the Set.
func (s *Set[T]) Size() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Clone returns a shallow copy that can be changed without affecting s.
func (s *Set[T]) Clone() *Set[T] {
	result := New[T]()
	if s == nil {
		return result
	}
	for item := range s.items {
		result.Add(item)
	}
	return result
}

// ToSlice returns all the items in the Set as a slice.
// The order of items in the returned slice is not guaranteed.
func (s *Set[T]) ToSlice() []T {
	if s == nil {
		return []T{}
	}
	result := make([]T, 0, len(s.items))
	for item := range s.items {
		result = append(result, item)
	}
	return result
}

// Find returns the first item matching pred. Iteration order is unspecified,
// so pred should match at most one item.
func (s *Set[T]) Find(pred func(T) bool) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	for item := range s.items {
		if pred(item) {
			return item, true
		}
	}
	return zero, false
}

// Sorted returns the items of an ordered Set in ascending order.
func Sorted[T cmp.Ordered](s *Set[T]) []T {
	result := s.ToSlice()
	slices.Sort(result)
	return result
}

// SortedFunc returns the items of s ordered by compare.
func SortedFunc[T comparable](s *Set[T], compare func(a, b T) int) []T {
	result := s.ToSlice()
	slices.SortFunc(result, compare)
	return result
}
