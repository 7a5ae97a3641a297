package data_structures

// NewSafeSet creates a new empty SafeSet.
func NewSafeSet[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{mp: NewSafeMap[T, struct{}]()}
}

// Add inserts a value into the set. A no-op if already present.
func (s *SafeSet[T]) Add(value T) {
	s.mp.Set(value, struct{}{})
}

// Remove deletes a value from the set.
func (s *SafeSet[T]) Remove(value T) {
	s.mp.Delete(value)
}

// Iterate returns a channel yielding a snapshot of the set's values.
// Usage: for value := range set.Iterate() { ... }
func (s *SafeSet[T]) Iterate() <-chan T {
	keys := s.mp.GetKeys()
	ch := make(chan T, len(keys))
	for _, k := range keys {
		ch <- k
	}
	close(ch)
	return ch
}

// IsEmpty reports whether the set has no members.
func (s *SafeSet[T]) IsEmpty() bool {
	return s.mp.IsEmpty()
}

// Contains reports whether value is a member of the set.
func (s *SafeSet[T]) Contains(value T) bool {
	_, exists := s.mp.Get(value)
	return exists
}
