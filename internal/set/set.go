package set

// Set is a set of comparable values. The zero value is an empty set
// ready to use.
type Set[T comparable] struct {
	values map[T]struct{}
}

// WithCapacity creates a set that can hold n values without growing.
func WithCapacity[T comparable](n int) Set[T] {
	return Set[T]{values: make(map[T]struct{}, n)}
}

// Insert adds the value and returns false if it was already in the set.
func (s *Set[T]) Insert(value T) bool {
	if s.values == nil {
		s.values = make(map[T]struct{})
	}

	if _, exists := s.values[value]; exists {
		return false
	}

	s.values[value] = struct{}{}
	return true
}

func (s *Set[T]) Has(value T) bool {
	_, exists := s.values[value]
	return exists
}

func (s *Set[T]) Len() int {
	return len(s.values)
}
