package orderedset

// Set is a set datastructure that returns it's elements in the order they
// were added.
type Set[K comparable] struct {
	order []K
	m     map[K]struct{}
}

func New[K comparable]() *Set[K] {
	return &Set[K]{
		m: map[K]struct{}{},
	}
}

// Add adds val to the set if it does not exist already.
// It returns true if val was added.
func (s *Set[K]) Add(val K) (added bool) {
	if _, exist := s.m[val]; exist {
		return false
	}

	s.m[val] = struct{}{}
	s.order = append(s.order, val)

	return true
}

// Contains returns true if val is an element of the set.
func (s *Set[K]) Contains(val K) bool {
	_, exist := s.m[val]
	return exist
}

// Len returns the number of elements in the set.
func (s *Set[K]) Len() int {
	return len(s.order)
}

// AsSlice returns a new slice containing the elements of the set in
// insertion order.
func (s *Set[K]) AsSlice() []K {
	result := make([]K, len(s.order))
	copy(result, s.order)

	return result
}
