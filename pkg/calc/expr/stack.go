package expr

// stack is a LIFO used for both operands and pending operators.
type stack[T any] struct {
	data []T
}

func newStack[T any](capacity int) *stack[T] {
	return &stack[T]{data: make([]T, 0, capacity)}
}

func (s *stack[T]) push(v T) {
	s.data = append(s.data, v)
}

// pop removes and returns the top element. ok is false if the stack is empty.
func (s *stack[T]) pop() (v T, ok bool) {
	if len(s.data) == 0 {
		return v, false
	}
	v = s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v, true
}

// peek returns the top element without removing it.
func (s *stack[T]) peek() (v T, ok bool) {
	if len(s.data) == 0 {
		return v, false
	}
	return s.data[len(s.data)-1], true
}

func (s *stack[T]) len() int {
	return len(s.data)
}
