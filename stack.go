package sagaflow

// CompletedStack is the LIFO record of steps whose forward action succeeded
// in the current run. It is appended to during forward execution and popped
// during compensation; only the top is ever touched.
type CompletedStack[E Entity] struct {
	steps []Step[E]
}

// NewCompletedStack returns an empty stack with room for capacity steps.
func NewCompletedStack[E Entity](capacity int) *CompletedStack[E] {
	return &CompletedStack[E]{steps: make([]Step[E], 0, capacity)}
}

// Push records a step whose forward action just succeeded.
func (s *CompletedStack[E]) Push(step Step[E]) {
	s.steps = append(s.steps, step)
}

// Pop removes and returns the most recently completed step.
func (s *CompletedStack[E]) Pop() (Step[E], bool) {
	if len(s.steps) == 0 {
		return nil, false
	}
	top := s.steps[len(s.steps)-1]
	s.steps[len(s.steps)-1] = nil
	s.steps = s.steps[:len(s.steps)-1]
	return top, true
}

// Len returns the number of steps on the stack.
func (s *CompletedStack[E]) Len() int {
	return len(s.steps)
}

// Names returns the step names from bottom (first completed) to top.
func (s *CompletedStack[E]) Names() []StepName {
	names := make([]StepName, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name()
	}
	return names
}
