package sagaflow

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// StepRegistry is a registry of steps that definitions can be assembled from
// by name.
//
// Steps are identified by their StepName. Registering steps up front lets a
// definition be described as a plain list of names (for instance in a
// configuration file) and resolved at startup, without the caller holding a
// reference to every concrete Step.
type StepRegistry[E Entity] struct {
	steps *xsync.MapOf[StepName, Step[E]]
}

// NewStepRegistry creates a new StepRegistry.
func NewStepRegistry[E Entity]() *StepRegistry[E] {
	return &StepRegistry[E]{
		steps: xsync.NewMapOf[StepName, Step[E]](),
	}
}

// Register adds a step to the registry.
func (r *StepRegistry[E]) Register(step Step[E]) error {
	if step.Name() == "" {
		return fmt.Errorf("step name must not be empty")
	}
	if _, loaded := r.steps.LoadOrStore(step.Name(), step); loaded {
		return fmt.Errorf("step with name '%s' already registered", step.Name())
	}
	return nil
}

// Get retrieves a step from the registry by its name.
func (r *StepRegistry[E]) Get(name StepName) (Step[E], error) {
	step, ok := r.steps.Load(name)
	if !ok {
		return nil, notFound(name)
	}
	return step, nil
}

// Len returns the number of registered steps.
func (r *StepRegistry[E]) Len() int {
	return r.steps.Size()
}
