package sagaflow

import (
	"fmt"
	"reflect"

	"github.com/fortressi/sagaflow/dag"
	"github.com/tidwall/btree"
)

// DefinitionName is a human-readable name for a saga workflow.
type DefinitionName string

// String returns the string representation of the DefinitionName.
func (n DefinitionName) String() string {
	return string(n)
}

// Definition is an immutable, ordered sequence of steps describing one
// workflow. It is safe to share between concurrent runs.
type Definition[E Entity] struct {
	name  DefinitionName
	steps []Step[E]
	graph *dag.Graph
}

// Name returns the definition name.
func (d *Definition[E]) Name() DefinitionName {
	return d.name
}

// Len returns the number of steps.
func (d *Definition[E]) Len() int {
	return len(d.steps)
}

// Steps returns the steps in execution order.
func (d *Definition[E]) Steps() []Step[E] {
	return append([]Step[E](nil), d.steps...)
}

// StepNames returns the step names in execution order.
func (d *Definition[E]) StepNames() []StepName {
	names := make([]StepName, len(d.steps))
	for i, s := range d.steps {
		names[i] = s.Name()
	}
	return names
}

// ExportToDot renders the definition as a Graphviz digraph.
func (d *Definition[E]) ExportToDot() (string, error) {
	return d.graph.ExportToDot(string(d.name))
}

// DefinitionBuilder builds a Definition one step at a time. Each appended
// step depends on the one appended before it.
type DefinitionBuilder[E Entity] struct {
	name      DefinitionName
	graph     *dag.Graph
	nodes     map[int64]Step[E]
	lastAdded int64
	hasLast   bool
	built     bool
	names     btree.Set[StepName]
	registry  *StepRegistry[E]
}

// NewDefinitionBuilder creates a new DefinitionBuilder. The registry is
// optional; it is required only by AppendNamed.
func NewDefinitionBuilder[E Entity](name DefinitionName, registry *StepRegistry[E]) *DefinitionBuilder[E] {
	return &DefinitionBuilder[E]{
		name:     name,
		graph:    dag.New(),
		nodes:    make(map[int64]Step[E]),
		registry: registry,
	}
}

// Append adds a step after the most recently appended one.
func (b *DefinitionBuilder[E]) Append(step Step[E]) error {
	if b.built {
		return fmt.Errorf("definition %s already built", b.name)
	}
	if isNil(step) {
		return fmt.Errorf("cannot append nil step")
	}
	name := step.Name()
	if name == "" {
		return fmt.Errorf("step name must not be empty")
	}
	if b.names.Contains(name) {
		return fmt.Errorf("step with name '%s' already exists", name)
	}

	id, err := b.graph.AddLabeledNode(string(name), labelFor(step))
	if err != nil {
		return fmt.Errorf("add step %s: %w", name, err)
	}
	if b.hasLast {
		if err := b.graph.Link(b.lastAdded, id); err != nil {
			b.graph.RemoveNode(id)
			return fmt.Errorf("add step %s: %w", name, err)
		}
	}

	b.names.Insert(name)
	b.nodes[id] = step
	b.lastAdded = id
	b.hasLast = true
	return nil
}

// AppendNamed resolves each name through the registry and appends the steps
// in the given order.
func (b *DefinitionBuilder[E]) AppendNamed(names ...StepName) error {
	if b.registry == nil {
		return fmt.Errorf("builder has no step registry")
	}
	for _, name := range names {
		step, err := b.registry.Get(name)
		if err != nil {
			return err
		}
		if err := b.Append(step); err != nil {
			return err
		}
	}
	return nil
}

// Build finalizes the definition.
func (b *DefinitionBuilder[E]) Build() (*Definition[E], error) {
	if len(b.nodes) == 0 {
		return nil, ErrEmptyDefinition
	}

	order, err := b.graph.Order()
	if err != nil {
		return nil, fmt.Errorf("failed to get execution order: %w", err)
	}

	steps := make([]Step[E], 0, len(order))
	for _, id := range order {
		steps = append(steps, b.nodes[id])
	}

	b.built = true
	return &Definition[E]{
		name:  b.name,
		steps: steps,
		graph: b.graph,
	}, nil
}

// isNil reports whether step is nil or an interface holding a nil pointer,
// map, func, or similar.
func isNil(step any) bool {
	if step == nil {
		return true
	}
	v := reflect.ValueOf(step)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Labeler is implemented by steps that provide a display label.
type Labeler interface {
	Label() string
}

func labelFor(step any) string {
	if l, ok := step.(Labeler); ok && l.Label() != "" {
		return l.Label()
	}
	if s, ok := step.(interface{ Name() StepName }); ok {
		return string(s.Name())
	}
	return fmt.Sprintf("%T", step)
}
