package sagaflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type labeledStep struct {
	*testStep
	label string
}

func (s labeledStep) Label() string { return s.label }

func TestDefinitionBuilder_PreservesAppendOrder(t *testing.T) {
	b := NewDefinitionBuilder[*testEntity]("ordered", nil)
	for _, name := range []StepName{"zeta", "alpha", "mid"} {
		require.NoError(t, b.Append(&testStep{name: name}))
	}

	def, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, DefinitionName("ordered"), def.Name())
	assert.Equal(t, 3, def.Len())
	assert.Equal(t, []StepName{"zeta", "alpha", "mid"}, def.StepNames())
}

func TestDefinitionBuilder_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := NewDefinitionBuilder[*testEntity]("empty", nil).Build()
		assert.ErrorIs(t, err, ErrEmptyDefinition)
	})

	t.Run("duplicate name", func(t *testing.T) {
		b := NewDefinitionBuilder[*testEntity]("dup", nil)
		require.NoError(t, b.Append(&testStep{name: "charge"}))
		err := b.Append(&testStep{name: "charge"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step with name 'charge' already exists")
	})

	t.Run("empty name", func(t *testing.T) {
		err := NewDefinitionBuilder[*testEntity]("noname", nil).Append(&testStep{})
		assert.EqualError(t, err, "step name must not be empty")
	})

	t.Run("nil step", func(t *testing.T) {
		err := NewDefinitionBuilder[*testEntity]("nil", nil).Append(nil)
		assert.EqualError(t, err, "cannot append nil step")
	})

	t.Run("typed nil step", func(t *testing.T) {
		b := NewDefinitionBuilder[*testEntity]("typed-nil", nil)
		assert.EqualError(t, b.Append((*StepFunc[*testEntity])(nil)), "cannot append nil step")
		assert.EqualError(t, b.Append((*testStep)(nil)), "cannot append nil step")

		_, err := b.Build()
		assert.ErrorIs(t, err, ErrEmptyDefinition)
	})

	t.Run("link failure leaves no node behind", func(t *testing.T) {
		b := NewDefinitionBuilder[*testEntity]("broken", nil)
		require.NoError(t, b.Append(&testStep{name: "one"}))
		b.graph.RemoveNode(b.lastAdded)
		before := b.graph.Nodes().Len()

		err := b.Append(&testStep{name: "two"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "add step two")
		assert.Equal(t, before, b.graph.Nodes().Len())
		assert.False(t, b.names.Contains("two"))
	})

	t.Run("append after build", func(t *testing.T) {
		b := NewDefinitionBuilder[*testEntity]("sealed", nil)
		require.NoError(t, b.Append(&testStep{name: "one"}))
		_, err := b.Build()
		require.NoError(t, err)

		err = b.Append(&testStep{name: "two"})
		assert.EqualError(t, err, "definition sealed already built")
	})

	t.Run("named without registry", func(t *testing.T) {
		err := NewDefinitionBuilder[*testEntity]("noreg", nil).AppendNamed("one")
		assert.EqualError(t, err, "builder has no step registry")
	})
}

func TestDefinitionBuilder_AppendNamed(t *testing.T) {
	registry := NewStepRegistry[*testEntity]()
	for _, s := range newTestSteps(3, nil) {
		require.NoError(t, registry.Register(s))
	}

	b := NewDefinitionBuilder("from_registry", registry)
	require.NoError(t, b.AppendNamed("step3", "step1"))
	def, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []StepName{"step3", "step1"}, def.StepNames())

	err = NewDefinitionBuilder("missing", registry).AppendNamed("step1", "step9")
	require.ErrorIs(t, err, ErrStepNotFound)
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, StepName("step9"), regErr.Name)
}

func TestDefinition_StepsIsACopy(t *testing.T) {
	def := buildTestDefinition(t, "copy", newTestSteps(2, nil)...)

	steps := def.Steps()
	steps[0] = &testStep{name: "intruder"}

	assert.Equal(t, seq(2), def.StepNames())
}

func TestDefinition_ExportToDot(t *testing.T) {
	def := buildTestDefinition(t, "checkout",
		labeledStep{testStep: &testStep{name: "create_order"}, label: "Create order"},
		labeledStep{testStep: &testStep{name: "charge"}, label: "Charge card"},
	)

	out, err := def.ExportToDot()
	require.NoError(t, err)

	assert.Contains(t, out, "digraph checkout")
	assert.Contains(t, out, `label="Create order"`)
	assert.Contains(t, out, `label="Charge card"`)
	assert.Contains(t, out, "->")
}

func TestDefinition_SharedAcrossRuns(t *testing.T) {
	def := buildTestDefinition(t, "shared", newTestSteps(2, nil)...)
	orch := NewOrchestrator(def)

	a, b := newTestEntity("a"), newTestEntity("b")
	require.NoError(t, orch.Run(context.Background(), a))
	require.NoError(t, orch.Run(context.Background(), b))

	assert.True(t, a.Confirmed)
	assert.True(t, b.Confirmed)
	assert.Same(t, def, orch.Definition())
}
