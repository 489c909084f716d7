package sagaflow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testEntity records which steps currently have their effect applied.
type testEntity struct {
	ID        string          `json:"id"`
	Confirmed bool            `json:"confirmed"`
	Applied   map[string]bool `json:"applied"`
}

func newTestEntity(id string) *testEntity {
	return &testEntity{ID: id, Applied: make(map[string]bool)}
}

func (e *testEntity) EntityID() string { return e.ID }
func (e *testEntity) MarkConfirmed()   { e.Confirmed = true }

func (e *testEntity) anyApplied() bool {
	for _, v := range e.Applied {
		if v {
			return true
		}
	}
	return false
}

// callLog records the order in which actions were invoked across steps.
type callLog struct {
	mu          sync.Mutex
	forward     []StepName
	compensated []StepName
}

func (l *callLog) addForward(n StepName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.forward = append(l.forward, n)
}

func (l *callLog) addCompensated(n StepName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compensated = append(l.compensated, n)
}

// testStep applies its flag on forward and clears it on compensation, or
// fails either half on request.
type testStep struct {
	name           StepName
	log            *callLog
	failForward    error
	failCompensate error
	before         func(ctx context.Context)
}

func (s *testStep) Name() StepName { return s.name }

func (s *testStep) Forward(ctx context.Context, e *testEntity) error {
	if s.log != nil {
		s.log.addForward(s.name)
	}
	if s.before != nil {
		s.before(ctx)
	}
	if s.failForward != nil {
		return s.failForward
	}
	e.Applied[string(s.name)] = true
	return nil
}

func (s *testStep) Compensate(_ context.Context, e *testEntity) error {
	if s.log != nil {
		s.log.addCompensated(s.name)
	}
	e.Applied[string(s.name)] = false
	return s.failCompensate
}

func stepName(i int) StepName {
	return StepName(fmt.Sprintf("step%d", i))
}

// newTestSteps returns n steps named step1..stepN sharing log.
func newTestSteps(n int, log *callLog) []*testStep {
	steps := make([]*testStep, n)
	for i := range steps {
		steps[i] = &testStep{name: stepName(i + 1), log: log}
	}
	return steps
}

func buildTestDefinition[S Step[*testEntity]](t *testing.T, name DefinitionName, steps ...S) *Definition[*testEntity] {
	t.Helper()
	b := NewDefinitionBuilder[*testEntity](name, nil)
	for _, s := range steps {
		if err := b.Append(s); err != nil {
			t.Fatalf("append %s: %v", s.Name(), err)
		}
	}
	def, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return def
}

// seq returns step1..stepN.
func seq(n int) []StepName {
	out := make([]StepName, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, stepName(i))
	}
	return out
}

// reversed returns stepN..step1.
func reversed(n int) []StepName {
	out := make([]StepName, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, stepName(i))
	}
	return out
}

func assertSteps(t *testing.T, want, got []StepName, msgAndArgs ...any) {
	t.Helper()
	if len(want) == 0 {
		assert.Empty(t, got, msgAndArgs...)
		return
	}
	assert.Equal(t, want, got, msgAndArgs...)
}
