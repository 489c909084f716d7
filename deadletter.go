package sagaflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeadLetterSink receives compensation failures. The orchestrator reports
// to it but never depends on the outcome: a sink error is logged and the
// compensation loop carries on. Retry and escalation belong to whoever
// consumes the sink.
type DeadLetterSink interface {
	Report(ctx context.Context, letter DeadLetter) error
}

// DeadLetterLister is implemented by sinks whose letters can be read back.
type DeadLetterLister interface {
	List(ctx context.Context) ([]DeadLetter, error)
}

// DeadLetter describes one compensating action that failed and left the
// entity needing manual reconciliation.
type DeadLetter struct {
	ID         string          `json:"id"`
	SagaID     string          `json:"saga_id"`
	Definition string          `json:"definition"`
	EntityID   string          `json:"entity_id"`
	Step       StepName        `json:"step"`
	Error      string          `json:"error"`
	Entity     json.RawMessage `json:"entity,omitempty"`
	FailedAt   time.Time       `json:"failed_at"`
}

// newDeadLetter builds a letter for a failed compensation. The entity
// snapshot is best effort; an entity that cannot be marshalled is omitted.
func newDeadLetter[E Entity](sagaID SagaID, def DefinitionName, entity E, compErr *CompensationError) DeadLetter {
	letter := DeadLetter{
		ID:         uuid.NewString(),
		SagaID:     sagaID.String(),
		Definition: string(def),
		EntityID:   entity.EntityID(),
		Step:       compErr.Step,
		Error:      compErr.Error(),
		FailedAt:   time.Now().UTC(),
	}
	if data, err := json.Marshal(entity); err == nil {
		letter.Entity = data
	}
	return letter
}

type discardSink struct{}

func (discardSink) Report(context.Context, DeadLetter) error { return nil }

// MemorySink keeps dead letters in memory, for tests or runs where
// persistence is not required.
type MemorySink struct {
	mu      sync.RWMutex
	letters []DeadLetter
}

// NewMemorySink creates a new in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{letters: make([]DeadLetter, 0)}
}

// Report stores the letter in memory.
func (m *MemorySink) Report(_ context.Context, letter DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.letters = append(m.letters, letter)
	return nil
}

// List returns a copy of the stored letters in report order.
func (m *MemorySink) List(_ context.Context) ([]DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]DeadLetter(nil), m.letters...), nil
}

// Len returns the number of stored letters.
func (m *MemorySink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.letters)
}
