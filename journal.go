package sagaflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// StepState is the lifecycle state of one step within one saga run.
type StepState int

const (
	StepNotStarted StepState = iota
	StepExecuting
	StepCompleted
	StepFailedForward
	StepCompensationPending
	StepCompensated
	StepCompensationFailed
)

// String returns the string representation of the StepState.
func (s StepState) String() string {
	switch s {
	case StepNotStarted:
		return "NotStarted"
	case StepExecuting:
		return "Executing"
	case StepCompleted:
		return "Completed"
	case StepFailedForward:
		return "FailedForward"
	case StepCompensationPending:
		return "CompensationPending"
	case StepCompensated:
		return "Compensated"
	case StepCompensationFailed:
		return "CompensationFailed"
	default:
		return fmt.Sprintf("Unknown StepState: %d", s)
	}
}

// MarshalJSON implements the json.Marshaler interface for StepState.
func (s StepState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether no further event is accepted for the step.
func (s StepState) Terminal() bool {
	switch s {
	case StepFailedForward, StepCompensated, StepCompensationFailed:
		return true
	}
	return false
}

// StepEventType defines the types of events that can occur for a step.
type StepEventType int

const (
	EventStarted StepEventType = iota
	EventSucceeded
	EventFailed
	EventCompensationStarted
	EventCompensated
	EventCompensationFailed
)

// String returns the string representation of the StepEventType.
func (t StepEventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventCompensationStarted:
		return "compensation_started"
	case EventCompensated:
		return "compensated"
	case EventCompensationFailed:
		return "compensation_failed"
	default:
		return fmt.Sprintf("Unknown StepEventType: %d", t)
	}
}

// next returns the state a step moves to after the given event.
func (s StepState) next(event StepEventType) (StepState, error) {
	switch s {
	case StepNotStarted:
		if event == EventStarted {
			return StepExecuting, nil
		}
	case StepExecuting:
		switch event {
		case EventSucceeded:
			return StepCompleted, nil
		case EventFailed:
			return StepFailedForward, nil
		}
	case StepCompleted:
		if event == EventCompensationStarted {
			return StepCompensationPending, nil
		}
	case StepCompensationPending:
		switch event {
		case EventCompensated:
			return StepCompensated, nil
		case EventCompensationFailed:
			return StepCompensationFailed, nil
		}
	}

	return s, fmt.Errorf("illegal event %s for step state %s", event, s)
}

// SagaState is the lifecycle state of a saga run.
type SagaState int

const (
	SagaRunning SagaState = iota
	SagaSucceeded
	SagaCompensating
	SagaFailed
)

// String returns the string representation of the SagaState.
func (s SagaState) String() string {
	switch s {
	case SagaRunning:
		return "Running"
	case SagaSucceeded:
		return "Succeeded"
	case SagaCompensating:
		return "Compensating"
	case SagaFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown SagaState: %d", s)
	}
}

// MarshalJSON implements the json.Marshaler interface for SagaState.
func (s SagaState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s SagaState) canMoveTo(to SagaState) bool {
	switch s {
	case SagaRunning:
		return to == SagaSucceeded || to == SagaCompensating
	case SagaCompensating:
		return to == SagaFailed
	}
	return false
}

// StepEvent represents an entry in the journal.
type StepEvent struct {
	Seq   int           `json:"seq"`
	Step  StepName      `json:"step"`
	Type  StepEventType `json:"-"`
	Event string        `json:"event"`
	At    time.Time     `json:"at"`
}

// String implements the fmt.Stringer interface for StepEvent.
func (e *StepEvent) String() string {
	return fmt.Sprintf("%03d %s %s", e.Seq, e.Step, e.Type)
}

// Journal is the event log of one saga run. It enforces the per-step and
// per-saga state machines: an event that does not fit the current state is
// rejected.
type Journal struct {
	mu        sync.Mutex
	sagaID    SagaID
	sagaState SagaState
	events    []*StepEvent
	steps     btree.Map[StepName, StepState]
	now       func() time.Time
}

// NewJournal creates a new, empty Journal for a saga run.
func NewJournal(sagaID SagaID) *Journal {
	return &Journal{
		sagaID:    sagaID,
		sagaState: SagaRunning,
		events:    make([]*StepEvent, 0),
		now:       time.Now,
	}
}

// Record adds a step event to the journal.
func (j *Journal) Record(step StepName, event StepEventType) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	current, _ := j.steps.Get(step)
	next, err := current.next(event)
	if err != nil {
		return fmt.Errorf("step %s: %w", step, err)
	}

	j.steps.Set(step, next)
	j.events = append(j.events, &StepEvent{
		Seq:   len(j.events) + 1,
		Step:  step,
		Type:  event,
		Event: event.String(),
		At:    j.now(),
	})
	return nil
}

// Transition moves the saga to a new state.
func (j *Journal) Transition(to SagaState) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.sagaState.canMoveTo(to) {
		return fmt.Errorf("illegal saga transition %s -> %s", j.sagaState, to)
	}
	j.sagaState = to
	return nil
}

// SagaState returns the current saga state.
func (j *Journal) SagaState() SagaState {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.sagaState
}

// StepState returns the state of a step; steps never seen are NotStarted.
func (j *Journal) StepState(step StepName) StepState {
	j.mu.Lock()
	defer j.mu.Unlock()

	state, _ := j.steps.Get(step)
	return state
}

// StepStates returns the state of every step that has recorded an event.
func (j *Journal) StepStates() map[StepName]StepState {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[StepName]StepState, j.steps.Len())
	j.steps.Scan(func(name StepName, state StepState) bool {
		out[name] = state
		return true
	})
	return out
}

// Events returns a copy of the recorded events in order.
func (j *Journal) Events() []StepEvent {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]StepEvent, len(j.events))
	for i, e := range j.events {
		out[i] = *e
	}
	return out
}

// JournalPretty is a helper for pretty-printing a Journal.
type JournalPretty struct {
	Journal *Journal
}

// String implements the fmt.Stringer interface for JournalPretty.
func (p *JournalPretty) String() string {
	j := p.Journal
	j.mu.Lock()
	defer j.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("SAGA JOURNAL:\n")
	sb.WriteString(fmt.Sprintf("saga id: %s\n", j.sagaID))
	sb.WriteString(fmt.Sprintf("state:   %s\n", j.sagaState))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(j.events)))
	sb.WriteString("\n")
	for _, e := range j.events {
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
