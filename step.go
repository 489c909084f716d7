package sagaflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Entity is the mutable business record threaded through every step of a
// saga run. The orchestrator owns it exclusively for the run's duration.
type Entity interface {
	// EntityID returns the identifier assigned when the entity was created.
	EntityID() string
	// MarkConfirmed records that every step of the saga succeeded.
	MarkConfirmed()
}

// SagaID represents a unique identifier for a saga execution.
type SagaID struct {
	UUID uuid.UUID
}

// NewSagaID returns a fresh random SagaID.
func NewSagaID() SagaID {
	return SagaID{UUID: uuid.New()}
}

// String returns the string representation of the SagaID.
func (s SagaID) String() string {
	return s.UUID.String()
}

// StepName is the stable identity of a Step.
type StepName string

// String returns the string representation of the StepName.
func (n StepName) String() string {
	return string(n)
}

// Step is a named, stateless unit of work with a forward action and a
// compensating action. All mutable state lives in the entity.
//
// Compensate is only ever invoked for a step whose Forward previously
// succeeded in the same run.
type Step[E Entity] interface {
	Name() StepName
	Forward(ctx context.Context, entity E) error
	Compensate(ctx context.Context, entity E) error
}

// ForwardFunc is the forward action of a StepFunc.
type ForwardFunc[E Entity] func(ctx context.Context, entity E) error

// CompensateFunc is the compensating action of a StepFunc.
type CompensateFunc[E Entity] func(ctx context.Context, entity E) error

// StepFunc is an implementation of Step that uses ordinary functions.
type StepFunc[E Entity] struct {
	name       StepName
	forward    ForwardFunc[E]
	compensate CompensateFunc[E]
}

// NewStep constructs a new StepFunc from a pair of functions.
func NewStep[E Entity](name StepName, forward ForwardFunc[E], compensate CompensateFunc[E]) *StepFunc[E] {
	return &StepFunc[E]{
		name:       name,
		forward:    forward,
		compensate: compensate,
	}
}

// NoOpCompensate is the compensating action of an irreversible step.
func NoOpCompensate[E Entity](_ context.Context, _ E) error {
	return nil
}

// NewStepWithNoOpCompensate constructs a StepFunc whose compensation always
// succeeds without doing anything, e.g. sending a notification.
func NewStepWithNoOpCompensate[E Entity](name StepName, forward ForwardFunc[E]) *StepFunc[E] {
	return NewStep(name, forward, NoOpCompensate[E])
}

// Forward implements the Step interface for StepFunc.
func (s *StepFunc[E]) Forward(ctx context.Context, entity E) error {
	return s.forward(ctx, entity)
}

// Compensate implements the Step interface for StepFunc.
func (s *StepFunc[E]) Compensate(ctx context.Context, entity E) error {
	return s.compensate(ctx, entity)
}

// Name implements the Step interface for StepFunc.
func (s *StepFunc[E]) Name() StepName {
	return s.name
}

// String implements the fmt.Stringer interface for StepFunc.
func (s *StepFunc[E]) String() string {
	return fmt.Sprintf("StepFunc[%s]", s.name)
}
