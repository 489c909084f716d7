package sagaflow

import (
	"errors"
	"fmt"
)

var (
	// ErrStepNotFound is returned by StepRegistry.Get for unknown step names.
	ErrStepNotFound = errors.New("step not found")

	// ErrEmptyDefinition is returned when building a definition without steps.
	ErrEmptyDefinition = errors.New("definition has no steps")

	// ErrAlreadyExecuted is returned when an Execution is run a second time.
	ErrAlreadyExecuted = errors.New("execution already ran")
)

// StepExecutionError reports that the forward action of a named step failed.
type StepExecutionError struct {
	Step  StepName
	Cause error
}

// StepFailed wraps err as the forward failure of step. An err that is
// itself a *StepExecutionError for the same step is returned unchanged;
// anything else, including a step error of another step found deeper in
// the chain, is wrapped under step.
func StepFailed(step StepName, err error) *StepExecutionError {
	if stepErr, ok := err.(*StepExecutionError); ok && stepErr.Step == step {
		return stepErr
	}
	return &StepExecutionError{Step: step, Cause: err}
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Cause
}

// CompensationError reports that the compensating action of a named step
// failed. It is recorded and reported, never returned to the saga's caller
// as the saga outcome.
type CompensationError struct {
	Step  StepName
	Cause error
}

// CompensationFailed wraps err as the compensation failure of step,
// passing through only a *CompensationError for the same step.
func CompensationFailed(step StepName, err error) *CompensationError {
	if compErr, ok := err.(*CompensationError); ok && compErr.Step == step {
		return compErr
	}
	return &CompensationError{Step: step, Cause: err}
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of step %s failed: %v", e.Step, e.Cause)
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}

// SagaFailure is the only error a saga run returns to its caller. It always
// wraps the forward failure that stopped the run, even when every
// compensation succeeded. Its message is the message of that failure.
type SagaFailure struct {
	SagaID SagaID
	Err    *StepExecutionError

	// CompensationErrors lists the compensation failures recorded while
	// unwinding, most recent step first. They never change the outcome.
	CompensationErrors []*CompensationError
}

func (e *SagaFailure) Error() string {
	return e.Err.Error()
}

func (e *SagaFailure) Unwrap() error {
	return e.Err
}

// FailedStep returns the name of the step whose forward action failed.
func (e *SagaFailure) FailedStep() StepName {
	return e.Err.Step
}

// FullyCompensated reports whether every compensating action succeeded.
func (e *SagaFailure) FullyCompensated() bool {
	return len(e.CompensationErrors) == 0
}

// RegistryError represents an error returned from StepRegistry.
type RegistryError struct {
	Name StepName
	error
}

func (e *RegistryError) Unwrap() error {
	return e.error
}

func notFound(name StepName) error {
	return &RegistryError{Name: name, error: fmt.Errorf("%w: %s", ErrStepNotFound, name)}
}
