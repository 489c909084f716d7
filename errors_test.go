package sagaflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepFailed(t *testing.T) {
	cause := errors.New("declined")
	err := StepFailed("charge", cause)

	assert.Equal(t, "step charge failed: declined", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Same(t, err, StepFailed("charge", err), "a step error for the same step is kept")

	wrapped := fmt.Errorf("gateway: %w", err)
	outer := StepFailed("checkout", wrapped)
	assert.Equal(t, StepName("checkout"), outer.Step)
	assert.Equal(t, "step checkout failed: gateway: step charge failed: declined", outer.Error())
	assert.ErrorIs(t, outer, cause)

	other := StepFailed("checkout", err)
	assert.NotSame(t, err, other, "a step error of another step is wrapped")
	assert.Equal(t, StepName("checkout"), other.Step)
}

func TestCompensationFailed(t *testing.T) {
	cause := errors.New("refund rejected")
	err := CompensationFailed("charge", cause)

	assert.Equal(t, "compensation of step charge failed: refund rejected", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, CompensationFailed("charge", err))

	wrapped := CompensationFailed("checkout", fmt.Errorf("sub-saga: %w", err))
	assert.Equal(t, StepName("checkout"), wrapped.Step)
	assert.Equal(t, "compensation of step checkout failed: sub-saga: compensation of step charge failed: refund rejected", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestSagaFailure(t *testing.T) {
	cause := errors.New("out of stock")
	failure := &SagaFailure{
		SagaID: NewSagaID(),
		Err:    StepFailed("reserve", cause),
		CompensationErrors: []*CompensationError{
			CompensationFailed("create", errors.New("order book offline")),
		},
	}

	assert.Equal(t, "step reserve failed: out of stock", failure.Error())
	assert.Equal(t, StepName("reserve"), failure.FailedStep())
	assert.False(t, failure.FullyCompensated())
	assert.ErrorIs(t, failure, cause)

	var stepErr *StepExecutionError
	assert.ErrorAs(t, failure, &stepErr)
	var compErr *CompensationError
	assert.False(t, errors.As(failure, &compErr), "compensation failures are not part of the error chain")
}
