package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortressi/sagaflow"
)

// ErrInjected is wrapped by every error a FaultPlan produces.
var ErrInjected = errors.New("injected fault")

// FaultInjector is consulted by the simulated collaborators before each
// call. It exists only to exercise failure paths; the orchestrator knows
// nothing about it.
type FaultInjector interface {
	Inject(ctx context.Context, step sagaflow.StepName, phase sagaflow.Phase) error
}

// FaultPlan fails the forward action and/or the compensation of the named
// steps. A nil *FaultPlan injects nothing.
type FaultPlan struct {
	forward    map[sagaflow.StepName]struct{}
	compensate map[sagaflow.StepName]struct{}
}

// NewFaultPlan creates a plan failing the given steps.
func NewFaultPlan(failForward, failCompensation []sagaflow.StepName) *FaultPlan {
	p := &FaultPlan{
		forward:    make(map[sagaflow.StepName]struct{}, len(failForward)),
		compensate: make(map[sagaflow.StepName]struct{}, len(failCompensation)),
	}
	for _, s := range failForward {
		p.forward[s] = struct{}{}
	}
	for _, s := range failCompensation {
		p.compensate[s] = struct{}{}
	}
	return p
}

// Inject implements FaultInjector.
func (p *FaultPlan) Inject(_ context.Context, step sagaflow.StepName, phase sagaflow.Phase) error {
	if p == nil {
		return nil
	}
	set := p.forward
	if phase == sagaflow.PhaseCompensate {
		set = p.compensate
	}
	if _, ok := set[step]; ok {
		return fmt.Errorf("%w: %s %s", ErrInjected, step, phase)
	}
	return nil
}
