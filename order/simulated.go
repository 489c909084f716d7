package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fortressi/sagaflow"
)

// Holdings is what the simulated systems currently hold for one order.
type Holdings struct {
	Recorded bool
	Reserved bool
	Charged  int64
	Shipped  bool
	Notified bool
}

// Simulated implements every collaborator interface in memory. Each call
// waits Latency, asks the fault injector whether to fail, and otherwise
// applies its effect. It is safe for concurrent use by runs over distinct
// orders.
type Simulated struct {
	Latency time.Duration
	Faults  FaultInjector

	mu       sync.Mutex
	holdings map[string]*Holdings
}

// NewSimulated returns simulated collaborators with the given latency and
// fault injector (which may be nil).
func NewSimulated(latency time.Duration, faults FaultInjector) *Simulated {
	return &Simulated{
		Latency:  latency,
		Faults:   faults,
		holdings: make(map[string]*Holdings),
	}
}

// Collaborators returns s wired into every collaborator slot.
func (s *Simulated) Collaborators() Collaborators {
	return Collaborators{
		Orders:    s,
		Inventory: s,
		Payments:  s,
		Shipping:  s,
		Notifier:  s,
	}
}

// Snapshot returns a copy of what is held for orderID.
func (s *Simulated) Snapshot(orderID string) Holdings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.holdings[orderID]; ok {
		return *h
	}
	return Holdings{}
}

// call waits out the latency, consults the fault injector, then applies fn
// to the holdings for orderID.
func (s *Simulated) call(ctx context.Context, step sagaflow.StepName, phase sagaflow.Phase, orderID string, fn func(h *Holdings) error) error {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if s.Faults != nil {
		if err := s.Faults.Inject(ctx, step, phase); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holdings[orderID]
	if !ok {
		h = &Holdings{}
		s.holdings[orderID] = h
	}
	return fn(h)
}

func (s *Simulated) Record(ctx context.Context, orderID, _ string, _ int64) error {
	return s.call(ctx, StepCreateOrder, sagaflow.PhaseForward, orderID, func(h *Holdings) error {
		if h.Recorded {
			return fmt.Errorf("order %s already recorded", orderID)
		}
		h.Recorded = true
		return nil
	})
}

func (s *Simulated) Cancel(ctx context.Context, orderID string) error {
	return s.call(ctx, StepCreateOrder, sagaflow.PhaseCompensate, orderID, func(h *Holdings) error {
		h.Recorded = false
		return nil
	})
}

func (s *Simulated) Reserve(ctx context.Context, orderID string) error {
	return s.call(ctx, StepReserveInventory, sagaflow.PhaseForward, orderID, func(h *Holdings) error {
		h.Reserved = true
		return nil
	})
}

func (s *Simulated) Release(ctx context.Context, orderID string) error {
	return s.call(ctx, StepReserveInventory, sagaflow.PhaseCompensate, orderID, func(h *Holdings) error {
		h.Reserved = false
		return nil
	})
}

func (s *Simulated) Charge(ctx context.Context, orderID, _ string, amount int64) error {
	return s.call(ctx, StepDeductPayment, sagaflow.PhaseForward, orderID, func(h *Holdings) error {
		h.Charged += amount
		return nil
	})
}

func (s *Simulated) Refund(ctx context.Context, orderID string) error {
	return s.call(ctx, StepDeductPayment, sagaflow.PhaseCompensate, orderID, func(h *Holdings) error {
		h.Charged = 0
		return nil
	})
}

func (s *Simulated) CreateShipment(ctx context.Context, orderID, _ string) error {
	return s.call(ctx, StepCreateShipment, sagaflow.PhaseForward, orderID, func(h *Holdings) error {
		h.Shipped = true
		return nil
	})
}

func (s *Simulated) CancelShipment(ctx context.Context, orderID string) error {
	return s.call(ctx, StepCreateShipment, sagaflow.PhaseCompensate, orderID, func(h *Holdings) error {
		h.Shipped = false
		return nil
	})
}

func (s *Simulated) SendConfirmation(ctx context.Context, orderID, _ string) error {
	return s.call(ctx, StepSendNotification, sagaflow.PhaseForward, orderID, func(h *Holdings) error {
		h.Notified = true
		return nil
	})
}
