package order

import (
	"context"
	"fmt"

	"github.com/fortressi/sagaflow"
)

const (
	StepCreateOrder      sagaflow.StepName = "create_order"
	StepReserveInventory sagaflow.StepName = "reserve_inventory"
	StepDeductPayment    sagaflow.StepName = "deduct_payment"
	StepCreateShipment   sagaflow.StepName = "create_shipment"
	StepSendNotification sagaflow.StepName = "send_notification"
)

// DefinitionName is the name of the checkout saga.
const DefinitionName sagaflow.DefinitionName = "order_checkout"

// DefaultSequence is the checkout step order.
var DefaultSequence = []sagaflow.StepName{
	StepCreateOrder,
	StepReserveInventory,
	StepDeductPayment,
	StepCreateShipment,
	StepSendNotification,
}

// CreateOrder records the order with the order book.
type CreateOrder struct {
	Orders OrderBook
}

func (CreateOrder) Name() sagaflow.StepName { return StepCreateOrder }
func (CreateOrder) Label() string           { return "Create order" }

func (s CreateOrder) Forward(ctx context.Context, o *Order) error {
	if err := s.Orders.Record(ctx, o.ID(), o.CustomerID, o.Amount); err != nil {
		return fmt.Errorf("record order %s: %w", o.ID(), err)
	}
	o.Created = true
	return nil
}

func (s CreateOrder) Compensate(ctx context.Context, o *Order) error {
	err := s.Orders.Cancel(ctx, o.ID())
	o.Created = false
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID(), err)
	}
	return nil
}

// ReserveInventory holds stock for the order.
type ReserveInventory struct {
	Inventory Inventory
}

func (ReserveInventory) Name() sagaflow.StepName { return StepReserveInventory }
func (ReserveInventory) Label() string           { return "Reserve inventory" }

func (s ReserveInventory) Forward(ctx context.Context, o *Order) error {
	if err := s.Inventory.Reserve(ctx, o.ID()); err != nil {
		return fmt.Errorf("reserve inventory for order %s: %w", o.ID(), err)
	}
	o.InventoryReserved = true
	return nil
}

func (s ReserveInventory) Compensate(ctx context.Context, o *Order) error {
	err := s.Inventory.Release(ctx, o.ID())
	o.InventoryReserved = false
	if err != nil {
		return fmt.Errorf("release inventory for order %s: %w", o.ID(), err)
	}
	return nil
}

// DeductPayment charges the customer for the order amount.
type DeductPayment struct {
	Payments Payments
}

func (DeductPayment) Name() sagaflow.StepName { return StepDeductPayment }
func (DeductPayment) Label() string           { return "Deduct payment" }

func (s DeductPayment) Forward(ctx context.Context, o *Order) error {
	if err := s.Payments.Charge(ctx, o.ID(), o.CustomerID, o.Amount); err != nil {
		return fmt.Errorf("charge %d for order %s: %w", o.Amount, o.ID(), err)
	}
	o.PaymentDeducted = true
	return nil
}

func (s DeductPayment) Compensate(ctx context.Context, o *Order) error {
	err := s.Payments.Refund(ctx, o.ID())
	o.PaymentDeducted = false
	if err != nil {
		return fmt.Errorf("refund order %s: %w", o.ID(), err)
	}
	return nil
}

// CreateShipment books delivery of the order.
type CreateShipment struct {
	Shipping Shipping
}

func (CreateShipment) Name() sagaflow.StepName { return StepCreateShipment }
func (CreateShipment) Label() string           { return "Create shipment" }

func (s CreateShipment) Forward(ctx context.Context, o *Order) error {
	if err := s.Shipping.CreateShipment(ctx, o.ID(), o.CustomerID); err != nil {
		return fmt.Errorf("create shipment for order %s: %w", o.ID(), err)
	}
	o.ShipmentCreated = true
	return nil
}

func (s CreateShipment) Compensate(ctx context.Context, o *Order) error {
	err := s.Shipping.CancelShipment(ctx, o.ID())
	o.ShipmentCreated = false
	if err != nil {
		return fmt.Errorf("cancel shipment for order %s: %w", o.ID(), err)
	}
	return nil
}

// SendNotification tells the customer the order went through. A sent
// notification cannot be recalled, so compensation does nothing.
type SendNotification struct {
	Notifier Notifier
}

func (SendNotification) Name() sagaflow.StepName { return StepSendNotification }
func (SendNotification) Label() string           { return "Send notification" }

func (s SendNotification) Forward(ctx context.Context, o *Order) error {
	if err := s.Notifier.SendConfirmation(ctx, o.ID(), o.CustomerID); err != nil {
		return fmt.Errorf("notify customer %s: %w", o.CustomerID, err)
	}
	o.NotificationSent = true
	return nil
}

func (SendNotification) Compensate(context.Context, *Order) error {
	return nil
}

// Steps returns the five checkout steps wired to c.
func Steps(c Collaborators) []sagaflow.Step[*Order] {
	return []sagaflow.Step[*Order]{
		CreateOrder{Orders: c.Orders},
		ReserveInventory{Inventory: c.Inventory},
		DeductPayment{Payments: c.Payments},
		CreateShipment{Shipping: c.Shipping},
		SendNotification{Notifier: c.Notifier},
	}
}

// Register adds the checkout steps to registry.
func Register(registry *sagaflow.StepRegistry[*Order], c Collaborators) error {
	for _, step := range Steps(c) {
		if err := registry.Register(step); err != nil {
			return err
		}
	}
	return nil
}

// NewDefinition builds the checkout definition with the steps in
// DefaultSequence order.
func NewDefinition(c Collaborators) (*sagaflow.Definition[*Order], error) {
	return NewDefinitionFromNames(DefinitionName, c, DefaultSequence)
}

// NewDefinitionFromNames builds a definition from an explicit list of
// checkout step names, e.g. one read from configuration.
func NewDefinitionFromNames(name sagaflow.DefinitionName, c Collaborators, names []sagaflow.StepName) (*sagaflow.Definition[*Order], error) {
	registry := sagaflow.NewStepRegistry[*Order]()
	if err := Register(registry, c); err != nil {
		return nil, err
	}

	builder := sagaflow.NewDefinitionBuilder(name, registry)
	if err := builder.AppendNamed(names...); err != nil {
		return nil, fmt.Errorf("build %s definition: %w", name, err)
	}
	return builder.Build()
}
