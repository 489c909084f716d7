// Package order is the order-checkout saga: an Order entity, the five steps
// that create, reserve, charge, ship and notify for it, and simulated
// collaborators for running the saga without real backends.
package order

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/fortressi/sagaflow"
	"github.com/google/uuid"
)

// Status is the overall status of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
)

var (
	ErrNegativeAmount  = errors.New("order amount must not be negative")
	ErrMissingCustomer = errors.New("order customer id must not be empty")
)

// Order is the business entity threaded through the checkout saga. Each
// effect flag is owned by exactly one step.
type Order struct {
	id         string
	CustomerID string
	// Amount in minor currency units.
	Amount    int64
	CreatedAt time.Time

	Created           bool
	InventoryReserved bool
	PaymentDeducted   bool
	ShipmentCreated   bool
	NotificationSent  bool

	Status Status
}

// New creates a pending order with a fresh identifier.
func New(customerID string, amount int64) (*Order, error) {
	if customerID == "" {
		return nil, ErrMissingCustomer
	}
	if amount < 0 {
		return nil, ErrNegativeAmount
	}
	return &Order{
		id:         uuid.NewString(),
		CustomerID: customerID,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusPending,
	}, nil
}

// ID returns the order identifier. It never changes after New.
func (o *Order) ID() string {
	return o.id
}

// EntityID implements sagaflow.Entity.
func (o *Order) EntityID() string {
	return o.id
}

// MarkConfirmed implements sagaflow.Entity.
func (o *Order) MarkConfirmed() {
	o.Status = StatusConfirmed
}

// Flags returns each step's effect flag keyed by step name.
func (o *Order) Flags() map[sagaflow.StepName]bool {
	return map[sagaflow.StepName]bool{
		StepCreateOrder:      o.Created,
		StepReserveInventory: o.InventoryReserved,
		StepDeductPayment:    o.PaymentDeducted,
		StepCreateShipment:   o.ShipmentCreated,
		StepSendNotification: o.NotificationSent,
	}
}

// Consistent reports whether the order is either confirmed with every
// effect applied, or pending with none applied.
func (o *Order) Consistent() bool {
	want := o.Status == StatusConfirmed
	for _, applied := range o.Flags() {
		if applied != want {
			return false
		}
	}
	return true
}

type orderJSON struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	Amount            int64     `json:"amount"`
	CreatedAt         time.Time `json:"created_at"`
	Created           bool      `json:"created"`
	InventoryReserved bool      `json:"inventory_reserved"`
	PaymentDeducted   bool      `json:"payment_deducted"`
	ShipmentCreated   bool      `json:"shipment_created"`
	NotificationSent  bool      `json:"notification_sent"`
	Status            Status    `json:"status"`
}

// MarshalJSON implements json.Marshaler; dead letters embed this snapshot.
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:                o.id,
		CustomerID:        o.CustomerID,
		Amount:            o.Amount,
		CreatedAt:         o.CreatedAt,
		Created:           o.Created,
		InventoryReserved: o.InventoryReserved,
		PaymentDeducted:   o.PaymentDeducted,
		ShipmentCreated:   o.ShipmentCreated,
		NotificationSent:  o.NotificationSent,
		Status:            o.Status,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Order) UnmarshalJSON(data []byte) error {
	var v orderJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Order{
		id:                v.ID,
		CustomerID:        v.CustomerID,
		Amount:            v.Amount,
		CreatedAt:         v.CreatedAt,
		Created:           v.Created,
		InventoryReserved: v.InventoryReserved,
		PaymentDeducted:   v.PaymentDeducted,
		ShipmentCreated:   v.ShipmentCreated,
		NotificationSent:  v.NotificationSent,
		Status:            v.Status,
	}
	return nil
}
