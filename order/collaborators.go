package order

import "context"

// OrderBook records orders in the order system.
type OrderBook interface {
	Record(ctx context.Context, orderID, customerID string, amount int64) error
	Cancel(ctx context.Context, orderID string) error
}

// Inventory is the resource-reservation system.
type Inventory interface {
	Reserve(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID string) error
}

// Payments is the settlement system.
type Payments interface {
	Charge(ctx context.Context, orderID, customerID string, amount int64) error
	Refund(ctx context.Context, orderID string) error
}

// Shipping is the fulfillment system.
type Shipping interface {
	CreateShipment(ctx context.Context, orderID, customerID string) error
	CancelShipment(ctx context.Context, orderID string) error
}

// Notifier delivers customer notifications. Delivery cannot be undone.
type Notifier interface {
	SendConfirmation(ctx context.Context, orderID, customerID string) error
}

// Collaborators bundles the external systems the checkout steps call.
type Collaborators struct {
	Orders    OrderBook
	Inventory Inventory
	Payments  Payments
	Shipping  Shipping
	Notifier  Notifier
}
