package domain

import "time"

// OrderStatus represents the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusEnRoute        OrderStatus = "EN_ROUTE"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusReturning      OrderStatus = "RETURNING"
	OrderStatusCanceled       OrderStatus = "CANCELED"
	OrderStatusFailed         OrderStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled || s == OrderStatusFailed
}

// PaymentStatus represents the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCanceled   PaymentStatus = "CANCELED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Payer identifies which party pays for the order.
type Payer string

const (
	PayerSender   Payer = "SENDER"
	PayerReceiver Payer = "RECEIVER"
)

// PaymentMethod represents how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "CARD"
	PaymentMethodWallet         PaymentMethod = "WALLET"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// IsDeferred reports whether payment is collected at delivery rather than
// up front. Deferred orders may be confirmed while payment is still pending.
func (m PaymentMethod) IsDeferred() bool {
	return m == PaymentMethodCashOnDelivery
}

// StatusChange is one entry of an order's append-only status history.
type StatusChange struct {
	Status     OrderStatus
	OccurredAt time.Time
}

// Order represents a delivery order in the system.
type Order struct {
	ID               string
	CustomerID       string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	Payer            Payer
	PaymentMethod    PaymentMethod
	PickupLat        float64
	PickupLng        float64
	DropoffLat       float64
	DropoffLng       float64
	DistanceKm       float64
	DurationMin      float64
	LifterCount      int
	TotalCost        float64
	DriverShare      float64
	ServiceFeePct    float64
	VehicleType      VehicleType
	ServiceCategory  ServiceCategory
	AssignedDriverID string
	PickUpDate       time.Time
	CompletionOTP    string
	AccessToken      string
	IsViewed         bool
	ViewedAt         time.Time
	StatusHistory    []StatusChange
	CreatedAt        time.Time
}
