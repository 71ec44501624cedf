package repository

import "context"

// Repos bundles the repositories bound to a single transaction.
type Repos struct {
	Orders        OrderRepository
	Drivers       DriverRepository
	Cancellations CancellationRepository
}

// TxRunner runs fn against repositories bound to one database transaction.
// An error from fn rolls the whole transaction back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
