package service

import "errors"

var (
	// ErrInvalidTransition is returned for an illegal order status edge.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrInvalidPaymentTransition is returned for an illegal payment status edge.
	ErrInvalidPaymentTransition = errors.New("invalid payment transition")

	// ErrInvalidDriverTransition is returned for an illegal driver status edge.
	ErrInvalidDriverTransition = errors.New("invalid driver status transition")

	// ErrAlreadyAssigned is returned to every accept caller that lost the
	// acceptance race. The caller should release the driver back to Active.
	ErrAlreadyAssigned = errors.New("order already assigned")

	// ErrOrderNotDispatchable is returned when an order is not in the
	// dispatch pool (not confirmed, or already left the pool).
	ErrOrderNotDispatchable = errors.New("order not in dispatch pool")

	// ErrOrderBusy is returned when the per-order critical section is held
	// by a concurrent operation.
	ErrOrderBusy = errors.New("order is being processed")

	// ErrRequestAlreadyResolved is returned when resolving a cancellation
	// request that is no longer PENDING.
	ErrRequestAlreadyResolved = errors.New("cancellation request already resolved")

	// ErrInvalidCostInput is returned for negative distance or lifter count.
	ErrInvalidCostInput = errors.New("invalid cost input")

	// ErrPaymentRequired is returned when confirming an order whose payment
	// is still pending and whose payment method is not deferred.
	ErrPaymentRequired = errors.New("payment not completed")

	// ErrDistanceProviderUnavailable is returned when the distance provider
	// cannot be reached. Order creation must not proceed with a fabricated
	// distance.
	ErrDistanceProviderUnavailable = errors.New("distance provider unavailable")

	// ErrNoRouteFound is returned when no route exists between the points.
	ErrNoRouteFound = errors.New("no route found")

	// ErrInvalidOTP is returned when delivery completion is attempted with
	// the wrong one-time code.
	ErrInvalidOTP = errors.New("invalid completion code")

	// ErrDriverNotAssignedToOrder is returned when a driver acts on an
	// order assigned to someone else.
	ErrDriverNotAssignedToOrder = errors.New("driver not assigned to this order")

	// ErrOrderTerminal is returned when acting on an order in a terminal state.
	ErrOrderTerminal = errors.New("order is in a terminal state")

	// ErrDriverNotAvailable is returned when a driver who is not Active
	// tries to accept an order.
	ErrDriverNotAvailable = errors.New("driver not available")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidRequestID is returned when cancellation request ID is empty.
	ErrInvalidRequestID = errors.New("invalid cancellation request id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are invalid.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidPaymentMethod is returned when payment method is unknown.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidPayer is returned when payer is neither SENDER nor RECEIVER.
	ErrInvalidPayer = errors.New("invalid payer")

	// ErrInvalidDisposition is returned when a cancellation acceptance names
	// a disposition other than CONFIRMED or CANCELED.
	ErrInvalidDisposition = errors.New("invalid disposition")

	// ErrInvalidDecision is returned when a cancellation resolution names a
	// decision other than ACCEPTED or REJECTED.
	ErrInvalidDecision = errors.New("invalid decision")
)
