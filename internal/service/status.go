package service

import (
	"fmt"
	"time"

	"dispatch/internal/domain"
)

// orderTransitions is the adjacency table for order fulfillment states.
// The forward chain is pending_payment → confirmed → preparing → en_route →
// delivered; canceled, failed and returning branch off any non-terminal
// state; confirmed is re-reachable from assigned states so an order whose
// driver is released can re-enter the dispatch pool.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPendingPayment: {
		domain.OrderStatusConfirmed,
		domain.OrderStatusCanceled,
		domain.OrderStatusFailed,
		domain.OrderStatusReturning,
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusPreparing,
		domain.OrderStatusCanceled,
		domain.OrderStatusFailed,
		domain.OrderStatusReturning,
	},
	domain.OrderStatusPreparing: {
		domain.OrderStatusEnRoute,
		domain.OrderStatusConfirmed,
		domain.OrderStatusCanceled,
		domain.OrderStatusFailed,
		domain.OrderStatusReturning,
	},
	domain.OrderStatusEnRoute: {
		domain.OrderStatusDelivered,
		domain.OrderStatusConfirmed,
		domain.OrderStatusCanceled,
		domain.OrderStatusFailed,
		domain.OrderStatusReturning,
	},
	domain.OrderStatusReturning: {
		domain.OrderStatusConfirmed,
		domain.OrderStatusCanceled,
		domain.OrderStatusFailed,
	},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusCanceled:  {},
	domain.OrderStatusFailed:    {},
}

// paymentTransitions is the adjacency table for payment states.
var paymentTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending: {
		domain.PaymentStatusSuccessful,
		domain.PaymentStatusFailed,
		domain.PaymentStatusCanceled,
	},
	domain.PaymentStatusSuccessful: {domain.PaymentStatusRefunded},
	domain.PaymentStatusFailed:     {},
	domain.PaymentStatusCanceled:   {},
	domain.PaymentStatusRefunded:   {},
}

// driverTransitions is the adjacency table for driver availability.
// Disconnected is reachable from every state (liveness loss) and recovers
// to Offline or Active on reconnect.
var driverTransitions = map[domain.DriverStatus][]domain.DriverStatus{
	domain.DriverStatusOffline: {
		domain.DriverStatusActive,
		domain.DriverStatusDisconnected,
	},
	domain.DriverStatusActive: {
		domain.DriverStatusOffline,
		domain.DriverStatusOnDuty,
		domain.DriverStatusDisconnected,
	},
	domain.DriverStatusOnDuty: {
		domain.DriverStatusActive,
		domain.DriverStatusDisconnected,
	},
	domain.DriverStatusDisconnected: {
		domain.DriverStatusOffline,
		domain.DriverStatusActive,
	},
}

func canTransitionOrder(from, to domain.OrderStatus) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// applyOrderTransition validates and applies a fulfillment edge in memory.
// Re-applying the current status is an idempotent success that appends no
// duplicate history entry; the returned bool reports whether state changed.
func applyOrderTransition(order *domain.Order, target domain.OrderStatus, at time.Time) (bool, error) {
	if order.Status == target {
		return false, nil
	}

	if !canTransitionOrder(order.Status, target) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	order.Status = target
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:     target,
		OccurredAt: at,
	})

	return true, nil
}

func canTransitionPayment(from, to domain.PaymentStatus) bool {
	for _, t := range paymentTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// applyPaymentTransition validates and applies a payment edge in memory.
// Idempotent on re-applying the current status.
func applyPaymentTransition(order *domain.Order, target domain.PaymentStatus) (bool, error) {
	if order.PaymentStatus == target {
		return false, nil
	}

	if !canTransitionPayment(order.PaymentStatus, target) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, order.PaymentStatus, target)
	}

	order.PaymentStatus = target
	return true, nil
}

func canTransitionDriver(from, to domain.DriverStatus) bool {
	for _, t := range driverTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
