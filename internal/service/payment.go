package service

import (
	"context"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// PaymentService applies payment-state transitions and drives the order
// lifecycle off payment outcomes.
type PaymentService struct {
	orderRepo repository.OrderRepository
	orders    *OrderService
	dispatch  *DispatchService
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	orders *OrderService,
	dispatch *DispatchService,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		orderRepo: orderRepo,
		orders:    orders,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// PaymentEventResult contains the outcome of applying a payment event.
type PaymentEventResult struct {
	Order     *domain.Order
	Broadcast *BroadcastSummary // non-nil when the event confirmed the order
}

// HandlePaymentEvent applies a payment outcome reported by the payment
// provider. A successful payment confirms a pending order into the
// dispatch pool and triggers the first broadcast pass. Re-reporting the
// current payment status is an idempotent success.
func (s *PaymentService) HandlePaymentEvent(ctx context.Context, orderID string, target domain.PaymentStatus) (*PaymentEventResult, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	changed, err := applyPaymentTransition(order, target)
	if err != nil {
		return nil, err
	}

	result := &PaymentEventResult{Order: order}
	if !changed {
		return result, nil
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("payment status updated",
		zap.String("order_id", orderID),
		zap.String("payment_status", string(target)),
	)

	if target == domain.PaymentStatusSuccessful && order.Status == domain.OrderStatusPendingPayment {
		confirmed, err := s.orders.Transition(ctx, orderID, domain.OrderStatusConfirmed)
		if err != nil {
			return nil, err
		}
		result.Order = confirmed

		summary, err := s.dispatch.Broadcast(ctx, orderID)
		if err != nil {
			s.logger.Warn("post-confirmation broadcast failed", zap.String("order_id", orderID), zap.Error(err))
		} else {
			result.Broadcast = summary
		}
	}

	return result, nil
}
