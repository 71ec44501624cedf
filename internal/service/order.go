package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderService owns the order fulfillment lifecycle.
type OrderService struct {
	tx            repository.TxRunner
	orderRepo     repository.OrderRepository
	dispatch      *DispatchService
	estimator     *CostEstimator
	distance      DistanceProvider
	defaultFeePct float64
	logger        *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	tx repository.TxRunner,
	orderRepo repository.OrderRepository,
	dispatch *DispatchService,
	estimator *CostEstimator,
	distance DistanceProvider,
	defaultFeePct float64,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		tx:            tx,
		orderRepo:     orderRepo,
		dispatch:      dispatch,
		estimator:     estimator,
		distance:      distance,
		defaultFeePct: defaultFeePct,
		logger:        logger,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	CustomerID      string
	PickupLat       float64
	PickupLng       float64
	DropoffLat      float64
	DropoffLng      float64
	LifterCount     int
	Payer           domain.Payer
	PaymentMethod   domain.PaymentMethod
	VehicleType     domain.VehicleType
	ServiceCategory domain.ServiceCategory
	PickUpDate      time.Time
}

// CreateOrderResponse contains the result of creating an order.
type CreateOrderResponse struct {
	Order     *domain.Order
	Broadcast *BroadcastSummary // non-nil when the order entered the pool immediately
}

// CreateOrder computes distance and cost, persists the order, and, for
// deferred payment methods, confirms it straight into the dispatch pool.
// Distance-provider failure aborts creation: cost is never computed from a
// fabricated distance.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	estimate, err := s.distance.Estimate(ctx,
		Coordinates{Lat: req.PickupLat, Lng: req.PickupLng},
		Coordinates{Lat: req.DropoffLat, Lng: req.DropoffLng},
	)
	if err != nil {
		return nil, err
	}

	quote, err := s.estimator.Estimate(estimate.DistanceKm, req.LifterCount, s.defaultFeePct)
	if err != nil {
		return nil, err
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		Status:          domain.OrderStatusPendingPayment,
		PaymentStatus:   domain.PaymentStatusPending,
		Payer:           req.Payer,
		PaymentMethod:   req.PaymentMethod,
		PickupLat:       req.PickupLat,
		PickupLng:       req.PickupLng,
		DropoffLat:      req.DropoffLat,
		DropoffLng:      req.DropoffLng,
		DistanceKm:      estimate.DistanceKm,
		DurationMin:     estimate.DurationMin,
		LifterCount:     req.LifterCount,
		TotalCost:       quote.TotalCost,
		DriverShare:     quote.DriverShare,
		ServiceFeePct:   quote.ServiceFeePct,
		VehicleType:     req.VehicleType,
		ServiceCategory: req.ServiceCategory,
		PickUpDate:      req.PickUpDate,
		CompletionOTP:   otp,
		AccessToken:     uuid.New().String(),
		CreatedAt:       now,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPendingPayment, OccurredAt: now},
		},
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	resp := &CreateOrderResponse{Order: order}

	// Cash-on-delivery orders skip the payment gate and go straight into
	// the dispatch pool.
	if req.PaymentMethod.IsDeferred() {
		confirmed, err := s.Transition(ctx, order.ID, domain.OrderStatusConfirmed)
		if err != nil {
			return nil, err
		}
		resp.Order = confirmed

		summary, err := s.dispatch.Broadcast(ctx, order.ID)
		if err != nil {
			// The order is confirmed and poolable; a failed first pass is
			// recoverable by a later broadcast.
			s.logger.Warn("initial broadcast failed", zap.String("order_id", order.ID), zap.Error(err))
		} else {
			resp.Broadcast = summary
		}
	}

	return resp, nil
}

// Transition moves the order along the fulfillment state machine and keeps
// the dispatch pool in sync: entering CONFIRMED enrolls the order, leaving
// the pool discards its notified set. Re-applying the current status is an
// idempotent success.
func (s *OrderService) Transition(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if target == domain.OrderStatusConfirmed && order.Status == domain.OrderStatusPendingPayment {
		if order.PaymentStatus != domain.PaymentStatusSuccessful && !order.PaymentMethod.IsDeferred() {
			return nil, ErrPaymentRequired
		}
	}

	wasInPool := order.Status == domain.OrderStatusConfirmed
	now := time.Now()

	changed, err := applyOrderTransition(order, target, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}
	if err := s.orderRepo.AppendHistory(ctx, orderID, order.StatusHistory[len(order.StatusHistory)-1]); err != nil {
		return nil, err
	}

	// Pool exit without an assignment (canceled, failed while confirmed)
	// ends the broadcast cycle.
	if wasInPool && target != domain.OrderStatusPreparing {
		if err := s.dispatch.ReleaseFromPool(ctx, orderID); err != nil {
			s.logger.Warn("failed to clear notified set", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.logger.Info("order transition",
		zap.String("order_id", orderID),
		zap.String("status", string(target)),
	)

	return order, nil
}

// CancelOrder cancels an order on behalf of the customer. The cancel
// transition, the cleared assignment, and the released driver commit as one
// transaction: the driver is never left ON_DUTY on a canceled order.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	wasInPool := order.Status == domain.OrderStatusConfirmed
	releasedDriver := order.AssignedDriverID
	now := time.Now()

	changed, err := applyOrderTransition(order, domain.OrderStatusCanceled, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	order.AssignedDriverID = ""

	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := r.Orders.AppendHistory(ctx, orderID, order.StatusHistory[len(order.StatusHistory)-1]); err != nil {
			return err
		}
		if releasedDriver != "" {
			return r.Drivers.UpdateStatus(ctx, releasedDriver, domain.DriverStatusActive)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wasInPool || releasedDriver != "" {
		if err := s.dispatch.ReleaseFromPool(ctx, orderID); err != nil {
			s.logger.Warn("failed to clear notified set", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	s.logger.Info("order canceled",
		zap.String("order_id", orderID),
		zap.String("released_driver_id", releasedDriver),
	)

	return order, nil
}

// StartDelivery moves an assigned order from PREPARING to EN_ROUTE. Only
// the assigned driver may start the trip.
func (s *OrderService) StartDelivery(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AssignedDriverID != driverID {
		return nil, ErrDriverNotAssignedToOrder
	}

	return s.Transition(ctx, orderID, domain.OrderStatusEnRoute)
}

// CompleteDelivery finishes the order: the assigned driver presents the
// customer's completion code, the order becomes DELIVERED, the driver
// returns to Active and is credited their share, all in one transaction.
func (s *OrderService) CompleteDelivery(ctx context.Context, orderID, driverID, otp string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.AssignedDriverID != driverID {
		return nil, ErrDriverNotAssignedToOrder
	}
	if order.CompletionOTP != otp {
		return nil, ErrInvalidOTP
	}

	now := time.Now()
	if _, err := applyOrderTransition(order, domain.OrderStatusDelivered, now); err != nil {
		return nil, err
	}

	// Cash on delivery settles at handover.
	if order.PaymentMethod.IsDeferred() && order.PaymentStatus == domain.PaymentStatusPending {
		if _, err := applyPaymentTransition(order, domain.PaymentStatusSuccessful); err != nil {
			return nil, err
		}
	}

	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := r.Orders.AppendHistory(ctx, orderID, order.StatusHistory[len(order.StatusHistory)-1]); err != nil {
			return err
		}
		if err := r.Drivers.UpdateStatus(ctx, driverID, domain.DriverStatusActive); err != nil {
			return err
		}
		return r.Drivers.CreditIncome(ctx, driverID, order.DriverShare)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery completed",
		zap.String("order_id", orderID),
		zap.String("driver_id", driverID),
		zap.Float64("driver_share", order.DriverShare),
	)

	return order, nil
}

// MarkViewed records the first time the customer opens the order.
func (s *OrderService) MarkViewed(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidOrderID
	}
	return s.orderRepo.MarkViewed(ctx, orderID, time.Now())
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *OrderService) validateCreateRequest(req CreateOrderRequest) error {
	if req.CustomerID == "" {
		return ErrInvalidCustomerID
	}
	if !isValidLatitude(req.PickupLat) || !isValidLongitude(req.PickupLng) {
		return ErrInvalidPickupLocation
	}
	if !isValidLatitude(req.DropoffLat) || !isValidLongitude(req.DropoffLng) {
		return ErrInvalidDropoffLocation
	}
	if req.LifterCount < 0 {
		return ErrInvalidCostInput
	}
	if req.Payer != domain.PayerSender && req.Payer != domain.PayerReceiver {
		return ErrInvalidPayer
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCard, domain.PaymentMethodWallet, domain.PaymentMethodCashOnDelivery:
	default:
		return ErrInvalidPaymentMethod
	}
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// generateOTP returns a six-digit completion code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
