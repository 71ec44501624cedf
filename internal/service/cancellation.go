package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// CancellationService runs the driver-initiated cancellation workflow,
// independent of the main order lifecycle until a request is accepted.
type CancellationService struct {
	tx            repository.TxRunner
	cancelRepo    repository.CancellationRepository
	orderRepo     repository.OrderRepository
	driverRepo    repository.DriverRepository
	dispatch      *DispatchService
	lockStore     redis.LockStoreInterface
	notifications *NotificationService
	orderLockTTL  time.Duration
	logger        *zap.Logger
}

// NewCancellationService creates a new CancellationService.
func NewCancellationService(
	tx repository.TxRunner,
	cancelRepo repository.CancellationRepository,
	orderRepo repository.OrderRepository,
	driverRepo repository.DriverRepository,
	dispatch *DispatchService,
	lockStore redis.LockStoreInterface,
	notifications *NotificationService,
	orderLockTTL time.Duration,
	logger *zap.Logger,
) *CancellationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CancellationService{
		tx:            tx,
		cancelRepo:    cancelRepo,
		orderRepo:     orderRepo,
		driverRepo:    driverRepo,
		dispatch:      dispatch,
		lockStore:     lockStore,
		notifications: notifications,
		orderLockTTL:  orderLockTTL,
		logger:        logger,
	}
}

// Request creates a PENDING cancellation request. Several drivers may hold
// independent requests for the same order at the same time.
func (s *CancellationService) Request(ctx context.Context, orderID, driverID, reason string) (*domain.CancellationRequest, error) {
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
	if order.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}

	if _, err := s.driverRepo.GetByID(ctx, driverID); err != nil {
		return nil, err
	}

	req := &domain.CancellationRequest{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		DriverID:  driverID,
		Status:    domain.CancellationStatusPending,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	if err := s.cancelRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("cancellation requested",
		zap.String("order_id", orderID),
		zap.String("driver_id", driverID),
	)

	return req, nil
}

// ResolveRequest contains the parameters for resolving a cancellation request.
type ResolveRequest struct {
	RequestID string
	Decision  domain.CancellationStatus
	// Disposition is the order status after an accepted release: CONFIRMED
	// to re-enter the dispatch pool, CANCELED to stop. Ignored on rejection.
	Disposition domain.OrderStatus
}

// Resolve moves the request to ACCEPTED or REJECTED. Accepting releases the
// requesting driver's assignment (when they hold it), rejects every other
// PENDING request for the order, and moves the order to the disposition.
// An accepted release back to CONFIRMED starts a fresh broadcast cycle from
// an empty notified set.
func (s *CancellationService) Resolve(ctx context.Context, req ResolveRequest) (*domain.CancellationRequest, error) {
	if req.RequestID == "" {
		return nil, ErrInvalidRequestID
	}

	request, err := s.cancelRepo.GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if request.Status != domain.CancellationStatusPending {
		return nil, ErrRequestAlreadyResolved
	}

	switch req.Decision {
	case domain.CancellationStatusRejected:
		return s.reject(ctx, request)
	case domain.CancellationStatusAccepted:
		return s.accept(ctx, request, req.Disposition)
	default:
		return nil, ErrInvalidDecision
	}
}

func (s *CancellationService) reject(ctx context.Context, request *domain.CancellationRequest) (*domain.CancellationRequest, error) {
	now := time.Now()

	resolved, err := s.cancelRepo.Resolve(ctx, request.ID, domain.CancellationStatusRejected, now)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, ErrRequestAlreadyResolved
	}

	request.Status = domain.CancellationStatusRejected
	request.ResolvedAt = now

	s.notifyDecision(ctx, request)

	return request, nil
}

func (s *CancellationService) accept(ctx context.Context, request *domain.CancellationRequest, disposition domain.OrderStatus) (*domain.CancellationRequest, error) {
	if disposition == "" {
		disposition = domain.OrderStatusConfirmed
	}
	if disposition != domain.OrderStatusConfirmed && disposition != domain.OrderStatusCanceled {
		return nil, ErrInvalidDisposition
	}

	// Serialize against concurrent acceptance of a new broadcast for the
	// same order.
	locked, err := s.lockStore.AcquireOrderLock(ctx, request.OrderID, s.orderLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrOrderBusy
	}
	defer func() {
		_ = s.lockStore.ReleaseOrderLock(ctx, request.OrderID)
	}()

	now := time.Now()
	releasedAssignment := false

	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		resolved, err := r.Cancellations.Resolve(ctx, request.ID, domain.CancellationStatusAccepted, now)
		if err != nil {
			return err
		}
		if !resolved {
			return ErrRequestAlreadyResolved
		}

		// Only one acceptance stands per assignment epoch.
		if err := r.Cancellations.RejectOtherPending(ctx, request.OrderID, request.ID, now); err != nil {
			return err
		}

		order, err := r.Orders.GetByID(ctx, request.OrderID)
		if err != nil {
			return err
		}

		releasedAssignment = order.AssignedDriverID == request.DriverID
		if !releasedAssignment {
			return nil
		}

		order.AssignedDriverID = ""
		if _, err := applyOrderTransition(order, disposition, now); err != nil {
			return err
		}
		if err := r.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := r.Orders.AppendHistory(ctx, order.ID, order.StatusHistory[len(order.StatusHistory)-1]); err != nil {
			return err
		}
		return r.Drivers.UpdateStatus(ctx, request.DriverID, domain.DriverStatusActive)
	})
	if err != nil {
		return nil, err
	}

	request.Status = domain.CancellationStatusAccepted
	request.ResolvedAt = now

	if releasedAssignment {
		// Pool exit (and possible re-entry) resets the broadcast cycle.
		if clearErr := s.dispatch.ReleaseFromPool(ctx, request.OrderID); clearErr != nil {
			s.logger.Warn("failed to clear notified set", zap.String("order_id", request.OrderID), zap.Error(clearErr))
		}

		if disposition == domain.OrderStatusConfirmed {
			if _, berr := s.dispatch.Broadcast(ctx, request.OrderID); berr != nil {
				s.logger.Warn("redispatch broadcast failed", zap.String("order_id", request.OrderID), zap.Error(berr))
			}
		}
	}

	s.logger.Info("cancellation accepted",
		zap.String("order_id", request.OrderID),
		zap.String("driver_id", request.DriverID),
		zap.String("disposition", string(disposition)),
		zap.Bool("released_assignment", releasedAssignment),
	)

	s.notifyDecision(ctx, request)

	return request, nil
}

// RequestsForOrder lists all cancellation requests for an order.
func (s *CancellationService) RequestsForOrder(ctx context.Context, orderID string) ([]*domain.CancellationRequest, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.cancelRepo.GetByOrderID(ctx, orderID)
}

func (s *CancellationService) notifyDecision(ctx context.Context, request *domain.CancellationRequest) {
	driver, err := s.driverRepo.GetByID(ctx, request.DriverID)
	if err != nil {
		return
	}
	_ = s.notifications.SendCancellationDecision(ctx, driver, request)
}
