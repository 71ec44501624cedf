package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DispatchService fans job offers out to eligible drivers and resolves the
// acceptance race to exactly one winner per order.
type DispatchService struct {
	tx            repository.TxRunner
	orderRepo     repository.OrderRepository
	driverRepo    repository.DriverRepository
	dispatchStore redis.DispatchStoreInterface
	lockStore     redis.LockStoreInterface
	cacheStore    *redis.CacheStore
	notifications *NotificationService
	orderLockTTL  time.Duration
	logger        *zap.Logger
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	tx repository.TxRunner,
	orderRepo repository.OrderRepository,
	driverRepo repository.DriverRepository,
	dispatchStore redis.DispatchStoreInterface,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	notifications *NotificationService,
	orderLockTTL time.Duration,
	logger *zap.Logger,
) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchService{
		tx:            tx,
		orderRepo:     orderRepo,
		driverRepo:    driverRepo,
		dispatchStore: dispatchStore,
		lockStore:     lockStore,
		cacheStore:    cacheStore,
		notifications: notifications,
		orderLockTTL:  orderLockTTL,
		logger:        logger,
	}
}

// BroadcastSummary reports the outcome of one broadcast pass. Individual
// send failures do not fail the pass; they are aggregated here.
type BroadcastSummary struct {
	Eligible int
	Notified int
	Failed   int
	Skipped  int
}

// EligibleDrivers returns Active drivers matching the order's vehicle type
// and service category, excluding drivers already notified this cycle.
func (s *DispatchService) EligibleDrivers(ctx context.Context, order *domain.Order) ([]*domain.Driver, error) {
	drivers, err := s.poolCandidates(ctx, order)
	if err != nil {
		return nil, err
	}

	notified, err := s.dispatchStore.NotifiedDrivers(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(notified))
	for _, id := range notified {
		seen[id] = struct{}{}
	}

	eligible := make([]*domain.Driver, 0, len(drivers))
	for _, d := range drivers {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}

// poolCandidates lists Active drivers for the order, preferring the
// availability set and the cached entities over a database scan. The
// database answers whenever the cache cannot.
func (s *DispatchService) poolCandidates(ctx context.Context, order *domain.Order) ([]*domain.Driver, error) {
	if s.cacheStore == nil {
		return s.driverRepo.GetEligible(ctx, order.ServiceCategory, order.VehicleType)
	}

	ids, err := s.cacheStore.GetAvailableDrivers(ctx, string(order.ServiceCategory))
	if err != nil || len(ids) == 0 {
		return s.driverRepo.GetEligible(ctx, order.ServiceCategory, order.VehicleType)
	}

	cached, _, err := s.cacheStore.GetDriversBatch(ctx, ids)
	if err != nil {
		return s.driverRepo.GetEligible(ctx, order.ServiceCategory, order.VehicleType)
	}

	drivers := make([]*domain.Driver, 0, len(ids))
	for _, id := range ids {
		var driver *domain.Driver
		if c, ok := cached[id]; ok {
			driver = &domain.Driver{
				ID:              c.ID,
				Name:            c.Name,
				Phone:           c.Phone,
				Status:          domain.DriverStatus(c.Status),
				VehicleType:     domain.VehicleType(c.VehicleType),
				ServiceCategory: domain.ServiceCategory(c.ServiceCategory),
				FCMToken:        c.FCMToken,
			}
		} else {
			d, lookupErr := s.driverRepo.GetByID(ctx, id)
			if lookupErr != nil {
				continue
			}
			driver = d
		}
		if driver.Status != domain.DriverStatusActive {
			continue
		}
		if driver.VehicleType != order.VehicleType {
			continue
		}
		drivers = append(drivers, driver)
	}
	return drivers, nil
}

// Broadcast sends a job offer to every eligible driver not yet notified for
// this order. The per-driver SADD is the at-most-once gate: only the caller
// that inserted the membership sends, so concurrent broadcasts for the same
// order never double-deliver. Sends run in parallel; a failed send keeps its
// membership (the driver is not re-notified) and is only counted. A tracker
// error stops the pass early; sends already in flight still finish and are
// reported in the returned summary.
func (s *DispatchService) Broadcast(ctx context.Context, orderID string) (*BroadcastSummary, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != domain.OrderStatusConfirmed || order.AssignedDriverID != "" {
		return nil, ErrOrderNotDispatchable
	}

	eligible, err := s.EligibleDrivers(ctx, order)
	if err != nil {
		return nil, err
	}

	summary := &BroadcastSummary{Eligible: len(eligible)}

	var notifiedCount, failedCount int64
	var wg sync.WaitGroup
	var markErr error

	for _, driver := range eligible {
		added, err := s.dispatchStore.MarkNotified(ctx, order.ID, driver.ID)
		if err != nil {
			markErr = err
			break
		}
		if !added {
			summary.Skipped++
			continue
		}

		wg.Add(1)
		go func(driver *domain.Driver) {
			defer wg.Done()
			if err := s.notifications.SendJobOffer(ctx, driver, order); err != nil {
				atomic.AddInt64(&failedCount, 1)
				return
			}
			atomic.AddInt64(&notifiedCount, 1)
		}(driver)
	}

	wg.Wait()

	summary.Notified = int(notifiedCount)
	summary.Failed = int(failedCount)

	if markErr != nil {
		return summary, markErr
	}

	s.logger.Info("broadcast complete",
		zap.String("order_id", order.ID),
		zap.Int("eligible", summary.Eligible),
		zap.Int("notified", summary.Notified),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

// Accept claims the order for the driver. Exactly one concurrent caller
// succeeds; every other caller gets ErrAlreadyAssigned so it can release
// its driver back to Active. The winner's order moves to PREPARING and the
// driver to ON_DUTY in one transaction.
func (s *DispatchService) Accept(ctx context.Context, orderID, driverID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Status != domain.DriverStatusActive {
		return nil, ErrDriverNotAvailable
	}

	// Per-order critical section: serializes acceptance against concurrent
	// cancellation resolution. The SQL conditional update below is still
	// the authority on who won.
	locked, err := s.acquireOrderLock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, s.classifyAcceptFailure(ctx, orderID)
	}
	defer func() {
		_ = s.lockStore.ReleaseOrderLock(ctx, orderID)
	}()

	now := time.Now()

	won := false
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		var txErr error
		won, txErr = r.Orders.AssignDriver(ctx, orderID, driverID, now)
		if txErr != nil {
			return txErr
		}
		if !won {
			return nil
		}
		return r.Drivers.UpdateStatus(ctx, driverID, domain.DriverStatusOnDuty)
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.classifyAcceptFailure(ctx, orderID)
	}

	// Assignment ends the broadcast cycle.
	if clearErr := s.dispatchStore.ClearNotified(ctx, orderID); clearErr != nil {
		s.logger.Warn("failed to clear notified set", zap.String("order_id", orderID), zap.Error(clearErr))
	}
	s.markDriverBusy(ctx, driver)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	_ = s.notifications.SendAssignmentConfirmed(ctx, driver, order)

	s.logger.Info("order assigned",
		zap.String("order_id", orderID),
		zap.String("driver_id", driverID),
	)

	return order, nil
}

// A lock holder turns around in one short transaction and releases, so a
// blocked accept retries briefly instead of failing on the spot.
const (
	acceptLockAttempts  = 10
	acceptLockRetryWait = 25 * time.Millisecond
)

// acquireOrderLock contends for the per-order lock. A blocked caller waits
// for the holder's outcome: once the winning assignment (or a pool exit)
// becomes readable the caller stops contending and classifies; a freed
// lock lets it try the claim itself.
func (s *DispatchService) acquireOrderLock(ctx context.Context, orderID string) (bool, error) {
	for attempt := 0; ; attempt++ {
		locked, err := s.lockStore.AcquireOrderLock(ctx, orderID, s.orderLockTTL)
		if err != nil || locked {
			return locked, err
		}

		if order, err := s.orderRepo.GetByID(ctx, orderID); err == nil {
			if order.AssignedDriverID != "" || order.Status != domain.OrderStatusConfirmed {
				return false, nil
			}
		}

		if attempt >= acceptLockAttempts {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(acceptLockRetryWait):
		}
	}
}

// ReleaseFromPool discards the order's notified set when the order leaves
// the dispatch pool without an assignment (cancellation, failure).
func (s *DispatchService) ReleaseFromPool(ctx context.Context, orderID string) error {
	return s.dispatchStore.ClearNotified(ctx, orderID)
}

// classifyAcceptFailure distinguishes a lost race from an order that was
// never dispatchable. Losers must see ErrAlreadyAssigned explicitly.
func (s *DispatchService) classifyAcceptFailure(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return ErrOrderBusy
	}

	if order.AssignedDriverID != "" {
		return ErrAlreadyAssigned
	}
	if order.Status != domain.OrderStatusConfirmed {
		return ErrOrderNotDispatchable
	}
	return ErrOrderBusy
}

func (s *DispatchService) markDriverBusy(ctx context.Context, driver *domain.Driver) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.RemoveAvailableDriver(ctx, string(driver.ServiceCategory), driver.ID)
	_ = s.cacheStore.InvalidateDriver(ctx, driver.ID)
}
