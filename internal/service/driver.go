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

// DriverService manages driver registration, availability transitions and
// connection liveness.
type DriverService struct {
	driverRepo   repository.DriverRepository
	cacheStore   *redis.CacheStore
	heartbeatTTL time.Duration
	logger       *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	driverRepo repository.DriverRepository,
	cacheStore *redis.CacheStore,
	heartbeatTTL time.Duration,
	logger *zap.Logger,
) *DriverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{
		driverRepo:   driverRepo,
		cacheStore:   cacheStore,
		heartbeatTTL: heartbeatTTL,
		logger:       logger,
	}
}

// RegisterDriverRequest contains the parameters for registering a driver.
type RegisterDriverRequest struct {
	Name            string
	Phone           string
	VehicleType     domain.VehicleType
	ServiceCategory domain.ServiceCategory
	FCMToken        string
}

// Register creates a new driver. Drivers start OFFLINE and must go online
// explicitly before they receive job offers.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, ErrInvalidDriverID
	}

	driver := &domain.Driver{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Phone:           req.Phone,
		Status:          domain.DriverStatusOffline,
		VehicleType:     req.VehicleType,
		ServiceCategory: req.ServiceCategory,
		FCMToken:        req.FCMToken,
		CreatedAt:       time.Now(),
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	s.logger.Info("driver registered",
		zap.String("driver_id", driver.ID),
		zap.String("service_category", string(driver.ServiceCategory)),
	)

	return driver, nil
}

// SetStatus moves a driver between availability states, keeping the
// per-category availability set in sync. Re-declaring the current status is
// a no-op.
func (s *DriverService) SetStatus(ctx context.Context, driverID string, target domain.DriverStatus) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if driver.Status == target {
		return driver, nil
	}
	if !canTransitionDriver(driver.Status, target) {
		return nil, ErrInvalidDriverTransition
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, target); err != nil {
		return nil, err
	}
	driver.Status = target

	s.syncAvailability(ctx, driver)

	s.logger.Info("driver status changed",
		zap.String("driver_id", driverID),
		zap.String("status", string(target)),
	)

	return driver, nil
}

// Heartbeat refreshes the driver's liveness key. A driver marked
// DISCONNECTED by the liveness sweep recovers to OFFLINE on its next
// heartbeat and must go ACTIVE again explicitly.
func (s *DriverService) Heartbeat(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := s.cacheStore.RecordHeartbeat(ctx, driverID, s.heartbeatTTL); err != nil {
		return err
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.Status == domain.DriverStatusDisconnected {
		if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
			return err
		}
		s.logger.Info("driver reconnected", zap.String("driver_id", driverID))
	}

	return nil
}

// SweepStale marks every ACTIVE driver whose liveness key has expired as
// DISCONNECTED and drops them from the availability set. ON_DUTY drivers
// keep their assignment; losing a heartbeat mid-delivery is not grounds for
// reassignment.
func (s *DriverService) SweepStale(ctx context.Context) (int, error) {
	categories := []domain.ServiceCategory{
		domain.ServiceCategoryDelivery,
		domain.ServiceCategoryMoving,
	}

	swept := 0
	for _, category := range categories {
		ids, err := s.cacheStore.GetAvailableDrivers(ctx, string(category))
		if err != nil {
			return swept, err
		}

		for _, id := range ids {
			alive, err := s.cacheStore.IsAlive(ctx, id)
			if err != nil {
				return swept, err
			}
			if alive {
				continue
			}

			if err := s.driverRepo.UpdateStatus(ctx, id, domain.DriverStatusDisconnected); err != nil {
				s.logger.Warn("failed to mark driver disconnected", zap.String("driver_id", id), zap.Error(err))
				continue
			}
			if err := s.cacheStore.RemoveAvailableDriver(ctx, string(category), id); err != nil {
				s.logger.Warn("failed to remove stale driver from pool", zap.String("driver_id", id), zap.Error(err))
			}
			_ = s.cacheStore.InvalidateDriver(ctx, id)

			s.logger.Info("driver disconnected", zap.String("driver_id", id))
			swept++
		}
	}

	return swept, nil
}

// UpdateFCMToken replaces the driver's push token.
func (s *DriverService) UpdateFCMToken(ctx context.Context, driverID, token string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.driverRepo.UpdateFCMToken(ctx, driverID, token); err != nil {
		return err
	}
	return s.cacheStore.InvalidateDriver(ctx, driverID)
}

// GetDriver returns a driver, preferring the cache.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if cached, err := s.cacheStore.GetDriver(ctx, driverID); err == nil && cached != nil {
		return &domain.Driver{
			ID:              cached.ID,
			Name:            cached.Name,
			Phone:           cached.Phone,
			Status:          domain.DriverStatus(cached.Status),
			VehicleType:     domain.VehicleType(cached.VehicleType),
			ServiceCategory: domain.ServiceCategory(cached.ServiceCategory),
			FCMToken:        cached.FCMToken,
		}, nil
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	_ = s.cacheStore.SetDriver(ctx, &redis.CachedDriver{
		ID:              driver.ID,
		Name:            driver.Name,
		Phone:           driver.Phone,
		Status:          string(driver.Status),
		VehicleType:     string(driver.VehicleType),
		ServiceCategory: string(driver.ServiceCategory),
		FCMToken:        driver.FCMToken,
	})

	return driver, nil
}

// syncAvailability keeps the availability set and entity cache consistent
// with the driver's new status.
func (s *DriverService) syncAvailability(ctx context.Context, driver *domain.Driver) {
	category := string(driver.ServiceCategory)

	switch driver.Status {
	case domain.DriverStatusActive:
		if err := s.cacheStore.AddAvailableDriver(ctx, category, driver.ID); err != nil {
			s.logger.Warn("failed to add driver to pool", zap.String("driver_id", driver.ID), zap.Error(err))
		}
		if err := s.cacheStore.RecordHeartbeat(ctx, driver.ID, s.heartbeatTTL); err != nil {
			s.logger.Warn("failed to record heartbeat", zap.String("driver_id", driver.ID), zap.Error(err))
		}
	default:
		if err := s.cacheStore.RemoveAvailableDriver(ctx, category, driver.ID); err != nil {
			s.logger.Warn("failed to remove driver from pool", zap.String("driver_id", driver.ID), zap.Error(err))
		}
	}

	if err := s.cacheStore.InvalidateDriver(ctx, driver.ID); err != nil {
		s.logger.Warn("failed to invalidate driver cache", zap.String("driver_id", driver.ID), zap.Error(err))
	}
}
