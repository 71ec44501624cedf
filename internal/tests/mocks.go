package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"firebase.google.com/go/v4/messaging"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	// Counters for verification
	CreateCallCount       int32
	UpdateCallCount       int32
	AssignDriverCallCount int32

	// Error injection
	CreateError       error
	UpdateError       error
	AssignDriverError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *order
	copy.StatusHistory = append([]domain.StatusChange(nil), order.StatusHistory...)
	return &copy, nil
}

func (m *MockOrderRepository) GetByAccessToken(ctx context.Context, token string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.AccessToken == token {
			copy := *o
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockOrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		copy := *o
		result = append(result, &copy)
	}
	return result, nil
}

// Update writes the order row only; history rows live in their own table
// and change through AppendHistory, like the SQL implementation.
func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *order
	updated.StatusHistory = existing.StatusHistory
	m.orders[order.ID] = &updated
	return nil
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, orderID string, change domain.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	order.StatusHistory = append(order.StatusHistory, change)
	return nil
}

// AssignDriver performs the same compare-and-set the SQL implementation
// does: the claim succeeds only while the order is CONFIRMED and unassigned.
func (m *MockOrderRepository) AssignDriver(ctx context.Context, orderID, driverID string, at time.Time) (bool, error) {
	atomic.AddInt32(&m.AssignDriverCallCount, 1)
	if m.AssignDriverError != nil {
		return false, m.AssignDriverError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusConfirmed || order.AssignedDriverID != "" {
		return false, nil
	}
	order.Status = domain.OrderStatusPreparing
	order.AssignedDriverID = driverID
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:     domain.OrderStatusPreparing,
		OccurredAt: at,
	})
	return true, nil
}

func (m *MockOrderRepository) MarkViewed(ctx context.Context, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if !order.IsViewed {
		order.IsViewed = true
		order.ViewedAt = at
	}
	return nil
}

// GetOrder returns the live order for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32
	CreditIncomeCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) GetEligible(ctx context.Context, category domain.ServiceCategory, vehicleType domain.VehicleType) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Driver
	for _, d := range m.drivers {
		if d.Status != domain.DriverStatusActive {
			continue
		}
		if d.ServiceCategory != category {
			continue
		}
		if vehicleType != "" && d.VehicleType != vehicleType {
			continue
		}
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

func (m *MockDriverRepository) UpdateFCMToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.FCMToken = token
	return nil
}

func (m *MockDriverRepository) CreditIncome(ctx context.Context, id string, amount float64) error {
	atomic.AddInt32(&m.CreditIncomeCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.TotalIncome += amount
	driver.Balance += amount
	return nil
}

// GetDriver returns the live driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK CANCELLATION REPOSITORY
// ──────────────────────────────────────────────

// MockCancellationRepository is a mock implementation of CancellationRepository.
type MockCancellationRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.CancellationRequest

	// Counters
	ResolveCallCount int32
}

// NewMockCancellationRepository creates a new mock cancellation repository.
func NewMockCancellationRepository() *MockCancellationRepository {
	return &MockCancellationRepository{
		requests: make(map[string]*domain.CancellationRequest),
	}
}

// AddRequest adds a request to the mock repository.
func (m *MockCancellationRepository) AddRequest(req *domain.CancellationRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

func (m *MockCancellationRepository) Create(ctx context.Context, req *domain.CancellationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *MockCancellationRepository) GetByID(ctx context.Context, id string) (*domain.CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *req
	return &copy, nil
}

func (m *MockCancellationRepository) GetByOrderID(ctx context.Context, orderID string) ([]*domain.CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.CancellationRequest
	for _, r := range m.requests {
		if r.OrderID == orderID {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// Resolve succeeds only while the request is still PENDING, like the SQL
// implementation's guarded UPDATE.
func (m *MockCancellationRepository) Resolve(ctx context.Context, id string, status domain.CancellationStatus, at time.Time) (bool, error) {
	atomic.AddInt32(&m.ResolveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if req.Status != domain.CancellationStatusPending {
		return false, nil
	}
	req.Status = status
	req.ResolvedAt = at
	return true, nil
}

func (m *MockCancellationRepository) RejectOtherPending(ctx context.Context, orderID, exceptID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.OrderID == orderID && r.ID != exceptID && r.Status == domain.CancellationStatusPending {
			r.Status = domain.CancellationStatusRejected
			r.ResolvedAt = at
		}
	}
	return nil
}

// GetRequest returns the live request for test assertions.
func (m *MockCancellationRepository) GetRequest(id string) *domain.CancellationRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[id]
}

// ──────────────────────────────────────────────
// MOCK TX RUNNER
// ──────────────────────────────────────────────

// MockTxRunner satisfies repository.TxRunner by running the function
// directly against the in-memory repositories. Each mock write is
// individually atomic, which is all the transactional paths rely on here.
type MockTxRunner struct {
	Orders        *MockOrderRepository
	Drivers       *MockDriverRepository
	Cancellations *MockCancellationRepository

	// Counters
	WithinTxCallCount int32

	// Error injection
	BeginError error
}

// NewMockTxRunner creates a new mock transaction runner over the given
// repositories.
func NewMockTxRunner(orders *MockOrderRepository, drivers *MockDriverRepository, cancellations *MockCancellationRepository) *MockTxRunner {
	return &MockTxRunner{
		Orders:        orders,
		Drivers:       drivers,
		Cancellations: cancellations,
	}
}

func (m *MockTxRunner) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	atomic.AddInt32(&m.WithinTxCallCount, 1)
	if m.BeginError != nil {
		return m.BeginError
	}
	return fn(repository.Repos{
		Orders:        m.Orders,
		Drivers:       m.Drivers,
		Cancellations: m.Cancellations,
	})
}

// ──────────────────────────────────────────────
// MOCK DISPATCH STORE
// ──────────────────────────────────────────────

// MockDispatchStore is an in-memory notified-set with SADD semantics.
type MockDispatchStore struct {
	mu       sync.Mutex
	notified map[string]map[string]bool

	// Counters
	MarkNotifiedCallCount int32

	// Error injection. MarkNotifiedFailAfter delays the failure until that
	// many calls have gone through; zero fails from the first call.
	MarkNotifiedError     error
	MarkNotifiedFailAfter int32
}

// NewMockDispatchStore creates a new mock dispatch store.
func NewMockDispatchStore() *MockDispatchStore {
	return &MockDispatchStore{
		notified: make(map[string]map[string]bool),
	}
}

// MarkNotified inserts the driver and reports whether this call did the
// insert, mirroring SADD's return value.
func (m *MockDispatchStore) MarkNotified(ctx context.Context, orderID, driverID string) (bool, error) {
	n := atomic.AddInt32(&m.MarkNotifiedCallCount, 1)
	if m.MarkNotifiedError != nil && n > m.MarkNotifiedFailAfter {
		return false, m.MarkNotifiedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.notified[orderID]
	if !ok {
		set = make(map[string]bool)
		m.notified[orderID] = set
	}
	if set[driverID] {
		return false, nil
	}
	set[driverID] = true
	return true, nil
}

func (m *MockDispatchStore) NotifiedDrivers(ctx context.Context, orderID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []string
	for id := range m.notified[orderID] {
		result = append(result, id)
	}
	return result, nil
}

func (m *MockDispatchStore) IsNotified(ctx context.Context, orderID, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notified[orderID][driverID], nil
}

func (m *MockDispatchStore) ClearNotified(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notified, orderID)
	return nil
}

// NotifiedCount returns the size of an order's notified set.
func (m *MockDispatchStore) NotifiedCount(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notified[orderID])
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of the order lock store.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:order:" + orderID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:order:"+orderID)
	return nil
}

// IsLocked checks if an order is locked (for test assertions).
func (m *MockLockStore) IsLocked(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:order:"+orderID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK MESSAGE SENDER
// ──────────────────────────────────────────────

// MockMessageSender records pushed tokens instead of talking to FCM.
type MockMessageSender struct {
	mu     sync.Mutex
	tokens []string

	// Counters
	SendCallCount int32

	// Error injection
	SendError error
}

// NewMockMessageSender creates a new mock message sender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// Send implements service.MessageSender.
func (m *MockMessageSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	return m.RecordSend(message.Token)
}

// RecordSend records one delivery to a token.
func (m *MockMessageSender) RecordSend(token string) (string, error) {
	atomic.AddInt32(&m.SendCallCount, 1)
	if m.SendError != nil {
		return "", m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return "msg-id", nil
}

// SendsTo counts deliveries to a given token.
func (m *MockMessageSender) SendsTo(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.tokens {
		if t == token {
			count++
		}
	}
	return count
}

// TotalSends returns the number of recorded deliveries.
func (m *MockMessageSender) TotalSends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
