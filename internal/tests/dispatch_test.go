package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// newDispatchService wires the dispatch service on mocks.
func newDispatchService(orderRepo *MockOrderRepository, driverRepo *MockDriverRepository, dispatchStore *MockDispatchStore, lockStore *MockLockStore, sender *MockMessageSender) *service.DispatchService {
	txRunner := NewMockTxRunner(orderRepo, driverRepo, NewMockCancellationRepository())
	notifications := service.NewNotificationService(sender, time.Second, nil)
	return service.NewDispatchService(txRunner, orderRepo, driverRepo, dispatchStore, lockStore, nil, notifications, lockTTL, nil)
}

func confirmedOrder(id string) *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:              id,
		CustomerID:      "customer-1",
		Status:          domain.OrderStatusConfirmed,
		PaymentStatus:   domain.PaymentStatusSuccessful,
		PaymentMethod:   domain.PaymentMethodCard,
		ServiceCategory: domain.ServiceCategoryDelivery,
		VehicleType:     domain.VehicleTypeVan,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPendingPayment, OccurredAt: now.Add(-time.Minute)},
			{Status: domain.OrderStatusConfirmed, OccurredAt: now},
		},
	}
}

func activeDriver(id, token string) *domain.Driver {
	return &domain.Driver{
		ID:              id,
		Name:            "Driver " + id,
		Status:          domain.DriverStatusActive,
		VehicleType:     domain.VehicleTypeVan,
		ServiceCategory: domain.ServiceCategoryDelivery,
		FCMToken:        token,
	}
}

func TestBroadcast_NotifiesEachDriverOnce(t *testing.T) {
	ctx := context.Background()

	dispatchStore := NewMockDispatchStore()
	sender := NewMockMessageSender()

	drivers := []*domain.Driver{
		activeDriver("driver-1", "token-1"),
		activeDriver("driver-2", "token-2"),
		activeDriver("driver-3", "token-3"),
	}

	// Run two broadcast passes over the same pool: the second must not
	// re-send to anyone.
	for pass := 0; pass < 2; pass++ {
		for _, driver := range drivers {
			first, err := dispatchStore.MarkNotified(ctx, "order-1", driver.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !first {
				continue
			}
			if _, err := sender.RecordSend(driver.FCMToken); err != nil {
				t.Fatalf("send failed: %v", err)
			}
		}
	}

	for _, driver := range drivers {
		if n := sender.SendsTo(driver.FCMToken); n != 1 {
			t.Errorf("driver %s: expected 1 send, got %d", driver.ID, n)
		}
	}
	if dispatchStore.NotifiedCount("order-1") != 3 {
		t.Errorf("expected 3 notified drivers, got %d", dispatchStore.NotifiedCount("order-1"))
	}
}

func TestBroadcast_ConcurrentPassesNeverDoubleNotify(t *testing.T) {
	ctx := context.Background()

	dispatchStore := NewMockDispatchStore()
	sender := NewMockMessageSender()

	driver := activeDriver("driver-1", "token-1")

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			first, err := dispatchStore.MarkNotified(ctx, "order-1", driver.ID)
			if err != nil || !first {
				return
			}
			sender.RecordSend(driver.FCMToken)
		}()
	}
	wg.Wait()

	if n := sender.SendsTo("token-1"); n != 1 {
		t.Errorf("expected exactly 1 send under concurrency, got %d", n)
	}
}

func TestBroadcast_NewDriversOnlyOnRepeatPass(t *testing.T) {
	ctx := context.Background()

	dispatchStore := NewMockDispatchStore()
	sender := NewMockMessageSender()

	// First pass: one driver in the pool.
	first, _ := dispatchStore.MarkNotified(ctx, "order-1", "driver-1")
	if !first {
		t.Fatal("expected first insert to succeed")
	}
	sender.RecordSend("token-1")

	// A new driver comes online; second pass covers both.
	for _, id := range []string{"driver-1", "driver-2"} {
		inserted, _ := dispatchStore.MarkNotified(ctx, "order-1", id)
		if inserted {
			sender.RecordSend("token-" + id[len(id)-1:])
		}
	}

	if sender.TotalSends() != 2 {
		t.Errorf("expected 2 total sends, got %d", sender.TotalSends())
	}
	if sender.SendsTo("token-1") != 1 {
		t.Errorf("driver-1 notified twice")
	}
}

func TestBroadcast_TrackerErrorStillDrainsInFlightSends(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatchStore := NewMockDispatchStore()
	sender := NewMockMessageSender()

	orderRepo.AddOrder(confirmedOrder("order-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))
	driverRepo.AddDriver(activeDriver("driver-3", "token-3"))

	// The third tracker insert fails mid-pass.
	dispatchStore.MarkNotifiedError = ErrMockTimeout
	dispatchStore.MarkNotifiedFailAfter = 2

	svc := newDispatchService(orderRepo, driverRepo, dispatchStore, NewMockLockStore(), sender)

	summary, err := svc.Broadcast(ctx, "order-1")
	if !errors.Is(err, ErrMockTimeout) {
		t.Fatalf("expected the tracker error, got %v", err)
	}

	// By the time Broadcast returns, every started send has finished and
	// is accounted for.
	if sender.TotalSends() != 2 {
		t.Errorf("expected 2 completed sends, got %d", sender.TotalSends())
	}
	if summary == nil || summary.Notified != 2 {
		t.Errorf("expected summary to report 2 notified, got %+v", summary)
	}
}

func TestAccept_ExactlyOneWinner(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatchStore := NewMockDispatchStore()
	lockStore := NewMockLockStore()
	sender := NewMockMessageSender()

	orderRepo.AddOrder(confirmedOrder("order-1"))

	numDrivers := 16
	driverIDs := make([]string, 0, numDrivers)
	for i := 0; i < numDrivers; i++ {
		id := fmt.Sprintf("driver-%d", i)
		driverIDs = append(driverIDs, id)
		driverRepo.AddDriver(activeDriver(id, "token-"+id))
		dispatchStore.MarkNotified(ctx, "order-1", id)
	}

	svc := newDispatchService(orderRepo, driverRepo, dispatchStore, lockStore, sender)

	winners := make(chan string, numDrivers)
	losses := make(chan error, numDrivers)

	var wg sync.WaitGroup
	wg.Add(numDrivers)
	for _, id := range driverIDs {
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Accept(ctx, "order-1", id); err != nil {
				losses <- err
				return
			}
			winners <- id
		}(id)
	}
	wg.Wait()
	close(winners)
	close(losses)

	var winnerIDs []string
	for id := range winners {
		winnerIDs = append(winnerIDs, id)
	}
	if len(winnerIDs) != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", len(winnerIDs))
	}

	lost := 0
	for err := range losses {
		lost++
		if !errors.Is(err, service.ErrAlreadyAssigned) {
			t.Errorf("race loser must see ErrAlreadyAssigned, got %v", err)
		}
	}
	if lost != numDrivers-1 {
		t.Errorf("expected %d losers, got %d", numDrivers-1, lost)
	}

	order := orderRepo.GetOrder("order-1")
	if order.Status != domain.OrderStatusPreparing {
		t.Errorf("expected PREPARING after claim, got %s", order.Status)
	}
	if order.AssignedDriverID != winnerIDs[0] {
		t.Errorf("assigned driver %s does not match winner %s", order.AssignedDriverID, winnerIDs[0])
	}
	if driverRepo.GetDriver(winnerIDs[0]).Status != domain.DriverStatusOnDuty {
		t.Error("winner must move to ON_DUTY")
	}
	if dispatchStore.NotifiedCount("order-1") != 0 {
		t.Error("assignment must clear the notified set")
	}
}

func TestAccept_FailsWhenOrderNotConfirmed(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	order := confirmedOrder("order-1")
	order.Status = domain.OrderStatusPendingPayment
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newDispatchService(orderRepo, driverRepo, NewMockDispatchStore(), NewMockLockStore(), NewMockMessageSender())

	_, err := svc.Accept(ctx, "order-1", "driver-1")
	if !errors.Is(err, service.ErrOrderNotDispatchable) {
		t.Errorf("expected ErrOrderNotDispatchable outside the pool, got %v", err)
	}
}

func TestAccept_BlockedCallerReportsAssignedOrder(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	lockStore := NewMockLockStore()

	order := confirmedOrder("order-1")
	order.Status = domain.OrderStatusPreparing
	order.AssignedDriverID = "driver-1"
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))

	// The winner's commit is visible but its lock is still held.
	if acquired, _ := lockStore.AcquireOrderLock(ctx, "order-1", lockTTL); !acquired {
		t.Fatal("expected to pre-acquire the order lock")
	}

	svc := newDispatchService(orderRepo, driverRepo, NewMockDispatchStore(), lockStore, NewMockMessageSender())

	_, err := svc.Accept(ctx, "order-1", "driver-2")
	if !errors.Is(err, service.ErrAlreadyAssigned) {
		t.Errorf("expected ErrAlreadyAssigned, got %v", err)
	}
}

func TestAccept_LockContenderWaitsForWinnerCommit(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	lockStore := NewMockLockStore()

	orderRepo.AddOrder(confirmedOrder("order-1"))
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))

	// Hold the lock as the in-flight winner; commit and release shortly
	// after the rival starts contending.
	if acquired, _ := lockStore.AcquireOrderLock(ctx, "order-1", lockTTL); !acquired {
		t.Fatal("expected to pre-acquire the order lock")
	}
	go func() {
		time.Sleep(40 * time.Millisecond)
		orderRepo.AssignDriver(ctx, "order-1", "driver-1", time.Now())
		lockStore.ReleaseOrderLock(ctx, "order-1")
	}()

	svc := newDispatchService(orderRepo, driverRepo, NewMockDispatchStore(), lockStore, NewMockMessageSender())

	_, err := svc.Accept(ctx, "order-1", "driver-2")
	if !errors.Is(err, service.ErrAlreadyAssigned) {
		t.Errorf("blocked rival must learn it lost the race, got %v", err)
	}
}

func TestPoolExit_ClearsNotifiedSet(t *testing.T) {
	ctx := context.Background()

	dispatchStore := NewMockDispatchStore()

	dispatchStore.MarkNotified(ctx, "order-1", "driver-1")
	dispatchStore.MarkNotified(ctx, "order-1", "driver-2")

	// Order leaves the pool (assignment or cancellation).
	if err := dispatchStore.ClearNotified(ctx, "order-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dispatchStore.NotifiedCount("order-1") != 0 {
		t.Fatalf("expected empty notified set after pool exit")
	}

	// Re-entry starts a fresh cycle: previously notified drivers are
	// notified again.
	first, _ := dispatchStore.MarkNotified(ctx, "order-1", "driver-1")
	if !first {
		t.Error("expected driver-1 to be notifiable again after reset")
	}
}

func TestOrderLock_SerializesAcceptAgainstResolution(t *testing.T) {
	ctx := context.Background()
	lockStore := NewMockLockStore()

	acquired, err := lockStore.AcquireOrderLock(ctx, "order-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	// A concurrent holder is rejected rather than blocked.
	acquired2, _ := lockStore.AcquireOrderLock(ctx, "order-1", 10*time.Second)
	if acquired2 {
		t.Error("expected second acquire to fail while lock held")
	}

	if err := lockStore.ReleaseOrderLock(ctx, "order-1"); err != nil {
		t.Fatalf("unexpected error releasing lock: %v", err)
	}

	acquired3, _ := lockStore.AcquireOrderLock(ctx, "order-1", 10*time.Second)
	if !acquired3 {
		t.Error("expected acquire to succeed after release")
	}
}
