package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// newCancellationService wires the workflow on mocks, with the
// transactional release path running through the mock runner.
func newCancellationService(cancelRepo *MockCancellationRepository, orderRepo *MockOrderRepository, driverRepo *MockDriverRepository, dispatchStore *MockDispatchStore, sender *MockMessageSender) *service.CancellationService {
	txRunner := NewMockTxRunner(orderRepo, driverRepo, cancelRepo)
	notifications := service.NewNotificationService(sender, time.Second, nil)
	dispatch := service.NewDispatchService(txRunner, orderRepo, driverRepo, dispatchStore, NewMockLockStore(), nil, notifications, lockTTL, nil)
	return service.NewCancellationService(txRunner, cancelRepo, orderRepo, driverRepo, dispatch, NewMockLockStore(), notifications, lockTTL, nil)
}

func assignedOrder(id, driverID string) *domain.Order {
	order := confirmedOrder(id)
	order.Status = domain.OrderStatusPreparing
	order.AssignedDriverID = driverID
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:     domain.OrderStatusPreparing,
		OccurredAt: time.Now(),
	})
	return order
}

func TestCancellationRequest_CreatesPending(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), NewMockMessageSender())

	req, err := svc.Request(ctx, "order-1", "driver-1", "vehicle breakdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != domain.CancellationStatusPending {
		t.Errorf("expected PENDING, got %s", req.Status)
	}
	if req.Reason != "vehicle breakdown" {
		t.Errorf("reason not recorded")
	}
}

func TestCancellationRequest_TerminalOrderRejected(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()

	order := confirmedOrder("order-1")
	order.Status = domain.OrderStatusDelivered
	orderRepo.AddOrder(order)
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), NewMockMessageSender())

	_, err := svc.Request(ctx, "order-1", "driver-1", "too late")
	if !errors.Is(err, service.ErrOrderTerminal) {
		t.Errorf("expected ErrOrderTerminal, got %v", err)
	}
}

func TestCancellationRequest_SeveralDriversMayRequest(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), NewMockMessageSender())

	if _, err := svc.Request(ctx, "order-1", "driver-1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Request(ctx, "order-1", "driver-2", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	requests, err := svc.RequestsForOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("expected 2 independent requests, got %d", len(requests))
	}
}

func TestCancellationResolve_RejectNotifiesDriver(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	sender := NewMockMessageSender()
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), sender)

	req, err := svc.Request(ctx, "order-1", "driver-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(ctx, service.ResolveRequest{
		RequestID: req.ID,
		Decision:  domain.CancellationStatusRejected,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != domain.CancellationStatusRejected {
		t.Errorf("expected REJECTED, got %s", resolved.Status)
	}
	if resolved.ResolvedAt.IsZero() {
		t.Error("expected resolution timestamp")
	}
	if sender.SendsTo("token-1") != 1 {
		t.Errorf("expected 1 decision notification, got %d", sender.SendsTo("token-1"))
	}

	// Order and assignment are untouched on rejection.
	order := orderRepo.GetOrder("order-1")
	if order.Status != domain.OrderStatusPreparing || order.AssignedDriverID != "driver-1" {
		t.Error("rejection must not alter the order")
	}
}

func TestCancellationResolve_SecondResolveFails(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), NewMockMessageSender())

	req, _ := svc.Request(ctx, "order-1", "driver-1", "")
	if _, err := svc.Resolve(ctx, service.ResolveRequest{RequestID: req.ID, Decision: domain.CancellationStatusRejected}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Resolve(ctx, service.ResolveRequest{RequestID: req.ID, Decision: domain.CancellationStatusRejected})
	if !errors.Is(err, service.ErrRequestAlreadyResolved) {
		t.Errorf("expected ErrRequestAlreadyResolved, got %v", err)
	}
}

func TestCancellationResolve_UnknownDecisionRejected(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	driverRepo.AddDriver(activeDriver("driver-1", "token-1"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, NewMockDispatchStore(), NewMockMessageSender())

	req, err := svc.Request(ctx, "order-1", "driver-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Resolve(ctx, service.ResolveRequest{
		RequestID: req.ID,
		Decision:  domain.CancellationStatus("MAYBE"),
	})
	if !errors.Is(err, service.ErrInvalidDecision) {
		t.Errorf("expected ErrInvalidDecision, got %v", err)
	}

	// The request stays resolvable after the bad input.
	if cancelRepo.GetRequest(req.ID).Status != domain.CancellationStatusPending {
		t.Error("request must remain PENDING after an invalid decision")
	}
}

func TestCancellationAccept_ReleasesAssignmentAndRebroadcasts(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatchStore := NewMockDispatchStore()
	sender := NewMockMessageSender()

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	holder := activeDriver("driver-1", "token-1")
	holder.Status = domain.DriverStatusOnDuty
	driverRepo.AddDriver(holder)
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, dispatchStore, sender)

	req, err := svc.Request(ctx, "order-1", "driver-1", "vehicle breakdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(ctx, service.ResolveRequest{
		RequestID: req.ID,
		Decision:  domain.CancellationStatusAccepted,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != domain.CancellationStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", resolved.Status)
	}

	order := orderRepo.GetOrder("order-1")
	if order.AssignedDriverID != "" {
		t.Error("assignment must be cleared on an accepted release")
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected CONFIRMED after release, got %s", order.Status)
	}
	if order.StatusHistory[len(order.StatusHistory)-1].Status != domain.OrderStatusConfirmed {
		t.Errorf("history tail should be CONFIRMED, got %s", order.StatusHistory[len(order.StatusHistory)-1].Status)
	}
	if driverRepo.GetDriver("driver-1").Status != domain.DriverStatusActive {
		t.Error("releasing driver must return to ACTIVE")
	}

	// A fresh broadcast cycle starts from an empty set and covers every
	// Active driver, the released one included.
	if n := dispatchStore.NotifiedCount("order-1"); n != 2 {
		t.Errorf("expected 2 drivers in the new cycle, got %d", n)
	}
	if sender.SendsTo("token-2") != 1 {
		t.Errorf("expected 1 offer to driver-2, got %d", sender.SendsTo("token-2"))
	}
}

func TestCancellationAccept_CanceledDispositionStopsDispatch(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	orderRepo := NewMockOrderRepository()
	driverRepo := NewMockDriverRepository()
	dispatchStore := NewMockDispatchStore()

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	holder := activeDriver("driver-1", "token-1")
	holder.Status = domain.DriverStatusOnDuty
	driverRepo.AddDriver(holder)
	driverRepo.AddDriver(activeDriver("driver-2", "token-2"))

	svc := newCancellationService(cancelRepo, orderRepo, driverRepo, dispatchStore, NewMockMessageSender())

	req, err := svc.Request(ctx, "order-1", "driver-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Resolve(ctx, service.ResolveRequest{
		RequestID:   req.ID,
		Decision:    domain.CancellationStatusAccepted,
		Disposition: domain.OrderStatusCanceled,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := orderRepo.GetOrder("order-1")
	if order.Status != domain.OrderStatusCanceled {
		t.Errorf("expected CANCELED, got %s", order.Status)
	}
	if dispatchStore.NotifiedCount("order-1") != 0 {
		t.Error("canceled disposition must not start a new broadcast cycle")
	}
}

func TestCancellationRequestCAS_ConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()
	cancelRepo.AddRequest(&domain.CancellationRequest{
		ID:      "req-1",
		OrderID: "order-1",
		Status:  domain.CancellationStatusPending,
	})

	wins := make(chan struct{}, 10)
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func() {
			defer wg.Done()
			won, err := cancelRepo.Resolve(ctx, "req-1", domain.CancellationStatusAccepted, time.Now())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if won {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly 1 successful resolution, got %d", count)
	}
}

func TestCancellationAccept_RejectsOtherPendingRequests(t *testing.T) {
	ctx := context.Background()
	cancelRepo := NewMockCancellationRepository()

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		cancelRepo.AddRequest(&domain.CancellationRequest{
			ID:      id,
			OrderID: "order-1",
			Status:  domain.CancellationStatusPending,
		})
	}

	now := time.Now()
	won, err := cancelRepo.Resolve(ctx, "req-2", domain.CancellationStatusAccepted, now)
	if err != nil || !won {
		t.Fatalf("resolve failed: won=%v err=%v", won, err)
	}
	if err := cancelRepo.RejectOtherPending(ctx, "order-1", "req-2", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cancelRepo.GetRequest("req-2").Status != domain.CancellationStatusAccepted {
		t.Error("accepted request lost its status")
	}
	for _, id := range []string{"req-1", "req-3"} {
		if cancelRepo.GetRequest(id).Status != domain.CancellationStatusRejected {
			t.Errorf("request %s should be auto-rejected", id)
		}
	}
}

func TestCancellationAccept_ReleaseReturnsOrderToPool(t *testing.T) {
	ctx := context.Background()
	orderRepo := NewMockOrderRepository()
	dispatchStore := NewMockDispatchStore()

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))
	dispatchStore.MarkNotified(ctx, "order-1", "driver-1")
	dispatchStore.MarkNotified(ctx, "order-1", "driver-2")

	// Simulate the accepted-release write set: assignment cleared, order
	// back to CONFIRMED, notified set discarded.
	order := orderRepo.GetOrder("order-1")
	order.AssignedDriverID = ""
	order.Status = domain.OrderStatusConfirmed
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:     domain.OrderStatusConfirmed,
		OccurredAt: time.Now(),
	})
	dispatchStore.ClearNotified(ctx, "order-1")

	if dispatchStore.NotifiedCount("order-1") != 0 {
		t.Fatal("notified set must reset on release")
	}

	// The released order is claimable again, including by a previously
	// notified driver.
	won, err := orderRepo.AssignDriver(ctx, "order-1", "driver-2", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Error("released order should accept a new claim")
	}
}
