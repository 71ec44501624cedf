package service

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"dispatch/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationJobOffer             NotificationType = "JOB_OFFER"
	NotificationOrderAssigned        NotificationType = "ORDER_ASSIGNED"
	NotificationOrderCanceled        NotificationType = "ORDER_CANCELED"
	NotificationDeliveryComplete     NotificationType = "DELIVERY_COMPLETE"
	NotificationCancellationDecision NotificationType = "CANCELLATION_DECISION"
)

// MessageSender delivers one push message to a device token.
// Satisfied by *messaging.Client from the Firebase Admin SDK.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NotificationService delivers push notifications to drivers over FCM.
type NotificationService struct {
	sender      MessageSender
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewNotificationService creates a new NotificationService. A nil sender
// downgrades delivery to log-only, which keeps local development working
// without Firebase credentials.
func NewNotificationService(sender MessageSender, sendTimeout time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		sender:      sender,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// SendJobOffer notifies a driver about a new dispatchable order. The data
// payload carries the order id so the client can fetch full detail.
func (s *NotificationService) SendJobOffer(ctx context.Context, driver *domain.Driver, order *domain.Order) error {
	return s.send(ctx, NotificationJobOffer, driver, &messaging.Message{
		Token: driver.FCMToken,
		Notification: &messaging.Notification{
			Title: "New delivery job",
			Body:  fmt.Sprintf("%.1f km, %d lifter(s), payout %.2f", order.DistanceKm, order.LifterCount, order.DriverShare),
		},
		Data: map[string]string{
			"type":     string(NotificationJobOffer),
			"order_id": order.ID,
		},
	})
}

// SendAssignmentConfirmed tells the winning driver the order is theirs.
func (s *NotificationService) SendAssignmentConfirmed(ctx context.Context, driver *domain.Driver, order *domain.Order) error {
	return s.send(ctx, NotificationOrderAssigned, driver, &messaging.Message{
		Token: driver.FCMToken,
		Notification: &messaging.Notification{
			Title: "Job confirmed",
			Body:  "The delivery has been assigned to you.",
		},
		Data: map[string]string{
			"type":     string(NotificationOrderAssigned),
			"order_id": order.ID,
		},
	})
}

// SendCancellationDecision tells a driver how their cancellation request
// was resolved.
func (s *NotificationService) SendCancellationDecision(ctx context.Context, driver *domain.Driver, req *domain.CancellationRequest) error {
	body := "Your cancellation request was rejected."
	if req.Status == domain.CancellationStatusAccepted {
		body = "Your cancellation request was accepted."
	}

	return s.send(ctx, NotificationCancellationDecision, driver, &messaging.Message{
		Token: driver.FCMToken,
		Notification: &messaging.Notification{
			Title: "Cancellation request",
			Body:  body,
		},
		Data: map[string]string{
			"type":       string(NotificationCancellationDecision),
			"order_id":   req.OrderID,
			"request_id": req.ID,
		},
	})
}

// send delivers one message with a bounded timeout. Failures are logged and
// returned; callers decide whether a failure is fatal (it never is for
// broadcast fan-out).
func (s *NotificationService) send(ctx context.Context, kind NotificationType, driver *domain.Driver, msg *messaging.Message) error {
	if s.sender == nil {
		s.logger.Info("notification (log only)",
			zap.String("type", string(kind)),
			zap.String("driver_id", driver.ID),
			zap.Any("data", msg.Data),
		)
		return nil
	}

	if driver.FCMToken == "" {
		return fmt.Errorf("driver %s has no fcm token", driver.ID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if _, err := s.sender.Send(sendCtx, msg); err != nil {
		s.logger.Warn("notification send failed",
			zap.String("type", string(kind)),
			zap.String("driver_id", driver.ID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
