package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// PaymentHandler handles payment provider callbacks.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PaymentEventRequest is the HTTP request body for a payment event.
type PaymentEventRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"` // SUCCESSFUL, FAILED, CANCELED, REFUNDED
}

// PaymentEventResponse is the HTTP response for a processed payment event.
type PaymentEventResponse struct {
	Order           OrderResponse `json:"order"`
	DriversNotified int           `json:"drivers_notified"`
}

// HandleEvent handles POST /v1/payments/events
func (h *PaymentHandler) HandleEvent(c *gin.Context) {
	var req PaymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.paymentService.HandlePaymentEvent(c.Request.Context(), req.OrderID, domain.PaymentStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := PaymentEventResponse{Order: toOrderResponse(result.Order, false)}
	if result.Broadcast != nil {
		resp.DriversNotified = result.Broadcast.Notified
	}

	respondJSON(c, http.StatusOK, resp)
}
