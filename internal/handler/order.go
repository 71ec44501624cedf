package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService *service.OrderService
	orderRepo    repository.OrderRepository
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService, orderRepo repository.OrderRepository) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		orderRepo:    orderRepo,
	}
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	CustomerID      string  `json:"customer_id"`
	PickupLat       float64 `json:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng"`
	DropoffLat      float64 `json:"dropoff_lat"`
	DropoffLng      float64 `json:"dropoff_lng"`
	LifterCount     int     `json:"lifter_count"`
	Payer           string  `json:"payer"`                      // SENDER, RECEIVER
	PaymentMethod   string  `json:"payment_method"`             // CARD, WALLET, CASH_ON_DELIVERY
	VehicleType     string  `json:"vehicle_type,omitempty"`     // BIKE, VAN, TRUCK
	ServiceCategory string  `json:"service_category,omitempty"` // DELIVERY, MOVING
	PickUpDate      string  `json:"pick_up_date,omitempty"`     // RFC 3339
}

// StatusChangeResponse is one entry of an order's status history.
type StatusChangeResponse struct {
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

// OrderResponse is the HTTP representation of an order.
type OrderResponse struct {
	ID               string                 `json:"id"`
	CustomerID       string                 `json:"customer_id"`
	Status           string                 `json:"status"`
	PaymentStatus    string                 `json:"payment_status"`
	Payer            string                 `json:"payer"`
	PaymentMethod    string                 `json:"payment_method"`
	PickupLat        float64                `json:"pickup_lat"`
	PickupLng        float64                `json:"pickup_lng"`
	DropoffLat       float64                `json:"dropoff_lat"`
	DropoffLng       float64                `json:"dropoff_lng"`
	DistanceKm       float64                `json:"distance_km"`
	LifterCount      int                    `json:"lifter_count"`
	TotalCost        float64                `json:"total_cost"`
	DriverShare      float64                `json:"driver_share"`
	ServiceFeePct    float64                `json:"service_fee_pct"`
	VehicleType      string                 `json:"vehicle_type,omitempty"`
	ServiceCategory  string                 `json:"service_category,omitempty"`
	AssignedDriverID string                 `json:"assigned_driver_id,omitempty"`
	PickUpDate       string                 `json:"pick_up_date,omitempty"`
	AccessToken      string                 `json:"access_token,omitempty"`
	IsViewed         bool                   `json:"is_viewed"`
	StatusHistory    []StatusChangeResponse `json:"status_history,omitempty"`
}

// CreateOrderResponse is the HTTP response for creating an order.
type CreateOrderResponse struct {
	Order           OrderResponse `json:"order"`
	CompletionOTP   string        `json:"completion_otp,omitempty"`
	DriversNotified int           `json:"drivers_notified"`
}

func toOrderResponse(order *domain.Order, includeToken bool) OrderResponse {
	resp := OrderResponse{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		Payer:            string(order.Payer),
		PaymentMethod:    string(order.PaymentMethod),
		PickupLat:        order.PickupLat,
		PickupLng:        order.PickupLng,
		DropoffLat:       order.DropoffLat,
		DropoffLng:       order.DropoffLng,
		DistanceKm:       order.DistanceKm,
		LifterCount:      order.LifterCount,
		TotalCost:        order.TotalCost,
		DriverShare:      order.DriverShare,
		ServiceFeePct:    order.ServiceFeePct,
		VehicleType:      string(order.VehicleType),
		ServiceCategory:  string(order.ServiceCategory),
		AssignedDriverID: order.AssignedDriverID,
		IsViewed:         order.IsViewed,
	}
	if includeToken {
		resp.AccessToken = order.AccessToken
	}
	if !order.PickUpDate.IsZero() {
		resp.PickUpDate = order.PickUpDate.Format(time.RFC3339)
	}
	for _, change := range order.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusChangeResponse{
			Status:     string(change.Status),
			OccurredAt: change.OccurredAt.Format(time.RFC3339),
		})
	}
	return resp
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var pickUpDate time.Time
	if req.PickUpDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.PickUpDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid pick_up_date"})
			return
		}
		pickUpDate = parsed
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		PickupLat:       req.PickupLat,
		PickupLng:       req.PickupLng,
		DropoffLat:      req.DropoffLat,
		DropoffLng:      req.DropoffLng,
		LifterCount:     req.LifterCount,
		Payer:           domain.Payer(req.Payer),
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		VehicleType:     domain.VehicleType(req.VehicleType),
		ServiceCategory: domain.ServiceCategory(req.ServiceCategory),
		PickUpDate:      pickUpDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := CreateOrderResponse{
		Order:         toOrderResponse(result.Order, true),
		CompletionOTP: result.Order.CompletionOTP,
	}
	if result.Broadcast != nil {
		resp.DriversNotified = result.Broadcast.Notified
	}

	respondJSON(c, http.StatusCreated, resp)
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}

// TrackOrder handles GET /v1/orders/track/:token
//
// Receivers follow the order through its access token without
// authenticating; the first open marks the order viewed.
func (h *OrderHandler) TrackOrder(c *gin.Context) {
	order, err := h.orderRepo.GetByAccessToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	if !order.IsViewed {
		if err := h.orderService.MarkViewed(c.Request.Context(), order.ID); err != nil {
			respondError(c, err)
			return
		}
		order.IsViewed = true
	}

	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}

// GetAll handles GET /v1/orders
func (h *OrderHandler) GetAll(c *gin.Context) {
	orders, err := h.orderRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, toOrderResponse(order, false))
	}

	c.JSON(http.StatusOK, response)
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}

// MarkViewed handles POST /v1/orders/:id/viewed
func (h *OrderHandler) MarkViewed(c *gin.Context) {
	if err := h.orderService.MarkViewed(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
