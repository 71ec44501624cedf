package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService   *service.DriverService
	dispatchService *service.DispatchService
	orderService    *service.OrderService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	driverService *service.DriverService,
	dispatchService *service.DispatchService,
	orderService *service.OrderService,
) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		dispatchService: dispatchService,
		orderService:    orderService,
	}
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	VehicleType     string `json:"vehicle_type"`     // BIKE, VAN, TRUCK
	ServiceCategory string `json:"service_category"` // DELIVERY, MOVING
	FCMToken        string `json:"fcm_token,omitempty"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Phone           string  `json:"phone"`
	Status          string  `json:"status"`
	VehicleType     string  `json:"vehicle_type"`
	ServiceCategory string  `json:"service_category"`
	TotalIncome     float64 `json:"total_income"`
	Balance         float64 `json:"balance"`
}

// SetStatusRequest is the HTTP request body for changing driver status.
type SetStatusRequest struct {
	Status string `json:"status"` // ACTIVE, OFFLINE, ON_DUTY, DISCONNECTED
}

// UpdateTokenRequest is the HTTP request body for replacing a push token.
type UpdateTokenRequest struct {
	FCMToken string `json:"fcm_token"`
}

// CompleteDeliveryRequest is the HTTP request body for completing an order.
type CompleteDeliveryRequest struct {
	OTP string `json:"otp"`
}

func toDriverResponse(driver *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:              driver.ID,
		Name:            driver.Name,
		Phone:           driver.Phone,
		Status:          string(driver.Status),
		VehicleType:     string(driver.VehicleType),
		ServiceCategory: string(driver.ServiceCategory),
		TotalIncome:     driver.TotalIncome,
		Balance:         driver.Balance,
	}
}

// Register handles POST /v1/drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		Name:            req.Name,
		Phone:           req.Phone,
		VehicleType:     domain.VehicleType(req.VehicleType),
		ServiceCategory: domain.ServiceCategory(req.ServiceCategory),
		FCMToken:        req.FCMToken,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// SetStatus handles PUT /v1/drivers/:id/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.driverService.SetStatus(c.Request.Context(), c.Param("id"), domain.DriverStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// Heartbeat handles POST /v1/drivers/:id/heartbeat
func (h *DriverHandler) Heartbeat(c *gin.Context) {
	if err := h.driverService.Heartbeat(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateToken handles PUT /v1/drivers/:id/token
func (h *DriverHandler) UpdateToken(c *gin.Context) {
	var req UpdateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdateFCMToken(c.Request.Context(), c.Param("id"), req.FCMToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AcceptOrder handles POST /v1/drivers/:id/orders/:orderID/accept
//
// Exactly one driver wins an acceptance race; the rest get a conflict.
func (h *DriverHandler) AcceptOrder(c *gin.Context) {
	order, err := h.dispatchService.Accept(c.Request.Context(), c.Param("orderID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}

// StartDelivery handles POST /v1/drivers/:id/orders/:orderID/start
func (h *DriverHandler) StartDelivery(c *gin.Context) {
	order, err := h.orderService.StartDelivery(c.Request.Context(), c.Param("orderID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}

// CompleteDelivery handles POST /v1/drivers/:id/orders/:orderID/complete
func (h *DriverHandler) CompleteDelivery(c *gin.Context) {
	var req CompleteDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.CompleteDelivery(c.Request.Context(), c.Param("orderID"), c.Param("id"), req.OTP)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOrderResponse(order, false))
}
