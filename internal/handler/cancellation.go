package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// CancellationHandler handles HTTP requests for cancellation requests.
type CancellationHandler struct {
	cancellationService *service.CancellationService
}

// NewCancellationHandler creates a new CancellationHandler.
func NewCancellationHandler(cancellationService *service.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancellationService: cancellationService}
}

// CreateCancellationRequest is the HTTP request body for requesting a cancellation.
type CreateCancellationRequest struct {
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason,omitempty"`
}

// ResolveCancellationRequest is the HTTP request body for resolving a request.
type ResolveCancellationRequest struct {
	Decision    string `json:"decision"`              // ACCEPTED, REJECTED
	Disposition string `json:"disposition,omitempty"` // CONFIRMED (redispatch) or CANCELED
}

// CancellationResponse is the HTTP representation of a cancellation request.
type CancellationResponse struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	DriverID   string `json:"driver_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func toCancellationResponse(req *domain.CancellationRequest) CancellationResponse {
	resp := CancellationResponse{
		ID:        req.ID,
		OrderID:   req.OrderID,
		DriverID:  req.DriverID,
		Status:    string(req.Status),
		Reason:    req.Reason,
		CreatedAt: req.CreatedAt.Format(time.RFC3339),
	}
	if !req.ResolvedAt.IsZero() {
		resp.ResolvedAt = req.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// Create handles POST /v1/cancellation-requests
func (h *CancellationHandler) Create(c *gin.Context) {
	var req CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.cancellationService.Request(c.Request.Context(), req.OrderID, req.DriverID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toCancellationResponse(request))
}

// Resolve handles POST /v1/cancellation-requests/:id/resolve
func (h *CancellationHandler) Resolve(c *gin.Context) {
	var req ResolveCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.cancellationService.Resolve(c.Request.Context(), service.ResolveRequest{
		RequestID:   c.Param("id"),
		Decision:    domain.CancellationStatus(req.Decision),
		Disposition: domain.OrderStatus(req.Disposition),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toCancellationResponse(request))
}

// ListForOrder handles GET /v1/orders/:id/cancellation-requests
func (h *CancellationHandler) ListForOrder(c *gin.Context) {
	requests, err := h.cancellationService.RequestsForOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CancellationResponse, 0, len(requests))
	for _, request := range requests {
		response = append(response, toCancellationResponse(request))
	}

	c.JSON(http.StatusOK, response)
}
