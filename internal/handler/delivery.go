package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/domain"
	"courier/internal/repository"
	"courier/internal/service"
)

// DeliveryHandler handles HTTP requests for deliveries.
type DeliveryHandler struct {
	deliveryService *service.DeliveryService
	deliveryRepo    repository.DeliveryRepository
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(deliveryService *service.DeliveryService, deliveryRepo repository.DeliveryRepository) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
		deliveryRepo:    deliveryRepo,
	}
}

// CreateDeliveryRequest is the HTTP request body for creating a delivery.
type CreateDeliveryRequest struct {
	SenderID      string  `json:"sender_id"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	DropoffLat    float64 `json:"dropoff_lat"`
	DropoffLng    float64 `json:"dropoff_lng"`
	PackageWeight float64 `json:"package_weight"`
}

// UpdateStatusRequest is the HTTP request body for a status update.
type UpdateStatusRequest struct {
	CourierID string `json:"courier_id"`
	Status    string `json:"status"`
}

// CancelDeliveryRequest is the HTTP request body for cancelling a delivery.
type CancelDeliveryRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

// DeliveryResponse is the HTTP response for delivery data.
type DeliveryResponse struct {
	ID            string  `json:"id"`
	SenderID      string  `json:"sender_id"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	DropoffLat    float64 `json:"dropoff_lat"`
	DropoffLng    float64 `json:"dropoff_lng"`
	PackageWeight float64 `json:"package_weight"`
	Status        string  `json:"status"`
	CourierID     string  `json:"courier_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	AssignedAt    string  `json:"assigned_at,omitempty"`
	StartedAt     string  `json:"started_at,omitempty"`
	DeliveredAt   string  `json:"delivered_at,omitempty"`
	CancelledAt   string  `json:"cancelled_at,omitempty"`
	CancelReason  string  `json:"cancel_reason,omitempty"`
}

// CreateDeliveryResponse is the HTTP response for creating a delivery.
type CreateDeliveryResponse struct {
	Delivery        DeliveryResponse `json:"delivery"`
	CourierAssigned bool             `json:"courier_assigned"`
	CourierID       string           `json:"courier_id,omitempty"`
}

// CreateDelivery handles POST /v1/deliveries
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.deliveryService.CreateDelivery(c.Request.Context(), service.CreateDeliveryRequest{
		SenderID:      req.SenderID,
		PickupLat:     req.PickupLat,
		PickupLng:     req.PickupLng,
		DropoffLat:    req.DropoffLat,
		DropoffLng:    req.DropoffLng,
		PackageWeight: req.PackageWeight,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateDeliveryResponse{
		Delivery:        toDeliveryResponse(result.Delivery),
		CourierAssigned: result.CourierAssigned,
		CourierID:       result.CourierID,
	})
}

// GetDelivery handles GET /v1/deliveries/:id
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// GetAll handles GET /v1/deliveries
func (h *DeliveryHandler) GetAll(c *gin.Context) {
	deliveries, err := h.deliveryService.GetAllDeliveries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toDeliveryResponse(d))
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": out, "count": len(out)})
}

// UpdateStatus handles POST /v1/deliveries/:id/status
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivery, err := h.deliveryService.UpdateStatus(c.Request.Context(), service.UpdateStatusRequest{
		DeliveryID: c.Param("id"),
		CallerID:   req.CourierID,
		NewStatus:  domain.DeliveryStatus(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

// CancelDelivery handles POST /v1/deliveries/:id/cancel
func (h *DeliveryHandler) CancelDelivery(c *gin.Context) {
	var req CancelDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivery, err := h.deliveryService.CancelDelivery(c.Request.Context(), service.CancelDeliveryRequest{
		DeliveryID:  c.Param("id"),
		CancelledBy: req.CancelledBy,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDeliveryResponse(delivery))
}

func toDeliveryResponse(d *domain.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		ID:            d.ID,
		SenderID:      d.SenderID,
		PickupLat:     d.PickupLat,
		PickupLng:     d.PickupLng,
		DropoffLat:    d.DropoffLat,
		DropoffLng:    d.DropoffLng,
		PackageWeight: d.PackageWeight,
		Status:        string(d.Status),
		CourierID:     d.CourierID,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
		CancelReason:  d.CancelReason,
	}

	if !d.AssignedAt.IsZero() {
		resp.AssignedAt = d.AssignedAt.Format(time.RFC3339)
	}
	if !d.StartedAt.IsZero() {
		resp.StartedAt = d.StartedAt.Format(time.RFC3339)
	}
	if !d.DeliveredAt.IsZero() {
		resp.DeliveredAt = d.DeliveredAt.Format(time.RFC3339)
	}
	if !d.CancelledAt.IsZero() {
		resp.CancelledAt = d.CancelledAt.Format(time.RFC3339)
	}

	return resp
}
