package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"courier/internal/domain"
	"courier/internal/repository"
	"courier/internal/service"
)

// CourierHandler handles HTTP requests for couriers.
type CourierHandler struct {
	courierService *service.CourierService
	courierRepo    repository.CourierRepository
}

// NewCourierHandler creates a new CourierHandler.
func NewCourierHandler(courierService *service.CourierService, courierRepo repository.CourierRepository) *CourierHandler {
	return &CourierHandler{
		courierService: courierService,
		courierRepo:    courierRepo,
	}
}

// RegisterCourierRequest is the HTTP request body for courier registration.
type RegisterCourierRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateLocationRequest is the HTTP request body for a location report.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CourierResponse is the HTTP response for courier data.
type CourierResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Enabled   bool     `json:"enabled"`
	Available bool     `json:"available"`
	Roles     []string `json:"roles"`
}

// Register handles POST /v1/couriers/register
func (h *CourierHandler) Register(c *gin.Context) {
	var req RegisterCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	// Check if courier already exists
	existing, err := h.courierRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Courier already registered",
			"courier": toCourierResponse(existing),
		})
		return
	}

	courier := &domain.Courier{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Phone:   req.Phone,
		Enabled: true,
		Roles:   []domain.CourierRole{domain.RoleDeliveryPerson},
	}

	if err := h.courierRepo.Create(c.Request.Context(), courier); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCourierResponse(courier))
}

// GetAll handles GET /v1/couriers
func (h *CourierHandler) GetAll(c *gin.Context) {
	couriers, err := h.courierRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]CourierResponse, 0, len(couriers))
	for _, courier := range couriers {
		out = append(out, toCourierResponse(courier))
	}

	c.JSON(http.StatusOK, gin.H{"couriers": out, "count": len(out)})
}

// UpdateLocation handles POST /v1/couriers/:id/location
func (h *CourierHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.courierService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		CourierID: c.Param("id"),
		Lat:       req.Lat,
		Lng:       req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "location updated"})
}

// GoOffline handles POST /v1/couriers/:id/offline
func (h *CourierHandler) GoOffline(c *gin.Context) {
	if err := h.courierService.SetUnavailable(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "courier offline"})
}

func toCourierResponse(courier *domain.Courier) CourierResponse {
	roles := make([]string, len(courier.Roles))
	for i, r := range courier.Roles {
		roles[i] = string(r)
	}
	return CourierResponse{
		ID:        courier.ID,
		Name:      courier.Name,
		Phone:     courier.Phone,
		Enabled:   courier.Enabled,
		Available: courier.Available,
		Roles:     roles,
	}
}
