package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/domain"
	"courier/internal/service"
)

// MissionHandler handles HTTP requests for missions.
type MissionHandler struct {
	missionService *service.MissionService
}

// NewMissionHandler creates a new MissionHandler.
func NewMissionHandler(missionService *service.MissionService) *MissionHandler {
	return &MissionHandler{missionService: missionService}
}

// CreateMissionRequest is the HTTP request body for creating a mission.
type CreateMissionRequest struct {
	DeliveryID string `json:"delivery_id"`
	CourierID  string `json:"courier_id"`
	Notes      string `json:"notes"`
}

// AdvanceMissionRequest is the HTTP request body for advancing a mission.
type AdvanceMissionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// MissionResponse is the HTTP response for mission data.
type MissionResponse struct {
	ID          string `json:"id"`
	DeliveryID  string `json:"delivery_id"`
	CourierID   string `json:"courier_id"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// CreateMission handles POST /v1/missions
func (h *MissionHandler) CreateMission(c *gin.Context) {
	var req CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	mission, err := h.missionService.CreateMission(c.Request.Context(), service.CreateMissionRequest{
		DeliveryID: req.DeliveryID,
		CourierID:  req.CourierID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMissionResponse(mission))
}

// AdvanceMission handles POST /v1/missions/:id/advance
func (h *MissionHandler) AdvanceMission(c *gin.Context) {
	var req AdvanceMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	mission, err := h.missionService.AdvanceMission(c.Request.Context(), service.AdvanceMissionRequest{
		MissionID: c.Param("id"),
		NewStatus: domain.MissionStatus(req.Status),
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMissionResponse(mission))
}

// GetMission handles GET /v1/missions/:id
func (h *MissionHandler) GetMission(c *gin.Context) {
	mission, err := h.missionService.GetMission(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMissionResponse(mission))
}

// GetAll handles GET /v1/missions
func (h *MissionHandler) GetAll(c *gin.Context) {
	missions, err := h.missionService.GetAllMissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]MissionResponse, 0, len(missions))
	for _, m := range missions {
		out = append(out, toMissionResponse(m))
	}

	c.JSON(http.StatusOK, gin.H{"missions": out, "count": len(out)})
}

func toMissionResponse(m *domain.Mission) MissionResponse {
	resp := MissionResponse{
		ID:         m.ID,
		DeliveryID: m.DeliveryID,
		CourierID:  m.CourierID,
		Status:     string(m.Status),
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}

	if !m.StartedAt.IsZero() {
		resp.StartedAt = m.StartedAt.Format(time.RFC3339)
	}
	if !m.CompletedAt.IsZero() {
		resp.CompletedAt = m.CompletedAt.Format(time.RFC3339)
	}

	return resp
}
