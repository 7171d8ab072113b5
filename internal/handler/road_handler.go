package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/service"
	"github.com/jengzang/trackfix/pkg/response"
)

// RoadHandler handles HTTP requests about the road network
type RoadHandler struct {
	roadService *service.RoadService
}

// NewRoadHandler creates a new road handler
func NewRoadHandler(roadService *service.RoadService) *RoadHandler {
	return &RoadHandler{
		roadService: roadService,
	}
}

// GetStats handles GET /api/v1/roads/stats
func (h *RoadHandler) GetStats(c *gin.Context) {
	stats, err := h.roadService.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, stats)
}
