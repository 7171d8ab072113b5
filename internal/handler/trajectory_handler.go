package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/analysis/foundation"
	"github.com/jengzang/trackfix/internal/models"
	"github.com/jengzang/trackfix/internal/service"
	"github.com/jengzang/trackfix/pkg/response"
)

// InterpolateRequest is the body of POST /trajectories/interpolate
type InterpolateRequest struct {
	Points models.Trajectory    `json:"points" binding:"required"`
	Params *service.CurveParams `json:"params"`
}

// RefineRequest is the body of POST /trajectories/refine
type RefineRequest struct {
	Points models.Trajectory     `json:"points" binding:"required"`
	Params *service.RefineParams `json:"params"`
}

// CombineRequest is the body of POST /trajectories/combine
type CombineRequest struct {
	Runs   []models.Trajectory    `json:"runs" binding:"required"`
	Params *service.CombineParams `json:"params"`
}

// PipelineRequest is the body of POST /trajectories/pipeline
type PipelineRequest struct {
	Runs []models.Trajectory `json:"runs" binding:"required"`
	service.PipelineParams
}

// TrajectoryResult is the payload returned by the trajectory endpoints
type TrajectoryResult struct {
	Points models.Trajectory       `json:"points"`
	Count  int                     `json:"count"`
	Stats  *foundation.RefineStats `json:"stats,omitempty"`
	Report *analysis.Report        `json:"report,omitempty"`
}

// TrajectoryHandler handles HTTP requests for trajectory processing
type TrajectoryHandler struct {
	trajectoryService *service.TrajectoryService
}

// NewTrajectoryHandler creates a new trajectory handler
func NewTrajectoryHandler(trajectoryService *service.TrajectoryService) *TrajectoryHandler {
	return &TrajectoryHandler{
		trajectoryService: trajectoryService,
	}
}

// Interpolate handles POST /api/v1/trajectories/interpolate
func (h *TrajectoryHandler) Interpolate(c *gin.Context) {
	var req InterpolateRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.trajectoryService.Interpolate(req.Points, req.Params)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, TrajectoryResult{Points: out, Count: len(out)})
}

// Refine handles POST /api/v1/trajectories/refine
func (h *TrajectoryHandler) Refine(c *gin.Context) {
	var req RefineRequest
	if !bindJSON(c, &req) {
		return
	}

	out, stats, err := h.trajectoryService.Refine(req.Points, req.Params)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, TrajectoryResult{Points: out, Count: len(out), Stats: &stats})
}

// Combine handles POST /api/v1/trajectories/combine
func (h *TrajectoryHandler) Combine(c *gin.Context) {
	var req CombineRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.trajectoryService.Combine(req.Runs, req.Params)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, TrajectoryResult{Points: out, Count: len(out)})
}

// Pipeline handles POST /api/v1/trajectories/pipeline
func (h *TrajectoryHandler) Pipeline(c *gin.Context) {
	var req PipelineRequest
	if !bindJSON(c, &req) {
		return
	}

	out, report, err := h.trajectoryService.Pipeline(req.Runs, req.PipelineParams)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, TrajectoryResult{Points: out, Count: len(out), Report: report})
}
