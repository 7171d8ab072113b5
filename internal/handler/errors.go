package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/service"
	"github.com/jengzang/trackfix/pkg/response"
)

// writeError maps a stage or service failure onto an HTTP status
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		response.Error(c, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, analysis.ErrValidation), errors.Is(err, analysis.ErrConfiguration):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNoRoadNetwork):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, analysis.ErrCollaborator):
		response.BadGateway(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

// bindJSON decodes the request body, answering 400 (or 413) on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(c, err)
			return false
		}
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
