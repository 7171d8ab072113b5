package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/analysis"
	"github.com/jengzang/trackfix/internal/config"
	"github.com/jengzang/trackfix/internal/handler"
	"github.com/jengzang/trackfix/internal/middleware"
	"github.com/jengzang/trackfix/pkg/response"
)

// Handlers bundles the route handlers
type Handlers struct {
	Trajectory *handler.TrajectoryHandler
	Road       *handler.RoadHandler
}

// SetupRouter wires middleware and routes
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "trackfix is running",
			"stages":  analysis.RegisteredStages(),
		})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})

	api := r.Group("/api/v1")
	if cfg.Server.RateLimit > 0 {
		api.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)))
	}
	if cfg.Server.JWTSecret != "" {
		api.Use(middleware.JWTAuth(cfg.Server.JWTSecret))
	}
	api.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))
	{
		trajectories := api.Group("/trajectories")
		{
			trajectories.POST("/interpolate", h.Trajectory.Interpolate)
			trajectories.POST("/refine", h.Trajectory.Refine)
			trajectories.POST("/combine", h.Trajectory.Combine)
			trajectories.POST("/pipeline", h.Trajectory.Pipeline)
		}

		roads := api.Group("/roads")
		{
			roads.GET("/stats", h.Road.GetStats)
		}
	}

	return r
}
