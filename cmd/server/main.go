package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/api"
	"github.com/jengzang/trackfix/internal/config"
	"github.com/jengzang/trackfix/internal/database"
	"github.com/jengzang/trackfix/internal/handler"
	"github.com/jengzang/trackfix/internal/logging"
	"github.com/jengzang/trackfix/internal/repository"
	"github.com/jengzang/trackfix/internal/service"
	"github.com/jengzang/trackfix/internal/spatial"

	// Register the trajectory stages
	_ "github.com/jengzang/trackfix/internal/analysis/foundation"
)

func main() {
	if err := logging.Init(false); err != nil {
		panic(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		logging.S().Fatalf("Failed to load config: %v", err)
	}
	if cfg.LogDebug {
		if err := logging.Init(true); err != nil {
			logging.S().Fatalf("Failed to initialize logging: %v", err)
		}
	}
	defer logging.Sync()
	log := logging.S()

	if !cfg.LogDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	var db *sql.DB
	if cfg.Database.Path != "" {
		if err := database.Init(database.Config{Path: cfg.Database.Path}); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		db = database.GetDB()
	}

	geo, err := spatial.NewGeodesy(cfg.Geodesy.Model)
	if err != nil {
		log.Fatalf("Failed to select earth model: %v", err)
	}

	var roadRepo *repository.RoadRepository
	if db != nil {
		roadRepo = repository.NewRoadRepository(db)
	}
	roadService := service.NewRoadService(roadRepo, geo)
	if err := roadService.Load(context.Background(), cfg.Roads); err != nil {
		// interpolation and combination still work without roads
		log.Warnf("Road network unavailable, refinement disabled: %v", err)
	}
	trajectoryService := service.NewTrajectoryService(geo, roadService, cfg.Curve, cfg.Refine, cfg.Combine).
		WithDespike(cfg.Despike)

	router := api.SetupRouter(cfg, api.Handlers{
		Trajectory: handler.NewTrajectoryHandler(trajectoryService),
		Road:       handler.NewRoadHandler(roadService),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	log.Info("Server stopped")
}
