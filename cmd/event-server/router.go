package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"linetest/internal/config"
	"linetest/internal/microservices/http-api/handler"
	"linetest/internal/microservices/http-api/middleware"
	"linetest/internal/microservices/http-api/service"
	"linetest/internal/microservices/pcba"
	"linetest/internal/microservices/websocket"
)

func newRouter(cfg *config.Config, logger *slog.Logger, hub *websocket.Hub, events *pcba.Service, records service.TestRecordService) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", handler.HealthHandler(cfg.CloudUploadEnabled))
	websocket.RegisterRoutes(r, hub)

	api := r.Group("/api")

	var stationAuth gin.HandlerFunc
	if cfg.StationJWTSecret != "" {
		stationAuth = middleware.StationAuth(cfg.StationJWTSecret)
	}
	pcba.NewHandler(events).RegisterRoutes(api.Group("/pcba"), stationAuth)

	recordHandler := handler.NewTestRecordHandler(records)
	recordHandler.RegisterRoutes(api.Group("/test-records"))
	api.GET("/upload-logs", recordHandler.UploadLogs)

	return r
}
