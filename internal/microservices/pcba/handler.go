package pcba

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"linetest/internal/microservices/http-api/middleware"
	"linetest/internal/routing"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the PCBA endpoints on rg (normally /api/pcba).
// stationAuth guards the endpoints stations call; nil leaves them open.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, stationAuth gin.HandlerFunc) {
	guarded := func(scope string, handler gin.HandlerFunc) []gin.HandlerFunc {
		if stationAuth == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{stationAuth, middleware.RequireScopes(scope), handler}
	}

	rg.POST("/events", guarded(middleware.ScopeEventsWrite, h.ReceiveEvent)...)
	rg.POST("/start-test", guarded(middleware.ScopeTestRun, h.StartTest)...)
	rg.POST("/uid-search", guarded(middleware.ScopeUIDWrite, h.UIDSearch)...)

	rg.POST("/debug-broadcast", h.DebugBroadcast)
	rg.GET("/stages/:serial", h.GetStages)
}

type startTestRequest struct {
	Serial string `json:"serial" binding:"required"`
}

type uidSearchRequest struct {
	UID string `json:"uid" binding:"required"`
}

// ReceiveEvent accepts a stage event from a station and fans it out
func (h *Handler) ReceiveEvent(c *gin.Context) {
	var ev routing.StageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ev, err := h.service.PublishEvent(ctx, ev)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status": "accepted",
		"serial": ev.Serial,
		"stage":  ev.Stage,
		"state":  ev.Status,
	})
}

func (h *Handler) DebugBroadcast(c *gin.Context) {
	serial, err := h.service.DebugBroadcast(c.Query("serial"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "broadcasted", "serial": serial})
}

// StartTest runs the whole stage sequence; it returns once every stage finished
func (h *Handler) StartTest(c *gin.Context) {
	var req startTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stages, err := h.service.RunTest(c.Request.Context(), req.Serial)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "completed",
		"serial": req.Serial,
		"stages": stages,
	})
}

func (h *Handler) UIDSearch(c *gin.Context) {
	var req uidSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid, err := h.service.PublishUID(req.UID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "broadcasted", "uid": uid})
}

func (h *Handler) GetStages(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	serial := c.Param("serial")
	records, err := h.service.Stages(ctx, serial)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"serial": serial, "stages": records})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSerialRequired),
		errors.Is(err, ErrUIDRequired),
		errors.Is(err, ErrInvalidProgress),
		errors.Is(err, routing.ErrInvalidStage),
		errors.Is(err, routing.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
