package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"linetest/internal/microservices/http-api/dto"
	"linetest/internal/microservices/http-api/service"
)

type TestRecordHandler struct {
	svc service.TestRecordService
}

func NewTestRecordHandler(svc service.TestRecordService) *TestRecordHandler {
	return &TestRecordHandler{svc: svc}
}

// RegisterRoutes registers the test-record routes on rg (normally /api/test-records)
func (h *TestRecordHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func (h *TestRecordHandler) Create(c *gin.Context) {
	var req dto.CreateTestRecordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := h.svc.Create(ctx, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *TestRecordHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := h.svc.List(ctx, filter)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *TestRecordHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := h.svc.Get(ctx, id)
	if err != nil {
		writeRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *TestRecordHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateTestRecordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := h.svc.Update(ctx, id, req)
	if err != nil {
		writeRecordError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *TestRecordHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Delete(ctx, id); err != nil {
		writeRecordError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadLogs serves GET /api/upload-logs
func (h *TestRecordHandler) UploadLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	logs, err := h.svc.UploadLogs(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return 0, false
	}
	return id, true
}

func writeRecordError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// parseFilter reads skip, limit, device_id, test_result, start_date and end_date.
// Dates accept RFC 3339 or a plain 2006-01-02 day.
func parseFilter(c *gin.Context) (dto.TestRecordFilter, error) {
	filter := dto.TestRecordFilter{
		DeviceID:   c.Query("device_id"),
		TestResult: c.Query("test_result"),
		Limit:      service.DefaultListLimit,
	}

	var err error
	if v := c.Query("skip"); v != "" {
		if filter.Skip, err = strconv.Atoi(v); err != nil {
			return filter, errors.New("skip must be an integer")
		}
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, errors.New("limit must be an integer")
		}
	}
	if filter.StartDate, err = parseTimeParam(c.Query("start_date")); err != nil {
		return filter, errors.New("start_date must be RFC 3339 or YYYY-MM-DD")
	}
	if filter.EndDate, err = parseTimeParam(c.Query("end_date")); err != nil {
		return filter, errors.New("end_date must be RFC 3339 or YYYY-MM-DD")
	}
	return filter, nil
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("bad time")
}
