package service

import (
	"context"
	"errors"
	"log/slog"

	"linetest/internal/microservices/http-api/dto"
	"linetest/internal/microservices/http-api/models"
	"linetest/internal/microservices/http-api/repository"
	"linetest/internal/microservices/websocket"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

var (
	ErrRecordNotFound = repository.ErrRecordNotFound
	ErrInvalidRange   = errors.New("skip must be >= 0 and limit between 1 and 500")
)

// Broadcaster pushes record changes to feed subscribers
type Broadcaster interface {
	Broadcast(msg *websocket.Message) error
}

type TestRecordService interface {
	Create(ctx context.Context, in dto.CreateTestRecordDTO) (*models.TestRecord, error)
	Get(ctx context.Context, id int64) (*models.TestRecord, error)
	List(ctx context.Context, filter dto.TestRecordFilter) ([]models.TestRecord, error)
	Update(ctx context.Context, id int64, in dto.UpdateTestRecordDTO) (*models.TestRecord, error)
	Delete(ctx context.Context, id int64) error
	UploadLogs(ctx context.Context, limit int) ([]models.CloudUploadLog, error)
}

type testRecordService struct {
	repo   repository.TestRecordRepository
	logs   repository.UploadLogRepository
	hub    Broadcaster // optional
	logger *slog.Logger
}

func NewTestRecordService(repo repository.TestRecordRepository, logs repository.UploadLogRepository, hub Broadcaster, logger *slog.Logger) TestRecordService {
	if logger == nil {
		logger = slog.Default()
	}
	return &testRecordService{repo: repo, logs: logs, hub: hub, logger: logger}
}

func (s *testRecordService) Create(ctx context.Context, in dto.CreateTestRecordDTO) (*models.TestRecord, error) {
	record := in.ToModel()
	if err := s.repo.Upsert(ctx, &record); err != nil {
		return nil, err
	}
	s.logger.Info("test_record_saved",
		"id", record.ID,
		"serial_number", record.SerialNumber,
		"test_result", record.TestResult,
	)
	s.announce(&record)
	return &record, nil
}

func (s *testRecordService) Get(ctx context.Context, id int64) (*models.TestRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *testRecordService) List(ctx context.Context, filter dto.TestRecordFilter) ([]models.TestRecord, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Skip < 0 || filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, ErrInvalidRange
	}
	return s.repo.List(ctx, filter)
}

func (s *testRecordService) Update(ctx context.Context, id int64, in dto.UpdateTestRecordDTO) (*models.TestRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return record, nil
	}
	in.ApplyTo(record)
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	s.announce(record)
	return record, nil
}

func (s *testRecordService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("test_record_deleted", "id", id)
	return nil
}

func (s *testRecordService) UploadLogs(ctx context.Context, limit int) ([]models.CloudUploadLog, error) {
	if limit < 1 || limit > MaxListLimit {
		limit = 50
	}
	return s.logs.List(ctx, limit)
}

// announce broadcasts a test_result message; failures are only logged
func (s *testRecordService) announce(record *models.TestRecord) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(websocket.NewMessage(websocket.TypeTestResult, record)); err != nil {
		s.logger.Warn("test_result_broadcast_failed", "id", record.ID, "error", err)
	}
}
