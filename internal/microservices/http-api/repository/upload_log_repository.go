package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"linetest/internal/microservices/http-api/models"
)

type UploadLogRepository interface {
	Create(ctx context.Context, log *models.CloudUploadLog) error
	List(ctx context.Context, limit int) ([]models.CloudUploadLog, error)
}

type uploadLogRepository struct {
	db *gorm.DB
}

func NewUploadLogRepository(db *gorm.DB) UploadLogRepository {
	return &uploadLogRepository{db: db}
}

func (r *uploadLogRepository) Create(ctx context.Context, log *models.CloudUploadLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create upload log: %w", err)
	}
	return nil
}

// List returns the newest logs first
func (r *uploadLogRepository) List(ctx context.Context, limit int) ([]models.CloudUploadLog, error) {
	var logs []models.CloudUploadLog
	if err := r.db.WithContext(ctx).
		Order("upload_time DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list upload logs: %w", err)
	}
	return logs, nil
}
