package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linetest/internal/microservices/http-api/dto"
	"linetest/internal/microservices/http-api/models"
)

var ErrRecordNotFound = errors.New("record not found")

type TestRecordRepository interface {
	Upsert(ctx context.Context, record *models.TestRecord) error
	GetByID(ctx context.Context, id int64) (*models.TestRecord, error)
	List(ctx context.Context, filter dto.TestRecordFilter) ([]models.TestRecord, error)
	Save(ctx context.Context, record *models.TestRecord) error
	Delete(ctx context.Context, id int64) error
	ListUnuploaded(ctx context.Context) ([]models.TestRecord, error)
	MarkUploaded(ctx context.Context, ids []int64) error
}

type testRecordRepository struct {
	db *gorm.DB
}

func NewTestRecordRepository(db *gorm.DB) TestRecordRepository {
	return &testRecordRepository{db: db}
}

// columns overwritten when a serial number is submitted again
var upsertColumns = []string{
	"device_id", "product_name", "test_station", "test_result", "test_time", "test_data",
	"voltage", "current", "temperature", "humidity", "pressure", "uuid",
	"uploaded_to_cloud", "updated_at",
}

// Upsert inserts the record or replaces the one with the same serial number.
// A replaced record is queued for upload again.
func (r *testRecordRepository) Upsert(ctx context.Context, record *models.TestRecord) error {
	record.UploadedToCloud = false
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "serial_number"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("upsert test record: %w", err)
	}
	return nil
}

func (r *testRecordRepository) GetByID(ctx context.Context, id int64) (*models.TestRecord, error) {
	var record models.TestRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get test record: %w", err)
	}
	return &record, nil
}

func (r *testRecordRepository) List(ctx context.Context, filter dto.TestRecordFilter) ([]models.TestRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.TestRecord{})

	if filter.DeviceID != "" {
		query = query.Where("device_id = ?", filter.DeviceID)
	}
	if filter.TestResult != "" {
		query = query.Where("test_result = ?", filter.TestResult)
	}
	if filter.StartDate != nil {
		query = query.Where("test_time >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("test_time <= ?", *filter.EndDate)
	}

	var records []models.TestRecord
	if err := query.
		Order("test_time DESC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list test records: %w", err)
	}
	return records, nil
}

func (r *testRecordRepository) Save(ctx context.Context, record *models.TestRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("update test record: %w", err)
	}
	return nil
}

func (r *testRecordRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.TestRecord{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete test record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *testRecordRepository) ListUnuploaded(ctx context.Context) ([]models.TestRecord, error) {
	var records []models.TestRecord
	if err := r.db.WithContext(ctx).
		Where("uploaded_to_cloud = ?", false).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list unuploaded records: %w", err)
	}
	return records, nil
}

func (r *testRecordRepository) MarkUploaded(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.TestRecord{}).
		Where("id IN ?", ids).
		Update("uploaded_to_cloud", true).Error; err != nil {
		return fmt.Errorf("mark records uploaded: %w", err)
	}
	return nil
}
