package models

import "time"

// Upload log statuses
const (
	UploadSuccess = "SUCCESS"
	UploadFailed  = "FAILED"
)

// CloudUploadLog records one run of the cloud upload job.
type CloudUploadLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadTime   time.Time `gorm:"autoCreateTime;index" json:"upload_time"`
	RecordsCount int       `json:"records_count"`
	Status       string    `gorm:"size:20" json:"status"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message"`
}

func (CloudUploadLog) TableName() string {
	return "cloud_upload_logs"
}
