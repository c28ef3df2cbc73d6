package models

import "time"

// Test result values
const (
	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// TestRecord is one station result for one device, unique by serial number.
type TestRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID     string    `gorm:"size:100;not null;index" json:"device_id"`
	ProductName  string    `gorm:"size:200;not null" json:"product_name"`
	SerialNumber string    `gorm:"size:100;not null;uniqueIndex" json:"serial_number"`
	TestStation  string    `gorm:"size:100;not null" json:"test_station"`
	TestResult   string    `gorm:"size:20;not null;index" json:"test_result"`
	TestTime     time.Time `gorm:"not null;index" json:"test_time"`

	// raw measurements as JSON text
	TestData *string `gorm:"type:text" json:"test_data"`

	Voltage     *float64 `json:"voltage"`
	Current     *float64 `json:"current"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
	UUID        *string  `gorm:"column:uuid;size:100" json:"uuid"`

	UploadedToCloud bool      `gorm:"default:false;index" json:"uploaded_to_cloud"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (TestRecord) TableName() string {
	return "test_records"
}
