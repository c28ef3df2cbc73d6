package dto

import (
	"time"

	"linetest/internal/microservices/http-api/models"
)

// CreateTestRecordDTO used for POST /api/test-records
type CreateTestRecordDTO struct {
	DeviceID     string    `json:"device_id" binding:"required"`
	ProductName  string    `json:"product_name" binding:"required"`
	SerialNumber string    `json:"serial_number" binding:"required"`
	TestStation  string    `json:"test_station" binding:"required"`
	TestResult   string    `json:"test_result" binding:"required,oneof=PASS FAIL"`
	TestTime     time.Time `json:"test_time" binding:"required"`
	TestData     *string   `json:"test_data,omitempty"`
	Voltage      *float64  `json:"voltage,omitempty"`
	Current      *float64  `json:"current,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	Pressure     *float64  `json:"pressure,omitempty"`
	UUID         *string   `json:"uuid,omitempty"`
}

// UpdateTestRecordDTO used for PUT /api/test-records/:id (partial updates allowed)
type UpdateTestRecordDTO struct {
	DeviceID    *string  `json:"device_id,omitempty"`
	ProductName *string  `json:"product_name,omitempty"`
	TestResult  *string  `json:"test_result,omitempty" binding:"omitempty,oneof=PASS FAIL"`
	TestData    *string  `json:"test_data,omitempty"`
	Voltage     *float64 `json:"voltage,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
	UUID        *string  `json:"uuid,omitempty"`
}

// TestRecordFilter narrows GET /api/test-records
type TestRecordFilter struct {
	Skip       int
	Limit      int
	DeviceID   string
	TestResult string
	StartDate  *time.Time
	EndDate    *time.Time
}

// Converters
func (d CreateTestRecordDTO) ToModel() models.TestRecord {
	return models.TestRecord{
		DeviceID:     d.DeviceID,
		ProductName:  d.ProductName,
		SerialNumber: d.SerialNumber,
		TestStation:  d.TestStation,
		TestResult:   d.TestResult,
		TestTime:     d.TestTime,
		TestData:     d.TestData,
		Voltage:      d.Voltage,
		Current:      d.Current,
		Temperature:  d.Temperature,
		Humidity:     d.Humidity,
		Pressure:     d.Pressure,
		UUID:         d.UUID,
	}
}

// Empty reports whether the update carries no field at all
func (d UpdateTestRecordDTO) Empty() bool {
	return d.DeviceID == nil && d.ProductName == nil && d.TestResult == nil && d.TestData == nil &&
		d.Voltage == nil && d.Current == nil && d.Temperature == nil && d.Humidity == nil &&
		d.Pressure == nil && d.UUID == nil
}

func (d UpdateTestRecordDTO) ApplyTo(r *models.TestRecord) {
	if d.DeviceID != nil {
		r.DeviceID = *d.DeviceID
	}
	if d.ProductName != nil {
		r.ProductName = *d.ProductName
	}
	if d.TestResult != nil {
		r.TestResult = *d.TestResult
	}
	if d.TestData != nil {
		r.TestData = d.TestData
	}
	if d.Voltage != nil {
		r.Voltage = d.Voltage
	}
	if d.Current != nil {
		r.Current = d.Current
	}
	if d.Temperature != nil {
		r.Temperature = d.Temperature
	}
	if d.Humidity != nil {
		r.Humidity = d.Humidity
	}
	if d.Pressure != nil {
		r.Pressure = d.Pressure
	}
	if d.UUID != nil {
		r.UUID = d.UUID
	}
}
