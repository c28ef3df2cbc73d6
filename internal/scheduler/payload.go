package scheduler

import (
	"time"

	"linetest/internal/microservices/http-api/models"
)

type uploadPayload struct {
	Records []uploadRecord `json:"records"`
}

type uploadRecord struct {
	ID           int64    `json:"id"`
	DeviceID     string   `json:"device_id"`
	ProductName  string   `json:"product_name"`
	SerialNumber string   `json:"serial_number"`
	TestStation  string   `json:"test_station"`
	TestResult   string   `json:"test_result"`
	TestTime     string   `json:"test_time"`
	TestData     *string  `json:"test_data"`
	Voltage      *float64 `json:"voltage"`
	Current      *float64 `json:"current"`
	Temperature  *float64 `json:"temperature"`
}

func newPayload(records []models.TestRecord) uploadPayload {
	out := uploadPayload{Records: make([]uploadRecord, 0, len(records))}
	for _, r := range records {
		out.Records = append(out.Records, uploadRecord{
			ID:           r.ID,
			DeviceID:     r.DeviceID,
			ProductName:  r.ProductName,
			SerialNumber: r.SerialNumber,
			TestStation:  r.TestStation,
			TestResult:   r.TestResult,
			TestTime:     r.TestTime.Format(time.RFC3339),
			TestData:     r.TestData,
			Voltage:      r.Voltage,
			Current:      r.Current,
			Temperature:  r.Temperature,
		})
	}
	return out
}
