package dto

import "time"

// TestRecordResponse mirrors a stored test record
type TestRecordResponse struct {
	ID              int64     `json:"id"`
	DeviceID        string    `json:"device_id"`
	ProductName     string    `json:"product_name"`
	SerialNumber    string    `json:"serial_number"`
	TestStation     string    `json:"test_station"`
	TestResult      string    `json:"test_result"`
	TestTime        time.Time `json:"test_time"`
	Voltage         *float64  `json:"voltage"`
	Current         *float64  `json:"current"`
	Temperature     *float64  `json:"temperature"`
	UploadedToCloud bool      `json:"uploaded_to_cloud"`
}

// RecordQuery holds the filters of `linetest records list`
type RecordQuery struct {
	Skip       int
	Limit      int
	DeviceID   string
	TestResult string
	StartDate  string
	EndDate    string
}

type StartTestRequest struct {
	Serial string `json:"serial"`
}

type StartTestResponse struct {
	Status string   `json:"status"`
	Serial string   `json:"serial"`
	Stages []string `json:"stages"`
}

type UIDSearchRequest struct {
	UID string `json:"uid"`
}

type UIDSearchResponse struct {
	Status string `json:"status"`
	UID    string `json:"uid"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
