package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is one named step of the PCBA inspection sequence.
type Stage string

const (
	StageWiFi      Stage = "wifi"
	StageFirmware  Stage = "firmware"
	StageTouch     Stage = "touch"
	StageBluetooth Stage = "bluetooth"
	StageSpeaker   Stage = "speaker"
)

// Stages lists every stage in the order the tester runs them.
var Stages = []Stage{StageWiFi, StageFirmware, StageTouch, StageBluetooth, StageSpeaker}

type Status string

const (
	StatusPending Status = "pending"
	StatusTesting Status = "testing"
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
)

var (
	ErrInvalidStage  = errors.New("invalid stage")
	ErrInvalidStatus = errors.New("invalid status")
)

// ParseStage normalizes s (trim + lowercase) and checks it is a known stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Stages {
		if stage == known {
			return stage, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// ParseStatus normalizes s (trim + lowercase) and checks it is a known status.
func ParseStatus(s string) (Status, error) {
	switch status := Status(strings.ToLower(strings.TrimSpace(s))); status {
	case StatusPending, StatusTesting, StatusPass, StatusFail:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// StageEvent is the data payload of a pcba_event message.
type StageEvent struct {
	Serial    string         `json:"serial"`
	Stage     string         `json:"stage"`
	Status    string         `json:"status"`
	Progress  *int           `json:"progress,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// UIDResult is the data payload of a uid_search_result message.
type UIDResult struct {
	UID string `json:"uid"`
}
