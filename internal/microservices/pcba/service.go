package pcba

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linetest/internal/microservices/websocket"
	"linetest/internal/routing"
)

var (
	ErrSerialRequired  = errors.New("serial is required")
	ErrUIDRequired     = errors.New("uid is required")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
)

// DefaultDebugSerial is used by the debug broadcast when no serial is given.
const DefaultDebugSerial = "NL20231203001"

// Broadcaster fans a message out to every feed subscriber. *websocket.Hub satisfies it.
type Broadcaster interface {
	Broadcast(msg *websocket.Message) error
}

// StageStore keeps the latest status per serial and stage.
type StageStore interface {
	SaveStage(ctx context.Context, rec *StageRecord) error
	GetStages(ctx context.Context, serial string) ([]*StageRecord, error)
}

// StageRunner executes one test stage on the station.
type StageRunner interface {
	Check() error
	Run(ctx context.Context, stage, serial string) (routing.StageEvent, error)
}

type Service struct {
	hub    Broadcaster
	store  StageStore  // optional
	runner StageRunner // optional, start-test fails without it
	logger *slog.Logger
}

func NewService(hub Broadcaster, store StageStore, runner StageRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{hub: hub, store: store, runner: runner, logger: logger}
}

// Normalize trims and lowercases the event and validates it
func Normalize(ev routing.StageEvent) (routing.StageEvent, error) {
	ev.Serial = strings.TrimSpace(ev.Serial)
	if ev.Serial == "" {
		return ev, ErrSerialRequired
	}
	stage, err := routing.ParseStage(ev.Stage)
	if err != nil {
		return ev, err
	}
	status, err := routing.ParseStatus(ev.Status)
	if err != nil {
		return ev, err
	}
	if ev.Progress != nil && (*ev.Progress < 0 || *ev.Progress > 100) {
		return ev, ErrInvalidProgress
	}
	ev.Stage, ev.Status = string(stage), string(status)
	return ev, nil
}

// PublishEvent validates ev, broadcasts it as a pcba_event and caches the status
func (s *Service) PublishEvent(ctx context.Context, ev routing.StageEvent) (routing.StageEvent, error) {
	ev, err := Normalize(ev)
	if err != nil {
		s.logger.Warn("pcba_event_rejected", "serial", ev.Serial, "error", err)
		return ev, err
	}
	if err := s.broadcast(ev); err != nil {
		return ev, err
	}
	s.logger.Info("pcba_event_broadcast",
		"serial", ev.Serial,
		"stage", ev.Stage,
		"status", ev.Status,
	)
	s.record(ctx, ev)
	return ev, nil
}

// DebugBroadcast pushes a fixed wifi/testing event to verify the feed end to end
func (s *Service) DebugBroadcast(serial string) (string, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		serial = DefaultDebugSerial
	}
	ev := routing.StageEvent{
		Serial: serial,
		Stage:  string(routing.StageWiFi),
		Status: string(routing.StatusTesting),
		Detail: map[string]any{"rssi": -50},
	}
	return serial, s.broadcast(ev)
}

// RunTest runs every stage in order for serial. Each stage is announced as
// testing, then its result (or a fail event) is broadcast. A stage timeout
// aborts the sequence.
func (s *Service) RunTest(ctx context.Context, serial string) ([]string, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, ErrSerialRequired
	}
	if s.runner == nil {
		return nil, ErrTesterNotFound
	}
	if err := s.runner.Check(); err != nil {
		s.logger.Error("pcba_tester_missing", "error", err)
		return nil, err
	}

	s.logger.Info("pcba_test_started", "serial", serial)
	stages := make([]string, 0, len(routing.Stages))

	for _, st := range routing.Stages {
		stage := string(st)
		stages = append(stages, stage)

		announce := routing.StageEvent{Serial: serial, Stage: stage, Status: string(routing.StatusTesting)}
		if err := s.broadcast(announce); err != nil {
			return stages, err
		}
		s.record(ctx, announce)

		result, err := s.runner.Run(ctx, stage, serial)
		if err != nil {
			s.logger.Error("pcba_stage_failed", "serial", serial, "stage", stage, "error", err)
			fail := routing.StageEvent{
				Serial: serial,
				Stage:  stage,
				Status: string(routing.StatusFail),
				Detail: map[string]any{"error": failReason(err)},
			}
			if berr := s.broadcast(fail); berr != nil {
				return stages, berr
			}
			s.record(ctx, fail)
			if errors.Is(err, ErrStageTimeout) {
				return stages, err
			}
			continue
		}

		if err := s.broadcast(result); err != nil {
			return stages, err
		}
		if normalized, err := Normalize(result); err == nil {
			s.record(ctx, normalized)
		}
		s.logger.Info("pcba_stage_completed", "serial", serial, "stage", stage, "status", result.Status)
	}

	s.logger.Info("pcba_test_completed", "serial", serial)
	return stages, nil
}

func failReason(err error) string {
	switch {
	case errors.Is(err, ErrStageTimeout):
		return ErrStageTimeout.Error()
	case errors.Is(err, ErrInvalidOutput):
		return ErrInvalidOutput.Error()
	default:
		return ErrStageFailed.Error()
	}
}

// PublishUID broadcasts a uid_search_result for the searcher station
func (s *Service) PublishUID(uid string) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", ErrUIDRequired
	}
	msg := websocket.NewMessage(websocket.TypeUIDSearchResult, routing.UIDResult{UID: uid})
	if err := s.hub.Broadcast(msg); err != nil {
		return uid, fmt.Errorf("broadcast uid result: %w", err)
	}
	s.logger.Info("uid_search_broadcast", "uid", uid)
	return uid, nil
}

// Stages returns the cached board of serial
func (s *Service) Stages(ctx context.Context, serial string) ([]*StageRecord, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, ErrSerialRequired
	}
	if s.store == nil {
		return []*StageRecord{}, nil
	}
	return s.store.GetStages(ctx, serial)
}

func (s *Service) broadcast(ev routing.StageEvent) error {
	if err := s.hub.Broadcast(websocket.NewMessage(websocket.TypePCBAEvent, ev)); err != nil {
		return fmt.Errorf("broadcast pcba event: %w", err)
	}
	return nil
}

// record caches the status; a cache failure never fails the request
func (s *Service) record(ctx context.Context, ev routing.StageEvent) {
	if s.store == nil {
		return
	}
	rec := &StageRecord{
		Serial:    ev.Serial,
		Stage:     ev.Stage,
		Status:    ev.Status,
		Detail:    ev.Detail,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveStage(ctx, rec); err != nil {
		s.logger.Warn("stage_record_failed", "serial", ev.Serial, "stage", ev.Stage, "error", err)
	}
}
