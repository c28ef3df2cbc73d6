package pcba

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"linetest/internal/microservices/websocket"
	"linetest/internal/routing"
)

// --- MOCK BROADCASTER ---

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(msg *websocket.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

// events decodes every broadcast pcba_event in call order
func (m *MockBroadcaster) events(t *testing.T) []routing.StageEvent {
	t.Helper()
	var out []routing.StageEvent
	for _, call := range m.Calls {
		msg := call.Arguments.Get(0).(*websocket.Message)
		if msg.Type != websocket.TypePCBAEvent {
			continue
		}
		raw, err := json.Marshal(msg.Data)
		require.NoError(t, err)
		var ev routing.StageEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		out = append(out, ev)
	}
	return out
}

// --- FAKE STORES ---

type memoryStore struct {
	mu      sync.Mutex
	records []*StageRecord
	err     error
}

func (s *memoryStore) SaveStage(_ context.Context, rec *StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) GetStages(_ context.Context, serial string) ([]*StageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	latest := map[string]*StageRecord{}
	var order []string
	for _, r := range s.records {
		if r.Serial != serial {
			continue
		}
		if _, ok := latest[r.Stage]; !ok {
			order = append(order, r.Stage)
		}
		latest[r.Stage] = r
	}
	out := make([]*StageRecord, 0, len(order))
	for _, st := range order {
		out = append(out, latest[st])
	}
	return out, nil
}

func (s *memoryStore) saved() []*StageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*StageRecord(nil), s.records...)
}

type memoryHistory struct {
	mu      sync.Mutex
	batches [][]*StageRecord
	latest  []*StageRecord
	err     error
}

func (h *memoryHistory) BatchInsert(_ context.Context, batch []*StageRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.batches = append(h.batches, append([]*StageRecord(nil), batch...))
	return nil
}

func (h *memoryHistory) Latest(_ context.Context, serial string) ([]*StageRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.err
}

func (h *memoryHistory) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.batches {
		n += len(b)
	}
	return n
}

// --- FAKE RUNNER ---

type scriptedRunner struct {
	missing bool
	results map[string]routing.StageEvent
	errs    map[string]error
}

func (r *scriptedRunner) Check() error {
	if r.missing {
		return ErrTesterNotFound
	}
	return nil
}

func (r *scriptedRunner) Run(_ context.Context, stage, serial string) (routing.StageEvent, error) {
	if err, ok := r.errs[stage]; ok {
		return routing.StageEvent{}, err
	}
	if ev, ok := r.results[stage]; ok {
		return ev, nil
	}
	return routing.StageEvent{Serial: serial, Stage: stage, Status: "pass"}, nil
}

var errBoom = errors.New("boom")
