package pcba

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"linetest/internal/microservices/http-api/middleware"
)

const stationSecret = "0123456789abcdef0123456789abcdef"

// --- SETUP ---

func setupRouter(svc *Service, auth gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/pcba"), auth)
	return r
}

func perform(r *gin.Engine, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// --- TESTS ---

func TestReceiveEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCalls  int
	}{
		{"accepted", map[string]any{"serial": " SN1 ", "stage": "WiFi", "status": "pass"}, http.StatusAccepted, 1},
		{"with progress", map[string]any{"serial": "SN1", "stage": "firmware", "status": "testing", "progress": 40}, http.StatusAccepted, 1},
		{"missing serial", map[string]any{"stage": "wifi", "status": "pass"}, http.StatusBadRequest, 0},
		{"invalid stage", map[string]any{"serial": "SN1", "stage": "camera", "status": "pass"}, http.StatusBadRequest, 0},
		{"invalid status", map[string]any{"serial": "SN1", "stage": "wifi", "status": "done"}, http.StatusBadRequest, 0},
		{"progress out of range", map[string]any{"serial": "SN1", "stage": "wifi", "status": "testing", "progress": 150}, http.StatusBadRequest, 0},
		{"not json", "{", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := new(MockBroadcaster)
			hub.On("Broadcast", mock.Anything).Return(nil)
			r := setupRouter(NewService(hub, &memoryStore{}, nil, nil), nil)

			w := perform(r, http.MethodPost, "/api/pcba/events", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			hub.AssertNumberOfCalls(t, "Broadcast", tt.wantCalls)
		})
	}
}

func TestReceiveEvent_ResponseBody(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(nil)
	r := setupRouter(NewService(hub, nil, nil, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/events", map[string]any{"serial": " SN1 ", "stage": "Speaker", "status": "FAIL"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, map[string]any{
		"status": "accepted",
		"serial": "SN1",
		"stage":  "speaker",
		"state":  "fail",
	}, decodeBody(t, w))
}

func TestReceiveEvent_BroadcastFailure(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(errBoom)
	r := setupRouter(NewService(hub, nil, nil, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/events", map[string]any{"serial": "SN1", "stage": "wifi", "status": "pass"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReceiveEvent_StationAuth(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(nil)
	r := setupRouter(NewService(hub, nil, nil, nil), middleware.StationAuth(stationSecret))
	body := map[string]any{"serial": "SN1", "stage": "wifi", "status": "pass"}

	w := perform(r, http.MethodPost, "/api/pcba/events", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	uidOnly, err := middleware.IssueStationToken(stationSecret, "searcher", []string{middleware.ScopeUIDWrite}, time.Hour)
	require.NoError(t, err)
	w = perform(r, http.MethodPost, "/api/pcba/events", body, "Authorization", "Bearer "+uidOnly)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, err := middleware.IssueStationToken(stationSecret, "pcba-01", []string{middleware.ScopeEventsWrite}, time.Hour)
	require.NoError(t, err)
	w = perform(r, http.MethodPost, "/api/pcba/events", body, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// debug and read endpoints stay open
	w = perform(r, http.MethodGet, "/api/pcba/stages/SN1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDebugBroadcast(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(nil)
	r := setupRouter(NewService(hub, nil, nil, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/debug-broadcast?serial=SN42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SN42", decodeBody(t, w)["serial"])

	events := hub.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "SN42", events[0].Serial)
}

func TestStartTest(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(nil)
	tester := NewTester(writeScript(t, fakeTester), 5*time.Second)
	r := setupRouter(NewService(hub, &memoryStore{}, tester, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/start-test", map[string]any{"serial": "SN5"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, []any{"wifi", "firmware", "touch", "bluetooth", "speaker"}, body["stages"])

	events := hub.events(t)
	require.Len(t, events, 10)
	assert.Equal(t, "pass", events[1].Status)
	assert.Equal(t, "fail", events[5].Status) // touch exits non-zero
	assert.Equal(t, "fail", events[9].Status) // speaker prints garbage

	w = perform(r, http.MethodGet, "/api/pcba/stages/SN5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["stages"], 5)
}

func TestStartTest_Errors(t *testing.T) {
	hub := new(MockBroadcaster)
	missing := NewTester("/nonexistent/pcba_demo", time.Second)
	r := setupRouter(NewService(hub, nil, missing, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/start-test", map[string]any{"serial": "SN5"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "not found")

	w = perform(r, http.MethodPost, "/api/pcba/start-test", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/api/pcba/start-test", map[string]any{"serial": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	hub.AssertNotCalled(t, "Broadcast", mock.Anything)
}

func TestUIDSearch(t *testing.T) {
	hub := new(MockBroadcaster)
	hub.On("Broadcast", mock.Anything).Return(nil)
	r := setupRouter(NewService(hub, nil, nil, nil), nil)

	w := perform(r, http.MethodPost, "/api/pcba/uid-search", map[string]any{"uid": "NL-20250101-0001"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NL-20250101-0001", decodeBody(t, w)["uid"])

	w = perform(r, http.MethodPost, "/api/pcba/uid-search", map[string]any{"uid": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	hub.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestGetStages_StoreFailure(t *testing.T) {
	r := setupRouter(NewService(new(MockBroadcaster), &memoryStore{err: errBoom}, nil, nil), nil)
	w := perform(r, http.MethodGet, "/api/pcba/stages/SN1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
