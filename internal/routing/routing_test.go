package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linetest/internal/eventclient"
)

func stageMsg(t *testing.T, serial, stage, status string) eventclient.Message {
	t.Helper()
	data, err := json.Marshal(StageEvent{Serial: serial, Stage: stage, Status: status})
	require.NoError(t, err)
	return eventclient.Message{Type: eventclient.TypePCBAEvent, Data: data}
}

func TestSubject_Matches(t *testing.T) {
	s := NewSubject("  SN1 ")
	assert.Equal(t, "SN1", s.Get())

	assert.True(t, s.Matches("SN1"))
	assert.True(t, s.Matches(" SN1\t"))
	assert.False(t, s.Matches("sn1"), "matching is case-sensitive")
	assert.False(t, s.Matches("SN10"))

	s.Set("")
	assert.False(t, s.Matches(""), "empty subject matches nothing")
	assert.False(t, s.Matches("SN1"))

	var zero Subject
	assert.Equal(t, "", zero.Get())
	assert.False(t, zero.Matches("SN1"))
}

func TestParseStageAndStatus(t *testing.T) {
	stage, err := ParseStage(" WiFi ")
	require.NoError(t, err)
	assert.Equal(t, StageWiFi, stage)

	_, err = ParseStage("camera")
	assert.ErrorIs(t, err, ErrInvalidStage)

	status, err := ParseStatus("PASS")
	require.NoError(t, err)
	assert.Equal(t, StatusPass, status)

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRouter_DispatchByType(t *testing.T) {
	r := NewRouter(nil)
	var got []string
	r.Handle(eventclient.TypePCBAEvent, func(m eventclient.Message) { got = append(got, "a:"+m.Type) })
	r.Handle(eventclient.TypePCBAEvent, func(m eventclient.Message) { got = append(got, "b:"+m.Type) })
	r.Handle(eventclient.TypeUIDSearchResult, func(m eventclient.Message) { got = append(got, "uid") })

	r.Dispatch(eventclient.Message{Type: eventclient.TypePCBAEvent})
	r.Dispatch(eventclient.Message{Type: "something_else"})
	r.Dispatch(eventclient.Message{Type: eventclient.TypeUIDSearchResult})

	assert.Equal(t, []string{"a:pcba_event", "b:pcba_event", "uid"}, got)
}

func TestStageBoard_AppliesOnlyMatchingSerial(t *testing.T) {
	subject := NewSubject("SN1")
	board := NewStageBoard(subject, nil)

	board.HandleStageEvent(stageMsg(t, "SN1", "wifi", "pass"))
	assert.Equal(t, StatusPass, board.Status(StageWiFi))

	board.Track("SN2")
	assert.Equal(t, "SN2", subject.Get())
	board.HandleStageEvent(stageMsg(t, "SN1", "wifi", "pass"))
	assert.Equal(t, StatusPending, board.Status(StageWiFi))
}

func TestStageBoard_TrackBetweenReceiveAndApply(t *testing.T) {
	subject := NewSubject("SN1")
	board := NewStageBoard(subject, nil)

	var serials []string
	board.OnChange(func(serial string, _ map[Stage]Status) { serials = append(serials, serial) })

	// the operator switches serial while an SN1 event is in flight
	board.beforeApply = func() { board.Track("SN2") }
	board.HandleStageEvent(stageMsg(t, "SN1", "wifi", "pass"))

	for _, s := range Stages {
		assert.Equal(t, StatusPending, board.Status(s), "stage %s", s)
	}
	assert.Equal(t, []string{"SN2"}, serials, "only the reset was reported")
}

func TestStageBoard_TrackRacingOldSerialEvents(t *testing.T) {
	for i := 0; i < 200; i++ {
		subject := NewSubject("SN1")
		board := NewStageBoard(subject, nil)

		var mu sync.Mutex
		var last string
		var lastSnap map[Stage]Status
		board.OnChange(func(serial string, snap map[Stage]Status) {
			mu.Lock()
			last, lastSnap = serial, snap
			mu.Unlock()
		})

		stop := make(chan struct{})
		done := make(chan struct{})
		msg := stageMsg(t, "SN1", "wifi", "pass")
		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
					board.HandleStageEvent(msg)
				}
			}
		}()

		board.Track("SN2")
		close(stop)
		<-done

		require.Equal(t, StatusPending, board.Status(StageWiFi), "iteration %d", i)
		mu.Lock()
		assert.Equal(t, "SN2", last)
		assert.Equal(t, StatusPending, lastSnap[StageWiFi])
		mu.Unlock()
	}
}

func TestStageBoard_NonMatchingEventHasNoSideEffects(t *testing.T) {
	subject := NewSubject("SN1")
	board := NewStageBoard(subject, nil)
	changes := 0
	board.OnChange(func(string, map[Stage]Status) { changes++ })

	before := board.Snapshot()
	board.HandleStageEvent(stageMsg(t, "SN9", "touch", "fail"))
	board.HandleStageEvent(stageMsg(t, "sn1", "touch", "fail"))
	board.HandleStageEvent(stageMsg(t, "SN1", "camera", "fail"))
	board.HandleStageEvent(stageMsg(t, "SN1", "touch", "broken"))
	board.HandleStageEvent(eventclient.Message{Type: eventclient.TypePCBAEvent, Data: []byte(`"nope"`)})
	board.HandleStageEvent(eventclient.Message{Type: eventclient.TypeEcho, Data: []byte(`{"serial":"SN1","stage":"touch","status":"fail"}`)})

	assert.Equal(t, before, board.Snapshot())
	assert.Zero(t, changes)
}

func TestStageBoard_TrimsSerialAndNormalizesValues(t *testing.T) {
	board := NewStageBoard(NewSubject("SN1"), nil)
	board.HandleStageEvent(stageMsg(t, "  SN1  ", " Speaker", "TESTING"))
	assert.Equal(t, StatusTesting, board.Status(StageSpeaker))
}

func TestStageBoard_ReadsSubjectAtDeliveryTime(t *testing.T) {
	subject := NewSubject("SN1")
	board := NewStageBoard(subject, nil)
	handler := board.HandleStageEvent // registered while subject is SN1

	subject.Set("SN2")
	handler(stageMsg(t, "SN1", "wifi", "pass"))
	assert.Equal(t, StatusPending, board.Status(StageWiFi))

	handler(stageMsg(t, "SN2", "wifi", "pass"))
	assert.Equal(t, StatusPass, board.Status(StageWiFi))
}

func TestStageBoard_Verdict(t *testing.T) {
	board := NewStageBoard(NewSubject("SN1"), nil)
	assert.Equal(t, StatusPending, board.Verdict())

	board.HandleStageEvent(stageMsg(t, "SN1", "wifi", "testing"))
	assert.Equal(t, StatusTesting, board.Verdict())

	for _, s := range Stages {
		board.HandleStageEvent(stageMsg(t, "SN1", string(s), "pass"))
	}
	assert.Equal(t, StatusPass, board.Verdict())

	board.HandleStageEvent(stageMsg(t, "SN1", "bluetooth", "fail"))
	assert.Equal(t, StatusFail, board.Verdict())

	board.Reset()
	assert.Equal(t, StatusPending, board.Verdict())
}

func TestUIDSink(t *testing.T) {
	var notified []string
	sink := NewUIDSink(nil, func(uid string) { notified = append(notified, uid) })

	_, ok := sink.Last()
	assert.False(t, ok)

	sink.HandleUIDResult(eventclient.Message{Type: eventclient.TypeUIDSearchResult, Data: []byte(`{"uid":" NL-0042 "}`)})
	sink.HandleUIDResult(eventclient.Message{Type: eventclient.TypeUIDSearchResult, Data: []byte(`{"uid":""}`)})
	sink.HandleUIDResult(eventclient.Message{Type: eventclient.TypePCBAEvent, Data: []byte(`{"uid":"other"}`)})

	uid, ok := sink.Last()
	require.True(t, ok)
	assert.Equal(t, "NL-0042", uid)
	assert.Equal(t, []string{"NL-0042"}, notified)
}

// End to end: a gorilla feed server, the reconnecting client and a router.
func TestRouting_OverLiveClient(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer srv.Close()

	subject := NewSubject("SN1")
	board := NewStageBoard(subject, nil)
	uids := NewUIDSink(nil, nil)

	var mu sync.Mutex
	updates := 0
	board.OnChange(func(string, map[Stage]Status) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	board.Reset()

	router := NewRouter(nil)
	router.Handle(eventclient.TypePCBAEvent, board.HandleStageEvent)
	router.Handle(eventclient.TypeUIDSearchResult, uids.HandleUIDResult)

	client := eventclient.New(eventclient.WithHandler(router.Dispatch))
	client.Start("ws" + strings.TrimPrefix(srv.URL, "http"))
	defer client.Stop()

	var server *websocket.Conn
	select {
	case server = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
	}
	defer server.Close()

	send := func(frame string) {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(frame)))
	}

	send(`{"type":"pcba_event","data":{"serial":"SN2","stage":"wifi","status":"fail"}}`)
	send(`{"type":"pcba_event","data":{"serial":"SN1","stage":"wifi","status":"pass"}}`)
	send(`{"type":"uid_search_result","data":{"uid":"NL-7"}}`)

	require.Eventually(t, func() bool {
		_, ok := uids.Last()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StatusPass, board.Status(StageWiFi))
	mu.Lock()
	assert.Equal(t, 2, updates, "reset plus one accepted event")
	mu.Unlock()
}
