package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	debatemodel "github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
	debateservice "github.com/zhouzirui/z-debate/backend/internal/service/debate"
	topicservice "github.com/zhouzirui/z-debate/backend/internal/service/topic"
)

type echoCompleter struct{}

func (echoCompleter) GenerateSpeakerUtterance(_ context.Context, sp speaker.Speaker, _ string, t topic.Topic, question string) (string, error) {
	if question != "" {
		return fmt.Sprintf("%s answers %q", sp.Name, question), nil
	}
	return fmt.Sprintf("%s on %s", sp.Name, t), nil
}

type stubTopics struct{}

func (stubTopics) Generate(context.Context) topicservice.Result {
	return topicservice.Result{Topic: "Robots in Parliament", Generated: true}
}

type received struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func newTestServer(t *testing.T, origins []string) (*httptest.Server, *debateservice.Orchestrator) {
	t.Helper()

	speakers := speaker.NewMemoryStore([]speaker.Speaker{{Name: "A"}, {Name: "B"}})
	topics := topic.NewMemoryStore([]topic.Topic{"T"})
	orchestrator := debateservice.NewOrchestrator(echoCompleter{}, speakers, topics, config.DebateConfig{}, nil)

	h := NewWebSocketHandler(orchestrator, stubTopics{}, origins, nil)
	h.newID = func() string { return "conn-1" }

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, orchestrator
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) received {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg received
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, ws *websocket.Conn, msgType string, data any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, ws.WriteJSON(msg))
}

func TestWebSocketDebateFlow(t *testing.T) {
	server, orchestrator := newTestServer(t, nil)
	ws := dial(t, server)

	connected := readEvent(t, ws)
	assert.Equal(t, TypeConnected, connected.Type)
	assert.JSONEq(t, `{"connectionId":"conn-1"}`, string(connected.Data))
	assert.NotZero(t, connected.Timestamp)

	send(t, ws, TypeStartDebate, StartPayload{Speaker1: "A", Speaker2: "B", Topic: "T"})
	first := readEvent(t, ws)
	require.Equal(t, TypeTurnComplete, first.Type)
	assert.NotEmpty(t, first.SessionID)
	assert.JSONEq(t, `{"speaker":"A","message":"A on T"}`, string(first.Data))

	send(t, ws, TypeSendQuestion, QuestionPayload{Question: "Why?"})
	second := readEvent(t, ws)
	require.Equal(t, TypeTurnComplete, second.Type)
	assert.Equal(t, first.SessionID, second.SessionID)

	var turn debatemodel.TurnComplete
	require.NoError(t, json.Unmarshal(second.Data, &turn))
	assert.Equal(t, "B", turn.Speaker)
	assert.Equal(t, `B answers "Why?"`, turn.Message)

	send(t, ws, TypeContinueDebate, nil)
	third := readEvent(t, ws)
	require.Equal(t, TypeTurnComplete, third.Type)
	assert.JSONEq(t, `{"speaker":"A","message":"A on T"}`, string(third.Data))

	snap, ok := orchestrator.Snapshot("conn-1")
	require.True(t, ok)
	assert.Equal(t, 3, snap.TurnIndex)
}

func TestWebSocketErrors(t *testing.T) {
	server, _ := newTestServer(t, nil)
	ws := dial(t, server)
	readEvent(t, ws)

	cases := []struct {
		name    string
		msgType string
		data    any
		message string
	}{
		{name: "no session", msgType: TypeSendQuestion, data: QuestionPayload{Question: "Hello?"}, message: "no active debate session"},
		{name: "unknown speaker", msgType: TypeStartDebate, data: StartPayload{Speaker1: "Z", Speaker2: "B", Topic: "T"}, message: `unknown entity: speaker "Z"`},
		{name: "missing data", msgType: TypeStartDebate, message: "startDebate requires data"},
		{name: "bad payload", msgType: TypeSendQuestion, data: "not an object", message: "invalid sendQuestion payload"},
		{name: "unknown type", msgType: "dance", message: "unsupported message type: dance"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send(t, ws, tc.msgType, tc.data)
			event := readEvent(t, ws)
			require.Equal(t, TypeError, event.Type)

			var payload debatemodel.ErrorEvent
			require.NoError(t, json.Unmarshal(event.Data, &payload))
			assert.Equal(t, tc.message, payload.Message)
		})
	}

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	event := readEvent(t, ws)
	assert.Equal(t, TypeError, event.Type)
}

func TestWebSocketGenerateTopic(t *testing.T) {
	server, _ := newTestServer(t, nil)
	ws := dial(t, server)
	readEvent(t, ws)

	send(t, ws, TypeGenerateTopic, nil)
	event := readEvent(t, ws)
	require.Equal(t, TypeTopic, event.Type)
	assert.JSONEq(t, `{"topic":"Robots in Parliament","generated":true}`, string(event.Data))
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	server, orchestrator := newTestServer(t, nil)
	ws := dial(t, server)
	readEvent(t, ws)

	send(t, ws, TypeStartDebate, StartPayload{Speaker1: "A", Speaker2: "B", Topic: "T"})
	readEvent(t, ws)
	require.Equal(t, 1, orchestrator.ActiveSessions())

	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		return orchestrator.ActiveSessions() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	server, _ := newTestServer(t, []string{"http://localhost:3000"})
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:3000")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = ws.Close()
}
