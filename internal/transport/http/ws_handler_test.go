package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/clock"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestWebSocketQuizFlow(t *testing.T) {
	service, sched := newSavedService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	conn := dial(t, server, "p1")
	defer conn.Close()

	state := readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseNotStarted })
	if state.SessionID != "" {
		t.Fatalf("expected no session yet, got %+v", state)
	}

	send(t, conn, map[string]any{
		"type":    "start",
		"payload": map[string]any{"source": "saved", "topic": "quiz-1"},
	})
	state = readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseInProgress })
	if state.Question == nil || state.Question.Prompt != `What is "2 + 2"?` {
		t.Fatalf("expected decoded prompt, got %+v", state.Question)
	}
	if state.TimeRemaining != 30 || state.QuestionCount != 1 {
		t.Fatalf("unexpected state %+v", state)
	}

	// sorted order: 3, 4, 5
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"option": 1}})
	state = readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseAnswerLocked })
	if state.Feedback == nil || !state.Feedback.Correct || state.Score != 1 {
		t.Fatalf("expected correct feedback, got %+v", state)
	}

	sched.Advance(2 * time.Second)
	state = readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseFinished })
	if state.Outcome != domain.OutcomeWon {
		t.Fatalf("expected win, got %+v", state)
	}

	send(t, conn, map[string]any{"type": "newTopic"})
	readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseNotStarted && v.SessionID == "" })
}

func TestWebSocketUnknownQuizIsRetryable(t *testing.T) {
	service, _ := newSavedService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	conn := dial(t, server, "p1")
	defer conn.Close()
	readState(t, conn, func(v domain.SessionView) bool { return true })

	send(t, conn, map[string]any{
		"type":    "start",
		"payload": map[string]any{"source": "saved", "topic": "missing"},
	})
	state := readState(t, conn, func(v domain.SessionView) bool { return v.Error != "" })
	if !state.Retryable || state.Phase != domain.PhaseNotStarted {
		t.Fatalf("expected retryable not-started state, got %+v", state)
	}
}

func TestWebSocketReportsErrors(t *testing.T) {
	service, _ := newSavedService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	conn := dial(t, server, "p1")
	defer conn.Close()
	readState(t, conn, func(v domain.SessionView) bool { return true })

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"option": 0}})
	if msg := readError(t, conn); !strings.Contains(msg, domain.ErrSessionNotFound.Error()) {
		t.Fatalf("expected session not found, got %q", msg)
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{}})
	if msg := readError(t, conn); msg != "invalid answer payload" {
		t.Fatalf("expected invalid payload, got %q", msg)
	}

	send(t, conn, map[string]any{"type": "dance"})
	if msg := readError(t, conn); msg != "unsupported message type" {
		t.Fatalf("expected unsupported type, got %q", msg)
	}

	send(t, conn, map[string]any{"type": "start", "payload": map[string]any{"source": "saved"}})
	if msg := readError(t, conn); msg != domain.ErrTopicRequired.Error() {
		t.Fatalf("expected topic required, got %q", msg)
	}
}

func TestWebSocketDisconnectTearsDownSession(t *testing.T) {
	service, _ := newSavedService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	conn := dial(t, server, "p1")
	readState(t, conn, func(v domain.SessionView) bool { return true })
	send(t, conn, map[string]any{
		"type":    "start",
		"payload": map[string]any{"source": "saved", "topic": "quiz-1"},
	})
	readState(t, conn, func(v domain.SessionView) bool { return v.Phase == domain.PhaseInProgress })
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := service.Snapshot("p1"); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session to be removed after disconnect")
}

func TestWebSocketRequiresPlayerID(t *testing.T) {
	service, _ := newSavedService()
	server := httptest.NewServer(NewRouter(service))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func newSavedService() (*app.QuizService, *clock.Manual) {
	sched := clock.NewManual()
	saved := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string][]domain.Question{
		"quiz-1": {
			{ID: "q1", Prompt: "What is &quot;2 + 2&quot;?", CorrectAnswer: "4", Distractors: []string{"3", "5"}},
		},
	}), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), map[domain.SourceKind]app.QuestionSource{
		domain.SourceSaved: saved,
	}, app.WithScheduler(sched), app.WithSettings(app.Settings{OptionOrder: app.OrderSorted}))
	return service, sched
}

func dial(t *testing.T, server *httptest.Server, playerID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?playerId=" + playerID
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, map[string]any, domain.SessionView) {
	t.Helper()
	var raw struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("read json: %v", err)
	}
	var view domain.SessionView
	var fields map[string]any
	if raw.Type == "state" {
		if err := json.Unmarshal(raw.Payload, &view); err != nil {
			t.Fatalf("decode state: %v", err)
		}
	} else if err := json.Unmarshal(raw.Payload, &fields); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return raw.Type, fields, view
}

// readState skips messages until a state matching pred arrives.
func readState(t *testing.T, conn *websocket.Conn, pred func(domain.SessionView) bool) domain.SessionView {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, _, view := readMessage(t, conn)
		if typ == "state" && pred(view) {
			return view
		}
	}
	t.Fatalf("expected state not received")
	return domain.SessionView{}
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, fields, _ := readMessage(t, conn)
		if typ == "error" {
			msg, _ := fields["message"].(string)
			return msg
		}
	}
	t.Fatalf("expected error message not received")
	return ""
}
