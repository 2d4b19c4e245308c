package relay

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"agent_agency/internal/domain"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log.New(io.Discard, "", 0))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := strings.TrimPrefix(r.URL.Path, "/ws/")
		_ = hub.Handle(w, r, projectID)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, projectID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + projectID
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitConnected(t *testing.T, hub *Hub, projectID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Connected(projectID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection for %s never registered", projectID)
}

func TestPublishWithoutConnection(t *testing.T) {
	hub, _ := newTestHub(t)
	env, err := domain.NewEnvelope(domain.EventError, domain.ErrorData{Message: "x"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := hub.Publish("nobody", env); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	hub, srv := newTestHub(t)
	ws := dial(t, srv, "p1")
	waitConnected(t, hub, "p1")

	types := []domain.EventType{
		domain.EventCollaborationStarted,
		domain.EventPhaseChange,
		domain.EventAgentMessage,
		domain.EventCollaborationComplete,
	}
	for _, eventType := range types {
		env, err := domain.NewEnvelope(eventType, domain.StatusData{Message: string(eventType)})
		if err != nil {
			t.Fatalf("build envelope: %v", err)
		}
		if err := hub.Publish("p1", env); err != nil {
			t.Fatalf("publish %s: %v", eventType, err)
		}
	}

	for _, want := range types {
		ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		var env domain.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			t.Fatalf("read envelope: %v", err)
		}
		if env.Type != want {
			t.Fatalf("out of order: got %s want %s", env.Type, want)
		}
	}
}

func TestProjectsAreIsolated(t *testing.T) {
	hub, srv := newTestHub(t)
	ws1 := dial(t, srv, "p1")
	ws2 := dial(t, srv, "p2")
	waitConnected(t, hub, "p1")
	waitConnected(t, hub, "p2")

	env, err := domain.NewEnvelope(domain.EventAgentMessage, domain.StatusData{Message: "for p2"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := hub.Publish("p2", env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ws2.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got domain.Envelope
	if err := ws2.ReadJSON(&got); err != nil {
		t.Fatalf("read on p2: %v", err)
	}

	ws1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := ws1.ReadJSON(&got); err == nil {
		t.Fatalf("p1 received an envelope addressed to p2: %+v", got)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	hub, srv := newTestHub(t)
	first := dial(t, srv, "p1")
	waitConnected(t, hub, "p1")

	second := dial(t, srv, "p1")
	// The replacement closes the first connection; wait for the close to land.
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	waitConnected(t, hub, "p1")

	env, err := domain.NewEnvelope(domain.EventAgentMessage, domain.StatusData{Message: "hello"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := hub.Publish("p1", env); err != nil {
		t.Fatalf("publish after reconnect: %v", err)
	}

	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got domain.Envelope
	if err := second.ReadJSON(&got); err != nil {
		t.Fatalf("read on replacement connection: %v", err)
	}
	if got.Type != domain.EventAgentMessage {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}
