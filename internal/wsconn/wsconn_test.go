package wsconn

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/flasharb/internal/logger"
)

type event struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(DefaultConfig(), logger.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	defer a.CloseNow()
	b := dial(t, srv)
	defer b.CloseNow()
	waitClients(t, hub, 2)

	if err := hub.Broadcast(context.Background(), event{Type: "scan", Count: 3}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var got event
		err := wsjson.Read(ctx, conn, &got)
		cancel()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got.Type != "scan" || got.Count != 3 {
			t.Errorf("got %+v", got)
		}
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(DefaultConfig(), logger.Discard())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	conn.Close(websocket.StatusNormalClosure, "")
	waitClients(t, hub, 0)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(Config{SendBuffer: 1, WriteTimeout: time.Second}, logger.Discard())

	slow := &client{send: make(chan []byte, 1)}
	hub.register(slow)

	ctx := context.Background()
	_ = hub.Broadcast(ctx, event{Count: 1})
	_ = hub.Broadcast(ctx, event{Count: 2})

	if hub.Clients() != 0 {
		t.Errorf("clients = %d, want slow client dropped", hub.Clients())
	}
}

func TestHub_CloseRejectsBroadcast(t *testing.T) {
	hub := NewHub(DefaultConfig(), logger.Discard())
	hub.Close()

	if err := hub.Broadcast(context.Background(), event{}); err == nil {
		t.Error("expected error after Close")
	}
}
