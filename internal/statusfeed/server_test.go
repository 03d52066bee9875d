package statusfeed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Awaneesh03/digital-life-dashboard/internal/syncengine"
)

func startServer(t *testing.T) *Server {
	t.Helper()

	s := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func TestStateChangeReachesConnectedWidget(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)

	s.StateChanged(syncengine.State{Mode: syncengine.ModeSyncing, Pending: 2})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeState {
		t.Fatalf("expected %s message, got %s", MessageTypeState, msg.Type)
	}
	var state StateData
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if state.Mode != "syncing" || state.Pending != 2 {
		t.Errorf("expected syncing/2, got %+v", state)
	}
}

func TestLateJoinerGetsLastKnownState(t *testing.T) {
	s := startServer(t)

	s.StateChanged(syncengine.State{Mode: syncengine.ModeOffline, Pending: 3})
	conn := dial(t, s)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeState {
		t.Fatalf("expected replayed state, got %s", msg.Type)
	}
	var state StateData
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if state.Mode != "offline" || state.Pending != 3 {
		t.Errorf("expected offline/3, got %+v", state)
	}
}

func TestFailureNoticeBroadcast(t *testing.T) {
	s := startServer(t)
	conn := dial(t, s)

	s.SyncFailed("update", "expenses")

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncFailed {
		t.Fatalf("expected %s message, got %s", MessageTypeSyncFailed, msg.Type)
	}
	var data SyncFailedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to decode notice: %v", err)
	}
	if data.Op != "update" || data.Collection != "expenses" {
		t.Errorf("unexpected notice: %+v", data)
	}
}
