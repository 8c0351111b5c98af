package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/podium-rally/game/engine"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.races == nil {
		t.Error("Hub races map is nil")
	}
	if hub.broadcast == nil {
		t.Error("Hub broadcast channel is nil")
	}
	if hub.register == nil {
		t.Error("Hub register channel is nil")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel is nil")
	}
}

func newTestClient(hub *Hub, raceID string) *Client {
	return &Client{
		hub:    hub,
		raceID: raceID,
		send:   make(chan []byte, 256),
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-race")

	hub.registerClient(client)

	if !hub.races["test-race"][client] {
		t.Error("Client was not registered in race")
	}
	if hub.ClientCount("test-race") != 1 {
		t.Errorf("Expected 1 client in race, got %d", hub.ClientCount("test-race"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-race")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.races["test-race"]; exists {
		t.Error("Race should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInRace(t *testing.T) {
	hub := NewHub()
	raceID := "multi-client-race"

	client1 := newTestClient(hub, raceID)
	client2 := newTestClient(hub, raceID)
	other := newTestClient(hub, "other-race")

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	if hub.ClientCount(raceID) != 2 {
		t.Errorf("Expected 2 clients in race, got %d", hub.ClientCount(raceID))
	}

	hub.unregisterClient(client1)

	if hub.ClientCount(raceID) != 1 {
		t.Errorf("Expected 1 client remaining in race, got %d", hub.ClientCount(raceID))
	}
	if !hub.races[raceID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastRaceEvent(t *testing.T) {
	hub := NewHub()
	raceID := "broadcast-test"

	client := newTestClient(hub, raceID)
	bystander := newTestClient(hub, "other-race")
	hub.registerClient(client)
	hub.registerClient(bystander)

	hub.BroadcastRaceEvent(raceID, engine.Event{Type: engine.EventMoved, Turn: 4, Seat: 2, Node: 17, Path: []int{16, 17}})
	hub.broadcastMessage(<-hub.broadcast)

	select {
	case data := <-client.send:
		var message struct {
			ID     string       `json:"id"`
			RaceID string       `json:"race_id"`
			Event  string       `json:"event"`
			Data   engine.Event `json:"data"`
		}
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.RaceID != raceID {
			t.Errorf("Expected race %s, got %s", raceID, message.RaceID)
		}
		if message.Event != "moved" {
			t.Errorf("Expected event 'moved', got %s", message.Event)
		}
		if message.ID == "" {
			t.Error("Expected a message id")
		}
		if message.Data.Seat != 2 || message.Data.Node != 17 || len(message.Data.Path) != 2 {
			t.Errorf("Event not correctly transmitted: %+v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No message received within timeout")
	}

	select {
	case <-bystander.send:
		t.Error("Spectator of another race received the event")
	default:
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", "custom-event", "test-data")
	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	first := <-hub.broadcast
	second := <-hub.broadcast
	if first.RaceID != "event-test" || first.Event != "custom-event" || first.Data != "test-data" {
		t.Errorf("unexpected message: %+v", first)
	}
	if first.ID == second.ID {
		t.Error("Expected distinct message ids")
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		// Nobody runs the hub loop
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastRaceEvent("full", engine.Event{Type: engine.EventRoll})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastRaceEvent blocked on a full hub")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected %d queued messages, got %d", broadcastBuffer, len(hub.broadcast))
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, raceID: "slow", send: make(chan []byte, 1)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{RaceID: "slow", Event: "a"})
	hub.broadcastMessage(&Message{RaceID: "slow", Event: "b"})

	if hub.ClientCount("slow") != 0 {
		t.Error("Expected client with a full queue to be dropped")
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raceID := r.URL.Query().Get("race")
		if raceID == "" {
			raceID = "default"
		}
		hub.ServeWS(w, r, raceID)
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, raceID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?race=" + raceID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, hub *Hub, raceID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(raceID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients in race %s, got %d", want, raceID, hub.ClientCount(raceID))
}

func TestWebSocketUpgrade(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "ws-test")
	waitClients(t, hub, "ws-test", 1)

	conn.Close()
	waitClients(t, hub, "ws-test", 0)
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "msg-test")
	defer conn.Close()
	waitClients(t, hub, "msg-test", 1)

	for turn := 1; turn <= 3; turn++ {
		hub.BroadcastRaceEvent("msg-test", engine.Event{Type: engine.EventGear, Turn: turn, Value: turn})
	}

	// Queued messages may share one frame, separated by newlines
	var messages []Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(messages) < 3 {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			var message Message
			if err := json.Unmarshal(line, &message); err != nil {
				t.Fatalf("Failed to unmarshal message: %v", err)
			}
			messages = append(messages, message)
		}
	}

	for i, message := range messages {
		if message.RaceID != "msg-test" || message.Event != "gear" {
			t.Errorf("messages[%d] = %+v", i, message)
		}
		data := message.Data.(map[string]interface{})
		if int(data["turn"].(float64)) != i+1 {
			t.Errorf("messages[%d] out of order: turn %v", i, data["turn"])
		}
	}
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := newTestClient(hub, "bye")
	hub.register <- client
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if hub.ClientCount("bye") != 0 {
		t.Error("Expected clients to be dropped when the hub stops")
	}
}
