// Package websocket provides the spectator feed for Podium Rally.
//
// The websocket package implements:
//   - Race-aware WebSocket connections
//   - Broadcasting of every race event as it happens
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection gets a read and a write
// goroutine; the hub loop owns delivery to their send queues.
//
// Message Protocol:
//
// Spectators only listen. Every frame holds one or more JSON messages
// separated by newlines:
//
//	{"id": "2NZ...", "race_id": "a1b2", "event": "moved", "data": {...}}
//
// Race events carry the engine event as data. Manual seats waiting for an
// answer are announced with the "decision_pending" event.
//
// Race Integration:
//
// Clients pick the race with a query parameter (/ws?race=a1b2). Hub
// implements service.Broadcaster; broadcasting never blocks the race, and
// events are dropped when the hub falls behind.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	raceService := service.NewRaceService(sessionMgr, trackMgr, hub)
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("race"))
//	})
package websocket
