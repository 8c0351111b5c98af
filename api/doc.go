// Package api provides HTTP REST API handlers for Podium Rally.
//
// The api package implements:
//   - Track listing and track layouts
//   - Race creation, start, inspection and deletion
//   - Answers for manually driven seats
//   - WebSocket upgrade for spectators
//
// Endpoints:
//
// Tracks:
//   - GET /api/tracks - List available tracks
//   - GET /api/tracks/{id} - Full layout: nodes, lanes, curve areas, pit lane
//
// Races:
//   - POST /api/races - Create a race
//   - GET /api/races - List races (sort=created|accessed, order, status, limit)
//   - GET /api/races/{id} - Race info with seats and standings
//   - DELETE /api/races/{id} - Stop and forget a race
//   - POST /api/races/{id}/start - Start the race
//   - GET /api/races/{id}/state - Race snapshot
//   - GET /api/races/{id}/standings - Current classification
//   - GET /api/races/{id}/events - Event log with pagination
//
// Manual Seats:
//   - GET /api/races/{id}/seats/{seat}/pending - Question the seat waits on
//   - POST /api/races/{id}/seats/{seat}/gear - Answer with {"gear": n}
//   - POST /api/races/{id}/seats/{seat}/move - Answer with {"index": n}
//
// Other:
//   - GET /ws?race={id} - Spectator feed
//   - GET /health - Liveness probe
//
// Creating a race:
//
//	{
//	  "track_id": "oval",
//	  "laps": 2,
//	  "seed": 42,
//	  "entrants": [
//	    {"name": "You", "kind": "manual"},
//	    {"name": "Bot"},
//	    {"name": "Peer", "kind": "remote", "url": "ws://host:9000", "fallback": true}
//	  ],
//	  "auto_start": true
//	}
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status matching the cause: 404
// for unknown races, seats and tracks, 409 for answers nobody asked for and
// races already started, 400 for bad input.
//
//	{"error": "race not found: a1b2 (session not found)"}
package api
