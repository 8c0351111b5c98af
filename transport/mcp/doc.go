// Package mcp exposes Podium Rally to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool turns into one REST call against a
// running server and the JSON answer is rendered as plain text.
//
// MCP Tools:
//   - list_tracks: Tracks available for racing
//   - create_race: Create a race with a manual seat 0 and heuristic bots
//   - start_race: Start a race created without auto_start
//   - list_races: Races on the server
//   - race_state: Every car with node, gear, hitpoints and laps to go
//   - standings: Current classification
//   - race_events: Event log with pagination
//   - pending_decision: Gear or move question a manual seat waits on
//   - select_gear: Answer a gear question
//   - select_move: Answer a move question by index
//   - race_instructions: Rules of the game
//
// Numeric arguments are accepted as JSON numbers or numeric strings.
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()) for local MCP clients
//   - HTTP: server.NewStreamableHTTPServer(client.GetMCPServer()) mounted on /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
