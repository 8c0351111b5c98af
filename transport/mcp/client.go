package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Podium Rally",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Podium Rally - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Drive a car around a lane graph track and cross the finish line after the
last lap before everybody else. Each turn you pick a gear, a die is rolled
for that gear and you choose where to end up among the offered moves.

AVAILABLE TOOLS:
- list_tracks: Tracks you can race on
- create_race: Create a race you drive in (seat 0) against bots
- start_race: Start a created race
- list_races: Races on the server
- race_state: Positions, gears and hitpoints of every car
- standings: Current classification
- race_events: What happened so far, page by page
- pending_decision: The question your seat waits on, if any
- select_gear: Answer a gear question
- select_move: Answer a move question with the index of a listed move
- race_instructions: Full rules

NOTE: Manual seats have a time budget. Poll pending_decision and answer promptly.`),
	)

	// Register all tools
	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Tracks
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tracks",
		Description: "List the tracks available for racing",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTracks)

	// Race management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_race",
		Description: "Create a race. Seat 0 is yours and waits for your answers; 'bots' heuristic cars take the following seats.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"track_id": stringProp("Track to race on (optional, default track otherwise)"),
				"name":     stringProp("Your driver name (optional)"),
				"bots":     intProp("Number of heuristic opponents (default 2)"),
				"laps":     intProp("Laps to race (optional, track default otherwise)"),
				"seed":     intProp("Dice seed for a reproducible race (optional)"),
				"auto_start": map[string]interface{}{
					"type":        "boolean",
					"description": "Start the race right away (default true)",
				},
			},
		},
	}, c.handleCreateRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_race",
		Description: "Start a race that was created without auto_start",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race to start"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleStartRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_races",
		Description: "List races on the server, most recently used first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": stringProp("Only races in this status: waiting, running, finished, stopped, failed"),
				"limit":  intProp("Number of races to return"),
			},
		},
	}, c.handleListRaces)

	// Race inspection
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_state",
		Description: "Get the current race state: every car with node, gear, hitpoints and laps to go",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race to inspect"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleRaceState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "standings",
		Description: "Get the current classification of a race",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race to inspect"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleStandings)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_events",
		Description: "Get the race event log with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race to inspect"),
				"page":    intProp("Page number (default 1)"),
				"limit":   intProp("Events per page (default 50, max 200)"),
				"order":   stringProp("asc (default) or desc for the latest first"),
			},
			Required: []string{"race_id"},
		},
	}, c.handleRaceEvents)

	// Manual seats
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pending_decision",
		Description: "Get the question a manual seat is waiting on: a gear to pick or moves to choose from",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race ID"),
				"seat":    intProp("Seat number (default 0)"),
			},
			Required: []string{"race_id"},
		},
	}, c.handlePendingDecision)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_gear",
		Description: "Answer a pending gear question. You may shift up one gear or down as far as hitpoints allow.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race ID"),
				"seat":    intProp("Seat number (default 0)"),
				"gear":    intProp("Gear 1 to 6"),
			},
			Required: []string{"race_id", "gear"},
		},
	}, c.handleSelectGear)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_move",
		Description: "Answer a pending move question with the index of one of the listed moves",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": stringProp("Race ID"),
				"seat":    intProp("Seat number (default 0)"),
				"index":   intProp("Index of the move as listed by pending_decision"),
			},
			Required: []string{"race_id", "index"},
		},
	}, c.handleSelectMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_instructions",
		Description: "Get the full rules of Podium Rally",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRaceInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

func requireString(args map[string]interface{}, key string) (string, error) {
	s := strings.TrimSpace(cast.ToString(args[key]))
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// optionalInt reads numbers sent as JSON numbers or numeric strings.
func optionalInt(args map[string]interface{}, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %v", key, err)
	}
	return n, nil
}

func requireInt(args map[string]interface{}, key string) (int, error) {
	if v, ok := args[key]; !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	return optionalInt(args, key, 0)
}

func racePath(raceID string, parts ...string) string {
	return "/api/races/" + url.PathEscape(raceID) + strings.Join(parts, "")
}

// Tool handlers

func (c *Client) handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tracks []service.TrackInfo
	if err := c.apiCall(ctx, "GET", "/api/tracks", nil, &tracks); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available tracks (%d):\n", len(tracks))
	for _, t := range tracks {
		fmt.Fprintf(&b, "- %s: %s, %d laps, %d lanes, %d curves, grid %d", t.TrackID, t.Name, t.Laps, t.Lanes, t.Curves, t.GridSize)
		if t.HasPit {
			b.WriteString(", pit lane")
		}
		b.WriteString("\n")
		if t.Description != "" {
			fmt.Fprintf(&b, "  %s\n", t.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleCreateRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	bots, err := optionalInt(args, "bots", 2)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	laps, err := optionalInt(args, "laps", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := cast.ToString(args["name"])
	if name == "" {
		name = "You"
	}
	entrants := []service.EntrantSpec{{Name: name, Kind: service.KindManual}}
	for i := 0; i < bots; i++ {
		entrants = append(entrants, service.EntrantSpec{Name: fmt.Sprintf("Bot %d", i+1)})
	}

	req := service.CreateRaceRequest{
		TrackID:   cast.ToString(args["track_id"]),
		Entrants:  entrants,
		Laps:      laps,
		AutoStart: true,
	}
	if v, ok := args["auto_start"]; ok && v != nil {
		req.AutoStart = cast.ToBool(v)
	}
	if v, ok := args["seed"]; ok && v != nil {
		seed, err := cast.ToUint64E(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("seed must be a number: %v", err)), nil
		}
		req.Seed = &seed
	}

	var race service.RaceInfo
	if err := c.apiCall(ctx, "POST", "/api/races", req, &race); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRaceInfo(&race)), nil
}

func (c *Client) handleStartRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raceID, err := requireString(arguments(request), "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var race service.RaceInfo
	if err := c.apiCall(ctx, "POST", racePath(raceID, "/start"), nil, &race); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRaceInfo(&race)), nil
}

func (c *Client) handleListRaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if status := cast.ToString(args["status"]); status != "" {
		query.Set("status", status)
	}
	limit, err := optionalInt(args, "limit", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	path := "/api/races"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int                `json:"count"`
		Total int                `json:"total"`
		Races []service.RaceInfo `json:"races"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Races (%d of %d):\n", response.Count, response.Total)
	for _, race := range response.Races {
		fmt.Fprintf(&b, "- %s on %s: %s, %d seats, turn %d\n", race.ID, race.TrackID, race.Status, len(race.Seats), race.Snapshot.Turn)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRaceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raceID, err := requireString(arguments(request), "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap engine.RaceSnapshot
	if err := c.apiCall(ctx, "GET", racePath(raceID, "/state"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleStandings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raceID, err := requireString(arguments(request), "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var standings []engine.Standing
	if err := c.apiCall(ctx, "GET", racePath(raceID, "/standings"), nil, &standings); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStandings(standings)), nil
}

func (c *Client) handleRaceEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, err := requireString(args, "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := optionalInt(args, "page", 1)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := optionalInt(args, "limit", 50)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query := url.Values{}
	query.Set("page", fmt.Sprint(page))
	query.Set("limit", fmt.Sprint(limit))
	if order := cast.ToString(args["order"]); order != "" {
		query.Set("order", order)
	}

	var events service.EventsResponse
	if err := c.apiCall(ctx, "GET", racePath(raceID, "/events?", query.Encode()), nil, &events); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatEvents(&events)), nil
}

func (c *Client) handlePendingDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, err := requireString(args, "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seat, err := optionalInt(args, "seat", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.DecisionInfo
	if err := c.apiCall(ctx, "GET", racePath(raceID, "/seats/", fmt.Sprint(seat), "/pending"), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDecision(&info)), nil
}

func (c *Client) handleSelectGear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, err := requireString(args, "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seat, err := optionalInt(args, "seat", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gear, err := requireInt(args, "gear")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int{"gear": gear}
	if err := c.apiCall(ctx, "POST", racePath(raceID, "/seats/", fmt.Sprint(seat), "/gear"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Gear %d selected for seat %d. Call pending_decision for the move.", gear, seat)), nil
}

func (c *Client) handleSelectMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	raceID, err := requireString(args, "race_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seat, err := optionalInt(args, "seat", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := requireInt(args, "index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int{"index": index}
	if err := c.apiCall(ctx, "POST", racePath(raceID, "/seats/", fmt.Sprint(seat), "/move"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Move %d submitted for seat %d.", index, seat)), nil
}

func (c *Client) handleRaceInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(raceInstructions), nil
}

const raceInstructions = `PODIUM RALLY - RULES

THE TRACK:
A track is a graph of nodes arranged in lanes. Cars move forward along
edges, change lanes sideways and never move backwards. Straight nodes can
be crossed at any speed. Curve nodes belong to curve areas that demand a
number of stops: a car that ends its turn in a curve collects a stop,
and leaving the area with too few stops costs hitpoints.

A TURN:
1. Gear: shift up by at most one, or down by any amount. Every gear
   skipped on the way down costs one hitpoint (two gears costs one).
2. Roll: each gear has its own die:
   gear 1: 1-2   gear 2: 2-4   gear 3: 4-8
   gear 4: 7-12  gear 5: 11-20 gear 6: 21-30
3. Move: the server lists every node you can reach with exactly that
   many steps, with the hitpoints each one costs. Pick one by index.
   A move may overshoot a curve (costs hitpoints) or brake in front of
   blocked nodes (costs hitpoints for every step not taken).

HITPOINTS:
You start with 18. Reaching zero retires the car. Sitting next to a car
that just moved can cause a collision, and the top roll of the gear 5
and 6 dice can damage the engine; both cost one hitpoint when it happens.

TIME:
Each manual seat has a small time per decision plus a leeway for the
whole race. Running out of leeway retires the car.

WINNING:
Cars are ranked by finishing order, then laps to go, then distance to
the finish line. The race ends when every car finished or retired.

WORKFLOW FOR AN AGENT:
1. list_tracks, then create_race with your name.
2. Loop: pending_decision -> select_gear or select_move.
3. race_state and standings show how everybody is doing.
4. race_events replays what happened.`

// Formatting

func formatRaceInfo(race *service.RaceInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Race: %s\nTrack: %s (%d laps)\nStatus: %s\n", race.ID, race.TrackID, race.Snapshot.Track.Laps, race.Status)
	if race.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", race.Error)
	}
	b.WriteString("Seats:\n")
	for _, seat := range race.Seats {
		fmt.Fprintf(&b, "  [%d] %s (%s)", seat.Seat, seat.Name, seat.Kind)
		if seat.Kind == service.KindRemote && !seat.Connected {
			b.WriteString(" disconnected")
		}
		b.WriteString("\n")
	}
	if len(race.Standings) > 0 {
		b.WriteString(formatStandings(race.Standings))
	}
	return b.String()
}

func formatSnapshot(snap *engine.RaceSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Track: %s, %d laps\n", snap.Track.Name, snap.Track.Laps)
	switch {
	case snap.Finished:
		fmt.Fprintf(&b, "Race finished after %d turns\n", snap.Turn)
	case !snap.Started:
		b.WriteString("Race not started\n")
	default:
		fmt.Fprintf(&b, "Round %d, turn %d", snap.Round, snap.Turn)
		if snap.Current >= 0 {
			fmt.Fprintf(&b, ", seat %d to move", snap.Current)
		}
		b.WriteString("\n")
	}

	b.WriteString("Cars:\n")
	for _, p := range snap.Players {
		fmt.Fprintf(&b, "  [%d] %-12s node %-4d gear %d  hp %2d/%d  laps to go %d  curve stops %d",
			p.Seat, p.Name, p.Node, p.Gear, p.Hitpoints, p.MaxHitpoints, p.LapsToGo, p.CurveStops)
		switch {
		case p.Finished:
			b.WriteString("  FINISHED")
		case p.Stopped:
			fmt.Fprintf(&b, "  OUT (%s)", p.Reason)
		default:
			fmt.Fprintf(&b, "  leeway %s", p.Leeway.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatStandings(standings []engine.Standing) string {
	var b strings.Builder
	b.WriteString("Standings:\n")
	for _, s := range standings {
		status := fmt.Sprintf("%d laps to go", s.LapsToGo)
		switch {
		case s.Finished:
			status = "finished"
		case !s.Active:
			status = "retired: " + s.Reason
		}
		fmt.Fprintf(&b, "  %d. %s (seat %d) - %s, hp %d, %d turns\n", s.Position, s.Name, s.Seat, status, s.Hitpoints, s.Turns)
	}
	return b.String()
}

func formatEvents(events *service.EventsResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Events page %d/%d (%d total):\n", events.Page, events.TotalPages, events.TotalEvents)
	for _, e := range events.Events {
		fmt.Fprintf(&b, "  #%d %-14s seat %d", e.Turn, e.Type, e.Seat)
		switch e.Type {
		case engine.EventMoved:
			fmt.Fprintf(&b, " -> node %d via %v", e.Node, e.Path)
		case engine.EventGear, engine.EventRoll, engine.EventHitpoints, engine.EventLap, engine.EventCurveStop:
			fmt.Fprintf(&b, " %d", e.Value)
		case engine.EventCollision:
			fmt.Fprintf(&b, " with seat %d", e.Other)
		}
		if e.Message != "" {
			fmt.Fprintf(&b, " (%s)", e.Message)
		}
		b.WriteString("\n")
	}
	if events.HasNext {
		fmt.Fprintf(&b, "More events on page %d\n", events.Page+1)
	}
	return b.String()
}

func formatDecision(info *service.DecisionInfo) string {
	if !info.Pending || info.Decision == nil {
		return fmt.Sprintf("Seat %d has nothing to decide right now. Try again shortly.", info.Seat)
	}

	d := info.Decision
	var b strings.Builder
	me, found := d.Snapshot.Player(d.Seat)
	switch d.Kind {
	case agent.GearDecision:
		fmt.Fprintf(&b, "Seat %d: choose a gear.\n", d.Seat)
		if found {
			fmt.Fprintf(&b, "Current gear %d, hitpoints %d, node %d, laps to go %d.\n", me.Gear, me.Hitpoints, me.Node, me.LapsToGo)
			fmt.Fprintf(&b, "Allowed: 1 to %d (downshifting more than one gear costs hitpoints).\n", min(me.Gear+1, 6))
		}
		b.WriteString("Answer with select_gear.\n")
	case agent.MoveDecision:
		move := d.Move
		fmt.Fprintf(&b, "Seat %d: gear %d rolled %d, hitpoints %d. Choose a move:\n", d.Seat, move.Gear, move.Roll, move.Hitpoints)
		for i, m := range move.Moves {
			fmt.Fprintf(&b, "  %d: node %d (%s), costs %d hp", i, m.Node, m.Type, m.Damage())
			if m.Finishes {
				b.WriteString(", crosses the finish line")
			}
			b.WriteString("\n")
		}
		b.WriteString("Answer with select_move and the index.\n")
	}
	fmt.Fprintf(&b, "Waiting since %s.\n", d.Since.Format(time.RFC3339))
	return b.String()
}
