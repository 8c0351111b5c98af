// Package service provides the business logic layer for Podium Rally.
//
// The service package implements:
//   - Multi-race management, one Session per race
//   - Driver setup: heuristic, manual and remote seats
//   - Running races in the background and stopping them
//   - Routing human answers to manual seats
//   - Paginated race event logs
//
// Core Interfaces:
//
// RaceService is the main service interface providing high-level race operations.
// SessionManager stores sessions and hands out race ids.
// TrackCatalog loads tracks by id.
// Broadcaster receives every race event and pending decision for spectators.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the race engine. Each session owns one engine.Race and runs it on its own
// goroutine once started; readers only ever see snapshots.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	trackMgr, err := config.NewManager("tracks")
//	if err != nil {
//		log.Fatal(err)
//	}
//	raceService := service.NewRaceService(sessionMgr, trackMgr, hub)
//
//	info, err := raceService.CreateRace(ctx, service.CreateRaceRequest{
//		TrackID: "oval",
//		Entrants: []service.EntrantSpec{
//			{Name: "You", Kind: service.KindManual},
//			{Name: "Bot"},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	_, err = raceService.StartRace(ctx, info.ID)
//
//	// Answer the manual seat when it asks
//	pending, err := raceService.PendingDecision(ctx, info.ID, 0)
//	err = raceService.SubmitGear(ctx, info.ID, 0, 1)
package service
