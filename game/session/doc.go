// Package session provides race session storage for Podium Rally.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Expiry of idle sessions
//
// Core Types:
//
// Manager stores service.Session values keyed by a case-insensitive ID and
// builds each session's race through service.NewSession.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Generated IDs are
// checked against the sessions already stored.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", &service.RaceSetup{
//		TrackID: "oval",
//		Track:   tr,
//		Seats:   seats,
//		Config:  engine.DefaultConfig(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Drop races nobody looked at for an hour
//	removed := manager.CleanupExpiredSessions(time.Hour)
//
// Sessions live in memory only; a race with live drivers cannot be
// restored after a restart.
package session
