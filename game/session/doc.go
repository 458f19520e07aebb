// Package session keeps the running simulations of a server.
//
// Manager stores sessions in memory under short hex IDs; lookups are
// case-insensitive. Each session owns one engine.Simulation built from a
// scenario and the manager's base tuning. When configured, the manager
// attaches a compressed event log per session and a shared archive for
// finalized ratings and fees.
//
// Usage:
//
//	manager := session.NewManager(session.WithTuning(tuning))
//
//	sess, err := manager.Create("", "small_lot", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Sessions idle for longer than a given age can be removed with
// CleanupExpiredSessions; removal closes their event logs.
package session
