// Package service provides the business logic layer of the parking-lot
// simulator.
//
// SimService is the interface every transport (HTTP, WebSocket, MCP) talks
// to. It resolves scenarios through a ConfigManager, stores running
// simulations through a SessionManager and serializes access to each
// simulation through Session.Do.
//
// Usage:
//
//	sessions := session.NewManager()
//	configs := config.NewManager("scenarios")
//	svc := service.NewSimService(sessions, configs)
//
//	info, err := svc.CreateSession(ctx, "small_lot")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := svc.Step(ctx, info.ID, service.StepOptions{Ticks: 50})
//
// Step is capped at engine.MaxStepTicks per call; the result says when a
// request was truncated.
package service
