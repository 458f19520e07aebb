// Package mcp exposes the parking-lot simulator to AI agents over the
// Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against
// the API server and the JSON answer is rendered as text, including an
// ASCII map of the lot.
//
// MCP Tools:
//   - create_session, list_sessions, get_session
//   - sim_state: map, vehicles, statistics and recent narration
//   - step: advance time, optionally resetting, pausing or rescaling first
//   - reset
//   - find_path: vehicle or pedestrian route between two cells
//   - add_spawner, remove_spawner
//   - messages: narration after a sequence number
//   - ratings: satisfaction, fees, revenue and archive totals
//   - list_scenarios
//
// Transport Modes:
//
// GetMCPServer returns the mcp-go server, which the binary serves either
// over stdio or behind the /mcp HTTP endpoint.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
