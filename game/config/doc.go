// Package config loads parking-lot scenarios from a directory of JSON files.
//
// Every document is checked twice: against the embedded JSON schema
// (scenario.schema.json) for shape and enums, then against the lot rules in
// engine.ValidateScenario for bounds, row widths and spawners. Loaded
// scenarios are cached by ID, the file name without its .json suffix.
//
// Usage:
//
//	manager, err := config.NewManager("scenarios")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg, err := manager.LoadScenario("small_lot")
//	id, fallback := manager.GetDefault()
//	list, err := manager.ListScenarios()
//
// GetDefault prefers small_lot, then the first valid file, then a built-in
// single-spot lot, so a server always has something to run.
package config
