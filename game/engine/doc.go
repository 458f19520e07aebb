// Package engine drives a parking-lot traffic simulation.
//
// A ScenarioConfig describes the lot: surface rows, border markings,
// placements and spawners. It is loaded from JSON and validated with
// ValidateScenario. Tuning holds the numeric knobs and is loaded from YAML;
// a scenario may override single fields inline.
//
// Simulation wires the grid, the path engine, the rating, fee and message
// ledgers and the vehicle and pedestrian lifecycle systems together. Each
// Tick scales the raw delta through the Clock, runs spawn timers and
// vehicles, then pedestrians.
//
// Usage:
//
//	cfg, err := engine.LoadScenario("scenarios/small_lot.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim, err := engine.NewSimulation(cfg, engine.DefaultTuning())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim.Run(600, 100)
//	state := sim.GetState()
package engine
