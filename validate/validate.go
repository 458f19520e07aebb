// Command validate checks the scenario files in a directory (default
// ../scenarios). For each file it checks:
//   - the JSON Schema and the semantic rules the simulator enforces on load
//   - presence of at least one parking spot and one spawner
//   - connectivity: every spawner reaches its destination and every spot,
//     every spot reaches the spawner destinations, and pedestrians can walk
//     from every spot to every destination and back
//
// It exits non-zero if any file is invalid.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/lotsim/game/config"
	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
)

// ValidationResult captures the outcome of validating a single file.
// Errors explain why a file is invalid; Info summarizes a valid one.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateScenario loads and validates a single scenario file
func validateScenario(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	cfg, err := config.ValidateDocument(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	validateConnectivity(cfg, &result)
	return result
}

// validateConnectivity runs the reachability analysis on a scenario that
// already passed schema and semantic checks.
func validateConnectivity(cfg *engine.ScenarioConfig, result *ValidationResult) {
	if len(cfg.Spawners) == 0 {
		result.fail("No spawners: no traffic would enter the lot")
	}

	report, err := engine.Analyze(cfg, engine.DefaultTuning())
	if err != nil {
		result.fail("%v", err)
		return
	}
	if report.Spots == 0 {
		result.fail("No parking spots")
	}
	for _, route := range report.Routes {
		if !route.OK {
			result.fail("No %s route %s: %s -> %s", route.Class, route.Kind, route.From, route.To)
		}
	}

	result.Info = append(result.Info,
		fmt.Sprintf("Grid: %dx%d", cfg.Width, cfg.Height),
		fmt.Sprintf("Spots: %d (%d pay at spot, %d pay at exit, %d free)", report.Spots,
			report.Payments[grid.PayAtSpot], report.Payments[grid.PayAtExit], report.Payments[grid.PayNone]),
		fmt.Sprintf("Spawners: %d, destinations: %d, facilities: %d",
			len(cfg.Spawners), report.Destinations, report.Facilities),
		fmt.Sprintf("Routes: %d checked, %d unreachable", len(report.Routes), report.Failures),
	)
}

// validateDir validates every *.json file in dir
func validateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validateScenario(file))
	}
	return results, nil
}

// main validates the directory given as the first argument and prints a
// concise report.
func main() {
	dir := "../scenarios"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	results, err := validateDir(dir)
	if err != nil {
		fmt.Printf("Error finding scenario files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  - " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("All scenarios are valid!")
	} else {
		fmt.Println("Some scenarios have errors")
		os.Exit(1)
	}
}
