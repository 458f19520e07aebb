// Command analyze prints a human-readable reachability report for every
// scenario in a directory (default "scenarios"). It summarizes dimensions,
// spots by payment kind and facilities, and lists every route the
// simulation depends on that the path engine cannot find.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
)

func main() {
	dir := "scenarios"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No scenario files in %s\n", dir)
		os.Exit(1)
	}

	failed := false
	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if !analyzeScenario(os.Stdout, file) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// analyzeScenario writes the report of one file and reports whether every
// route exists.
func analyzeScenario(w io.Writer, path string) bool {
	cfg, err := engine.LoadScenario(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return false
	}
	report, err := engine.Analyze(cfg, engine.DefaultTuning())
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return false
	}
	writeReport(w, cfg, report)
	return report.Failures == 0
}

func writeReport(w io.Writer, cfg *engine.ScenarioConfig, r *engine.Report) {
	fmt.Fprintf(w, "Name: %s\n", cfg.Name)
	if cfg.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", cfg.Description)
	}
	fmt.Fprintf(w, "Grid: %dx%d\n", cfg.Width, cfg.Height)

	fmt.Fprintf(w, "Spots: %d\n", r.Spots)
	kinds := make([]string, 0, len(r.Payments))
	for k := range r.Payments {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, r.Payments[grid.PaymentKind(k)])
	}
	fmt.Fprintf(w, "Pedestrian destinations: %d\n", r.Destinations)
	fmt.Fprintf(w, "Facilities: %d\n", r.Facilities)
	fmt.Fprintf(w, "Spawners: %d\n", len(cfg.Spawners))

	byKind := map[string][2]int{}
	for _, route := range r.Routes {
		c := byKind[route.Kind]
		c[0]++
		if route.OK {
			c[1]++
		}
		byKind[route.Kind] = c
	}
	routeKinds := make([]string, 0, len(byKind))
	for k := range byKind {
		routeKinds = append(routeKinds, k)
	}
	sort.Strings(routeKinds)
	for _, k := range routeKinds {
		fmt.Fprintf(w, "Routes %s: %d/%d reachable\n", k, byKind[k][1], byKind[k][0])
	}

	if r.Failures == 0 {
		fmt.Fprintln(w, "All routes reachable")
		return
	}
	fmt.Fprintf(w, "Unreachable (%d):\n", r.Failures)
	for _, route := range r.Routes {
		if !route.OK {
			fmt.Fprintf(w, "  %s %s %s -> %s\n", route.Class, route.Kind, route.From, route.To)
		}
	}
}
