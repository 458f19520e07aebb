package engine

import (
	"fmt"
	"strings"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

// ParseClass converts "vehicle" or "pedestrian" into a path class. Empty
// means vehicle.
func ParseClass(s string) (pathfind.Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vehicle", "car":
		return pathfind.Vehicle, nil
	case "pedestrian", "walker":
		return pathfind.Pedestrian, nil
	}
	return "", fmt.Errorf("unknown mover class %q", s)
}

// Placements lists every placed object in row-major order
func Placements(g *grid.Grid) []grid.Site {
	var sites []grid.Site
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			c, _ := g.Cell(grid.Position{X: x, Y: y})
			if c.Placement != nil {
				sites = append(sites, grid.Site{Pos: c.Pos, Placement: *c.Placement})
			}
		}
	}
	return sites
}

// CountPayments counts parking spots by payment kind
func CountPayments(g *grid.Grid) map[grid.PaymentKind]int {
	counts := make(map[grid.PaymentKind]int)
	for _, s := range g.ParkingSpots() {
		counts[s.Placement.PaymentOrNone()]++
	}
	return counts
}

// Route is one checked connection of a reachability report
type Route struct {
	Kind   string         `json:"kind"`
	From   grid.Position  `json:"from"`
	To     grid.Position  `json:"to"`
	Class  pathfind.Class `json:"class"`
	Length int            `json:"length"`
	OK     bool           `json:"ok"`
}

// Report summarizes which parts of a lot connect
type Report struct {
	Scenario     string                   `json:"scenario"`
	Spots        int                      `json:"spots"`
	Payments     map[grid.PaymentKind]int `json:"payments"`
	Destinations int                      `json:"destinations"`
	Facilities   int                      `json:"facilities"`
	Routes       []Route                  `json:"routes"`
	Failures     int                      `json:"failures"`
}

// Analyze checks every spawner route, every spawner to spot connection,
// and every walk from a spot to a pedestrian destination and back.
func Analyze(cfg *ScenarioConfig, tuning Tuning) (*Report, error) {
	sim, err := NewSimulation(cfg, tuning)
	if err != nil {
		return nil, err
	}
	g := sim.Grid()
	r := &Report{
		Scenario:     cfg.Name,
		Spots:        g.CountPlacements(grid.ParkingSpot),
		Payments:     CountPayments(g),
		Destinations: g.CountPlacements(grid.PedestrianDestination),
		Facilities:   g.CountPlacements(grid.Facility),
	}

	check := func(kind string, from, to grid.Position, class pathfind.Class) {
		path := sim.FindPath(from, to, class)
		route := Route{Kind: kind, From: from, To: to, Class: class, OK: path != nil, Length: len(path)}
		if !route.OK {
			r.Failures++
		}
		r.Routes = append(r.Routes, route)
	}

	for _, sp := range cfg.Spawners {
		check("through", sp.Origin, sp.Destination, pathfind.Vehicle)
		for _, spot := range g.ParkingSpots() {
			check("to_spot", sp.Origin, spot.Pos, pathfind.Vehicle)
			check("from_spot", spot.Pos, sp.Destination, pathfind.Vehicle)
		}
	}
	for _, spot := range g.ParkingSpots() {
		for _, dest := range g.PedestrianDestinations() {
			check("walk_out", spot.Pos, dest, pathfind.Pedestrian)
			check("walk_back", dest, spot.Pos, pathfind.Pedestrian)
		}
	}
	return r, nil
}
