package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/service"
)

var surfaceRunes = map[rune]rune{
	engine.RoadChar:     '=',
	engine.AsphaltChar:  '.',
	engine.GrassChar:    '"',
	engine.SidewalkChar: '_',
	engine.GravelChar:   ':',
}

var placementRunes = map[grid.PlacementKind]rune{
	grid.ParkingSpot:           'P',
	grid.FeeBooth:              '$',
	grid.SpeedBump:             '^',
	grid.Facility:              'F',
	grid.PedestrianDestination: 'D',
	grid.Driveway:              '.',
}

// renderMap draws surfaces, placements, reservations and movers, in that
// order, so the last layer wins.
func renderMap(state *engine.SimState) string {
	if state == nil || state.Width == 0 || state.Height == 0 {
		return ""
	}
	rows := make([][]rune, state.Height)
	for y := range rows {
		rows[y] = []rune(strings.Repeat(" ", state.Width))
		if y < len(state.Layout) {
			for x, ch := range state.Layout[y] {
				if x >= state.Width {
					break
				}
				if r, ok := surfaceRunes[ch]; ok {
					rows[y][x] = r
				}
			}
		}
	}
	set := func(p grid.Position, r rune) {
		if p.Y >= 0 && p.Y < len(rows) && p.X >= 0 && p.X < len(rows[p.Y]) {
			rows[p.Y][p.X] = r
		}
	}

	for _, site := range state.Placements {
		if r, ok := placementRunes[site.Placement.Kind]; ok {
			set(site.Pos, r)
		}
	}
	for _, res := range state.Reservations {
		set(res.Pos, '#')
	}
	for _, p := range state.Pedestrians {
		if p.Visible {
			set(p.Cell, 'p')
		}
	}
	for _, v := range state.Vehicles {
		set(v.Cell, 'C')
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	return b.String()
}

func formatState(state *engine.SimState) string {
	if state == nil {
		return "No state"
	}
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s (%dx%d)\n", state.Scenario, state.Width, state.Height))
	status := "running"
	if state.Paused {
		status = "paused"
	}
	b.WriteString(fmt.Sprintf("Tick %d | %.1fs simulated | %gx | %s\n\n",
		state.Tick, state.ElapsedMs/1000, state.TimeScale, status))

	b.WriteString(renderMap(state))
	b.WriteString("\n")

	s := state.Stats
	b.WriteString(fmt.Sprintf("Vehicles: %d on the lot | spawned %d | parked %d | abandoned %d | left %d\n",
		len(state.Vehicles), s.Spawned, s.Parked, s.Abandoned, s.Despawned))
	visible := 0
	for _, p := range state.Pedestrians {
		if p.Visible {
			visible++
		}
	}
	b.WriteString(fmt.Sprintf("Pedestrians: %d (%d walking)\n", len(state.Pedestrians), visible))
	b.WriteString(fmt.Sprintf("Reserved spots: %d\n", len(state.Reservations)))
	b.WriteString(fmt.Sprintf("Revenue: %.2f\n", state.Revenue))
	b.WriteString(formatSummary(state.Ratings))

	if len(state.Spawners) > 0 {
		b.WriteString("\nSpawners:\n")
		for _, sp := range state.Spawners {
			b.WriteString(fmt.Sprintf("  %s: %s -> %s\n", sp.ID, sp.Origin, sp.Destination))
		}
	}

	if len(state.Vehicles) > 0 {
		b.WriteString("\nVehicles:\n")
		for _, v := range state.Vehicles {
			line := fmt.Sprintf("  %s at %s %s", v.ID, v.Cell, v.State)
			if v.HasSpot {
				line += fmt.Sprintf(" spot %s", v.Spot)
			}
			if v.Parked {
				line += " (parked)"
			}
			b.WriteString(fmt.Sprintf("%s score %.1f\n", line, v.Score))
		}
	}

	if len(state.Messages) > 0 {
		recent := state.Messages
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		b.WriteString("\nRecent messages:\n")
		b.WriteString(formatMessages(recent))
	}
	return b.String()
}

func formatSummary(r ledger.RatingSummary) string {
	if r.Finalized == 0 {
		return fmt.Sprintf("Ratings: none finalized, %d active\n", r.Active)
	}
	return fmt.Sprintf("Ratings: average %.2f (low %.1f, high %.1f) over %d drivers, %d active\n",
		r.Average, r.Lowest, r.Highest, r.Finalized, r.Active)
}

func formatMessages(msgs []ledger.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(fmt.Sprintf("  #%d [tick %d] %s\n", m.Seq, m.Tick, m.Text))
	}
	return b.String()
}

func formatSessionInfo(info *service.SessionInfo) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Session: %s\n", info.ID))
	b.WriteString(fmt.Sprintf("Scenario: %s (%s)\n", info.ScenarioName, info.ScenarioID))
	b.WriteString(fmt.Sprintf("Created: %s\n\n", info.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(formatState(info.State))
	return b.String()
}

func formatStepResult(r *service.StepResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Executed %d of %d ticks", r.TicksExecuted, r.RequestedTicks))
	if r.Truncated {
		b.WriteString(fmt.Sprintf(" (capped at %d)", r.Limit))
	}
	b.WriteString("\n")
	if len(r.Messages) > 0 {
		b.WriteString(fmt.Sprintf("\nNew messages (%d):\n", len(r.Messages)))
		b.WriteString(formatMessages(r.Messages))
	}
	b.WriteString("\n")
	b.WriteString(formatState(r.State))
	return b.String()
}

func formatPath(r *service.PathResult) string {
	if !r.Found {
		return fmt.Sprintf("No %s path from %s to %s", r.Class, r.From, r.To)
	}
	cells := make([]string, len(r.Path))
	for i, p := range r.Path {
		cells[i] = p.String()
	}
	return fmt.Sprintf("%s path from %s to %s, %d steps:\n%s",
		r.Class, r.From, r.To, r.Length, strings.Join(cells, " -> "))
}

func formatRatings(r *service.RatingsResult) string {
	var b strings.Builder
	b.WriteString(formatSummary(r.Summary))
	b.WriteString(fmt.Sprintf("Revenue: %.2f\n", r.Revenue))

	if len(r.Recent) > 0 {
		b.WriteString("\nRecent ratings:\n")
		for _, fr := range r.Recent {
			b.WriteString(fmt.Sprintf("  %s: %.1f (started at %.1f)\n", fr.VehicleID, fr.Score, fr.Initial))
		}
	}
	if len(r.Fees) > 0 {
		b.WriteString("\nRecent fees:\n")
		for _, c := range r.Fees {
			b.WriteString(fmt.Sprintf("  %s paid %.2f at %s (%s)\n", c.VehicleID, c.Amount, c.Spot, c.Payment))
		}
	}
	if a := r.Archive; a != nil {
		b.WriteString(fmt.Sprintf("\nAll runs: %d ratings averaging %.2f, %d fees, %.2f revenue\n",
			a.Ratings, a.AverageRating, a.Fees, a.Revenue))
	}
	return b.String()
}
