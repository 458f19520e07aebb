package traffic

import (
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

type spotCandidate struct {
	spot grid.Spot
	path []grid.Position
}

// selection is the outcome of picking a parking spot for a new vehicle
type selection struct {
	spot    grid.Spot
	path    []grid.Position
	found   bool
	refused grid.PaymentKind
	full    bool
}

// selectSpot runs the parking choice for a vehicle about to spawn at
// origin: free spots, then reachable, then affordable, then the pay-at-exit
// rule, then a shuffled test-and-set reservation.
func (s *VehicleSystem) selectSpot(holder string, origin grid.Position) selection {
	var reachable []spotCandidate
	for _, spot := range s.grid.ParkingSpots() {
		if spot.Reserved() {
			continue
		}
		path := s.paths.FindPath(origin, spot.Pos, pathfind.Vehicle)
		if len(path) == 0 {
			continue
		}
		reachable = append(reachable, spotCandidate{spot: spot, path: path})
	}
	if len(reachable) == 0 {
		return selection{full: true}
	}

	var refused grid.PaymentKind
	acceptable := make([]spotCandidate, 0, len(reachable))
	for _, c := range reachable {
		if s.affordable(c.spot.Placement) {
			acceptable = append(acceptable, c)
		} else if refused == "" {
			refused = c.spot.Placement.PaymentOrNone()
		}
	}

	// a lot that collects at the exit never also collects at the spot
	if s.grid.HasPayment(grid.PayAtExit) {
		kept := acceptable[:0]
		dropped := false
		for _, c := range acceptable {
			if c.spot.Placement.PaymentOrNone() == grid.PayAtSpot {
				dropped = true
				continue
			}
			kept = append(kept, c)
		}
		acceptable = kept
		if len(acceptable) == 0 && dropped && refused == "" {
			refused = grid.PayAtSpot
		}
	}

	if len(acceptable) == 0 {
		return selection{refused: refused}
	}

	s.rng.Shuffle(len(acceptable), func(i, j int) {
		acceptable[i], acceptable[j] = acceptable[j], acceptable[i]
	})

	table := s.grid.Reservations()
	for _, c := range acceptable {
		if !table.TryReserve(c.spot.Pos, holder) {
			continue
		}
		if h, _ := table.Holder(c.spot.Pos); h != holder {
			continue
		}
		path := s.paths.FindPath(origin, c.spot.Pos, pathfind.Vehicle)
		if len(path) == 0 {
			table.Release(c.spot.Pos, holder)
			continue
		}
		return selection{spot: c.spot, path: path, found: true}
	}
	return selection{full: true}
}

func (s *VehicleSystem) affordable(p grid.Placement) bool {
	switch p.PaymentOrNone() {
	case grid.PayAtSpot:
		return p.Price <= s.tuning.MaxPriceAtSpot
	case grid.PayAtExit:
		return p.Price <= s.tuning.MaxPriceAtExit
	}
	return true
}
