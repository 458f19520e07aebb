package pathfind

import "github.com/wricardo/lotsim/game/grid"

// Borders is what the edge policy reads from the grid
type Borders interface {
	Marking(p grid.Position, d grid.Direction) grid.Marking
	SpotBorder(p grid.Position, d grid.Direction) bool
}

// Cells is what the cost policy reads from the grid
type Cells interface {
	Cell(p grid.Position) (grid.Cell, bool)
}

// EdgePolicy returns the blocking rules of the parking lot:
//   - fences stop everyone, on every edge
//   - curbs and parking spot walls stop vehicles entering a tile, never
//     vehicles driving alongside them
//   - lane lines stop vehicles when the line is on their right
//   - pedestrians only care about fences
func EdgePolicy(b Borders) BlockingPolicy {
	return func(q EdgeQuery) bool {
		marking := b.Marking(q.Cell, q.Edge)
		onRight := q.Edge == q.Heading.Right()

		if q.OneWayOnly {
			return q.Class == Vehicle && marking == grid.LaneLine && onRight
		}

		switch marking {
		case grid.Fence:
			return true
		case grid.LaneLine:
			if q.Class == Vehicle && onRight {
				return true
			}
		case grid.Curb:
			if q.Class == Vehicle && q.Entry {
				return true
			}
		}

		return q.Class == Vehicle && q.Entry && b.SpotBorder(q.Cell, q.Edge)
	}
}

// SurfaceCost makes vehicles avoid restricted surfaces and pedestrians
// prefer sidewalks. Negative penalties are treated as zero.
func SurfaceCost(cells Cells, vehiclePenalty, pedestrianPenalty float64) CostPolicy {
	if vehiclePenalty < 0 {
		vehiclePenalty = 0
	}
	if pedestrianPenalty < 0 {
		pedestrianPenalty = 0
	}
	return func(_, to grid.Position, _ grid.Direction, class Class) float64 {
		c, ok := cells.Cell(to)
		if !ok {
			return 0
		}
		switch class {
		case Vehicle:
			if c.Surface.Restricted() && !c.Has(grid.Driveway) {
				return vehiclePenalty
			}
		case Pedestrian:
			if c.Surface == grid.Asphalt || c.Surface == grid.Gravel {
				return pedestrianPenalty
			}
		}
		return 0
	}
}
