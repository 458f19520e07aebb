package traffic

import (
	"math"

	"github.com/wricardo/lotsim/game/grid"
)

// Point is a continuous position in cell units
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func pointOf(p grid.Position) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// Mover is the movement state shared by vehicles and pedestrians. Cell is
// the last waypoint fully reached; Pos interpolates towards the next one.
type Mover struct {
	Origin      grid.Position   `json:"origin"`
	Destination grid.Position   `json:"destination"`
	Path        []grid.Position `json:"path,omitempty"`
	Cursor      int             `json:"cursor"`
	Cell        grid.Position   `json:"cell"`
	Pos         Point           `json:"pos"`
	Speed       float64         `json:"speed"`
}

func newMover(origin, destination grid.Position, speed float64) Mover {
	return Mover{
		Origin:      origin,
		Destination: destination,
		Cell:        origin,
		Pos:         pointOf(origin),
		Speed:       speed,
	}
}

// SetPath replaces the remaining waypoints
func (m *Mover) SetPath(path []grid.Position) {
	m.Path = path
	m.Cursor = 0
}

// Arrived reports whether every waypoint has been reached
func (m *Mover) Arrived() bool {
	return m.Cursor >= len(m.Path)
}

// Remaining returns the waypoints not reached yet
func (m *Mover) Remaining() []grid.Position {
	if m.Arrived() {
		return nil
	}
	return m.Path[m.Cursor:]
}

// Advance moves along the path for deltaMs. onCell runs each time a
// waypoint is reached, after Cell has been updated, and may change Speed
// for the rest of the step.
func (m *Mover) Advance(deltaMs float64, onCell func(grid.Position)) {
	remaining := deltaMs
	for remaining > 0 && !m.Arrived() && m.Speed > 0 {
		target := m.Path[m.Cursor]
		tp := pointOf(target)
		dist := math.Abs(tp.X-m.Pos.X) + math.Abs(tp.Y-m.Pos.Y)
		reach := m.Speed * remaining / 1000

		if dist > reach {
			frac := reach / dist
			m.Pos.X += (tp.X - m.Pos.X) * frac
			m.Pos.Y += (tp.Y - m.Pos.Y) * frac
			return
		}

		remaining -= dist / m.Speed * 1000
		m.Pos = tp
		m.Cell = target
		m.Cursor++
		if onCell != nil {
			onCell(target)
		}
	}
}

// Reroute replaces the path from the next waypoint on. A mover between two
// cells always finishes the segment it is on.
func (m *Mover) Reroute(plan func(from grid.Position) []grid.Position) {
	if m.Arrived() || m.Pos == pointOf(m.Cell) {
		m.SetPath(plan(m.Cell))
		return
	}
	next := m.Path[m.Cursor]
	m.SetPath(append([]grid.Position{next}, plan(next)...))
}
