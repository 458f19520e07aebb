package grid

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds      = errors.New("position out of bounds")
	ErrInvalidEdge      = errors.New("invalid edge index")
	ErrInvalidSize      = errors.New("invalid grid size")
	ErrCellOccupied     = errors.New("cell already has a placement")
	ErrInvalidPlacement = errors.New("invalid placement")
)

// segmentKey names one physical border. Every border is stored under the
// cell south or east of it, using that cell's North or West edge.
type segmentKey struct {
	pos  Position
	edge Direction
}

func canonicalSegment(p Position, d Direction) segmentKey {
	switch d {
	case South:
		return segmentKey{pos: p.Step(South), edge: North}
	case East:
		return segmentKey{pos: p.Step(East), edge: West}
	}
	return segmentKey{pos: p, edge: d}
}

// Grid holds cells, border markings and parking reservations
type Grid struct {
	width    int
	height   int
	cells    []Cell
	markings map[segmentKey]Marking
	reserved *Reservations
}

// New creates a width x height grid with every cell set to surface
func New(width, height int, surface Surface) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	g := &Grid{
		width:    width,
		height:   height,
		cells:    make([]Cell, width*height),
		markings: make(map[segmentKey]Marking),
		reserved: NewReservations(),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.cells[y*width+x] = Cell{Pos: Position{X: x, Y: y}, Surface: surface}
		}
	}
	return g, nil
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// InBounds reports whether p lies on the grid
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// Cell returns a copy of the cell at p, placement record included
func (g *Grid) Cell(p Position) (Cell, bool) {
	if !g.InBounds(p) {
		return Cell{}, false
	}
	c := g.cells[p.Y*g.width+p.X]
	if c.Placement != nil {
		record := *c.Placement
		c.Placement = &record
	}
	return c, true
}

func (g *Grid) cellRef(p Position) (*Cell, error) {
	if !g.InBounds(p) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return &g.cells[p.Y*g.width+p.X], nil
}

// SetSurface changes the surface class of a cell
func (g *Grid) SetSurface(p Position, s Surface) error {
	c, err := g.cellRef(p)
	if err != nil {
		return err
	}
	c.Surface = s
	return nil
}

// SetPermanent flags a cell as part of the fixed map
func (g *Grid) SetPermanent(p Position, permanent bool) error {
	c, err := g.cellRef(p)
	if err != nil {
		return err
	}
	c.Permanent = permanent
	return nil
}

// Place puts an object on an empty cell. The record is copied and never
// mutated afterwards.
func (g *Grid) Place(p Position, pl Placement) error {
	c, err := g.cellRef(p)
	if err != nil {
		return err
	}
	if c.Placement != nil {
		return fmt.Errorf("%w: %s", ErrCellOccupied, p)
	}
	if pl.Kind == "" {
		return fmt.Errorf("%w: empty kind at %s", ErrInvalidPlacement, p)
	}
	if !pl.Orientation.Valid() {
		return fmt.Errorf("%w: orientation %d at %s", ErrInvalidPlacement, int(pl.Orientation), p)
	}
	if pl.Kind == ParkingSpot && pl.Payment == "" {
		pl.Payment = PayNone
	}
	record := pl
	c.Placement = &record
	return nil
}

// Remove clears the placement at p and drops any reservation on it
func (g *Grid) Remove(p Position) error {
	c, err := g.cellRef(p)
	if err != nil {
		return err
	}
	c.Placement = nil
	g.reserved.drop(p)
	return nil
}

// SetMarking marks the border on side d of p. Either adjacent cell may be
// used to address the same border.
func (g *Grid) SetMarking(p Position, d Direction, m Marking) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidEdge, int(d))
	}
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	key := canonicalSegment(p, d)
	if m == NoMarking {
		delete(g.markings, key)
		return nil
	}
	g.markings[key] = m
	return nil
}

// Marking returns the marking on side d of p
func (g *Grid) Marking(p Position, d Direction) Marking {
	if !d.Valid() {
		return NoMarking
	}
	return g.markings[canonicalSegment(p, d)]
}

// SpotBorder reports whether the border on side d of p is the wall of a
// parking spot on either side of it. The mouth of a spot is not a border.
func (g *Grid) SpotBorder(p Position, d Direction) bool {
	if c, ok := g.Cell(p); ok && c.Has(ParkingSpot) && c.Placement.Orientation != d {
		return true
	}
	n := p.Step(d)
	if c, ok := g.Cell(n); ok && c.Has(ParkingSpot) && c.Placement.Orientation != d.Opposite() {
		return true
	}
	return false
}

// Reservations exposes the parking reservation table
func (g *Grid) Reservations() *Reservations {
	return g.reserved
}

// ParkingSpots enumerates parking spots in row-major order with their
// current reservation holder.
func (g *Grid) ParkingSpots() []Spot {
	var spots []Spot
	for _, c := range g.cells {
		if !c.Has(ParkingSpot) {
			continue
		}
		holder, _ := g.reserved.Holder(c.Pos)
		spots = append(spots, Spot{Pos: c.Pos, Placement: *c.Placement, Holder: holder})
	}
	return spots
}

// PedestrianDestinations lists the cells pedestrians may walk to
func (g *Grid) PedestrianDestinations() []Position {
	var out []Position
	for _, c := range g.cells {
		if c.Has(PedestrianDestination) {
			out = append(out, c.Pos)
		}
	}
	return out
}

// Facilities lists every facility placement
func (g *Grid) Facilities() []Site {
	var out []Site
	for _, c := range g.cells {
		if c.Has(Facility) {
			out = append(out, Site{Pos: c.Pos, Placement: *c.Placement})
		}
	}
	return out
}

// CountPlacements counts cells holding a placement of the given kind
func (g *Grid) CountPlacements(kind PlacementKind) int {
	count := 0
	for _, c := range g.cells {
		if c.Has(kind) {
			count++
		}
	}
	return count
}

// HasPayment reports whether any parking spot on the grid uses kind,
// reserved or not.
func (g *Grid) HasPayment(kind PaymentKind) bool {
	for _, c := range g.cells {
		if c.Has(ParkingSpot) && c.Placement.PaymentOrNone() == kind {
			return true
		}
	}
	return false
}
