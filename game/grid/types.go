package grid

import (
	"fmt"
	"strings"
)

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Step returns the neighbouring position in direction d
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is a cardinal direction and doubles as the edge index of a cell.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists the cardinal directions in edge-index order.
var Directions = [4]Direction{North, East, South, West}

var directionNames = [4]string{"north", "east", "south", "west"}

// Delta returns the coordinate offset of one step in d. North is y-1.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Opposite returns the direction pointing the other way
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Right returns the side on a mover's right hand when heading in d
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// Valid reports whether d is one of the four edge indices
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(directionNames[d]), nil
}

// UnmarshalText accepts direction names as well as the up/down/left/right aliases
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection converts a name such as "north" or "up" into a Direction
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "east", "e", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "w", "left":
		return West, nil
	}
	return North, fmt.Errorf("unknown direction %q", s)
}

// DirectionBetween returns the direction of a single cardinal step from a to b.
func DirectionBetween(a, b Position) (Direction, bool) {
	for _, d := range Directions {
		if a.Step(d) == b {
			return d, true
		}
	}
	return North, false
}

// Surface is the ground class of a cell
type Surface string

const (
	Asphalt  Surface = "asphalt"
	Grass    Surface = "grass"
	Sidewalk Surface = "sidewalk"
	Gravel   Surface = "gravel"
)

// Restricted reports whether vehicles are not supposed to drive on s
func (s Surface) Restricted() bool {
	return s == Grass || s == Sidewalk
}

// Marking is what a border segment carries
type Marking string

const (
	NoMarking Marking = ""
	Curb      Marking = "curb"
	Fence     Marking = "fence"
	LaneLine  Marking = "lane_line"
)

// PlacementKind identifies the object placed on a cell
type PlacementKind string

const (
	ParkingSpot           PlacementKind = "parking_spot"
	FeeBooth              PlacementKind = "fee_booth"
	SpeedBump             PlacementKind = "speed_bump"
	Facility              PlacementKind = "facility"
	PedestrianDestination PlacementKind = "ped_destination"
	Driveway              PlacementKind = "driveway"
)

// PaymentKind is how a parking spot collects its fee
type PaymentKind string

const (
	PayNone   PaymentKind = "none"
	PayAtSpot PaymentKind = "pay_at_spot"
	PayAtExit PaymentKind = "pay_at_exit"
)

// FacilityKind distinguishes pedestrian facilities
type FacilityKind string

const (
	Restroom FacilityKind = "restroom"
	Vending  FacilityKind = "vending"
	Bench    FacilityKind = "bench"
)

// Placement is an immutable record of an object placed on a cell.
// For parking spots Orientation is the side vehicles enter through.
type Placement struct {
	Kind        PlacementKind `json:"kind"`
	Orientation Direction     `json:"orientation"`
	Payment     PaymentKind   `json:"payment,omitempty"`
	Price       float64       `json:"price,omitempty"`
	SpeedLimit  float64       `json:"speed_limit,omitempty"`
	Facility    FacilityKind  `json:"facility,omitempty"`
}

// PaymentOrNone returns the payment kind, treating an empty value as PayNone
func (p Placement) PaymentOrNone() PaymentKind {
	if p.Payment == "" {
		return PayNone
	}
	return p.Payment
}

// Cell represents a single grid cell
type Cell struct {
	Pos       Position   `json:"pos"`
	Surface   Surface    `json:"surface"`
	Placement *Placement `json:"placement,omitempty"`
	Permanent bool       `json:"permanent,omitempty"`
}

// Has reports whether the cell holds a placement of the given kind
func (c Cell) Has(kind PlacementKind) bool {
	return c.Placement != nil && c.Placement.Kind == kind
}

// Spot is a parking spot together with its current reservation holder
type Spot struct {
	Pos       Position  `json:"pos"`
	Placement Placement `json:"placement"`
	Holder    string    `json:"holder,omitempty"`
}

// Reserved reports whether some vehicle holds the spot
func (s Spot) Reserved() bool {
	return s.Holder != ""
}

// Site is a placed object and the cell it sits on
type Site struct {
	Pos       Position  `json:"pos"`
	Placement Placement `json:"placement"`
}

// FacilityTarget returns the cell a pedestrian has to reach to use the
// facility at pos. Restrooms and vending machines are used from the cell
// they face; benches are sat on.
func FacilityTarget(pos Position, p Placement) Position {
	switch p.Facility {
	case Restroom, Vending:
		return pos.Step(p.Orientation)
	}
	return pos
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
