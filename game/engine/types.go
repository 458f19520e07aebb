package engine

import (
	"encoding/json"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/traffic"
)

const (
	// Validation constants
	MinGridSize    = 3
	MaxGridSize    = 64
	MaxTimeScale   = 16
	MaxStepTicks   = 1000
	MaxStepDeltaMs = 60000
	MaxPrice       = 1000

	DefaultTickMs       = 100
	DefaultMessageLimit = 50
)

// Layout characters
const (
	RoadChar     = 'R'
	AsphaltChar  = 'A'
	GrassChar    = 'G'
	SidewalkChar = 'W'
	GravelChar   = 'V'
)

// MarkingConfig marks one border of a cell
type MarkingConfig struct {
	X    int            `json:"x"`
	Y    int            `json:"y"`
	Edge grid.Direction `json:"edge"`
	Kind grid.Marking   `json:"kind"`
}

// PlacementConfig puts an object on a cell
type PlacementConfig struct {
	X           int                `json:"x"`
	Y           int                `json:"y"`
	Kind        grid.PlacementKind `json:"kind"`
	Orientation grid.Direction     `json:"orientation"`
	Payment     grid.PaymentKind   `json:"payment,omitempty"`
	Price       float64            `json:"price,omitempty"`
	SpeedLimit  float64            `json:"speed_limit,omitempty"`
	Facility    grid.FacilityKind  `json:"facility,omitempty"`
}

// Position returns the cell of the placement
func (p PlacementConfig) Position() grid.Position {
	return grid.Position{X: p.X, Y: p.Y}
}

// Placement returns the immutable record to put on the grid
func (p PlacementConfig) Placement() grid.Placement {
	return grid.Placement{
		Kind:        p.Kind,
		Orientation: p.Orientation,
		Payment:     p.Payment,
		Price:       p.Price,
		SpeedLimit:  p.SpeedLimit,
		Facility:    p.Facility,
	}
}

// SpawnerConfig is an origin/destination pair for through traffic
type SpawnerConfig struct {
	Origin      grid.Position `json:"origin"`
	Destination grid.Position `json:"destination"`
}

// ScheduleWindow overrides the spawn interval between FromMs and ToMs of
// simulated time. An empty Spawner applies to every spawner.
type ScheduleWindow struct {
	Spawner    string  `json:"spawner,omitempty"`
	FromMs     float64 `json:"from_ms"`
	ToMs       float64 `json:"to_ms"`
	IntervalMs float64 `json:"interval_ms"`
}

// ScenarioConfig represents a lot layout and its traffic, loaded from JSON
type ScenarioConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Layout      []string          `json:"layout"`
	Markings    []MarkingConfig   `json:"markings,omitempty"`
	Placements  []PlacementConfig `json:"placements,omitempty"`
	Spawners    []SpawnerConfig   `json:"spawners,omitempty"`
	Schedule    []ScheduleWindow  `json:"schedule,omitempty"`
	Seed        uint64            `json:"seed"`

	// Messages overrides narration templates by message code
	Messages map[string]string `json:"messages,omitempty"`

	// Tuning holds inline overrides applied on top of the base tuning
	Tuning json.RawMessage `json:"tuning,omitempty"`
}

// TickSummary describes one advanced tick
type TickSummary struct {
	Session     string  `json:"session,omitempty"`
	Tick        int     `json:"tick"`
	DeltaMs     float64 `json:"delta_ms"`
	ElapsedMs   float64 `json:"elapsed_ms"`
	Vehicles    int     `json:"vehicles"`
	Pedestrians int     `json:"pedestrians"`
	Reserved    int     `json:"reserved"`
	Revenue     float64 `json:"revenue"`
	Messages    int     `json:"messages"`
	Advanced    bool    `json:"advanced"`
}

// TickObserver is told about every tick that advanced the simulation
type TickObserver interface {
	ObserveTick(s TickSummary)
}

// SimState represents the complete observable simulation state
type SimState struct {
	Scenario    string `json:"scenario"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`

	// Layout repeats the surface rows of the scenario, Placements every
	// placed object.
	Layout     []string        `json:"layout"`
	Placements []grid.Site     `json:"placements"`
	Markings   []MarkingConfig `json:"markings,omitempty"`

	Tick      int     `json:"tick"`
	ElapsedMs float64 `json:"elapsed_ms"`
	TimeScale float64 `json:"time_scale"`
	Paused    bool    `json:"paused"`

	Vehicles     []traffic.Vehicle    `json:"vehicles"`
	Pedestrians  []traffic.Pedestrian `json:"pedestrians"`
	Spawners     []traffic.Spawner    `json:"spawners"`
	Reservations []grid.Reservation   `json:"reservations"`

	Stats    traffic.VehicleStats `json:"stats"`
	Ratings  ledger.RatingSummary `json:"ratings"`
	Revenue  float64              `json:"revenue"`
	Messages []ledger.Message     `json:"messages"`
}
