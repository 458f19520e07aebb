package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/wricardo/lotsim/game/grid"
)

var ErrInvalidScenario = errors.New("invalid scenario")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
}

// SurfaceFor maps a layout character to its surface. R also makes the cell
// permanent road.
func SurfaceFor(char rune) (grid.Surface, bool, bool) {
	switch char {
	case RoadChar:
		return grid.Asphalt, true, true
	case AsphaltChar:
		return grid.Asphalt, false, true
	case GrassChar:
		return grid.Grass, false, true
	case SidewalkChar:
		return grid.Sidewalk, false, true
	case GravelChar:
		return grid.Gravel, false, true
	}
	return "", false, false
}

// ValidateScenario validates a scenario for correctness
func ValidateScenario(cfg *ScenarioConfig) error {
	if cfg == nil {
		return invalid("scenario is nil")
	}
	if cfg.Name == "" {
		return invalid("name is required")
	}

	if cfg.Width < MinGridSize || cfg.Width > MaxGridSize {
		return invalid("width must be between %d and %d, got %d", MinGridSize, MaxGridSize, cfg.Width)
	}
	if cfg.Height < MinGridSize || cfg.Height > MaxGridSize {
		return invalid("height must be between %d and %d, got %d", MinGridSize, MaxGridSize, cfg.Height)
	}

	if len(cfg.Layout) != cfg.Height {
		return invalid("layout must have %d rows to match height, got %d", cfg.Height, len(cfg.Layout))
	}
	for i, row := range cfg.Layout {
		if len(row) != cfg.Width {
			return invalid("row %d must have %d characters to match width, got %d", i+1, cfg.Width, len(row))
		}
		for j, char := range row {
			if _, _, ok := SurfaceFor(char); !ok {
				return invalid("invalid character '%c' at row %d, col %d", char, i+1, j+1)
			}
		}
	}

	inBounds := func(p grid.Position) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < cfg.Width && p.Y < cfg.Height
	}

	for i, m := range cfg.Markings {
		p := grid.Position{X: m.X, Y: m.Y}
		if !inBounds(p) {
			return invalid("marking %d at %s is off the grid", i+1, p)
		}
		if !m.Edge.Valid() {
			return invalid("marking %d has an invalid edge", i+1)
		}
		switch m.Kind {
		case grid.Curb, grid.Fence, grid.LaneLine:
		default:
			return invalid("marking %d has unknown kind %q", i+1, m.Kind)
		}
	}

	occupied := make(map[grid.Position]bool)
	for i, pl := range cfg.Placements {
		p := pl.Position()
		if !inBounds(p) {
			return invalid("placement %d at %s is off the grid", i+1, p)
		}
		if occupied[p] {
			return invalid("placement %d: %s already has a placement", i+1, p)
		}
		occupied[p] = true
		if !pl.Orientation.Valid() {
			return invalid("placement %d has an invalid orientation", i+1)
		}
		if err := validatePlacement(pl); err != nil {
			return invalid("placement %d at %s: %v", i+1, p, err)
		}
	}

	for i, sp := range cfg.Spawners {
		if !inBounds(sp.Origin) || !inBounds(sp.Destination) {
			return invalid("spawner %d is off the grid", i+1)
		}
		if sp.Origin == sp.Destination {
			return invalid("spawner %d starts at its destination", i+1)
		}
	}

	for i, w := range cfg.Schedule {
		if w.ToMs <= w.FromMs {
			return invalid("schedule window %d ends before it starts", i+1)
		}
		if w.IntervalMs <= 0 {
			return invalid("schedule window %d needs a positive interval", i+1)
		}
	}

	return nil
}

func validatePlacement(pl PlacementConfig) error {
	if pl.Price < 0 || pl.Price > MaxPrice {
		return fmt.Errorf("price must be between 0 and %d", MaxPrice)
	}
	switch pl.Kind {
	case grid.ParkingSpot:
		switch pl.Payment {
		case "", grid.PayNone, grid.PayAtSpot, grid.PayAtExit:
		default:
			return fmt.Errorf("unknown payment %q", pl.Payment)
		}
	case grid.SpeedBump:
		if pl.SpeedLimit < 0 {
			return errors.New("speed_limit must not be negative")
		}
	case grid.Facility:
		switch pl.Facility {
		case grid.Restroom, grid.Vending, grid.Bench:
		default:
			return fmt.Errorf("unknown facility %q", pl.Facility)
		}
	case grid.FeeBooth, grid.PedestrianDestination, grid.Driveway:
	default:
		return fmt.Errorf("unknown kind %q", pl.Kind)
	}
	return nil
}

// ParseScenario decodes and validates a scenario
func ParseScenario(data []byte) (*ScenarioConfig, error) {
	var cfg ScenarioConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := ValidateScenario(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadScenario loads a scenario from a JSON file
func LoadScenario(filename string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// BuildGrid lays out surfaces, markings and placements of a validated
// scenario.
func BuildGrid(cfg *ScenarioConfig) (*grid.Grid, error) {
	g, err := grid.New(cfg.Width, cfg.Height, grid.Grass)
	if err != nil {
		return nil, err
	}
	for y, row := range cfg.Layout {
		for x, char := range row {
			surface, permanent, ok := SurfaceFor(char)
			if !ok {
				return nil, invalid("invalid character '%c' at row %d, col %d", char, y+1, x+1)
			}
			p := grid.Position{X: x, Y: y}
			if err := g.SetSurface(p, surface); err != nil {
				return nil, err
			}
			if err := g.SetPermanent(p, permanent); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range cfg.Markings {
		if err := g.SetMarking(grid.Position{X: m.X, Y: m.Y}, m.Edge, m.Kind); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}
	for _, pl := range cfg.Placements {
		if err := g.Place(pl.Position(), pl.Placement()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}
	return g, nil
}
