package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/lotsim/game/traffic"
)

// FeeTuning controls how parking fees are billed
type FeeTuning struct {
	// BillingPeriodMs charges the spot price once per started period.
	// Zero means a flat fee per visit.
	BillingPeriodMs float64 `yaml:"billing_period_ms" json:"billing_period_ms"`
}

// CostTuning weighs surfaces in path search
type CostTuning struct {
	VehicleRestrictedPenalty float64 `yaml:"vehicle_restricted_penalty" json:"vehicle_restricted_penalty"`
	PedestrianRoadPenalty    float64 `yaml:"pedestrian_road_penalty" json:"pedestrian_road_penalty"`
}

// Tuning groups every numeric knob of a simulation
type Tuning struct {
	TickMs          float64                  `yaml:"tick_ms" json:"tick_ms"`
	MessageCapacity int                      `yaml:"message_capacity" json:"message_capacity"`
	Vehicles        traffic.VehicleTuning    `yaml:"vehicles" json:"vehicles"`
	Pedestrians     traffic.PedestrianTuning `yaml:"pedestrians" json:"pedestrians"`
	Fees            FeeTuning                `yaml:"fees" json:"fees"`
	Costs           CostTuning               `yaml:"costs" json:"costs"`
}

// DefaultTuning returns the built-in tuning
func DefaultTuning() Tuning {
	return Tuning{
		TickMs:          DefaultTickMs,
		MessageCapacity: 500,
		Vehicles:        traffic.DefaultVehicleTuning(),
		Pedestrians:     traffic.DefaultPedestrianTuning(),
		Costs: CostTuning{
			VehicleRestrictedPenalty: 8,
			PedestrianRoadPenalty:    0.5,
		},
	}
}

// Validate checks every section of the tuning
func (t Tuning) Validate() error {
	if t.TickMs <= 0 || t.TickMs > MaxStepDeltaMs {
		return fmt.Errorf("%w: tick_ms must be in (0, %d], got %v", traffic.ErrInvalidTuning, MaxStepDeltaMs, t.TickMs)
	}
	if t.MessageCapacity < 0 {
		return fmt.Errorf("%w: message_capacity must not be negative", traffic.ErrInvalidTuning)
	}
	if t.Fees.BillingPeriodMs < 0 {
		return fmt.Errorf("%w: fees.billing_period_ms must not be negative", traffic.ErrInvalidTuning)
	}
	if t.Costs.VehicleRestrictedPenalty < 0 || t.Costs.PedestrianRoadPenalty < 0 {
		return fmt.Errorf("%w: cost penalties must not be negative", traffic.ErrInvalidTuning)
	}
	if err := t.Vehicles.Validate(); err != nil {
		return fmt.Errorf("vehicles: %w", err)
	}
	if err := t.Pedestrians.Validate(); err != nil {
		return fmt.Errorf("pedestrians: %w", err)
	}
	return nil
}

// ParseTuning decodes YAML on top of the defaults, so a file only needs the
// fields it changes.
func ParseTuning(raw []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// LoadTuning reads a YAML tuning file
func LoadTuning(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DefaultTuning(), err
	}
	t, err := ParseTuning(raw)
	if err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ResolveTuning applies the scenario's inline overrides to base
func (c *ScenarioConfig) ResolveTuning(base Tuning) (Tuning, error) {
	if len(c.Tuning) == 0 || string(c.Tuning) == "null" {
		return base, nil
	}
	t := base
	if err := json.Unmarshal(c.Tuning, &t); err != nil {
		return base, fmt.Errorf("%w: tuning: %v", ErrInvalidScenario, err)
	}
	if err := t.Validate(); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return t, nil
}
