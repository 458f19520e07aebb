package traffic

import (
	"errors"
	"fmt"
)

// VehicleTuning holds the knobs of the vehicle lifecycle. Durations are in
// milliseconds and speeds in cells per second.
type VehicleTuning struct {
	SpawnIntervalMs   float64 `yaml:"spawn_interval_ms" json:"spawn_interval_ms"`
	SpawnJitter       float64 `yaml:"spawn_jitter" json:"spawn_jitter"`
	ParkerProbability float64 `yaml:"parker_probability" json:"parker_probability"`

	SpeedMin       float64 `yaml:"speed_min" json:"speed_min"`
	SpeedMax       float64 `yaml:"speed_max" json:"speed_max"`
	ReturnSpeedMin float64 `yaml:"return_speed_min" json:"return_speed_min"`
	ReturnSpeedMax float64 `yaml:"return_speed_max" json:"return_speed_max"`
	SpeedBumpLimit float64 `yaml:"speed_bump_limit" json:"speed_bump_limit"`

	DwellMinMs           float64 `yaml:"dwell_min_ms" json:"dwell_min_ms"`
	DwellMaxMs           float64 `yaml:"dwell_max_ms" json:"dwell_max_ms"`
	CompanionProbability float64 `yaml:"companion_probability" json:"companion_probability"`

	MaxPriceAtSpot float64 `yaml:"max_price_at_spot" json:"max_price_at_spot"`
	MaxPriceAtExit float64 `yaml:"max_price_at_exit" json:"max_price_at_exit"`

	InitialRating       float64 `yaml:"initial_rating" json:"initial_rating"`
	RestrictedThreshold int     `yaml:"restricted_threshold" json:"restricted_threshold"`
	RestrictedPenalty   float64 `yaml:"restricted_penalty" json:"restricted_penalty"`
	NeedPenalty         float64 `yaml:"need_penalty" json:"need_penalty"`
	NoSpotPenalty       float64 `yaml:"no_spot_penalty" json:"no_spot_penalty"`
}

// PedestrianTuning holds the knobs of the pedestrian lifecycle
type PedestrianTuning struct {
	SpeedMin        float64 `yaml:"speed_min" json:"speed_min"`
	SpeedMax        float64 `yaml:"speed_max" json:"speed_max"`
	WaitMinMs       float64 `yaml:"wait_min_ms" json:"wait_min_ms"`
	WaitMaxMs       float64 `yaml:"wait_max_ms" json:"wait_max_ms"`
	RespawnDelayMs  float64 `yaml:"respawn_delay_ms" json:"respawn_delay_ms"`
	NeedProbability float64 `yaml:"need_probability" json:"need_probability"`
}

// DefaultVehicleTuning returns the built-in vehicle settings
func DefaultVehicleTuning() VehicleTuning {
	return VehicleTuning{
		SpawnIntervalMs:      4000,
		SpawnJitter:          0.25,
		ParkerProbability:    0.6,
		SpeedMin:             2,
		SpeedMax:             3,
		ReturnSpeedMin:       2,
		ReturnSpeedMax:       3.5,
		SpeedBumpLimit:       1,
		DwellMinMs:           20000,
		DwellMaxMs:           60000,
		CompanionProbability: 0.5,
		MaxPriceAtSpot:       8,
		MaxPriceAtExit:       10,
		InitialRating:        100,
		RestrictedThreshold:  2,
		RestrictedPenalty:    20,
		NeedPenalty:          15,
	}
}

// DefaultPedestrianTuning returns the built-in pedestrian settings
func DefaultPedestrianTuning() PedestrianTuning {
	return PedestrianTuning{
		SpeedMin:        0.8,
		SpeedMax:        1.4,
		WaitMinMs:       5000,
		WaitMaxMs:       15000,
		NeedProbability: 0.3,
	}
}

var ErrInvalidTuning = errors.New("invalid tuning")

// Validate checks ranges and probabilities
func (t VehicleTuning) Validate() error {
	switch {
	case t.SpawnIntervalMs <= 0:
		return fmt.Errorf("%w: spawn_interval_ms must be positive", ErrInvalidTuning)
	case t.SpawnJitter < 0 || t.SpawnJitter >= 1:
		return fmt.Errorf("%w: spawn_jitter must be in [0,1)", ErrInvalidTuning)
	case !probability(t.ParkerProbability) || !probability(t.CompanionProbability):
		return fmt.Errorf("%w: probabilities must be in [0,1]", ErrInvalidTuning)
	case t.SpeedMin <= 0 || t.SpeedMax < t.SpeedMin:
		return fmt.Errorf("%w: speed range [%v,%v]", ErrInvalidTuning, t.SpeedMin, t.SpeedMax)
	case t.ReturnSpeedMin <= 0 || t.ReturnSpeedMax < t.ReturnSpeedMin:
		return fmt.Errorf("%w: return speed range [%v,%v]", ErrInvalidTuning, t.ReturnSpeedMin, t.ReturnSpeedMax)
	case t.SpeedBumpLimit <= 0:
		return fmt.Errorf("%w: speed_bump_limit must be positive", ErrInvalidTuning)
	case t.DwellMinMs < 0 || t.DwellMaxMs < t.DwellMinMs:
		return fmt.Errorf("%w: dwell range [%v,%v]", ErrInvalidTuning, t.DwellMinMs, t.DwellMaxMs)
	case t.RestrictedThreshold < 0:
		return fmt.Errorf("%w: restricted_threshold must not be negative", ErrInvalidTuning)
	case t.RestrictedPenalty < 0 || t.NeedPenalty < 0 || t.NoSpotPenalty < 0:
		return fmt.Errorf("%w: penalties must not be negative", ErrInvalidTuning)
	}
	return nil
}

// Validate checks ranges and probabilities
func (t PedestrianTuning) Validate() error {
	switch {
	case t.SpeedMin <= 0 || t.SpeedMax < t.SpeedMin:
		return fmt.Errorf("%w: pedestrian speed range [%v,%v]", ErrInvalidTuning, t.SpeedMin, t.SpeedMax)
	case t.WaitMinMs < 0 || t.WaitMaxMs < t.WaitMinMs:
		return fmt.Errorf("%w: wait range [%v,%v]", ErrInvalidTuning, t.WaitMinMs, t.WaitMaxMs)
	case t.RespawnDelayMs < 0:
		return fmt.Errorf("%w: respawn_delay_ms must not be negative", ErrInvalidTuning)
	case !probability(t.NeedProbability):
		return fmt.Errorf("%w: need_probability must be in [0,1]", ErrInvalidTuning)
	}
	return nil
}

func probability(p float64) bool {
	return p >= 0 && p <= 1
}
