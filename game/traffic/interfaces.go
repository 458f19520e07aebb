// Package traffic runs the vehicle and pedestrian lifecycles of a parking
// lot. Both systems are single-threaded: each Update call advances every
// entity once and reservation changes are visible immediately to the next
// entity in the same tick.
//
// Everything outside the lifecycles is injected. The grid, path engine,
// rating sink, fee collector and narrator are constructor dependencies so
// that several simulations can run side by side.
package traffic

import (
	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

// Grid is the read side of the lot plus its reservation table
type Grid interface {
	Cell(p grid.Position) (grid.Cell, bool)
	InBounds(p grid.Position) bool
	ParkingSpots() []grid.Spot
	PedestrianDestinations() []grid.Position
	Facilities() []grid.Site
	HasPayment(kind grid.PaymentKind) bool
	Reservations() *grid.Reservations
}

// Paths answers path queries
type Paths interface {
	FindPath(start, goal grid.Position, class pathfind.Class) []grid.Position
	FindRoute(start grid.Position, via []grid.Position, goal grid.Position, class pathfind.Class) ([]grid.Position, []grid.Position)
}

// RatingSink receives satisfaction scores by vehicle id
type RatingSink interface {
	Register(id string, initial float64)
	Adjust(id string, delta float64)
	Finalize(id string)
}

// FeeTerms describes what a parked vehicle owes
type FeeTerms struct {
	Spot    grid.Position    `json:"spot"`
	Payment grid.PaymentKind `json:"payment"`
	Price   float64          `json:"price"`
}

// FeeCollector times and collects parking fees. CollectFee succeeds at most
// once per started fee.
type FeeCollector interface {
	StartFee(id string, terms FeeTerms)
	CollectFee(id string) (float64, bool)
	DiscardFee(id string)
}

// Narrator receives player-facing messages
type Narrator interface {
	Emit(code, subjectID, detail string)
}

// Companions is the vehicle system's view of the pedestrian system
type Companions interface {
	// SpawnCompanion creates a pedestrian leaving the vehicle parked at pos
	SpawnCompanion(vehicleID string, at grid.Position) (string, bool)

	// TakeReturned consumes the at-vehicle marker of a pedestrian. A
	// pedestrian that no longer exists counts as returned with nothing
	// unfulfilled.
	TakeReturned(pedestrianID string) (unfulfilled int, returned bool)
}

// Schedule optionally overrides the spawn interval of a spawner
type Schedule interface {
	SpawnInterval(spawnerID string, elapsedMs float64) (float64, bool)
}

// Rand is the random source. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Message codes emitted through the Narrator
const (
	MsgRefusedPayAtSpot  = "refused_pay_at_spot"
	MsgRefusedPayAtExit  = "refused_pay_at_exit"
	MsgLotFull           = "lot_full"
	MsgRestrictedSurface = "restricted_surface"
	MsgFeeCollected      = "fee_collected"
	MsgUnfulfilledNeeds  = "unfulfilled_needs"
	MsgPedestrianLost    = "pedestrian_lost"
	MsgExitBlocked       = "exit_blocked"
)

// RefusalCode returns the message code for a spot refused over its payment kind
func RefusalCode(kind grid.PaymentKind) string {
	if kind == grid.PayAtExit {
		return MsgRefusedPayAtExit
	}
	return MsgRefusedPayAtSpot
}

type nopNarrator struct{}

func (nopNarrator) Emit(string, string, string) {}

type nopRatings struct{}

func (nopRatings) Register(string, float64) {}
func (nopRatings) Adjust(string, float64)   {}
func (nopRatings) Finalize(string)          {}

type nopFees struct{}

func (nopFees) StartFee(string, FeeTerms)          {}
func (nopFees) CollectFee(string) (float64, bool) { return 0, false }
func (nopFees) DiscardFee(string)                 {}

func randomBetween(rng Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
