package traffic

import (
	"errors"
	"fmt"
	"math"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

var (
	ErrSpawnerNotFound = errors.New("spawner not found")
	ErrInvalidSpawner  = errors.New("invalid spawner")
)

// VehicleState is a step of the vehicle lifecycle
type VehicleState string

const (
	VehicleSpawning   VehicleState = "spawning"
	VehicleMoving     VehicleState = "moving"
	VehicleParking    VehicleState = "parking"
	VehicleLeaving    VehicleState = "leaving"
	VehicleDespawning VehicleState = "despawning"
)

// Vehicle is one car in the lot
type Vehicle struct {
	ID        string `json:"id"`
	SpawnerID string `json:"spawner_id"`
	Mover
	State VehicleState `json:"state"`

	PotentialParker bool             `json:"potential_parker"`
	HasSpot         bool             `json:"has_spot"`
	Spot            grid.Position    `json:"spot"`
	Payment         grid.PaymentKind `json:"payment,omitempty"`
	Price           float64          `json:"price,omitempty"`
	Parked          bool             `json:"parked"`
	DwellMs         float64          `json:"dwell_ms,omitempty"`
	CompanionID     string           `json:"companion_id,omitempty"`

	RestrictedCount int     `json:"restricted_count"`
	Unfulfilled     int     `json:"unfulfilled"`
	Score           float64 `json:"score"`
	FeePaid         float64 `json:"fee_paid"`

	warned bool
}

// Spawner is an origin/destination pair feeding vehicles into the lot
type Spawner struct {
	ID          string        `json:"id"`
	Origin      grid.Position `json:"origin"`
	Destination grid.Position `json:"destination"`

	timerMs float64
}

// VehicleStats counts lifecycle outcomes since the system was created
type VehicleStats struct {
	Spawned   int     `json:"spawned"`
	Abandoned int     `json:"abandoned"`
	Parked    int     `json:"parked"`
	Despawned int     `json:"despawned"`
	Revenue   float64 `json:"revenue"`
}

// VehicleDeps are the collaborators of a VehicleSystem. Grid, Paths and
// Rand are required.
type VehicleDeps struct {
	Grid       Grid
	Paths      Paths
	Rand       Rand
	Ratings    RatingSink
	Fees       FeeCollector
	Narrator   Narrator
	Companions Companions
	Schedule   Schedule
}

// VehicleSystem owns every vehicle and spawner of one simulation
type VehicleSystem struct {
	grid       Grid
	paths      Paths
	rng        Rand
	ratings    RatingSink
	fees       FeeCollector
	narrator   Narrator
	companions Companions
	schedule   Schedule
	tuning     VehicleTuning

	vehicles  []*Vehicle
	byID      map[string]*Vehicle
	spawners  []*Spawner
	nextID    int
	nextSpawn int
	elapsedMs float64
	stats     VehicleStats
}

// NewVehicleSystem creates a vehicle system
func NewVehicleSystem(deps VehicleDeps, tuning VehicleTuning) (*VehicleSystem, error) {
	if deps.Grid == nil || deps.Paths == nil || deps.Rand == nil {
		return nil, errors.New("vehicle system needs a grid, a path engine and a random source")
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	s := &VehicleSystem{
		grid:       deps.Grid,
		paths:      deps.Paths,
		rng:        deps.Rand,
		ratings:    deps.Ratings,
		fees:       deps.Fees,
		narrator:   deps.Narrator,
		companions: deps.Companions,
		schedule:   deps.Schedule,
		tuning:     tuning,
		byID:       make(map[string]*Vehicle),
	}
	if s.ratings == nil {
		s.ratings = nopRatings{}
	}
	if s.fees == nil {
		s.fees = nopFees{}
	}
	if s.narrator == nil {
		s.narrator = nopNarrator{}
	}
	return s, nil
}

// AddSpawner registers an origin/destination pair. The first vehicle comes
// after one jittered interval.
func (s *VehicleSystem) AddSpawner(origin, destination grid.Position) (Spawner, error) {
	if !s.grid.InBounds(origin) || !s.grid.InBounds(destination) {
		return Spawner{}, fmt.Errorf("%w: %s -> %s is off the grid", ErrInvalidSpawner, origin, destination)
	}
	if origin == destination {
		return Spawner{}, fmt.Errorf("%w: origin equals destination %s", ErrInvalidSpawner, origin)
	}
	s.nextSpawn++
	sp := &Spawner{
		ID:          fmt.Sprintf("sp-%d", s.nextSpawn),
		Origin:      origin,
		Destination: destination,
	}
	sp.timerMs = s.nextInterval(sp)
	s.spawners = append(s.spawners, sp)
	return *sp, nil
}

// RemoveSpawner stops a spawner. Vehicles already on their way are not
// affected.
func (s *VehicleSystem) RemoveSpawner(id string) error {
	for i, sp := range s.spawners {
		if sp.ID == id {
			s.spawners = append(s.spawners[:i], s.spawners[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSpawnerNotFound, id)
}

// Spawners lists the registered spawners in creation order
func (s *VehicleSystem) Spawners() []Spawner {
	out := make([]Spawner, len(s.spawners))
	for i, sp := range s.spawners {
		out[i] = *sp
	}
	return out
}

// Update advances the system by deltaMs: spawn timers first, then every
// vehicle in creation order. A non-positive delta does nothing.
func (s *VehicleSystem) Update(deltaMs float64) {
	if deltaMs <= 0 {
		return
	}
	s.elapsedMs += deltaMs

	// at most one spawn per spawner and tick, however long the tick
	for _, sp := range s.spawners {
		sp.timerMs -= deltaMs
		if sp.timerMs <= 0 {
			s.spawn(sp)
			sp.timerMs = s.nextInterval(sp)
		}
	}

	for _, v := range s.vehicles {
		s.updateVehicle(v, deltaMs)
	}
	s.sweep()
}

// SpawnNow attempts a spawn from the given spawner outside its timer
func (s *VehicleSystem) SpawnNow(spawnerID string) (string, error) {
	for _, sp := range s.spawners {
		if sp.ID == spawnerID {
			id, _ := s.spawn(sp)
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSpawnerNotFound, spawnerID)
}

func (s *VehicleSystem) nextInterval(sp *Spawner) float64 {
	interval := s.tuning.SpawnIntervalMs
	if s.schedule != nil {
		if override, ok := s.schedule.SpawnInterval(sp.ID, s.elapsedMs); ok && override > 0 {
			interval = override
		}
	}
	jitter := 1 + s.tuning.SpawnJitter*(2*s.rng.Float64()-1)
	return math.Max(1, interval*jitter)
}

// spawn creates a vehicle at the spawner origin. It returns an empty id
// when nothing reachable exists; such a spawn leaves no narration behind.
func (s *VehicleSystem) spawn(sp *Spawner) (string, bool) {
	id := fmt.Sprintf("veh-%d", s.nextID+1)
	parker := s.rng.Float64() < s.tuning.ParkerProbability

	v := &Vehicle{
		ID:              id,
		SpawnerID:       sp.ID,
		Mover:           newMover(sp.Origin, sp.Destination, randomBetween(s.rng, s.tuning.SpeedMin, s.tuning.SpeedMax)),
		State:           VehicleSpawning,
		PotentialParker: parker,
	}

	var path []grid.Position
	var sel selection
	if parker {
		sel = s.selectSpot(id, sp.Origin)
		if sel.found {
			v.HasSpot = true
			v.Spot = sel.spot.Pos
			v.Payment = sel.spot.Placement.PaymentOrNone()
			v.Price = sel.spot.Placement.Price
			path = sel.path
		}
	}
	if !v.HasSpot {
		path = s.paths.FindPath(sp.Origin, sp.Destination, pathfind.Vehicle)
	}
	if len(path) == 0 {
		s.stats.Abandoned++
		return "", false
	}
	v.SetPath(path)

	s.nextID++
	s.vehicles = append(s.vehicles, v)
	s.byID[id] = v
	s.stats.Spawned++
	if parker {
		v.Score = s.tuning.InitialRating
		s.ratings.Register(id, v.Score)
		switch {
		case sel.refused != "":
			s.narrator.Emit(RefusalCode(sel.refused), id, string(sel.refused))
		case sel.full:
			s.narrator.Emit(MsgLotFull, id, "")
		}
	}
	return id, true
}

func (s *VehicleSystem) updateVehicle(v *Vehicle, deltaMs float64) {
	switch v.State {
	case VehicleSpawning:
		v.State = VehicleMoving
		s.move(v, deltaMs)
	case VehicleMoving:
		s.move(v, deltaMs)
	case VehicleParking:
		s.dwell(v, deltaMs)
	case VehicleLeaving:
		s.drive(v, deltaMs)
		if v.Arrived() {
			s.despawn(v)
		}
	}
}

func (s *VehicleSystem) move(v *Vehicle, deltaMs float64) {
	if v.HasSpot && !s.holds(v) {
		// the spot went away under us
		v.HasSpot = false
		v.Reroute(func(from grid.Position) []grid.Position {
			return s.paths.FindPath(from, v.Destination, pathfind.Vehicle)
		})
	}

	s.drive(v, deltaMs)
	if !v.Arrived() {
		return
	}
	if v.HasSpot && v.Cell == v.Spot {
		s.park(v)
		return
	}
	s.despawn(v)
}

func (s *VehicleSystem) drive(v *Vehicle, deltaMs float64) {
	v.Advance(deltaMs, func(p grid.Position) { s.enterCell(v, p) })
}

// enterCell applies the tile triggers of p
func (s *VehicleSystem) enterCell(v *Vehicle, p grid.Position) {
	cell, ok := s.grid.Cell(p)
	if !ok {
		return
	}

	if cell.Has(grid.FeeBooth) {
		s.collect(v)
	}

	if cell.Has(grid.SpeedBump) {
		limit := cell.Placement.SpeedLimit
		if limit <= 0 {
			limit = s.tuning.SpeedBumpLimit
		}
		if v.Speed > limit {
			v.Speed = limit
		}
	}

	if cell.Surface.Restricted() && !cell.Has(grid.Driveway) && !cell.Has(grid.ParkingSpot) {
		v.RestrictedCount++
		if v.RestrictedCount > s.tuning.RestrictedThreshold && !v.warned {
			v.warned = true
			s.narrator.Emit(MsgRestrictedSurface, v.ID, fmt.Sprintf("%s at %s", cell.Surface, p))
		}
	}
}

func (s *VehicleSystem) park(v *Vehicle) {
	v.State = VehicleParking
	v.Parked = true
	v.DwellMs = randomBetween(s.rng, s.tuning.DwellMinMs, s.tuning.DwellMaxMs)
	s.stats.Parked++
	s.fees.StartFee(v.ID, FeeTerms{Spot: v.Spot, Payment: v.Payment, Price: v.Price})

	if s.companions != nil && s.rng.Float64() < s.tuning.CompanionProbability {
		if pid, ok := s.companions.SpawnCompanion(v.ID, v.Cell); ok {
			v.CompanionID = pid
		}
	}
}

func (s *VehicleSystem) dwell(v *Vehicle, deltaMs float64) {
	v.DwellMs -= deltaMs
	if v.DwellMs > 0 {
		return
	}
	v.DwellMs = 0
	if v.CompanionID != "" {
		unfulfilled, returned := s.companions.TakeReturned(v.CompanionID)
		if !returned {
			return
		}
		v.Unfulfilled = unfulfilled
		v.CompanionID = ""
	}
	s.leave(v)
}

func (s *VehicleSystem) leave(v *Vehicle) {
	v.State = VehicleLeaving
	v.Speed = randomBetween(s.rng, s.tuning.ReturnSpeedMin, s.tuning.ReturnSpeedMax)
	if v.Payment == grid.PayAtSpot {
		s.collect(v)
	}
	s.release(v)

	v.SetPath(s.paths.FindPath(v.Cell, v.Destination, pathfind.Vehicle))
	if v.Arrived() {
		if v.Cell != v.Destination {
			// stuck at the spot; an unpaid exit fee is lost with it
			s.narrator.Emit(MsgExitBlocked, v.ID, v.Cell.String())
		}
		s.despawn(v)
	}
}

func (s *VehicleSystem) collect(v *Vehicle) {
	amount, ok := s.fees.CollectFee(v.ID)
	if !ok {
		return
	}
	v.FeePaid += amount
	s.stats.Revenue += amount
	s.narrator.Emit(MsgFeeCollected, v.ID, fmt.Sprintf("%.2f", amount))
}

func (s *VehicleSystem) holds(v *Vehicle) bool {
	h, ok := s.grid.Reservations().Holder(v.Spot)
	return ok && h == v.ID
}

func (s *VehicleSystem) release(v *Vehicle) {
	if v.HasSpot {
		s.grid.Reservations().Release(v.Spot, v.ID)
		v.HasSpot = false
	}
}

func (s *VehicleSystem) despawn(v *Vehicle) {
	if v.PotentialParker {
		if v.RestrictedCount > s.tuning.RestrictedThreshold {
			s.adjust(v, -s.tuning.RestrictedPenalty)
		}
		if v.Unfulfilled > 0 {
			s.adjust(v, -s.tuning.NeedPenalty*float64(v.Unfulfilled))
		}
		if !v.Parked {
			s.adjust(v, -s.tuning.NoSpotPenalty)
		}
		s.ratings.Finalize(v.ID)
	}
	s.fees.DiscardFee(v.ID)
	s.release(v)
	v.State = VehicleDespawning
	s.stats.Despawned++
}

// adjust applies delta to the vehicle score without letting it drop below zero
func (s *VehicleSystem) adjust(v *Vehicle, delta float64) {
	next := math.Max(0, v.Score+delta)
	applied := next - v.Score
	v.Score = next
	if applied != 0 {
		s.ratings.Adjust(v.ID, applied)
	}
}

func (s *VehicleSystem) sweep() {
	kept := s.vehicles[:0]
	for _, v := range s.vehicles {
		if v.State == VehicleDespawning {
			delete(s.byID, v.ID)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(s.vehicles); i++ {
		s.vehicles[i] = nil
	}
	s.vehicles = kept
}

// Vehicle returns a copy of an active vehicle
func (s *VehicleSystem) Vehicle(id string) (Vehicle, bool) {
	v, ok := s.byID[id]
	if !ok {
		return Vehicle{}, false
	}
	return *v, true
}

// Snapshot returns copies of the active vehicles in creation order
func (s *VehicleSystem) Snapshot() []Vehicle {
	out := make([]Vehicle, len(s.vehicles))
	for i, v := range s.vehicles {
		out[i] = *v
	}
	return out
}

// Stats returns lifecycle counters
func (s *VehicleSystem) Stats() VehicleStats {
	return s.stats
}

// Active returns the number of vehicles in the lot
func (s *VehicleSystem) Active() int {
	return len(s.vehicles)
}
