package traffic

import (
	"errors"
	"fmt"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

// PedestrianState is a step of the pedestrian round trip
type PedestrianState string

const (
	PedestrianSpawning   PedestrianState = "spawning"
	PedestrianGoing      PedestrianState = "going_to_destination"
	PedestrianWaiting    PedestrianState = "waiting"
	PedestrianRespawning PedestrianState = "respawning"
	PedestrianReturning  PedestrianState = "returning_to_vehicle"
	PedestrianAtVehicle  PedestrianState = "at_vehicle"
)

// Need is something a pedestrian wants to do before driving off
type Need string

const (
	NeedRestroom Need = "restroom"
	NeedSnack    Need = "snack"
	NeedRest     Need = "rest"
)

// AllNeeds lists needs in the order they are rolled
var AllNeeds = []Need{NeedRestroom, NeedSnack, NeedRest}

// Facility returns the facility kind that satisfies n
func (n Need) Facility() grid.FacilityKind {
	switch n {
	case NeedRestroom:
		return grid.Restroom
	case NeedSnack:
		return grid.Vending
	}
	return grid.Bench
}

// Pedestrian is a person who left a parked vehicle
type Pedestrian struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicle_id"`
	Mover
	State       PedestrianState `json:"state"`
	Visible     bool            `json:"visible"`
	TimerMs     float64         `json:"timer_ms,omitempty"`
	Needs       []Need          `json:"needs,omitempty"`
	Satisfied   map[Need]bool   `json:"satisfied,omitempty"`
	Unfulfilled int             `json:"unfulfilled"`
}

// Unsatisfied returns the needs not met yet, in roll order
func (p *Pedestrian) Unsatisfied() []Need {
	var out []Need
	for _, n := range p.Needs {
		if !p.Satisfied[n] {
			out = append(out, n)
		}
	}
	return out
}

// PedestrianDeps are the collaborators of a PedestrianSystem. Grid, Paths
// and Rand are required.
type PedestrianDeps struct {
	Grid     Grid
	Paths    Paths
	Rand     Rand
	Narrator Narrator
}

// PedestrianSystem owns the pedestrians of one simulation
type PedestrianSystem struct {
	grid     Grid
	paths    Paths
	rng      Rand
	narrator Narrator
	tuning   PedestrianTuning

	pedestrians []*Pedestrian
	byID        map[string]*Pedestrian
	nextID      int
}

// NewPedestrianSystem creates a pedestrian system
func NewPedestrianSystem(deps PedestrianDeps, tuning PedestrianTuning) (*PedestrianSystem, error) {
	if deps.Grid == nil || deps.Paths == nil || deps.Rand == nil {
		return nil, errors.New("pedestrian system needs a grid, a path engine and a random source")
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	s := &PedestrianSystem{
		grid:     deps.Grid,
		paths:    deps.Paths,
		rng:      deps.Rand,
		narrator: deps.Narrator,
		tuning:   tuning,
		byID:     make(map[string]*Pedestrian),
	}
	if s.narrator == nil {
		s.narrator = nopNarrator{}
	}
	return s, nil
}

// SpawnCompanion sends a pedestrian from the vehicle at pos to a random
// pedestrian destination. Nothing is spawned when the lot has no
// destination or the chosen one cannot be reached.
func (s *PedestrianSystem) SpawnCompanion(vehicleID string, at grid.Position) (string, bool) {
	destinations := s.grid.PedestrianDestinations()
	if len(destinations) == 0 {
		return "", false
	}
	dest := destinations[s.rng.IntN(len(destinations))]

	path := s.paths.FindPath(at, dest, pathfind.Pedestrian)
	if len(path) == 0 && at != dest {
		return "", false
	}

	s.nextID++
	p := &Pedestrian{
		ID:        fmt.Sprintf("ped-%d", s.nextID),
		VehicleID: vehicleID,
		Mover:     newMover(at, dest, randomBetween(s.rng, s.tuning.SpeedMin, s.tuning.SpeedMax)),
		State:     PedestrianSpawning,
		Visible:   true,
		Satisfied: make(map[Need]bool),
	}
	for _, n := range AllNeeds {
		if s.rng.Float64() < s.tuning.NeedProbability {
			p.Needs = append(p.Needs, n)
		}
	}
	p.SetPath(path)
	s.checkNeeds(p, at)

	s.pedestrians = append(s.pedestrians, p)
	s.byID[p.ID] = p
	return p.ID, true
}

// TakeReturned consumes the at-vehicle marker of a pedestrian
func (s *PedestrianSystem) TakeReturned(id string) (int, bool) {
	p, ok := s.byID[id]
	if !ok {
		return 0, true
	}
	if p.State != PedestrianAtVehicle {
		return 0, false
	}
	s.remove(id)
	return p.Unfulfilled, true
}

// Update advances every pedestrian by deltaMs in creation order. A
// non-positive delta does nothing.
func (s *PedestrianSystem) Update(deltaMs float64) {
	if deltaMs <= 0 {
		return
	}
	for _, p := range s.pedestrians {
		s.updatePedestrian(p, deltaMs)
	}
}

func (s *PedestrianSystem) updatePedestrian(p *Pedestrian, deltaMs float64) {
	switch p.State {
	case PedestrianSpawning:
		p.State = PedestrianGoing
		s.walk(p, deltaMs)
	case PedestrianGoing:
		s.walk(p, deltaMs)
	case PedestrianWaiting:
		p.TimerMs -= deltaMs
		if p.TimerMs <= 0 {
			p.State = PedestrianRespawning
			p.TimerMs = s.tuning.RespawnDelayMs
		}
	case PedestrianRespawning:
		p.TimerMs -= deltaMs
	case PedestrianReturning:
		s.walk(p, deltaMs)
	}

	if p.State == PedestrianRespawning && p.TimerMs <= 0 {
		s.startReturn(p)
	}
}

func (s *PedestrianSystem) walk(p *Pedestrian, deltaMs float64) {
	p.Advance(deltaMs, func(at grid.Position) { s.checkNeeds(p, at) })
	if !p.Arrived() {
		return
	}
	switch p.State {
	case PedestrianGoing:
		p.State = PedestrianWaiting
		p.Visible = false
		p.TimerMs = randomBetween(s.rng, s.tuning.WaitMinMs, s.tuning.WaitMaxMs)
	case PedestrianReturning:
		s.arrive(p)
	}
}

// startReturn plans the way back to the vehicle through the facilities of
// unmet needs
func (s *PedestrianSystem) startReturn(p *Pedestrian) {
	p.TimerMs = 0
	p.Visible = true
	home := p.Origin

	var via []grid.Position
	from := p.Cell
	for _, n := range p.Unsatisfied() {
		target, ok := s.nearestTarget(n, from, home)
		if !ok {
			continue
		}
		via = append(via, target)
		from = target
	}

	route, _ := s.paths.FindRoute(p.Cell, via, home, pathfind.Pedestrian)
	if len(route) == 0 && p.Cell != home {
		p.State = PedestrianAtVehicle
		p.Unfulfilled = len(p.Unsatisfied())
		s.narrator.Emit(MsgPedestrianLost, p.ID, p.VehicleID)
		return
	}
	p.State = PedestrianReturning
	p.SetPath(route)
	if p.Arrived() {
		s.arrive(p)
	}
}

// nearestTarget finds the closest facility target for n that can be walked
// to from `from` and from which home can be reached
func (s *PedestrianSystem) nearestTarget(n Need, from, home grid.Position) (grid.Position, bool) {
	var best grid.Position
	bestDist := -1
	for _, target := range s.targets(n) {
		if target != from && len(s.paths.FindPath(from, target, pathfind.Pedestrian)) == 0 {
			continue
		}
		if target != home && len(s.paths.FindPath(target, home, pathfind.Pedestrian)) == 0 {
			continue
		}
		d := grid.ManhattanDistance(from, target)
		if bestDist < 0 || d < bestDist {
			best, bestDist = target, d
		}
	}
	return best, bestDist >= 0
}

func (s *PedestrianSystem) targets(n Need) []grid.Position {
	var out []grid.Position
	for _, site := range s.grid.Facilities() {
		if site.Placement.Facility != n.Facility() {
			continue
		}
		target := grid.FacilityTarget(site.Pos, site.Placement)
		if s.grid.InBounds(target) {
			out = append(out, target)
		}
	}
	return out
}

func (s *PedestrianSystem) checkNeeds(p *Pedestrian, at grid.Position) {
	for _, n := range p.Unsatisfied() {
		for _, target := range s.targets(n) {
			if target == at {
				p.Satisfied[n] = true
				break
			}
		}
	}
}

func (s *PedestrianSystem) arrive(p *Pedestrian) {
	p.State = PedestrianAtVehicle
	p.Unfulfilled = len(p.Unsatisfied())
	if p.Unfulfilled > 0 {
		s.narrator.Emit(MsgUnfulfilledNeeds, p.ID, fmt.Sprintf("%d", p.Unfulfilled))
	}
}

func (s *PedestrianSystem) remove(id string) {
	delete(s.byID, id)
	for i, p := range s.pedestrians {
		if p.ID == id {
			s.pedestrians = append(s.pedestrians[:i], s.pedestrians[i+1:]...)
			return
		}
	}
}

// Pedestrian returns a copy of a pedestrian
func (s *PedestrianSystem) Pedestrian(id string) (Pedestrian, bool) {
	p, ok := s.byID[id]
	if !ok {
		return Pedestrian{}, false
	}
	return p.clone(), true
}

// Snapshot returns copies of all pedestrians in creation order
func (s *PedestrianSystem) Snapshot() []Pedestrian {
	out := make([]Pedestrian, len(s.pedestrians))
	for i, p := range s.pedestrians {
		out[i] = p.clone()
	}
	return out
}

func (p *Pedestrian) clone() Pedestrian {
	c := *p
	c.Satisfied = make(map[Need]bool, len(p.Satisfied))
	for n, ok := range p.Satisfied {
		c.Satisfied[n] = ok
	}
	return c
}

// Active returns the number of pedestrians
func (s *PedestrianSystem) Active() int {
	return len(s.pedestrians)
}
