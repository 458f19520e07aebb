package engine

import (
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/ledger"
	"github.com/wricardo/lotsim/game/pathfind"
	"github.com/wricardo/lotsim/game/traffic"
)

// Observers are optional sinks outside the simulation. They survive Reset.
type Observers struct {
	Ticks    TickObserver
	Ratings  ledger.RatingObserver
	Fees     ledger.FeeObserver
	Messages ledger.MessageObserver
}

// Option customizes a Simulation
type Option func(*Simulation)

// WithSession labels ratings, fees and tick summaries with a session id
func WithSession(id string) Option {
	return func(s *Simulation) { s.session = id }
}

// WithObservers installs external sinks
func WithObservers(o Observers) Option {
	return func(s *Simulation) { s.observers = o }
}

// Simulation wires a lot, its path engine, the ledgers and both lifecycle
// systems together and advances them tick by tick. It is not safe for
// concurrent use.
type Simulation struct {
	cfg       *ScenarioConfig
	tuning    Tuning
	session   string
	observers Observers

	grid        *grid.Grid
	paths       *pathfind.Engine
	clock       *Clock
	ratings     *ledger.Ratings
	economy     *ledger.Economy
	messages    *ledger.MessageLog
	vehicles    *traffic.VehicleSystem
	pedestrians *traffic.PedestrianSystem

	tick   int
	resets int
}

// NewSimulation validates cfg, applies its inline tuning overrides to
// tuning and builds a simulation at tick zero.
func NewSimulation(cfg *ScenarioConfig, tuning Tuning, opts ...Option) (*Simulation, error) {
	if err := ValidateScenario(cfg); err != nil {
		return nil, err
	}
	resolved, err := cfg.ResolveTuning(tuning)
	if err != nil {
		return nil, err
	}

	s := &Simulation{cfg: cfg, tuning: resolved}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulation) build() error {
	g, err := BuildGrid(s.cfg)
	if err != nil {
		return err
	}
	// Reservations live on the grid and start empty with every rebuild.
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))
	clock := NewClock()
	if s.clock != nil {
		clock.scale = s.clock.scale
	}

	paths := pathfind.NewEngine(g,
		pathfind.EdgePolicy(g),
		pathfind.SurfaceCost(g, s.tuning.Costs.VehicleRestrictedPenalty, s.tuning.Costs.PedestrianRoadPenalty))

	ratings := ledger.NewRatings(s.session)
	economy := ledger.NewEconomy(s.session, clock, s.tuning.Fees.BillingPeriodMs)
	messages := ledger.NewMessageLog(s.tuning.MessageCapacity, s.cfg.Messages)
	messages.SetTickSource(func() int { return s.tick })
	if s.observers.Ratings != nil {
		ratings.SetObserver(s.observers.Ratings)
	}
	if s.observers.Fees != nil {
		economy.SetObserver(s.observers.Fees)
	}
	if s.observers.Messages != nil {
		messages.SetObserver(s.observers.Messages)
	}

	peds, err := traffic.NewPedestrianSystem(traffic.PedestrianDeps{
		Grid:     g,
		Paths:    paths,
		Rand:     rng,
		Narrator: messages,
	}, s.tuning.Pedestrians)
	if err != nil {
		return err
	}

	deps := traffic.VehicleDeps{
		Grid:       g,
		Paths:      paths,
		Rand:       rng,
		Ratings:    ratings,
		Fees:       economy,
		Narrator:   messages,
		Companions: peds,
	}
	if sched := NewWindowSchedule(s.cfg.Schedule); sched != nil {
		deps.Schedule = sched
	}
	vehicles, err := traffic.NewVehicleSystem(deps, s.tuning.Vehicles)
	if err != nil {
		return err
	}
	for i, sp := range s.cfg.Spawners {
		if _, err := vehicles.AddSpawner(sp.Origin, sp.Destination); err != nil {
			return fmt.Errorf("%w: spawner %d: %v", ErrInvalidScenario, i+1, err)
		}
	}

	s.grid = g
	s.paths = paths
	s.clock = clock
	s.ratings = ratings
	s.economy = economy
	s.messages = messages
	s.vehicles = vehicles
	s.pedestrians = peds
	s.tick = 0
	return nil
}

// Tick advances the simulation by rawDeltaMs of wall time. Time scaling
// and pause are applied first; a tick with no simulated time changes
// nothing.
func (s *Simulation) Tick(rawDeltaMs float64) TickSummary {
	delta := s.clock.Advance(rawDeltaMs)
	if delta <= 0 {
		return s.summary(0, false)
	}

	before := s.messages.LastSeq()
	s.tick++
	s.vehicles.Update(delta)
	s.pedestrians.Update(delta)

	sum := s.summary(delta, true)
	sum.Messages = s.messages.LastSeq() - before
	if s.observers.Ticks != nil {
		s.observers.Ticks.ObserveTick(sum)
	}
	return sum
}

// Run advances ticks steps of deltaMs each and returns the last summary.
// A non-positive deltaMs uses the tuned tick length.
func (s *Simulation) Run(ticks int, deltaMs float64) TickSummary {
	if deltaMs <= 0 {
		deltaMs = s.tuning.TickMs
	}
	sum := s.summary(0, false)
	for i := 0; i < ticks; i++ {
		sum = s.Tick(deltaMs)
	}
	return sum
}

func (s *Simulation) summary(delta float64, advanced bool) TickSummary {
	return TickSummary{
		Session:     s.session,
		Tick:        s.tick,
		DeltaMs:     delta,
		ElapsedMs:   s.clock.ElapsedMs(),
		Vehicles:    s.vehicles.Active(),
		Pedestrians: s.pedestrians.Active(),
		Reserved:    s.grid.Reservations().Len(),
		Revenue:     s.economy.Revenue(),
		Advanced:    advanced,
	}
}

// AddSpawner registers a new origin/destination pair
func (s *Simulation) AddSpawner(origin, destination grid.Position) (traffic.Spawner, error) {
	return s.vehicles.AddSpawner(origin, destination)
}

// RemoveSpawner stops a spawner; its vehicles stay on the lot
func (s *Simulation) RemoveSpawner(id string) error {
	return s.vehicles.RemoveSpawner(id)
}

// SpawnNow spawns a vehicle from a spawner immediately
func (s *Simulation) SpawnNow(id string) (string, error) {
	return s.vehicles.SpawnNow(id)
}

// FindPath answers a path query against the live lot
func (s *Simulation) FindPath(from, to grid.Position, class pathfind.Class) []grid.Position {
	return s.paths.FindPath(from, to, class)
}

// Reset rebuilds the simulation from its scenario. The time scale and the
// observers are kept.
func (s *Simulation) Reset() error {
	if err := s.build(); err != nil {
		return err
	}
	s.resets++
	return nil
}

// Resets returns how many times the simulation was reset
func (s *Simulation) Resets() int {
	return s.resets
}

// SetTimeScale changes how fast simulated time runs
func (s *Simulation) SetTimeScale(scale float64) error {
	return s.clock.SetScale(scale)
}

// Pause stops or resumes the simulation
func (s *Simulation) Pause(paused bool) {
	s.clock.SetPaused(paused)
}

// Messages returns narration newer than seq
func (s *Simulation) Messages(since int) []ledger.Message {
	return s.messages.Since(since)
}

// LastMessageSeq returns the sequence number of the newest message
func (s *Simulation) LastMessageSeq() int {
	return s.messages.LastSeq()
}

// Ratings returns the latest finalized ratings and the running summary
func (s *Simulation) Ratings() ([]ledger.FinalRating, ledger.RatingSummary) {
	return s.ratings.Recent(), s.ratings.Summary()
}

// Fees returns the latest collections
func (s *Simulation) Fees() []ledger.Collection {
	return s.economy.Recent()
}

// Config returns the scenario the simulation was built from
func (s *Simulation) Config() *ScenarioConfig {
	return s.cfg
}

// Tuning returns the resolved tuning
func (s *Simulation) Tuning() Tuning {
	return s.tuning
}

// Grid exposes the lot for read-only analysis
func (s *Simulation) Grid() *grid.Grid {
	return s.grid
}

// CurrentTick returns the number of ticks that advanced time
func (s *Simulation) CurrentTick() int {
	return s.tick
}

// GetState returns a snapshot of everything observable
func (s *Simulation) GetState() *SimState {
	_, summary := s.Ratings()
	return &SimState{
		Scenario:     s.cfg.Name,
		Description:  s.cfg.Description,
		Width:        s.grid.Width(),
		Height:       s.grid.Height(),
		Layout:       append([]string(nil), s.cfg.Layout...),
		Placements:   Placements(s.grid),
		Markings:     s.cfg.Markings,
		Tick:         s.tick,
		ElapsedMs:    s.clock.ElapsedMs(),
		TimeScale:    s.clock.Scale(),
		Paused:       s.clock.Paused(),
		Vehicles:     s.vehicles.Snapshot(),
		Pedestrians:  s.pedestrians.Snapshot(),
		Spawners:     s.vehicles.Spawners(),
		Reservations: s.grid.Reservations().List(),
		Stats:        s.vehicles.Stats(),
		Ratings:      summary,
		Revenue:      s.economy.Revenue(),
		Messages:     s.messages.Recent(DefaultMessageLimit),
	}
}
