package traffic

import (
	"math/rand/v2"
	"testing"

	"github.com/wricardo/lotsim/game/grid"
	"github.com/wricardo/lotsim/game/pathfind"
)

type fakeRatings struct {
	registered map[string]float64
	deltas     map[string][]float64
	finalized  map[string]int
}

func newFakeRatings() *fakeRatings {
	return &fakeRatings{
		registered: make(map[string]float64),
		deltas:     make(map[string][]float64),
		finalized:  make(map[string]int),
	}
}

func (r *fakeRatings) Register(id string, initial float64) { r.registered[id] = initial }
func (r *fakeRatings) Adjust(id string, delta float64)     { r.deltas[id] = append(r.deltas[id], delta) }
func (r *fakeRatings) Finalize(id string)                  { r.finalized[id]++ }

func (r *fakeRatings) final(id string) float64 {
	score := r.registered[id]
	for _, d := range r.deltas[id] {
		score += d
	}
	return score
}

type fakeFees struct {
	active    map[string]FeeTerms
	started   int
	collected []float64
	discarded int
}

func newFakeFees() *fakeFees {
	return &fakeFees{active: make(map[string]FeeTerms)}
}

func (f *fakeFees) StartFee(id string, terms FeeTerms) {
	f.active[id] = terms
	f.started++
}

func (f *fakeFees) CollectFee(id string) (float64, bool) {
	terms, ok := f.active[id]
	if !ok {
		return 0, false
	}
	delete(f.active, id)
	f.collected = append(f.collected, terms.Price)
	return terms.Price, true
}

func (f *fakeFees) DiscardFee(id string) {
	delete(f.active, id)
	f.discarded++
}

type message struct {
	code, subject, detail string
}

type fakeNarrator struct {
	messages []message
}

func (n *fakeNarrator) Emit(code, subjectID, detail string) {
	n.messages = append(n.messages, message{code, subjectID, detail})
}

func (n *fakeNarrator) count(code string) int {
	c := 0
	for _, m := range n.messages {
		if m.code == code {
			c++
		}
	}
	return c
}

type harness struct {
	grid     *grid.Grid
	vehicles *VehicleSystem
	peds     *PedestrianSystem
	ratings  *fakeRatings
	fees     *fakeFees
	narrator *fakeNarrator
}

// testTuning makes every random range collapse to a single value
func testTuning() (VehicleTuning, PedestrianTuning) {
	vt := DefaultVehicleTuning()
	vt.SpawnIntervalMs = 1000
	vt.SpawnJitter = 0
	vt.ParkerProbability = 0
	vt.SpeedMin, vt.SpeedMax = 2, 2
	vt.ReturnSpeedMin, vt.ReturnSpeedMax = 2, 2
	vt.DwellMinMs, vt.DwellMaxMs = 1000, 1000
	vt.CompanionProbability = 0

	pt := DefaultPedestrianTuning()
	pt.SpeedMin, pt.SpeedMax = 2, 2
	pt.WaitMinMs, pt.WaitMaxMs = 500, 500
	pt.NeedProbability = 0
	return vt, pt
}

func newHarness(t *testing.T, g *grid.Grid, vt VehicleTuning, pt PedestrianTuning) *harness {
	t.Helper()
	rng := rand.New(rand.NewPCG(42, 1))
	paths := pathfind.NewEngine(g, pathfind.EdgePolicy(g), pathfind.SurfaceCost(g, 3, 0.5))
	h := &harness{
		grid:     g,
		ratings:  newFakeRatings(),
		fees:     newFakeFees(),
		narrator: &fakeNarrator{},
	}

	peds, err := NewPedestrianSystem(PedestrianDeps{Grid: g, Paths: paths, Rand: rng, Narrator: h.narrator}, pt)
	if err != nil {
		t.Fatalf("Failed to create pedestrian system: %v", err)
	}
	vehicles, err := NewVehicleSystem(VehicleDeps{
		Grid:       g,
		Paths:      paths,
		Rand:       rng,
		Ratings:    h.ratings,
		Fees:       h.fees,
		Narrator:   h.narrator,
		Companions: peds,
	}, vt)
	if err != nil {
		t.Fatalf("Failed to create vehicle system: %v", err)
	}
	h.vehicles, h.peds = vehicles, peds
	return h
}

func (h *harness) tick(deltaMs float64) {
	h.vehicles.Update(deltaMs)
	h.peds.Update(deltaMs)
}

func newLot(t *testing.T, w, h int) *grid.Grid {
	t.Helper()
	g, err := grid.New(w, h, grid.Asphalt)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

func place(t *testing.T, g *grid.Grid, x, y int, pl grid.Placement) {
	t.Helper()
	if err := g.Place(grid.Position{X: x, Y: y}, pl); err != nil {
		t.Fatalf("Place at (%d,%d) failed: %v", x, y, err)
	}
}

func pos(x, y int) grid.Position { return grid.Position{X: x, Y: y} }

func addSpawner(t *testing.T, s *VehicleSystem, origin, dest grid.Position) Spawner {
	t.Helper()
	sp, err := s.AddSpawner(origin, dest)
	if err != nil {
		t.Fatalf("AddSpawner failed: %v", err)
	}
	return sp
}
