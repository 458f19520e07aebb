package traffic

import (
	"testing"

	"github.com/wricardo/lotsim/game/grid"
)

func TestPedestrians_NoDestination(t *testing.T) {
	g := newLot(t, 3, 3)
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)

	if id, ok := h.peds.SpawnCompanion("veh-1", pos(0, 0)); ok {
		t.Errorf("Expected no pedestrian without destinations, got %s", id)
	}
	if unfulfilled, returned := h.peds.TakeReturned("ped-404"); !returned || unfulfilled != 0 {
		t.Errorf("Expected missing pedestrian to count as returned, got %d, %v", unfulfilled, returned)
	}
}

func TestPedestrians_RoundTrip(t *testing.T) {
	g := newLot(t, 4, 1)
	place(t, g, 3, 0, grid.Placement{Kind: grid.PedestrianDestination})
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)

	id, ok := h.peds.SpawnCompanion("veh-1", pos(0, 0))
	if !ok {
		t.Fatal("Expected a pedestrian")
	}

	states := []PedestrianState{}
	record := func(s PedestrianState) {
		if len(states) == 0 || states[len(states)-1] != s {
			states = append(states, s)
		}
	}

	for i := 0; i < 200; i++ {
		p, _ := h.peds.Pedestrian(id)
		record(p.State)
		if p.State == PedestrianWaiting && p.Visible {
			t.Fatal("Expected waiting pedestrian to be invisible")
		}
		if p.State == PedestrianAtVehicle {
			break
		}
		if _, returned := h.peds.TakeReturned(id); returned {
			t.Fatalf("Expected marker unavailable while %s", p.State)
		}
		h.peds.Update(100)
	}

	want := []PedestrianState{PedestrianSpawning, PedestrianGoing, PedestrianWaiting, PedestrianReturning, PedestrianAtVehicle}
	if len(states) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("State %d = %s, want %s", i, states[i], want[i])
		}
	}

	p, _ := h.peds.Pedestrian(id)
	if p.Cell != pos(0, 0) {
		t.Errorf("Expected pedestrian back at the vehicle, at %v", p.Cell)
	}
	if _, returned := h.peds.TakeReturned(id); !returned {
		t.Fatal("Expected marker to be taken")
	}
	if h.peds.Active() != 0 {
		t.Error("Expected pedestrian consumed by TakeReturned")
	}
}

func TestPedestrians_NeedsUseFacingCell(t *testing.T) {
	// vehicle at (0,2), destination at (0,0); every facility is off the
	// direct walk so the return leg has to detour
	g := newLot(t, 4, 3)
	place(t, g, 0, 0, grid.Placement{Kind: grid.PedestrianDestination})
	place(t, g, 3, 0, grid.Placement{Kind: grid.Facility, Facility: grid.Restroom, Orientation: grid.South})
	place(t, g, 3, 2, grid.Placement{Kind: grid.Facility, Facility: grid.Vending, Orientation: grid.West})
	place(t, g, 2, 0, grid.Placement{Kind: grid.Facility, Facility: grid.Bench})
	vt, pt := testTuning()
	pt.NeedProbability = 1
	h := newHarness(t, g, vt, pt)

	id, ok := h.peds.SpawnCompanion("veh-1", pos(0, 2))
	if !ok {
		t.Fatal("Expected a pedestrian")
	}

	visited := make(map[grid.Position]bool)
	for i := 0; i < 400; i++ {
		h.peds.Update(100)
		p, _ := h.peds.Pedestrian(id)
		visited[p.Cell] = true
		if p.State == PedestrianAtVehicle {
			break
		}
	}

	p, _ := h.peds.Pedestrian(id)
	if p.State != PedestrianAtVehicle {
		t.Fatalf("Expected pedestrian back at vehicle, got %s", p.State)
	}
	if p.Unfulfilled != 0 {
		t.Errorf("Expected every need met, %d unfulfilled", p.Unfulfilled)
	}
	for _, target := range []grid.Position{pos(3, 1), pos(2, 2), pos(2, 0)} {
		if !visited[target] {
			t.Errorf("Expected pedestrian to visit %v", target)
		}
	}
	if h.narrator.count(MsgUnfulfilledNeeds) != 0 {
		t.Errorf("Unexpected messages: %v", h.narrator.messages)
	}
}

func TestPedestrians_FacilityCellItselfDoesNotCount(t *testing.T) {
	g := newLot(t, 4, 2)
	place(t, g, 3, 0, grid.Placement{Kind: grid.Facility, Facility: grid.Restroom, Orientation: grid.South})
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)

	p := &Pedestrian{Needs: []Need{NeedRestroom}, Satisfied: make(map[Need]bool)}
	h.peds.checkNeeds(p, pos(3, 0))
	if p.Satisfied[NeedRestroom] {
		t.Error("Expected the restroom's own cell not to satisfy the need")
	}
	h.peds.checkNeeds(p, pos(3, 1))
	if !p.Satisfied[NeedRestroom] {
		t.Error("Expected the cell in front of the restroom to satisfy the need")
	}
}

func TestPedestrians_LostOnTheWayBack(t *testing.T) {
	g := newLot(t, 3, 1)
	place(t, g, 2, 0, grid.Placement{Kind: grid.PedestrianDestination})
	vt, pt := testTuning()
	pt.NeedProbability = 1
	h := newHarness(t, g, vt, pt)

	id, ok := h.peds.SpawnCompanion("veh-7", pos(0, 0))
	if !ok {
		t.Fatal("Expected a pedestrian")
	}
	for i := 0; i < 50; i++ {
		h.peds.Update(100)
		if p, _ := h.peds.Pedestrian(id); p.State == PedestrianWaiting {
			break
		}
	}
	// fence the vehicle off while the pedestrian is away
	if err := g.SetMarking(pos(0, 0), grid.East, grid.Fence); err != nil {
		t.Fatalf("SetMarking failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		h.peds.Update(100)
	}

	p, _ := h.peds.Pedestrian(id)
	if p.State != PedestrianAtVehicle {
		t.Fatalf("Expected lost pedestrian released as at_vehicle, got %s", p.State)
	}
	if p.Unfulfilled != 3 {
		t.Errorf("Expected 3 unfulfilled needs, got %d", p.Unfulfilled)
	}
	if h.narrator.count(MsgPedestrianLost) != 1 {
		t.Errorf("Expected one pedestrian_lost message, got %v", h.narrator.messages)
	}
	if unfulfilled, returned := h.peds.TakeReturned(id); !returned || unfulfilled != 3 {
		t.Errorf("TakeReturned = %d, %v", unfulfilled, returned)
	}
}

func TestPedestrians_ZeroDelta(t *testing.T) {
	g := newLot(t, 3, 1)
	place(t, g, 2, 0, grid.Placement{Kind: grid.PedestrianDestination})
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	id, _ := h.peds.SpawnCompanion("veh-1", pos(0, 0))

	h.peds.Update(0)
	if p, _ := h.peds.Pedestrian(id); p.State != PedestrianSpawning || p.Pos != pointOf(pos(0, 0)) {
		t.Errorf("Expected untouched pedestrian, got %+v", p)
	}
}

func TestMover_LogicalCellOnlyOnArrival(t *testing.T) {
	m := newMover(pos(0, 0), pos(2, 0), 1)
	m.SetPath([]grid.Position{pos(1, 0), pos(2, 0)})

	var reached []grid.Position
	onCell := func(p grid.Position) { reached = append(reached, p) }

	m.Advance(500, onCell)
	if m.Cell != pos(0, 0) || m.Pos.X != 0.5 {
		t.Errorf("Expected halfway with cell (0,0), got cell %v pos %+v", m.Cell, m.Pos)
	}
	m.Advance(0, onCell)
	if m.Pos.X != 0.5 {
		t.Errorf("Expected zero delta to keep position, got %+v", m.Pos)
	}
	m.Advance(1000, onCell)
	if m.Cell != pos(1, 0) || m.Pos.X != 1.5 {
		t.Errorf("Expected cell (1,0) at x=1.5, got cell %v pos %+v", m.Cell, m.Pos)
	}
	m.Advance(5000, onCell)
	if !m.Arrived() || m.Cell != pos(2, 0) || m.Pos.X != 2 {
		t.Errorf("Expected arrival at (2,0), got cell %v pos %+v", m.Cell, m.Pos)
	}
	if len(reached) != 2 || reached[0] != pos(1, 0) || reached[1] != pos(2, 0) {
		t.Errorf("Expected both waypoints reported once, got %v", reached)
	}
}

func TestMover_Reroute(t *testing.T) {
	m := newMover(pos(0, 0), pos(3, 0), 1)
	m.SetPath([]grid.Position{pos(1, 0), pos(2, 0), pos(3, 0)})
	m.Advance(500, nil)

	m.Reroute(func(from grid.Position) []grid.Position {
		if from != pos(1, 0) {
			t.Errorf("Expected reroute from the next waypoint, got %v", from)
		}
		return []grid.Position{pos(1, 1)}
	})
	if len(m.Path) != 2 || m.Path[0] != pos(1, 0) || m.Path[1] != pos(1, 1) {
		t.Errorf("Unexpected path after reroute: %v", m.Path)
	}
}
