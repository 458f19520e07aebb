package traffic

import (
	"errors"
	"testing"

	"github.com/wricardo/lotsim/game/grid"
)

func TestVehicles_StraightThroughTraffic(t *testing.T) {
	g := newLot(t, 3, 3)
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	addSpawner(t, h.vehicles, pos(0, 0), pos(2, 2))

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		h.tick(100)
		for _, v := range h.vehicles.Snapshot() {
			if !seen[v.ID] {
				seen[v.ID] = true
				if len(v.Path) != 4 {
					t.Fatalf("Vehicle %s path length %d, want 4", v.ID, len(v.Path))
				}
			}
			if v.State == VehicleParking || v.Parked {
				t.Fatalf("Vehicle %s entered parking", v.ID)
			}
		}
	}

	if len(seen) < 10 {
		t.Errorf("Expected a steady flow of vehicles, saw %d", len(seen))
	}
	if len(h.ratings.registered) != 0 {
		t.Errorf("Expected no ratings for through traffic, got %d", len(h.ratings.registered))
	}
	if h.vehicles.Stats().Despawned == 0 {
		t.Error("Expected vehicles to despawn at the destination")
	}
}

func TestVehicles_SecondVehicleCannotTakeReservedSpot(t *testing.T) {
	g := newLot(t, 3, 3)
	place(t, g, 1, 1, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South, Price: 2, Payment: grid.PayAtSpot})
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(2, 2))

	first, err := h.vehicles.SpawnNow(sp.ID)
	if err != nil || first == "" {
		t.Fatalf("Expected first spawn, got %q, %v", first, err)
	}
	second, err := h.vehicles.SpawnNow(sp.ID)
	if err != nil || second == "" {
		t.Fatalf("Expected second spawn, got %q, %v", second, err)
	}

	if holder, _ := g.Reservations().Holder(pos(1, 1)); holder != first {
		t.Fatalf("Expected %s to hold (1,1), got %q", first, holder)
	}
	v1, _ := h.vehicles.Vehicle(first)
	if !v1.HasSpot || v1.Spot != pos(1, 1) {
		t.Errorf("Expected first vehicle to target the spot, got %+v", v1)
	}
	v2, _ := h.vehicles.Vehicle(second)
	if v2.HasSpot {
		t.Error("Expected second vehicle to have no reservation")
	}
	if last := v2.Path[len(v2.Path)-1]; last != pos(2, 2) {
		t.Errorf("Expected second vehicle to drive to destination, path ends at %v", last)
	}
	if h.narrator.count(MsgLotFull) != 1 {
		t.Errorf("Expected one lot_full message, got %d", h.narrator.count(MsgLotFull))
	}
	if err := h.vehicles.RemoveSpawner(sp.ID); err != nil {
		t.Fatalf("RemoveSpawner failed: %v", err)
	}

	// run until both are gone; the first one must park on the way
	parked := false
	for i := 0; i < 100 && h.vehicles.Active() > 0; i++ {
		h.tick(100)
		if v, ok := h.vehicles.Vehicle(first); ok && v.State == VehicleParking {
			parked = true
		}
	}
	if !parked {
		t.Error("Expected first vehicle to park")
	}
	if g.Reservations().Len() != 0 {
		t.Errorf("Expected reservation released, got %v", g.Reservations().List())
	}
	if len(h.fees.collected) != 1 || h.fees.collected[0] != 2 {
		t.Errorf("Expected one pay-at-spot collection of 2, got %v", h.fees.collected)
	}
}

func TestVehicles_FencedOffDestinationAbandonsSpawn(t *testing.T) {
	g := newLot(t, 2, 1)
	if err := g.SetMarking(pos(0, 0), grid.East, grid.Fence); err != nil {
		t.Fatalf("SetMarking failed: %v", err)
	}
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(1, 0))

	id, err := h.vehicles.SpawnNow(sp.ID)
	if err != nil {
		t.Fatalf("SpawnNow failed: %v", err)
	}
	if id != "" {
		t.Errorf("Expected no vehicle, got %s", id)
	}
	if h.vehicles.Active() != 0 || h.vehicles.Stats().Abandoned != 1 {
		t.Errorf("Expected abandoned spawn, stats %+v", h.vehicles.Stats())
	}
	if len(h.narrator.messages) != 0 {
		t.Errorf("Expected silent abandonment, got %v", h.narrator.messages)
	}
}

func TestVehicles_RefusedParkerAbandonsSilently(t *testing.T) {
	// the spot opens south onto the road; the destination sits behind a fence
	g := newLot(t, 3, 2)
	place(t, g, 1, 0, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtSpot, Price: 999})
	if err := g.SetMarking(pos(1, 1), grid.East, grid.Fence); err != nil {
		t.Fatalf("SetMarking failed: %v", err)
	}
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 1), pos(2, 1))

	id, err := h.vehicles.SpawnNow(sp.ID)
	if err != nil {
		t.Fatalf("SpawnNow failed: %v", err)
	}
	if id != "" {
		t.Fatalf("Expected no vehicle, got %s", id)
	}
	if stats := h.vehicles.Stats(); stats.Spawned != 0 || stats.Abandoned != 1 {
		t.Errorf("Expected one abandoned spawn, stats %+v", stats)
	}
	if len(h.narrator.messages) != 0 {
		t.Errorf("Expected silent abandonment, got %v", h.narrator.messages)
	}
	if len(h.ratings.registered) != 0 {
		t.Errorf("Expected no rating for an abandoned spawn, got %v", h.ratings.registered)
	}

	// once the way is open the next vehicle gets the first id and its own refusal
	if err := g.SetMarking(pos(1, 1), grid.East, grid.NoMarking); err != nil {
		t.Fatalf("SetMarking failed: %v", err)
	}
	id, _ = h.vehicles.SpawnNow(sp.ID)
	if id != "veh-1" {
		t.Fatalf("Expected veh-1, got %q", id)
	}
	if len(h.narrator.messages) != 1 {
		t.Fatalf("Expected one message, got %v", h.narrator.messages)
	}
	if m := h.narrator.messages[0]; m.code != MsgRefusedPayAtSpot || m.subject != "veh-1" {
		t.Errorf("Expected refusal by veh-1, got %+v", m)
	}
}

func TestVehicles_LongTickSpawnsOncePerSpawner(t *testing.T) {
	g := newLot(t, 3, 3)
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	addSpawner(t, h.vehicles, pos(0, 0), pos(2, 2))
	addSpawner(t, h.vehicles, pos(0, 2), pos(2, 0))

	h.vehicles.Update(2e7)
	if got := h.vehicles.Stats().Spawned; got != 2 {
		t.Fatalf("Expected one spawn per spawner, got %d", got)
	}

	// the timer restarts from a full interval
	h.vehicles.Update(999)
	if got := h.vehicles.Stats().Spawned; got != 2 {
		t.Errorf("Expected no spawn before the interval elapsed, got %d", got)
	}
	h.vehicles.Update(1)
	if got := h.vehicles.Stats().Spawned; got != 4 {
		t.Errorf("Expected a second round of spawns, got %d", got)
	}
}

func TestVehicles_RemovedSpotRetargetsToDestination(t *testing.T) {
	// spot (4,0) opens south onto the road in row 1
	g := newLot(t, 6, 2)
	place(t, g, 4, 0, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South})
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 1), pos(5, 1))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	if err := h.vehicles.RemoveSpawner(sp.ID); err != nil {
		t.Fatalf("RemoveSpawner failed: %v", err)
	}
	v, ok := h.vehicles.Vehicle(id)
	if !ok || !v.HasSpot || v.Spot != pos(4, 0) {
		t.Fatalf("Expected a vehicle heading for (4,0), got %+v", v)
	}

	// a little over half a cell in, between (0,1) and (1,1)
	for i := 0; i < 3; i++ {
		h.tick(100)
	}
	if err := g.Remove(pos(4, 0)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	h.tick(100)

	v, ok = h.vehicles.Vehicle(id)
	if !ok {
		t.Fatal("Expected vehicle still on its way")
	}
	if v.HasSpot {
		t.Error("Expected the stale reservation to be dropped")
	}
	if last := v.Path[len(v.Path)-1]; last != pos(5, 1) {
		t.Errorf("Expected path to end at the destination, ends at %v", last)
	}

	for i := 0; i < 100 && h.vehicles.Active() > 0; i++ {
		h.tick(100)
		if v, ok := h.vehicles.Vehicle(id); ok && (v.State == VehicleParking || v.Parked) {
			t.Fatalf("Expected no parking after the spot vanished, got %s", v.State)
		}
	}
	stats := h.vehicles.Stats()
	if stats.Parked != 0 || stats.Despawned != 1 {
		t.Errorf("Expected one despawn without parking, got %+v", stats)
	}
	if g.Reservations().Len() != 0 {
		t.Errorf("Expected no reservations, got %v", g.Reservations().List())
	}
	if h.ratings.finalized[id] != 1 {
		t.Errorf("Expected the parker's score finalized once, got %d", h.ratings.finalized[id])
	}
}

func TestVehicles_ExitBlockedLosesFee(t *testing.T) {
	g := newLot(t, 4, 2)
	place(t, g, 1, 0, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtExit, Price: 3})
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 1), pos(3, 1))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	_ = h.vehicles.RemoveSpawner(sp.ID)
	for i := 0; i < 50; i++ {
		h.tick(100)
		if v, ok := h.vehicles.Vehicle(id); ok && v.State == VehicleParking {
			break
		}
	}
	if v, _ := h.vehicles.Vehicle(id); v.State != VehicleParking {
		t.Fatalf("Expected vehicle parked, got %s", v.State)
	}

	for _, d := range []grid.Direction{grid.North, grid.East, grid.South, grid.West} {
		if err := g.SetMarking(pos(1, 0), d, grid.Fence); err != nil {
			t.Fatalf("SetMarking failed: %v", err)
		}
	}
	for i := 0; i < 50 && h.vehicles.Active() > 0; i++ {
		h.tick(100)
	}

	if h.vehicles.Active() != 0 {
		t.Fatal("Expected the boxed-in vehicle to despawn")
	}
	if h.narrator.count(MsgExitBlocked) != 1 {
		t.Errorf("Expected one exit_blocked message, got %v", h.narrator.messages)
	}
	if len(h.fees.collected) != 0 || h.fees.discarded == 0 {
		t.Errorf("Expected the exit fee discarded, collected %v discarded %d", h.fees.collected, h.fees.discarded)
	}
	if g.Reservations().Len() != 0 {
		t.Errorf("Expected reservation released, got %v", g.Reservations().List())
	}
}

func TestVehicles_OneHolderPerSpot(t *testing.T) {
	g := newLot(t, 8, 5)
	for x := 1; x < 7; x += 2 {
		place(t, g, x, 0, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South})
		place(t, g, x, 4, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.North, Payment: grid.PayAtExit, Price: 3})
	}
	place(t, g, 7, 2, grid.Placement{Kind: grid.FeeBooth})
	vt, pt := testTuning()
	vt.ParkerProbability = 0.9
	vt.SpawnIntervalMs = 300
	vt.SpawnJitter = 0.5
	vt.DwellMinMs, vt.DwellMaxMs = 500, 3000
	h := newHarness(t, g, vt, pt)
	addSpawner(t, h.vehicles, pos(0, 2), pos(7, 2))
	addSpawner(t, h.vehicles, pos(0, 1), pos(7, 3))

	for i := 0; i < 600; i++ {
		h.tick(50)

		holders := make(map[grid.Position]string)
		for _, v := range h.vehicles.Snapshot() {
			if !v.HasSpot {
				continue
			}
			if other, dup := holders[v.Spot]; dup {
				t.Fatalf("Tick %d: %s and %s both hold %v", i, other, v.ID, v.Spot)
			}
			holders[v.Spot] = v.ID
		}
		for _, r := range g.Reservations().List() {
			if holders[r.Pos] != r.Holder {
				t.Fatalf("Tick %d: reservation %v held by %s has no matching vehicle", i, r.Pos, r.Holder)
			}
		}
		if len(holders) != g.Reservations().Len() {
			t.Fatalf("Tick %d: %d vehicles claim spots but %d reservations exist", i, len(holders), g.Reservations().Len())
		}
	}
	if h.vehicles.Stats().Parked == 0 {
		t.Error("Expected some vehicles to park")
	}
}

func TestVehicles_PayAtExitCollectedOnce(t *testing.T) {
	// spot at (1,0) opens south onto the road in row 1; two booths follow
	g := newLot(t, 6, 2)
	place(t, g, 1, 0, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtExit, Price: 5})
	place(t, g, 3, 1, grid.Placement{Kind: grid.FeeBooth})
	place(t, g, 4, 1, grid.Placement{Kind: grid.FeeBooth})
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 1), pos(5, 1))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	if id == "" {
		t.Fatal("Expected a vehicle")
	}
	if err := h.vehicles.RemoveSpawner(sp.ID); err != nil {
		t.Fatalf("RemoveSpawner failed: %v", err)
	}

	var last Vehicle
	for i := 0; i < 200 && h.vehicles.Active() > 0; i++ {
		h.tick(50)
		if v, ok := h.vehicles.Vehicle(id); ok {
			last = v
			if v.State == VehicleLeaving && g.Reservations().IsReserved(pos(1, 0)) {
				t.Fatal("Expected reservation released when leaving")
			}
		}
	}

	if h.vehicles.Active() != 0 {
		t.Fatal("Expected vehicle to leave the lot")
	}
	if len(h.fees.collected) != 1 || h.fees.collected[0] != 5 {
		t.Errorf("Expected exactly one collection of 5, got %v", h.fees.collected)
	}
	if last.FeePaid != 5 {
		t.Errorf("Expected vehicle to have paid 5, got %v", last.FeePaid)
	}
	if got := h.vehicles.Stats().Revenue; got != 5 {
		t.Errorf("Expected revenue 5, got %v", got)
	}
	if h.narrator.count(MsgFeeCollected) != 1 {
		t.Errorf("Expected one fee message, got %d", h.narrator.count(MsgFeeCollected))
	}
}

func TestVehicles_SpotSelection(t *testing.T) {
	tests := []struct {
		name      string
		spots     []grid.Placement
		wantSpot  bool
		wantRefus string
	}{
		{
			name:     "free spot accepted",
			spots:    []grid.Placement{{Kind: grid.ParkingSpot, Orientation: grid.South}},
			wantSpot: true,
		},
		{
			name:      "pay at exit too expensive",
			spots:     []grid.Placement{{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtExit, Price: 50}},
			wantRefus: MsgRefusedPayAtExit,
		},
		{
			name:      "pay at spot too expensive",
			spots:     []grid.Placement{{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtSpot, Price: 9}},
			wantRefus: MsgRefusedPayAtSpot,
		},
		{
			name: "pay at spot dropped when the lot collects at exit",
			spots: []grid.Placement{
				{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtSpot, Price: 1},
				{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtExit, Price: 50},
			},
			wantRefus: MsgRefusedPayAtExit,
		},
		{
			name: "pay at exit preferred over pay at spot",
			spots: []grid.Placement{
				{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtSpot, Price: 1},
				{Kind: grid.ParkingSpot, Orientation: grid.South, Payment: grid.PayAtExit, Price: 1},
			},
			wantSpot: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newLot(t, 5, 2)
			for i, pl := range tt.spots {
				place(t, g, 1+2*i, 0, pl)
			}
			vt, pt := testTuning()
			vt.ParkerProbability = 1
			h := newHarness(t, g, vt, pt)
			sp := addSpawner(t, h.vehicles, pos(0, 1), pos(4, 1))

			id, _ := h.vehicles.SpawnNow(sp.ID)
			v, ok := h.vehicles.Vehicle(id)
			if !ok {
				t.Fatal("Expected a vehicle")
			}
			if v.HasSpot != tt.wantSpot {
				t.Errorf("HasSpot = %v, want %v", v.HasSpot, tt.wantSpot)
			}
			if v.HasSpot && v.Payment == grid.PayAtSpot && g.HasPayment(grid.PayAtExit) {
				t.Error("Expected pay-at-spot never chosen when the lot has pay-at-exit")
			}
			if tt.wantRefus != "" && h.narrator.count(tt.wantRefus) != 1 {
				t.Errorf("Expected %s narration, got %v", tt.wantRefus, h.narrator.messages)
			}
		})
	}
}

func TestVehicles_CompanionGatesDeparture(t *testing.T) {
	// restroom is missing, vending and bench are reachable
	g := newLot(t, 5, 3)
	place(t, g, 1, 1, grid.Placement{Kind: grid.ParkingSpot, Orientation: grid.South})
	place(t, g, 4, 0, grid.Placement{Kind: grid.PedestrianDestination})
	place(t, g, 3, 1, grid.Placement{Kind: grid.Facility, Facility: grid.Vending, Orientation: grid.West})
	place(t, g, 3, 0, grid.Placement{Kind: grid.Facility, Facility: grid.Bench})

	vt, pt := testTuning()
	vt.ParkerProbability = 1
	vt.CompanionProbability = 1
	vt.DwellMinMs, vt.DwellMaxMs = 100, 100
	pt.NeedProbability = 1
	pt.WaitMinMs, pt.WaitMaxMs = 2000, 2000
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 2), pos(4, 2))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	if id == "" {
		t.Fatal("Expected a vehicle")
	}
	if err := h.vehicles.RemoveSpawner(sp.ID); err != nil {
		t.Fatalf("RemoveSpawner failed: %v", err)
	}

	var companion string
	for i := 0; i < 1000 && h.vehicles.Active() > 0; i++ {
		h.tick(50)
		v, ok := h.vehicles.Vehicle(id)
		if !ok {
			break
		}
		if v.CompanionID != "" {
			companion = v.CompanionID
		}
		if v.State == VehicleLeaving && companion != "" {
			if p, exists := h.peds.Pedestrian(companion); exists {
				t.Fatalf("Vehicle left while companion was %s", p.State)
			}
		}
	}
	if companion == "" {
		t.Fatal("Expected a companion pedestrian")
	}
	if h.vehicles.Active() != 0 {
		t.Fatal("Expected vehicle to leave after the companion returned")
	}

	if got := h.ratings.deltas[id]; len(got) != 1 || got[0] != -vt.NeedPenalty {
		t.Errorf("Expected a single need penalty of %v, got %v", -vt.NeedPenalty, got)
	}
	if want := vt.InitialRating - vt.NeedPenalty; h.ratings.final(id) != want {
		t.Errorf("Expected final score %v, got %v", want, h.ratings.final(id))
	}
	if h.ratings.finalized[id] != 1 {
		t.Errorf("Expected score finalized once, got %d", h.ratings.finalized[id])
	}
	if h.narrator.count(MsgUnfulfilledNeeds) != 1 {
		t.Errorf("Expected one unfulfilled-needs message, got %v", h.narrator.messages)
	}
}

func TestVehicles_RestrictedSurfaceWarningAndClamp(t *testing.T) {
	g := newLot(t, 5, 1)
	for x := 1; x < 4; x++ {
		_ = g.SetSurface(pos(x, 0), grid.Grass)
	}
	vt, pt := testTuning()
	vt.ParkerProbability = 1
	vt.RestrictedThreshold = 1
	vt.InitialRating = 10
	vt.RestrictedPenalty = 20
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(4, 0))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	_ = h.vehicles.RemoveSpawner(sp.ID)
	for i := 0; i < 100 && h.vehicles.Active() > 0; i++ {
		h.tick(100)
	}

	if h.narrator.count(MsgRestrictedSurface) != 1 {
		t.Errorf("Expected one restricted-surface warning, got %d", h.narrator.count(MsgRestrictedSurface))
	}
	if got := h.ratings.final(id); got != 0 {
		t.Errorf("Expected score clamped at 0, got %v", got)
	}
	if got := h.ratings.deltas[id]; len(got) != 1 || got[0] != -10 {
		t.Errorf("Expected applied delta -10, got %v", got)
	}
}

func TestVehicles_SpeedBumpOnlySlowsDown(t *testing.T) {
	g := newLot(t, 6, 1)
	place(t, g, 2, 0, grid.Placement{Kind: grid.SpeedBump, SpeedLimit: 0.5})
	place(t, g, 4, 0, grid.Placement{Kind: grid.SpeedBump, SpeedLimit: 5})
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(5, 0))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	_ = h.vehicles.RemoveSpawner(sp.ID)
	for i := 0; i < 200; i++ {
		h.tick(50)
		v, ok := h.vehicles.Vehicle(id)
		if !ok {
			break
		}
		if v.Cell.X >= 2 && v.Speed != 0.5 {
			t.Fatalf("Expected speed 0.5 after the bump at cell %v, got %v", v.Cell, v.Speed)
		}
	}
	if h.vehicles.Active() != 0 {
		t.Error("Expected vehicle to finish")
	}
}

func TestVehicles_RemoveSpawner(t *testing.T) {
	g := newLot(t, 4, 1)
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(3, 0))

	id, _ := h.vehicles.SpawnNow(sp.ID)
	if err := h.vehicles.RemoveSpawner(sp.ID); err != nil {
		t.Fatalf("RemoveSpawner failed: %v", err)
	}
	if err := h.vehicles.RemoveSpawner(sp.ID); !errors.Is(err, ErrSpawnerNotFound) {
		t.Errorf("Expected ErrSpawnerNotFound, got %v", err)
	}

	h.tick(100)
	if _, ok := h.vehicles.Vehicle(id); !ok {
		t.Fatal("Expected in-flight vehicle to survive spawner removal")
	}
	for i := 0; i < 100; i++ {
		h.tick(100)
	}
	stats := h.vehicles.Stats()
	if stats.Spawned != 1 || stats.Despawned != 1 {
		t.Errorf("Expected one vehicle spawned and despawned, got %+v", stats)
	}
}

func TestVehicles_ZeroDeltaIsNoOp(t *testing.T) {
	g := newLot(t, 3, 1)
	vt, pt := testTuning()
	vt.SpawnIntervalMs = 1
	h := newHarness(t, g, vt, pt)
	sp := addSpawner(t, h.vehicles, pos(0, 0), pos(2, 0))
	id, _ := h.vehicles.SpawnNow(sp.ID)
	before, _ := h.vehicles.Vehicle(id)

	for i := 0; i < 10; i++ {
		h.tick(0)
	}

	after, _ := h.vehicles.Vehicle(id)
	if after.State != before.State || after.Pos != before.Pos || after.Cursor != before.Cursor {
		t.Errorf("Expected vehicle untouched, before %+v after %+v", before, after)
	}
	if h.vehicles.Stats().Spawned != 1 {
		t.Errorf("Expected no timer spawns on zero delta, got %d", h.vehicles.Stats().Spawned)
	}
}

func TestAddSpawner_Invalid(t *testing.T) {
	g := newLot(t, 3, 3)
	vt, pt := testTuning()
	h := newHarness(t, g, vt, pt)

	tests := []struct {
		name         string
		origin, dest grid.Position
	}{
		{"origin off grid", pos(-1, 0), pos(2, 2)},
		{"destination off grid", pos(0, 0), pos(3, 3)},
		{"same cell", pos(1, 1), pos(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.vehicles.AddSpawner(tt.origin, tt.dest); !errors.Is(err, ErrInvalidSpawner) {
				t.Errorf("Expected ErrInvalidSpawner, got %v", err)
			}
		})
	}
}
