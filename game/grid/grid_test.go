package grid

import (
	"encoding/json"
	"errors"
	"testing"
)

func newTestGrid(t *testing.T, w, h int) *Grid {
	t.Helper()
	g, err := New(w, h, Asphalt)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

func TestNew_InvalidSize(t *testing.T) {
	if _, err := New(0, 3, Asphalt); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestDirection_Helpers(t *testing.T) {
	tests := []struct {
		dir      Direction
		opposite Direction
		right    Direction
	}{
		{North, South, East},
		{East, West, South},
		{South, North, West},
		{West, East, North},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			if got := tt.dir.Opposite(); got != tt.opposite {
				t.Errorf("Opposite() = %v, want %v", got, tt.opposite)
			}
			if got := tt.dir.Right(); got != tt.right {
				t.Errorf("Right() = %v, want %v", got, tt.right)
			}
		})
	}
}

func TestDirection_JSON(t *testing.T) {
	var p Placement
	if err := json.Unmarshal([]byte(`{"kind":"parking_spot","orientation":"up"}`), &p); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if p.Orientation != North {
		t.Errorf("Expected North, got %v", p.Orientation)
	}

	data, err := json.Marshal(Placement{Kind: FeeBooth, Orientation: West})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(data) != `{"kind":"fee_booth","orientation":"west"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	if err := json.Unmarshal([]byte(`{"orientation":"sideways"}`), &p); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestMarking_SharedBorderAliasing(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	center := Position{X: 1, Y: 1}

	tests := []struct {
		name  string
		edge  Direction
		alias Position
	}{
		{"north", North, Position{X: 1, Y: 0}},
		{"east", East, Position{X: 2, Y: 1}},
		{"south", South, Position{X: 1, Y: 2}},
		{"west", West, Position{X: 0, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.SetMarking(center, tt.edge, Fence); err != nil {
				t.Fatalf("SetMarking failed: %v", err)
			}
			if got := g.Marking(tt.alias, tt.edge.Opposite()); got != Fence {
				t.Errorf("Expected fence seen from %v, got %q", tt.alias, got)
			}

			// clearing through the alias clears the shared border
			if err := g.SetMarking(tt.alias, tt.edge.Opposite(), NoMarking); err != nil {
				t.Fatalf("SetMarking failed: %v", err)
			}
			if got := g.Marking(center, tt.edge); got != NoMarking {
				t.Errorf("Expected border cleared, got %q", got)
			}
		})
	}
}

func TestMarking_OuterBorder(t *testing.T) {
	g := newTestGrid(t, 2, 2)
	if err := g.SetMarking(Position{X: 1, Y: 1}, East, Curb); err != nil {
		t.Fatalf("SetMarking on grid edge failed: %v", err)
	}
	if got := g.Marking(Position{X: 1, Y: 1}, East); got != Curb {
		t.Errorf("Expected curb, got %q", got)
	}
	if err := g.SetMarking(Position{X: 5, Y: 0}, North, Curb); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds, got %v", err)
	}
	if err := g.SetMarking(Position{X: 0, Y: 0}, Direction(7), Curb); !errors.Is(err, ErrInvalidEdge) {
		t.Errorf("Expected ErrInvalidEdge, got %v", err)
	}
}

func TestPlace(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	p := Position{X: 1, Y: 1}

	if err := g.Place(p, Placement{Kind: ParkingSpot, Orientation: South, Price: 4}); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if err := g.Place(p, Placement{Kind: FeeBooth}); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("Expected ErrCellOccupied, got %v", err)
	}

	cell, ok := g.Cell(p)
	if !ok || !cell.Has(ParkingSpot) {
		t.Fatal("Expected parking spot on cell")
	}
	if cell.Placement.Payment != PayNone {
		t.Errorf("Expected default payment none, got %q", cell.Placement.Payment)
	}

	spots := g.ParkingSpots()
	if len(spots) != 1 || spots[0].Pos != p || spots[0].Reserved() {
		t.Errorf("Unexpected spots: %+v", spots)
	}
}

func TestCell_PlacementIsACopy(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	p := Position{X: 1, Y: 0}
	if err := g.Place(p, Placement{Kind: ParkingSpot, Orientation: South, Payment: PayAtSpot, Price: 4}); err != nil {
		t.Fatalf("Place failed: %v", err)
	}

	cell, _ := g.Cell(p)
	cell.Placement.Price = 0
	cell.Placement.Orientation = North

	again, _ := g.Cell(p)
	if again.Placement.Price != 4 || again.Placement.Orientation != South {
		t.Errorf("Expected stored placement untouched, got %+v", *again.Placement)
	}
	if spots := g.ParkingSpots(); spots[0].Placement.Price != 4 {
		t.Errorf("Expected spot price 4, got %v", spots[0].Placement.Price)
	}
}

func TestRemove_DropsReservation(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	p := Position{X: 2, Y: 2}
	if err := g.Place(p, Placement{Kind: ParkingSpot, Orientation: North}); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if !g.Reservations().TryReserve(p, "veh-1") {
		t.Fatal("Expected reservation to succeed")
	}
	if err := g.Remove(p); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if g.Reservations().IsReserved(p) {
		t.Error("Expected reservation dropped with placement")
	}
}

func TestSpotBorder(t *testing.T) {
	g := newTestGrid(t, 3, 3)
	spot := Position{X: 1, Y: 1}
	if err := g.Place(spot, Placement{Kind: ParkingSpot, Orientation: South}); err != nil {
		t.Fatalf("Place failed: %v", err)
	}

	tests := []struct {
		name string
		pos  Position
		edge Direction
		want bool
	}{
		{"mouth from spot", spot, South, false},
		{"mouth from outside", Position{X: 1, Y: 2}, North, false},
		{"back wall from spot", spot, North, true},
		{"back wall from outside", Position{X: 1, Y: 0}, South, true},
		{"side wall from neighbour", Position{X: 0, Y: 1}, East, true},
		{"unrelated border", Position{X: 0, Y: 0}, East, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.SpotBorder(tt.pos, tt.edge); got != tt.want {
				t.Errorf("SpotBorder(%v, %v) = %v, want %v", tt.pos, tt.edge, got, tt.want)
			}
		})
	}
}

func TestFacilityTarget(t *testing.T) {
	pos := Position{X: 3, Y: 3}
	tests := []struct {
		name string
		pl   Placement
		want Position
	}{
		{"vending faces east", Placement{Kind: Facility, Facility: Vending, Orientation: East}, Position{X: 4, Y: 3}},
		{"restroom faces north", Placement{Kind: Facility, Facility: Restroom, Orientation: North}, Position{X: 3, Y: 2}},
		{"bench is sat on", Placement{Kind: Facility, Facility: Bench, Orientation: West}, pos},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FacilityTarget(pos, tt.pl); got != tt.want {
				t.Errorf("FacilityTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasPayment(t *testing.T) {
	g := newTestGrid(t, 3, 1)
	if g.HasPayment(PayAtExit) {
		t.Error("Expected no pay-at-exit spot on empty grid")
	}
	if err := g.Place(Position{X: 0, Y: 0}, Placement{Kind: ParkingSpot, Payment: PayAtExit, Price: 3}); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	g.Reservations().TryReserve(Position{X: 0, Y: 0}, "veh-9")
	if !g.HasPayment(PayAtExit) {
		t.Error("Expected pay-at-exit spot to count while reserved")
	}
}
