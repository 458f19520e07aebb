package grid

import "sort"

// Reservation is one entry of the reservation table
type Reservation struct {
	Pos    Position `json:"pos"`
	Holder string   `json:"holder"`
}

// Reservations maps reserved coordinates to the id of the holder.
// Access is single-threaded; the owning simulation serializes ticks.
type Reservations struct {
	holders map[Position]string
}

// NewReservations creates an empty reservation table
func NewReservations() *Reservations {
	return &Reservations{holders: make(map[Position]string)}
}

// TryReserve claims p for holder if it is free. It returns false when the
// position is already held, including by holder itself.
func (r *Reservations) TryReserve(p Position, holder string) bool {
	if holder == "" {
		return false
	}
	if _, taken := r.holders[p]; taken {
		return false
	}
	r.holders[p] = holder
	return true
}

// Release frees p if holder owns it. Releasing twice is a no-op.
func (r *Reservations) Release(p Position, holder string) bool {
	if current, ok := r.holders[p]; ok && current == holder {
		delete(r.holders, p)
		return true
	}
	return false
}

// Holder returns who holds p
func (r *Reservations) Holder(p Position) (string, bool) {
	h, ok := r.holders[p]
	return h, ok
}

// IsReserved reports whether p is held by anyone
func (r *Reservations) IsReserved(p Position) bool {
	_, ok := r.holders[p]
	return ok
}

// Len returns the number of active reservations
func (r *Reservations) Len() int {
	return len(r.holders)
}

// List returns the table sorted row-major
func (r *Reservations) List() []Reservation {
	out := make([]Reservation, 0, len(r.holders))
	for p, h := range r.holders {
		out = append(out, Reservation{Pos: p, Holder: h})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// Clear drops every reservation
func (r *Reservations) Clear() {
	r.holders = make(map[Position]string)
}

func (r *Reservations) drop(p Position) {
	delete(r.holders, p)
}
