// Package grid provides the tile topology the parking lot simulation runs on.
//
// The grid package implements:
//   - Cells with a surface class, an optional placed object and a permanent flag
//   - Edge markings (curb, fence, lane line) stored once per physical border
//   - Immutable placement records (parking spots, fee booths, facilities, ...)
//   - A reservation table for parking spots, kept apart from the placements
//
// Directions:
//
// Edges are addressed by (cell, Direction) where North, East, South and West
// are the edge indices 0..3. A border shared by two cells can be written or
// read through either of them:
//
//	g.SetMarking(grid.Position{X: 1, Y: 1}, grid.East, grid.Fence)
//	g.Marking(grid.Position{X: 2, Y: 1}, grid.West) // Fence
//
// Reservations:
//
// Parking spots are exclusively reservable. Reservations.TryReserve is a
// test-and-set that never fails loudly; a false return only means the spot
// is taken. Release is idempotent.
package grid
