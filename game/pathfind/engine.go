// Package pathfind implements direction-aware A* over the cardinal grid.
//
// The engine knows nothing about curbs, fences or lane lines. Every step is
// checked against an injected BlockingPolicy three times: the exit edge of
// the current cell, the entry edge of the neighbour, and the edge on the
// mover's right in one-way-only mode.
package pathfind

import (
	"container/heap"

	"github.com/wricardo/lotsim/game/grid"
)

// Class is the kind of entity a path is searched for
type Class string

const (
	Vehicle    Class = "vehicle"
	Pedestrian Class = "pedestrian"
)

// EdgeQuery describes one edge check made while taking a step
type EdgeQuery struct {
	Cell    grid.Position
	Edge    grid.Direction
	Class   Class
	Entry   bool
	Heading grid.Direction

	// OneWayOnly asks only whether the edge carries a directional lane
	// marking that forbids Heading.
	OneWayOnly bool
}

// BlockingPolicy reports whether an edge stops the mover
type BlockingPolicy func(q EdgeQuery) bool

// CostPolicy returns the non-negative extra cost of stepping from one cell
// to its neighbour.
type CostPolicy func(from, to grid.Position, heading grid.Direction, class Class) float64

// Bounds is the part of the grid the engine needs
type Bounds interface {
	InBounds(p grid.Position) bool
}

// Engine finds contiguous cardinal paths
type Engine struct {
	bounds  Bounds
	blocked BlockingPolicy
	cost    CostPolicy
}

// NewEngine creates an engine. A nil policy blocks nothing; a nil cost
// policy adds nothing.
func NewEngine(bounds Bounds, blocked BlockingPolicy, cost CostPolicy) *Engine {
	return &Engine{bounds: bounds, blocked: blocked, cost: cost}
}

// CanStep reports whether class may move one cell from c in direction d
func (e *Engine) CanStep(c grid.Position, d grid.Direction, class Class) bool {
	n := c.Step(d)
	if !e.bounds.InBounds(c) || !e.bounds.InBounds(n) {
		return false
	}
	if e.blocked == nil {
		return true
	}
	if e.blocked(EdgeQuery{Cell: c, Edge: d, Class: class, Heading: d}) {
		return false
	}
	if e.blocked(EdgeQuery{Cell: n, Edge: d.Opposite(), Class: class, Entry: true, Heading: d}) {
		return false
	}
	if e.blocked(EdgeQuery{Cell: c, Edge: d.Right(), Class: class, Heading: d, OneWayOnly: true}) {
		return false
	}
	return true
}

// FindPath returns the cells after start up to and including goal. The
// result is empty when start equals goal, when either end is off the grid,
// or when goal cannot be reached.
func (e *Engine) FindPath(start, goal grid.Position, class Class) []grid.Position {
	if start == goal || !e.bounds.InBounds(start) || !e.bounds.InBounds(goal) {
		return nil
	}

	open := &frontier{}
	var seq uint64
	push := func(p grid.Position, g float64) {
		heap.Push(open, &node{pos: p, g: g, f: g + float64(grid.ManhattanDistance(p, goal)), seq: seq})
		seq++
	}

	best := map[grid.Position]float64{start: 0}
	cameFrom := make(map[grid.Position]grid.Position)
	closed := make(map[grid.Position]bool)
	push(start, 0)

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)
		if closed[current.pos] {
			continue
		}
		if current.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}
		closed[current.pos] = true

		for _, d := range grid.Directions {
			next := current.pos.Step(d)
			if closed[next] || !e.CanStep(current.pos, d, class) {
				continue
			}
			g := current.g + 1
			if e.cost != nil {
				if extra := e.cost(current.pos, next, d, class); extra > 0 {
					g += extra
				}
			}
			if known, ok := best[next]; ok && known <= g {
				continue
			}
			best[next] = g
			cameFrom[next] = current.pos
			push(next, g)
		}
	}
	return nil
}

// Reachable reports whether goal can be reached from start
func (e *Engine) Reachable(start, goal grid.Position, class Class) bool {
	return len(e.FindPath(start, goal, class)) > 0
}

// FindRoute walks from start through the via stops to goal. A stop is
// skipped when it cannot be reached or when goal cannot be reached from it.
// The legs are concatenated, so a cell may appear in more than one leg.
// It returns the route and the stops actually visited, or nil when goal is
// unreachable altogether.
func (e *Engine) FindRoute(start grid.Position, via []grid.Position, goal grid.Position, class Class) ([]grid.Position, []grid.Position) {
	var route, visited []grid.Position
	current := start
	for _, stop := range via {
		if stop == current {
			visited = append(visited, stop)
			continue
		}
		leg := e.FindPath(current, stop, class)
		if len(leg) == 0 {
			continue
		}
		if stop != goal && !e.Reachable(stop, goal, class) {
			continue
		}
		route = append(route, leg...)
		visited = append(visited, stop)
		current = stop
	}
	if current == goal {
		return route, visited
	}
	last := e.FindPath(current, goal, class)
	if len(last) == 0 {
		return nil, nil
	}
	return append(route, last...), visited
}

func reconstruct(cameFrom map[grid.Position]grid.Position, start, goal grid.Position) []grid.Position {
	var reversed []grid.Position
	for p := goal; p != start; p = cameFrom[p] {
		reversed = append(reversed, p)
	}
	path := make([]grid.Position, len(reversed))
	for i, p := range reversed {
		path[len(reversed)-1-i] = p
	}
	return path
}

type node struct {
	pos grid.Position
	g   float64
	f   float64
	seq uint64
}

// frontier is a min-heap on f, then on push order
type frontier []*node

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(*node)) }

func (f *frontier) Pop() any {
	old := *f
	n := old[len(old)-1]
	*f = old[:len(old)-1]
	return n
}
