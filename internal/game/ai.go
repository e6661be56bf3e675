package game

import "log"

// BoardView is a read-only view of a room's grid handed to AI policies.
// Policies must not retain it past the Decide call; the backing maps belong
// to the room's tick loop.
type BoardView struct {
	Grid Grid
	Food []Cell

	occupied map[Cell]struct{}
	snakes   map[string]viewSnake
}

type viewSnake struct {
	head Cell
	dir  Direction
}

// Blocked reports whether a cell is outside the grid or inside a live body.
func (v BoardView) Blocked(c Cell) bool {
	if !v.Grid.Contains(c) {
		return true
	}
	_, ok := v.occupied[c]
	return ok
}

// Snake returns the head position and heading of a live snake.
func (v BoardView) Snake(id string) (head Cell, dir Direction, ok bool) {
	s, ok := v.snakes[id]
	return s.head, s.dir, ok
}

// Policy decides a bot snake's next direction. Implementations may consult an
// external decision model; the room treats the policy as a black box and
// recovers from any panic by holding the snake's current direction.
type Policy interface {
	Decide(view BoardView, selfID string) Direction
}

// GreedyPolicy is the default bot: among the three non-reversing moves it
// rejects lethal cells and steers toward the nearest food by Manhattan
// distance, preferring to go straight on ties.
type GreedyPolicy struct{}

// NewGreedyPolicy returns the default food-seeking policy.
func NewGreedyPolicy() *GreedyPolicy {
	return &GreedyPolicy{}
}

// clockwise ordering lets a relative turn be expressed as an index shift.
var clockwise = [4]Direction{DirRight, DirDown, DirLeft, DirUp}

func clockwiseIndex(d Direction) int {
	for i, c := range clockwise {
		if c == d {
			return i
		}
	}
	return 0
}

// Decide implements Policy.
func (p *GreedyPolicy) Decide(view BoardView, selfID string) Direction {
	head, dir, ok := view.Snake(selfID)
	if !ok {
		return dir
	}

	idx := clockwiseIndex(dir)
	options := [3]Direction{
		dir,                    // straight
		clockwise[(idx+1)%4],   // turn clockwise
		clockwise[(idx+3)%4],   // turn counter-clockwise
	}

	target, hasTarget := nearestFood(view.Food, head)

	best := dir
	bestDist := -1
	for _, opt := range options {
		next := head.Step(opt)
		if view.Blocked(next) {
			continue
		}
		if !hasTarget {
			return opt
		}
		d := manhattan(next, target)
		if bestDist < 0 || d < bestDist {
			best = opt
			bestDist = d
		}
	}
	if bestDist < 0 {
		// Every option is lethal; keep heading and accept the collision.
		return dir
	}
	return best
}

func nearestFood(food []Cell, from Cell) (Cell, bool) {
	if len(food) == 0 {
		return Cell{}, false
	}
	best := food[0]
	bestDist := manhattan(from, best)
	for _, f := range food[1:] {
		if d := manhattan(from, f); d < bestDist {
			best = f
			bestDist = d
		}
	}
	return best, true
}

func manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// decide invokes the policy with panic isolation. A panicking or misbehaving
// policy never takes down a tick; the snake simply holds its heading.
func decide(p Policy, view BoardView, s *Snake) (dir Direction) {
	dir = s.Dir
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ AI policy panic for %s, holding direction: %v", s.ID, r)
			dir = s.Dir
		}
	}()

	d := p.Decide(view, s.ID)
	if !d.Valid() {
		return s.Dir
	}
	return d
}
