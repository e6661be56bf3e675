package game

import "math/rand"

// Cell is a single grid square. The origin is the top-left corner.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction is one of the four cardinal movement directions.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

var directionNames = map[Direction]string{
	DirUp:    "up",
	DirDown:  "down",
	DirLeft:  "left",
	DirRight: "right",
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return "unknown"
}

// ParseDirection maps a wire direction string to a Direction.
// The second return value is false for anything outside the 4-valued set.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	}
	return 0, false
}

// Vector returns the unit step for the direction.
func (d Direction) Vector() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	default:
		return 1, 0
	}
}

// Opposite returns the 180° reverse of the direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	case DirLeft:
		return DirRight
	default:
		return DirLeft
	}
}

// Valid reports whether d is one of the four cardinal values.
func (d Direction) Valid() bool {
	return d >= DirUp && d <= DirRight
}

// Step returns the neighboring cell one unit away in the direction.
func (c Cell) Step(d Direction) Cell {
	dx, dy := d.Vector()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Grid is the fixed playing field dimensions of a room.
type Grid struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Contains reports whether the cell lies inside the grid bounds.
func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// Collision classifies the outcome of a head moving onto a cell.
type Collision int

const (
	CollideNone Collision = iota
	CollideWall
	CollideSelf
	CollideOther
)

func (c Collision) String() string {
	switch c {
	case CollideNone:
		return "none"
	case CollideWall:
		return "wall"
	case CollideSelf:
		return "self"
	default:
		return "other"
	}
}

// foodSpawnProbes bounds the random probing before falling back to a
// linear scan for a free cell.
const foodSpawnProbes = 100

// SpawnFood refills the food set up to max items, placing each new item on a
// uniformly random cell not occupied by any snake body or existing food.
// A saturated grid skips the spawn; it is never an error.
func SpawnFood(g Grid, occupied map[Cell]struct{}, food map[Cell]struct{}, max int, rng *rand.Rand) {
	for len(food) < max {
		placed := false
		for i := 0; i < foodSpawnProbes; i++ {
			c := Cell{X: rng.Intn(g.Width), Y: rng.Intn(g.Height)}
			if _, ok := occupied[c]; ok {
				continue
			}
			if _, ok := food[c]; ok {
				continue
			}
			food[c] = struct{}{}
			placed = true
			break
		}
		if !placed {
			// Probing failed; scan for any free cell before giving up.
			free := freeCell(g, occupied, food, rng)
			if free == nil {
				return
			}
			food[*free] = struct{}{}
		}
	}
}

// freeCell scans the grid for unoccupied cells and picks one at random.
// Returns nil when the grid is fully saturated.
func freeCell(g Grid, occupied, food map[Cell]struct{}, rng *rand.Rand) *Cell {
	var candidates []Cell
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := Cell{X: x, Y: y}
			if _, ok := occupied[c]; ok {
				continue
			}
			if _, ok := food[c]; ok {
				continue
			}
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	c := candidates[rng.Intn(len(candidates))]
	return &c
}
