package game

// AITier distinguishes the two bot backfill roles. Human snakes have no tier.
type AITier string

const (
	TierAI  AITier = "AI"  // Backfill opponent while humans are alive
	TierAI2 AITier = "AI2" // Second bot for AI-vs-AI continuation
)

// Snake is one participant's piece on the grid. All fields are owned by the
// room's tick loop; nothing outside that goroutine reads or writes a Snake.
type Snake struct {
	ID   string
	Name string

	IsAI bool
	Tier AITier

	// Body cells head first. Empty for spectators and between rounds.
	Body  []Cell
	Dir   Direction
	Alive bool
	Score int

	// joinSeq orders occupants by arrival; used for host election and
	// winner tie-breaks.
	joinSeq int

	// participated marks snakes that held a body this round (placed at
	// start or backfilled mid-round). Spectators never participate.
	participated bool
}

// Head returns the snake's head cell. Only valid while the body is non-empty.
func (s *Snake) Head() Cell {
	return s.Body[0]
}

// Occupies reports whether any body cell is on c.
func (s *Snake) Occupies(c Cell) bool {
	for _, b := range s.Body {
		if b == c {
			return true
		}
	}
	return false
}

// clearBody drops the snake's cells from the grid.
func (s *Snake) clearBody() {
	s.Body = s.Body[:0]
}

// place resets the snake onto a fresh starting body heading right.
func (s *Snake) place(body []Cell) {
	s.Body = body
	s.Dir = DirRight
	s.Alive = true
	s.participated = true
}
