package game

// The movement rules are deliberately pure: they take the explicit grid,
// snake, and food state and mutate only what a tick is allowed to mutate.
// The room's loop is the sole caller.

// moveIntent is one snake's planned move, captured before anything is
// applied so that all collisions resolve against the pre-move board.
type moveIntent struct {
	snake *Snake
	next  Cell
	grows bool
}

// StepOutcome reports what one tick's movement resolution changed.
type StepOutcome struct {
	Died []*Snake // Marked dead this tick, bodies already cleared
	Ate  []*Snake // Consumed a food item this tick
}

// classify determines the collision kind for a snake moving its head to next.
// Self collisions exclude the snake's own departing tail cell (the tail moves
// out in the same tick unless the snake is growing). Other snakes' bodies
// count in full. Head-to-head meetings are resolved separately by Advance.
func classify(g Grid, s *Snake, next Cell, grows bool, others []*Snake) Collision {
	if !g.Contains(next) {
		return CollideWall
	}
	body := s.Body
	if !grows && len(body) > 0 {
		body = body[:len(body)-1] // Departing tail frees its cell
	}
	for _, c := range body {
		if c == next {
			return CollideSelf
		}
	}
	for _, o := range others {
		if o == s || !o.Alive {
			continue
		}
		if o.Occupies(next) {
			return CollideOther
		}
	}
	return CollideNone
}

// Advance moves every live snake one cell in its current direction and
// resolves all collisions simultaneously. Snakes that collide are marked dead
// with their score halved; their bodies act as obstacles for this tick's
// resolution and are removed before returning. Food consumed by a surviving
// head grows the snake by one cell and awards reward points.
func Advance(g Grid, snakes []*Snake, food map[Cell]struct{}, reward int) StepOutcome {
	var out StepOutcome

	live := make([]*Snake, 0, len(snakes))
	for _, s := range snakes {
		if s.Alive && len(s.Body) > 0 {
			live = append(live, s)
		}
	}

	intents := make([]moveIntent, 0, len(live))
	for _, s := range live {
		next := s.Head().Step(s.Dir)
		_, grows := food[next]
		intents = append(intents, moveIntent{snake: s, next: next, grows: grows})
	}

	dead := make(map[*Snake]bool)
	for _, in := range intents {
		if classify(g, in.snake, in.next, in.grows, live) != CollideNone {
			dead[in.snake] = true
		}
	}

	// Two heads entering the same cell in the same tick kill both; there is
	// never a single survivor and the contested food stays uneaten.
	for i := 0; i < len(intents); i++ {
		for j := i + 1; j < len(intents); j++ {
			if intents[i].next == intents[j].next {
				dead[intents[i].snake] = true
				dead[intents[j].snake] = true
			}
		}
	}

	for _, in := range intents {
		if dead[in.snake] {
			continue
		}
		s := in.snake
		s.Body = append([]Cell{in.next}, s.Body...)
		if in.grows {
			delete(food, in.next)
			s.Score += reward
			out.Ate = append(out.Ate, s)
		} else {
			s.Body = s.Body[:len(s.Body)-1]
		}
	}

	for _, in := range intents {
		if !dead[in.snake] {
			continue
		}
		s := in.snake
		s.Alive = false
		s.Score = s.Score / 2
		s.clearBody()
		out.Died = append(out.Died, s)
	}

	return out
}

// occupiedCells collects every live body cell across the given snakes.
func occupiedCells(snakes []*Snake) map[Cell]struct{} {
	occ := make(map[Cell]struct{})
	for _, s := range snakes {
		if !s.Alive {
			continue
		}
		for _, c := range s.Body {
			occ[c] = struct{}{}
		}
	}
	return occ
}
