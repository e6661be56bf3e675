package game

import "sort"

// Status is a room's lifecycle state.
//
//	IDLE → WAITING → RUNNING → FINISHED → WAITING (or IDLE)
type Status string

const (
	StatusIdle     Status = "IDLE"     // No occupants; tick loop parked
	StatusWaiting  Status = "WAITING"  // Occupants present, pre-game
	StatusRunning  Status = "RUNNING"  // Simulation active
	StatusFinished Status = "FINISHED" // Round over, result on display
)

// SnakeState is one snake as it appears in a broadcast snapshot.
type SnakeState struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	IsAI        bool   `json:"is_ai"`
	AITier      AITier `json:"ai_tier,omitempty"`
	Alive       bool   `json:"alive"`
	Score       int    `json:"score"`
	Body        []Cell `json:"body"`
}

// StateSnapshot is the full broadcastable room state at one tick. Every
// connected member of a room receives one per tick, tagged with the tick
// that produced it; snapshots are strictly ordered by Tick.
type StateSnapshot struct {
	T          string       `json:"t"` // always "state"
	Tick       uint64       `json:"tick"`
	RoomStatus Status       `json:"room_status"`
	Snakes     []SnakeState `json:"snakes"`
	Food       []Cell       `json:"food"`
}

// FinalScore is one participant's line in a round result.
type FinalScore struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// RoundResult announces the end of a round.
type RoundResult struct {
	T         string       `json:"t"` // always "round_result"
	Winner    string       `json:"winner"`
	Scores    []FinalScore `json:"scores"`
	EndedTick uint64       `json:"ended_tick"`
}

// RoomStats is one room's summary line for the room-stats query. Served from
// an atomic snapshot so reads never touch a tick loop.
type RoomStats struct {
	RoomID           string `json:"room_id"`
	Status           Status `json:"status"`
	ConnectedPlayers int    `json:"connected_players"`
	DisplayPlayers   int    `json:"display_players"`
	UsedSlots        int    `json:"used_slots"`
	Capacity         int    `json:"capacity"`
	AvailableSlots   int    `json:"available_slots"`
}

// sortedFood returns the food set in a stable row-major order so snapshots
// are byte-for-byte reproducible for a given state.
func sortedFood(food map[Cell]struct{}) []Cell {
	cells := make([]Cell, 0, len(food))
	for c := range food {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells
}
