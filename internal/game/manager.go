package game

import (
	"fmt"
	"log"
	"sync"

	"snake-arena/internal/config"
)

// Manager owns the fixed set of rooms created at process start. Rooms are
// never created or destroyed afterwards; the manager only routes commands to
// them and aggregates their published stats.
type Manager struct {
	rooms map[string]*Room
	order []string // stable room_id ordering for stats
	grid  Grid

	// players maps player_id to the room holding it, so a client-supplied
	// id can never be live in two rooms at once.
	mu      sync.Mutex
	players map[string]string
}

// JoinInfo is what a successful join hands back to the connection.
type JoinInfo struct {
	RoomID   string
	IsHost   bool
	Status   Status
	Grid     Grid
	Snapshot StateSnapshot
}

// NewManager creates the room arena and starts each room's loop goroutine.
func NewManager(game config.GameConfig, rooms config.RoomsConfig, policy Policy, hooks Hooks) *Manager {
	m := &Manager{
		rooms:   make(map[string]*Room, rooms.Count),
		grid:    Grid{Width: game.GridWidth, Height: game.GridHeight},
		players: make(map[string]string),
	}
	for i := 1; i <= rooms.Count; i++ {
		id := fmt.Sprintf("room-%d", i)
		r := newRoom(id, game, rooms.Capacity, policy, hooks)
		m.rooms[id] = r
		m.order = append(m.order, id)
		go r.run()
	}
	log.Printf("🎮 arena ready: %d rooms, capacity %d, %dx%d grid, %d Hz",
		rooms.Count, rooms.Capacity, game.GridWidth, game.GridHeight, game.TickRate)
	return m
}

// Join routes a player onto a room. The call returns once the room's loop
// has committed the join, so an immediately following stats read already
// reflects the new occupancy.
func (m *Manager) Join(roomID, playerID, name string, sink Sink) (JoinInfo, error) {
	r, ok := m.rooms[roomID]
	if !ok {
		return JoinInfo{}, ErrUnknownRoom
	}

	// Reserve the id before touching the room: one live snake per
	// player_id across the whole arena.
	m.mu.Lock()
	if _, taken := m.players[playerID]; taken {
		m.mu.Unlock()
		return JoinInfo{}, ErrPlayerInRoom
	}
	m.players[playerID] = roomID
	m.mu.Unlock()

	reply := make(chan joinReply, 1)
	r.cmds <- joinCmd{playerID: playerID, name: name, sink: sink, reply: reply}
	res := <-reply
	if res.Err != nil {
		m.mu.Lock()
		delete(m.players, playerID)
		m.mu.Unlock()
		return JoinInfo{}, res.Err
	}
	return JoinInfo{
		RoomID:   roomID,
		IsHost:   res.IsHost,
		Status:   res.Status,
		Grid:     res.Grid,
		Snapshot: res.Snapshot,
	}, nil
}

// Leave enqueues the player's leave transition; it takes effect by the next
// tick boundary at the latest.
func (m *Manager) Leave(roomID, playerID string) {
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}

	m.mu.Lock()
	if m.players[playerID] == roomID {
		delete(m.players, playerID)
	}
	m.mu.Unlock()

	r.cmds <- leaveCmd{playerID: playerID}
}

// Input buffers a direction change, applied at the next tick. Fire and
// forget: a saturated room drops the input rather than blocking the socket.
func (m *Manager) Input(roomID, playerID string, dir Direction) {
	r, ok := m.rooms[roomID]
	if !ok {
		return
	}
	select {
	case r.cmds <- inputCmd{playerID: playerID, dir: dir}:
	default:
	}
}

// Start requests a round start; only honored for the host while WAITING.
func (m *Manager) Start(roomID, playerID string) {
	if r, ok := m.rooms[roomID]; ok {
		select {
		case r.cmds <- startCmd{playerID: playerID}:
		default:
		}
	}
}

// Stats returns every room's summary. Served from per-room atomic snapshots:
// never blocks a tick loop, never observes a torn update, requires no join.
func (m *Manager) Stats() []RoomStats {
	out := make([]RoomStats, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rooms[id].Stats())
	}
	return out
}

// Grid returns the fixed playing field dimensions shared by every room.
func (m *Manager) Grid() Grid {
	return m.grid
}

// Snapshot returns a room's latest published state snapshot.
func (m *Manager) Snapshot(roomID string) (StateSnapshot, error) {
	r, ok := m.rooms[roomID]
	if !ok {
		return StateSnapshot{}, ErrUnknownRoom
	}
	return r.Snapshot(), nil
}

// Shutdown stops every room loop. Connections are expected to be closed by
// the caller first.
func (m *Manager) Shutdown() {
	for _, r := range m.rooms {
		r.stop()
	}
	log.Println("🛑 arena stopped")
}
