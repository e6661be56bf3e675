package game

import (
	"testing"
	"time"

	"snake-arena/internal/config"
)

func newTestManager(t *testing.T, roomCount, capacity int) *Manager {
	t.Helper()
	game := testGameConfig()
	game.GridWidth = 10
	game.GridHeight = 10
	rooms := config.RoomsConfig{Count: roomCount, Capacity: capacity}
	m := NewManager(game, rooms, NewGreedyPolicy(), Hooks{})
	t.Cleanup(m.Shutdown)
	return m
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestManagerJoinUnknownRoom(t *testing.T) {
	m := newTestManager(t, 2, 4)

	_, err := m.Join("room-99", "p1", "p1", nullSink{})
	if err != ErrUnknownRoom {
		t.Fatalf("err = %v, want ErrUnknownRoom", err)
	}
}

func TestManagerJoinRoomFull(t *testing.T) {
	m := newTestManager(t, 1, 2)

	for _, id := range []string{"p1", "p2"} {
		if _, err := m.Join("room-1", id, id, nullSink{}); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}
	if _, err := m.Join("room-1", "p3", "p3", nullSink{}); err != ErrRoomFull {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
}

// TestManagerStatsReflectJoinImmediately checks the join/stats round trip:
// once Join returns, a stats read already shows the new occupancy without
// waiting for any tick.
func TestManagerStatsReflectJoinImmediately(t *testing.T) {
	m := newTestManager(t, 3, 4)

	info, err := m.Join("room-1", "p1", "alice", nullSink{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !info.IsHost || info.Status != StatusWaiting {
		t.Errorf("info = %+v, want host of a WAITING room", info)
	}
	if info.Grid != (Grid{Width: 10, Height: 10}) {
		t.Errorf("grid = %+v, want 10x10", info.Grid)
	}

	stats := m.Stats()
	if len(stats) != 3 {
		t.Fatalf("rooms = %d, want 3", len(stats))
	}
	first := stats[0]
	if first.RoomID != "room-1" {
		t.Fatalf("stats order starts at %s, want room-1", first.RoomID)
	}
	if first.ConnectedPlayers != 1 || first.UsedSlots != 1 || first.DisplayPlayers != 1 {
		t.Errorf("room-1 stats = %+v, want 1 connected, 1 used, 1 displayed", first)
	}
	for _, rs := range stats {
		if rs.AvailableSlots != rs.Capacity-rs.UsedSlots {
			t.Errorf("%s: available = %d, want capacity-used = %d",
				rs.RoomID, rs.AvailableSlots, rs.Capacity-rs.UsedSlots)
		}
	}
	for _, rs := range stats[1:] {
		if rs.Status != StatusIdle || rs.UsedSlots != 0 {
			t.Errorf("%s: %+v, want empty IDLE room", rs.RoomID, rs)
		}
	}
}

// TestManagerSoloStartFillsRoom drives the two-slot room scenario end to
// end: one human starts, the bot backfills, and stats report a full room.
func TestManagerSoloStartFillsRoom(t *testing.T) {
	m := newTestManager(t, 1, 2)

	if _, err := m.Join("room-1", "p1", "p1", nullSink{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	m.Start("room-1", "p1")

	ok := waitFor(t, 2*time.Second, func() bool {
		return m.Stats()[0].Status == StatusRunning
	})
	if !ok {
		t.Fatal("room never reached RUNNING")
	}
	rs := m.Stats()[0]
	if rs.ConnectedPlayers != 2 || rs.DisplayPlayers != 2 {
		t.Errorf("stats = %+v, want human plus backfilled bot", rs)
	}
	if rs.UsedSlots != 2 || rs.AvailableSlots != 0 {
		t.Errorf("stats = %+v, want a full room", rs)
	}

	snap, err := m.Snapshot("room-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Snakes) != 2 {
		t.Fatalf("snapshot snakes = %d, want 2", len(snap.Snakes))
	}
	bots := 0
	for _, s := range snap.Snakes {
		if s.IsAI {
			bots++
		}
	}
	if bots != 1 {
		t.Errorf("snapshot bots = %d, want 1", bots)
	}
}

func TestManagerLeaveFreesSlot(t *testing.T) {
	m := newTestManager(t, 1, 4)

	if _, err := m.Join("room-1", "p1", "p1", nullSink{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	m.Leave("room-1", "p1")

	ok := waitFor(t, 2*time.Second, func() bool {
		rs := m.Stats()[0]
		return rs.UsedSlots == 0 && rs.Status == StatusIdle
	})
	if !ok {
		t.Fatalf("stats = %+v, want empty IDLE room after leave", m.Stats()[0])
	}
}

// TestManagerRejectsPlayerInTwoRooms pins the arena-wide identity rule: a
// player_id holds a snake in at most one room at a time, even when the
// client picks its own id.
func TestManagerRejectsPlayerInTwoRooms(t *testing.T) {
	m := newTestManager(t, 2, 4)

	if _, err := m.Join("room-1", "dup", "dup", nullSink{}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := m.Join("room-2", "dup", "dup", nullSink{}); err != ErrPlayerInRoom {
		t.Fatalf("second join err = %v, want ErrPlayerInRoom", err)
	}
	if rs := m.Stats()[1]; rs.UsedSlots != 0 {
		t.Errorf("room-2 used slots = %d, want 0 after rejected join", rs.UsedSlots)
	}

	// Rejoining the same room while still a member is refused too.
	if _, err := m.Join("room-1", "dup", "dup", nullSink{}); err != ErrPlayerInRoom {
		t.Fatalf("same-room rejoin err = %v, want ErrPlayerInRoom", err)
	}

	// Leaving frees the id for a fresh join anywhere.
	m.Leave("room-1", "dup")
	if _, err := m.Join("room-2", "dup", "dup", nullSink{}); err != nil {
		t.Fatalf("join after leave: %v", err)
	}
}

func TestManagerSnapshotUnknownRoom(t *testing.T) {
	m := newTestManager(t, 1, 4)

	if _, err := m.Snapshot("room-7"); err != ErrUnknownRoom {
		t.Fatalf("err = %v, want ErrUnknownRoom", err)
	}
}
