package game

import (
	"encoding/json"
	"testing"
	"time"

	"snake-arena/internal/config"
)

// Rooms in these tests are driven synchronously: commands and ticks are
// applied directly instead of through the run goroutine, so every assertion
// observes a settled state.

type nullSink struct{}

func (nullSink) TrySend([]byte) bool { return true }

type captureSink struct {
	frames [][]byte
}

func (c *captureSink) TrySend(frame []byte) bool {
	c.frames = append(c.frames, frame)
	return true
}

func testGameConfig() config.GameConfig {
	cfg := config.DefaultGame()
	cfg.GridWidth = 20
	cfg.GridHeight = 20
	cfg.StartCountdown = 50 * time.Millisecond
	cfg.ResultDisplay = 50 * time.Millisecond
	return cfg
}

func newTestRoom(capacity int) *Room {
	return newRoom("room-test", testGameConfig(), capacity, NewGreedyPolicy(), Hooks{})
}

func joinRoom(t *testing.T, r *Room, id string, sink Sink) joinReply {
	t.Helper()
	reply := make(chan joinReply, 1)
	r.handle(joinCmd{playerID: id, name: id, sink: sink, reply: reply})
	return <-reply
}

func TestJoinMovesIdleToWaiting(t *testing.T) {
	r := newTestRoom(4)

	rep := joinRoom(t, r, "p1", nullSink{})
	if rep.Err != nil {
		t.Fatalf("join: %v", rep.Err)
	}
	if !rep.IsHost {
		t.Error("first joiner should be host")
	}
	if rep.Status != StatusWaiting {
		t.Errorf("status = %v, want WAITING", rep.Status)
	}
	if r.snakes["p1"].Alive {
		t.Error("fresh joiner should have no live body yet")
	}
}

func TestJoinRoomFull(t *testing.T) {
	r := newTestRoom(2)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})

	rep := joinRoom(t, r, "p3", nullSink{})
	if rep.Err != ErrRoomFull {
		t.Fatalf("err = %v, want ErrRoomFull", rep.Err)
	}
	if len(r.snakes) != 2 {
		t.Errorf("occupants = %d, want 2", len(r.snakes))
	}
}

func TestJoinDuplicatePlayerRejected(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})

	rep := joinRoom(t, r, "p1", nullSink{})
	if rep.Err == nil {
		t.Fatal("duplicate join should fail")
	}
}

func TestStartRequiresHost(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})

	r.handle(startCmd{playerID: "p2"})
	if r.status != StatusWaiting {
		t.Fatal("non-host start must be ignored")
	}

	r.handle(startCmd{playerID: "p1"})
	if r.status != StatusRunning {
		t.Fatal("host start should begin the round")
	}
	for _, id := range []string{"p1", "p2"} {
		s := r.snakes[id]
		if !s.Alive || len(s.Body) != initialLength {
			t.Errorf("%s: alive=%v len=%d, want alive length-%d snake", id, s.Alive, len(s.Body), initialLength)
		}
		if s.Dir != DirRight {
			t.Errorf("%s: spawn direction = %v, want right", id, s.Dir)
		}
	}
	if len(r.food) != r.cfg.MaxFood {
		t.Errorf("food = %d, want %d", len(r.food), r.cfg.MaxFood)
	}
}

// TestStartBackfillsOneBot covers the solo start: one human in a two-slot
// room starts and a single AI-tier bot fills the other slot immediately.
func TestStartBackfillsOneBot(t *testing.T) {
	r := newTestRoom(2)
	joinRoom(t, r, "p1", nullSink{})

	r.handle(startCmd{playerID: "p1"})

	if r.status != StatusRunning {
		t.Fatal("round should be running")
	}
	bots := 0
	for _, s := range r.snakes {
		if s.IsAI {
			bots++
			if s.Tier != TierAI {
				t.Errorf("backfill tier = %q, want AI", s.Tier)
			}
			if !s.Alive {
				t.Error("backfill bot should spawn alive")
			}
		}
	}
	if bots != 1 {
		t.Fatalf("bots = %d, want exactly 1", bots)
	}
	if r.starters != 2 {
		t.Errorf("starters = %d, want 2 (human + bot)", r.starters)
	}

	stats := r.Stats()
	if stats.ConnectedPlayers != 2 || stats.UsedSlots != 2 || stats.AvailableSlots != 0 {
		t.Errorf("stats = %+v, want 2 connected, 2 used, 0 available", stats)
	}
}

func TestAutoStartAtCapacity(t *testing.T) {
	r := newTestRoom(2)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})

	r.safeTick()
	if r.status != StatusRunning {
		t.Fatal("full room should auto-start on the next tick")
	}
}

func TestAutoStartCountdown(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})

	r.safeTick()
	if r.status != StatusWaiting {
		t.Fatal("countdown tick should not start the round yet")
	}
	if r.countdownAt.IsZero() {
		t.Fatal("countdown should be armed with two occupants")
	}

	r.countdownAt = time.Now().Add(-time.Millisecond)
	r.safeTick()
	if r.status != StatusRunning {
		t.Fatal("expired countdown should start the round")
	}
}

func TestCountdownCancelsWhenAlone(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})
	r.safeTick()

	r.handle(leaveCmd{playerID: "p2"})
	r.safeTick()
	if !r.countdownAt.IsZero() {
		t.Error("countdown should disarm when occupancy drops below two")
	}
	if r.status != StatusWaiting {
		t.Errorf("status = %v, want WAITING", r.status)
	}
}

// runningSoloRoom builds a RUNNING room with one hand-placed human snake and
// capacity 1, so ticks are fully deterministic: no bots, no round end.
func runningSoloRoom(head Cell) (*Room, *Snake) {
	r := newTestRoom(1)
	s := &Snake{ID: "p1", Name: "p1", joinSeq: r.nextJoinSeq()}
	s.place([]Cell{head, {head.X - 1, head.Y}, {head.X - 2, head.Y}})
	r.snakes["p1"] = s
	r.sinks["p1"] = nullSink{}
	r.hostID = "p1"
	r.status = StatusRunning
	r.starters = 1
	return r, s
}

func TestInputReversalIgnored(t *testing.T) {
	r, s := runningSoloRoom(Cell{5, 5})

	r.handle(inputCmd{playerID: "p1", dir: DirLeft})
	r.safeTick()

	if s.Dir != DirRight {
		t.Errorf("dir = %v, want right (reversal sticky)", s.Dir)
	}
	if s.Head() != (Cell{6, 5}) {
		t.Errorf("head = %v, want {6 5}", s.Head())
	}
}

func TestInputLastWriteWins(t *testing.T) {
	r, s := runningSoloRoom(Cell{5, 5})

	r.handle(inputCmd{playerID: "p1", dir: DirDown})
	r.handle(inputCmd{playerID: "p1", dir: DirUp})
	r.safeTick()

	if s.Dir != DirUp {
		t.Errorf("dir = %v, want up (last input in the tick window wins)", s.Dir)
	}
	if s.Head() != (Cell{5, 4}) {
		t.Errorf("head = %v, want {5 4}", s.Head())
	}
}

func TestInputFromDeadSnakeDropped(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})

	r.handle(inputCmd{playerID: "p1", dir: DirUp})
	if len(r.pending) != 0 {
		t.Error("spectator input should not be buffered")
	}
}

func TestBackfillAI2OncePerRound(t *testing.T) {
	r := newTestRoom(4)
	human := &Snake{ID: "p1", Name: "p1", joinSeq: r.nextJoinSeq(), participated: true}
	bot := &Snake{ID: "b1", Name: string(TierAI), IsAI: true, Tier: TierAI, joinSeq: r.nextJoinSeq()}
	bot.place([]Cell{{5, 5}, {4, 5}, {3, 5}})
	r.snakes["p1"] = human
	r.snakes["b1"] = bot
	r.status = StatusRunning

	r.backfill()
	ai2 := 0
	for _, s := range r.snakes {
		if s.Tier == TierAI2 {
			ai2++
		}
	}
	if ai2 != 1 {
		t.Fatalf("AI2 bots = %d, want 1 after all humans died", ai2)
	}

	r.backfill()
	ai2 = 0
	for _, s := range r.snakes {
		if s.Tier == TierAI2 {
			ai2++
		}
	}
	if ai2 != 1 {
		t.Fatal("AI2 backfill must happen at most once per round")
	}
}

func TestNoAI2BackfillInFullRoom(t *testing.T) {
	r := newTestRoom(2)
	human := &Snake{ID: "p1", Name: "p1", joinSeq: r.nextJoinSeq(), participated: true}
	bot := &Snake{ID: "b1", Name: string(TierAI), IsAI: true, Tier: TierAI, joinSeq: r.nextJoinSeq()}
	bot.place([]Cell{{5, 5}, {4, 5}, {3, 5}})
	r.snakes["p1"] = human
	r.snakes["b1"] = bot
	r.status = StatusRunning

	r.backfill()
	if len(r.snakes) != 2 {
		t.Fatal("a full room has no slot for an AI2 bot")
	}
}

func TestNoBackfillWhenEveryoneDead(t *testing.T) {
	r := newTestRoom(4)
	human := &Snake{ID: "p1", Name: "p1", joinSeq: r.nextJoinSeq(), participated: true}
	bot := &Snake{ID: "b1", Name: string(TierAI), IsAI: true, Tier: TierAI, joinSeq: r.nextJoinSeq(), participated: true}
	r.snakes["p1"] = human
	r.snakes["b1"] = bot
	r.status = StatusRunning
	r.starters = 2

	r.backfill()
	if len(r.snakes) != 2 {
		t.Fatal("no bot should join a fully dead room")
	}

	over, _ := r.roundOver()
	if !over {
		t.Error("round should be over with zero alive snakes")
	}
}

func TestRoundWinnerTieBreaksByJoinOrder(t *testing.T) {
	r := newTestRoom(4)
	for _, tc := range []struct {
		id    string
		score int
	}{
		{"p1", 5}, {"p2", 8}, {"p3", 8},
	} {
		s := &Snake{ID: tc.id, Name: tc.id, joinSeq: r.nextJoinSeq(), participated: true, Score: tc.score}
		r.snakes[tc.id] = s
	}
	r.status = StatusRunning
	r.starters = 3

	over, winner := r.roundOver()
	if !over {
		t.Fatal("round with zero alive should be over")
	}
	if winner == nil || winner.ID != "p2" {
		t.Fatalf("winner = %v, want p2 (earliest joined among top scorers)", winner)
	}
}

func TestLastSnakeStandingEndsRound(t *testing.T) {
	r := newTestRoom(4)
	a := &Snake{ID: "p1", Name: "p1", joinSeq: r.nextJoinSeq(), participated: true, Score: 3}
	a.place([]Cell{{5, 5}, {4, 5}, {3, 5}})
	b := &Snake{ID: "p2", Name: "p2", joinSeq: r.nextJoinSeq(), participated: true, Score: 1}
	r.snakes["p1"] = a
	r.snakes["p2"] = b
	r.status = StatusRunning
	r.starters = 2

	over, winner := r.roundOver()
	if !over {
		t.Fatal("a lone survivor of a multi-snake round ends it")
	}
	if winner.ID != "p1" {
		t.Errorf("winner = %s, want p1", winner.ID)
	}
}

func TestSoloSurvivorKeepsPlaying(t *testing.T) {
	r, _ := runningSoloRoom(Cell{5, 5})
	if over, _ := r.roundOver(); over {
		t.Fatal("a round that started solo does not end while its snake lives")
	}
}

func TestEndRoundBroadcastsResultThenResets(t *testing.T) {
	r := newTestRoom(4)
	sink := &captureSink{}
	joinRoom(t, r, "p1", sink)
	w := r.snakes["p1"]
	w.participated = true
	w.Score = 4
	r.status = StatusRunning
	r.tick = 42

	r.endRound(w)

	if r.status != StatusFinished {
		t.Fatalf("status = %v, want FINISHED", r.status)
	}
	if len(sink.frames) == 0 {
		t.Fatal("end of round should broadcast frames")
	}
	last := sink.frames[len(sink.frames)-1]
	var result RoundResult
	if err := json.Unmarshal(last, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.T != "round_result" || result.Winner != "p1" || result.EndedTick != 42 {
		t.Errorf("result = %+v, want round_result for p1 at tick 42", result)
	}
	if len(result.Scores) != 1 || result.Scores[0].Score != 4 {
		t.Errorf("scores = %+v, want p1 with 4", result.Scores)
	}

	r.finishedUntil = time.Now().Add(-time.Millisecond)
	r.safeTick()
	if r.status != StatusWaiting {
		t.Fatalf("status after result display = %v, want WAITING", r.status)
	}
	if w.Score != 0 || w.Alive || len(w.Body) != 0 {
		t.Error("reset should zero the score and clear the body")
	}
	if r.tick != 0 {
		t.Errorf("tick = %d, want 0 after reset", r.tick)
	}
}

func TestResetRemovesBots(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	bot := &Snake{ID: "b1", Name: string(TierAI), IsAI: true, Tier: TierAI, joinSeq: r.nextJoinSeq()}
	r.snakes["b1"] = bot
	r.status = StatusFinished

	r.resetRound()

	if _, ok := r.snakes["b1"]; ok {
		t.Error("bots should leave on reset")
	}
	if r.status != StatusWaiting {
		t.Errorf("status = %v, want WAITING with a human still present", r.status)
	}
}

func TestLeaveReelectsEarliestHost(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})
	joinRoom(t, r, "p3", nullSink{})

	r.handle(leaveCmd{playerID: "p1"})
	if r.hostID != "p2" {
		t.Errorf("host = %s, want p2 (earliest remaining human)", r.hostID)
	}
}

func TestLastHumanLeavingIdlesRoom(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	bot := &Snake{ID: "b1", Name: string(TierAI), IsAI: true, Tier: TierAI, joinSeq: r.nextJoinSeq()}
	bot.place([]Cell{{5, 5}, {4, 5}, {3, 5}})
	r.snakes["b1"] = bot
	r.status = StatusRunning

	r.handle(leaveCmd{playerID: "p1"})

	if r.status != StatusIdle {
		t.Fatalf("status = %v, want IDLE", r.status)
	}
	if len(r.snakes) != 0 {
		t.Error("bots alone must not keep a room open")
	}
	if r.hostID != "" {
		t.Error("idle room has no host")
	}
}

func TestSpectatorJoinDuringRunning(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "p1", nullSink{})
	joinRoom(t, r, "p2", nullSink{})
	r.handle(startCmd{playerID: "p1"})

	rep := joinRoom(t, r, "p3", nullSink{})
	if rep.Err != nil {
		t.Fatalf("join during RUNNING: %v", rep.Err)
	}
	if rep.Status != StatusRunning {
		t.Errorf("status = %v, want RUNNING", rep.Status)
	}
	s := r.snakes["p3"]
	if s.Alive || len(s.Body) != 0 {
		t.Error("mid-round joiner should spectate without a body")
	}
	if s.participated {
		t.Error("spectators are not round participants")
	}
}

// TestTickPanicResetsRoom injects a fault mid-tick and checks the room comes
// back to a clean WAITING state instead of wedging.
func TestTickPanicResetsRoom(t *testing.T) {
	r, _ := runningSoloRoom(Cell{5, 5})
	r.food = nil // the spawn step trips over this

	r.safeTick()

	if r.status != StatusWaiting {
		t.Fatalf("status = %v, want WAITING after tick panic", r.status)
	}
	if r.tick != 0 {
		t.Errorf("tick = %d, want 0 after recovery", r.tick)
	}
}

func TestFoodNeverOverlapsBodies(t *testing.T) {
	r := newTestRoom(2)
	joinRoom(t, r, "p1", nullSink{})
	r.handle(startCmd{playerID: "p1"})

	for i := 0; i < 30 && r.status == StatusRunning; i++ {
		r.safeTick()
		occ := occupiedCells(r.ordered())
		for c := range r.food {
			if _, ok := occ[c]; ok {
				t.Fatalf("tick %d: food at %v overlaps a snake body", i, c)
			}
		}
	}
}

func TestStatsDisplayCollapsesBotOnlyRooms(t *testing.T) {
	r := newTestRoom(4)
	for i := 0; i < 2; i++ {
		bot := &Snake{ID: string(rune('a' + i)), IsAI: true, Tier: TierAI2, joinSeq: r.nextJoinSeq()}
		bot.place([]Cell{{5 + i, 5 + i}})
		r.snakes[bot.ID] = bot
	}

	stats := r.computeStats()
	if stats.ConnectedPlayers != 2 {
		t.Errorf("connected = %d, want literal 2", stats.ConnectedPlayers)
	}
	if stats.DisplayPlayers != 1 {
		t.Errorf("display = %d, want 1 for a bot-only room", stats.DisplayPlayers)
	}
}

func TestSnapshotOrdersByJoinSeq(t *testing.T) {
	r := newTestRoom(4)
	joinRoom(t, r, "zeta", nullSink{})
	joinRoom(t, r, "alpha", nullSink{})

	snap := r.Snapshot()
	if len(snap.Snakes) != 2 {
		t.Fatalf("snakes = %d, want 2", len(snap.Snakes))
	}
	if snap.Snakes[0].PlayerID != "zeta" || snap.Snakes[1].PlayerID != "alpha" {
		t.Errorf("order = %s,%s; want join order zeta,alpha",
			snap.Snakes[0].PlayerID, snap.Snakes[1].PlayerID)
	}
	if snap.T != "state" {
		t.Errorf("frame tag = %q, want state", snap.T)
	}
}

func TestBrokenSinkCountsDrops(t *testing.T) {
	drops := 0
	r := newRoom("room-test", testGameConfig(), 4, NewGreedyPolicy(), Hooks{
		FrameDropped: func() { drops++ },
	})
	full := dropSink{}
	reply := make(chan joinReply, 1)
	r.handle(joinCmd{playerID: "p1", name: "p1", sink: full, reply: reply})
	<-reply

	r.broadcastState()
	if drops == 0 {
		t.Error("a refusing sink should register dropped frames")
	}
}

type dropSink struct{}

func (dropSink) TrySend([]byte) bool { return false }
