package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"snake-arena/internal/config"
)

// Join errors surfaced over the wire.
var (
	ErrRoomFull     = errors.New("room full")
	ErrUnknownRoom  = errors.New("unknown room")
	ErrPlayerInRoom = errors.New("player already in a room")
)

// Sink receives a room's outbound frames. TrySend must never block; it
// reports whether the frame was accepted. Slow receivers lose frames rather
// than stalling the tick loop; snapshots are latest-state-wins.
type Sink interface {
	TrySend(frame []byte) bool
}

// Hooks are optional observability callbacks invoked from room loops.
type Hooks struct {
	ObserveTick  func(d time.Duration)
	FrameDropped func()
}

// spawnAttempts bounds the random search for a collision-free spawn spot.
const spawnAttempts = 100

// initialLength is the body length of a freshly placed snake.
const initialLength = 3

// Room owns one game's full state and its tick loop. All state below the
// command channel is owned exclusively by the run goroutine; connection
// handlers talk to a room only through commands and receive only broadcast
// frames back. Nothing is shared across rooms.
type Room struct {
	id       string
	cfg      config.GameConfig
	capacity int
	policy   Policy
	hooks    Hooks

	cmds chan command
	quit chan struct{}

	// Owned by the run goroutine.
	status  Status
	grid    Grid
	snakes  map[string]*Snake
	sinks   map[string]Sink
	food    map[Cell]struct{}
	pending map[string]Direction // last-write-wins input buffer
	tick    uint64
	hostID  string
	joinSeq int
	botSeq  int
	rng     *rand.Rand

	starters      int       // participants when the round began
	ai2Added      bool      // AI2 backfill happens once per round
	countdownAt   time.Time // auto-start deadline; zero when inactive
	finishedUntil time.Time // when FINISHED resets back to WAITING

	// Lock-free read side: refreshed after every command and tick.
	stats atomic.Pointer[RoomStats]
	snap  atomic.Pointer[StateSnapshot]
}

type command interface{}

type joinCmd struct {
	playerID string
	name     string
	sink     Sink
	reply    chan joinReply
}

// joinReply carries everything a connection needs to answer a join.
type joinReply struct {
	Err      error
	IsHost   bool
	Status   Status
	Grid     Grid
	Snapshot StateSnapshot
}

type leaveCmd struct{ playerID string }

type inputCmd struct {
	playerID string
	dir      Direction
}

type startCmd struct{ playerID string }

func newRoom(id string, cfg config.GameConfig, capacity int, policy Policy, hooks Hooks) *Room {
	r := &Room{
		id:       id,
		cfg:      cfg,
		capacity: capacity,
		policy:   policy,
		hooks:    hooks,
		cmds:     make(chan command, 256),
		quit:     make(chan struct{}),
		status:   StatusIdle,
		grid:     Grid{Width: cfg.GridWidth, Height: cfg.GridHeight},
		snakes:   make(map[string]*Snake),
		sinks:    make(map[string]Sink),
		food:     make(map[Cell]struct{}),
		pending:  make(map[string]Direction),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.publish()
	return r
}

// run is the room's scheduler: one goroutine, one select. The ticker is
// parked while the room is IDLE so empty rooms consume no cycles.
func (r *Room) run() {
	ticker := time.NewTicker(r.cfg.TickInterval())
	ticker.Stop()
	ticking := false

	for {
		select {
		case cmd := <-r.cmds:
			r.handle(cmd)
		case <-ticker.C:
			r.safeTick()
		case <-r.quit:
			ticker.Stop()
			return
		}

		if r.status == StatusIdle && ticking {
			ticker.Stop()
			ticking = false
		} else if r.status != StatusIdle && !ticking {
			ticker.Reset(r.cfg.TickInterval())
			ticking = true
		}
	}
}

func (r *Room) stop() {
	close(r.quit)
}

func (r *Room) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		r.handleJoin(c)
	case leaveCmd:
		r.handleLeave(c.playerID)
	case inputCmd:
		r.handleInput(c)
	case startCmd:
		r.handleStart(c.playerID)
	}
	r.publish()
}

// safeTick runs one tick with panic isolation: an unexpected fault inside a
// tick resets this room to WAITING and never reaches any other room.
func (r *Room) safeTick() {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("🚨 room %s: tick panic, resetting round: %v", r.id, rec)
			r.recoverRound()
		}
		if r.hooks.ObserveTick != nil {
			r.hooks.ObserveTick(time.Since(start))
		}
		r.publish()
	}()

	switch r.status {
	case StatusWaiting:
		r.tickWaiting()
	case StatusRunning:
		r.tickRunning()
	case StatusFinished:
		if time.Now().After(r.finishedUntil) {
			r.resetRound()
		}
	}
}

// tickWaiting drives the auto-start rules: start immediately at capacity,
// after a short countdown once two occupants are present.
func (r *Room) tickWaiting() {
	n := len(r.snakes)
	switch {
	case n >= r.capacity:
		r.startRound("capacity")
	case n >= 2:
		if r.countdownAt.IsZero() {
			r.countdownAt = time.Now().Add(r.cfg.StartCountdown)
		} else if time.Now().After(r.countdownAt) {
			r.startRound("countdown")
		}
	default:
		r.countdownAt = time.Time{}
	}
}

// tickRunning advances the simulation by exactly one step. Order matters:
// buffered inputs, bot decisions, movement with simultaneous collision
// resolution, backfill, end-of-round, food refill, broadcast.
func (r *Room) tickRunning() {
	r.tick++

	for id, dir := range r.pending {
		s, ok := r.snakes[id]
		if !ok || !s.Alive {
			continue
		}
		if dir == s.Dir.Opposite() {
			continue // direction is sticky against instant reversal
		}
		s.Dir = dir
	}
	clear(r.pending)

	view := r.view()
	for _, s := range r.ordered() {
		if !s.IsAI || !s.Alive || len(s.Body) == 0 {
			continue
		}
		if d := decide(r.policy, view, s); d != s.Dir.Opposite() {
			s.Dir = d
		}
	}

	out := Advance(r.grid, r.ordered(), r.food, r.cfg.FoodReward)
	for _, s := range out.Died {
		log.Printf("💀 room %s: %s died at tick %d", r.id, s.Name, r.tick)
	}

	r.backfill()

	if over, winner := r.roundOver(); over {
		r.endRound(winner)
		return
	}

	SpawnFood(r.grid, occupiedCells(r.ordered()), r.food, r.cfg.MaxFood, r.rng)
	r.broadcastState()
}

// backfill keeps a room competitive: while any human is alive there is
// exactly one live AI-tier bot; once every human has died with a bot still
// alive, a single AI2-tier bot joins for the AI-vs-AI continuation. A room
// whose bots all died alongside its humans gets nothing.
func (r *Room) backfill() {
	var humansPresent, humansAlive, botsAlive, aiAlive int
	for _, s := range r.snakes {
		if s.IsAI {
			if s.Alive {
				botsAlive++
				if s.Tier == TierAI {
					aiAlive++
				}
			}
		} else {
			humansPresent++
			if s.Alive {
				humansAlive++
			}
		}
	}

	if humansAlive > 0 {
		if aiAlive == 0 && len(r.snakes) < r.capacity {
			r.addBot(TierAI)
		}
		return
	}
	if humansPresent > 0 && botsAlive > 0 && !r.ai2Added && len(r.snakes) < r.capacity {
		r.addBot(TierAI2)
		r.ai2Added = true
	}
}

func (r *Room) addBot(tier AITier) {
	occ := occupiedCells(r.ordered())
	body := r.spawnBody(occ)
	if body == nil {
		return // no room on the grid this tick
	}

	r.botSeq++
	s := &Snake{
		ID:      fmt.Sprintf("%s-bot-%d", r.id, r.botSeq),
		Name:    string(tier),
		IsAI:    true,
		Tier:    tier,
		joinSeq: r.nextJoinSeq(),
	}
	s.place(body)
	r.snakes[s.ID] = s
	log.Printf("🤖 room %s: backfilled %s bot", r.id, tier)
}

// roundOver reports whether the round has ended and, if so, the winner:
// highest score among all participants, earliest-joined on ties.
func (r *Room) roundOver() (bool, *Snake) {
	alive := 0
	for _, s := range r.snakes {
		if s.Alive {
			alive++
		}
	}
	if alive > 1 || (alive == 1 && r.starters < 2) {
		return false, nil
	}

	var winner *Snake
	for _, s := range r.ordered() {
		if !s.participated {
			continue
		}
		if winner == nil || s.Score > winner.Score {
			winner = s
		}
	}
	return true, winner
}

func (r *Room) startRound(reason string) {
	log.Printf("🐍 room %s: round starting (%s)", r.id, reason)
	r.status = StatusRunning
	r.tick = 0
	r.ai2Added = false
	r.countdownAt = time.Time{}
	clear(r.pending)
	clear(r.food)

	occ := make(map[Cell]struct{})
	for _, s := range r.ordered() {
		s.clearBody()
		s.Alive = false
		s.participated = false
		body := r.spawnBody(occ)
		if body == nil {
			continue // grid saturated; joins as spectator this round
		}
		s.place(body)
		for _, c := range body {
			occ[c] = struct{}{}
		}
	}

	// Backfill evaluates at the transition into RUNNING too, so the opening
	// snapshot already shows the bot.
	r.backfill()

	r.starters = 0
	for _, s := range r.snakes {
		if s.participated {
			r.starters++
		}
	}

	SpawnFood(r.grid, occupiedCells(r.ordered()), r.food, r.cfg.MaxFood, r.rng)
	r.broadcastState()
}

func (r *Room) endRound(winner *Snake) {
	r.status = StatusFinished
	r.finishedUntil = time.Now().Add(r.cfg.ResultDisplay)

	result := RoundResult{
		T:         "round_result",
		EndedTick: r.tick,
	}
	if winner != nil {
		result.Winner = winner.Name
	}
	for _, s := range r.ordered() {
		if !s.participated {
			continue
		}
		result.Scores = append(result.Scores, FinalScore{
			PlayerID:    s.ID,
			DisplayName: s.Name,
			Score:       s.Score,
		})
	}

	log.Printf("🏁 room %s: round over at tick %d, winner %q", r.id, r.tick, result.Winner)
	r.broadcastState()
	r.broadcast(result)
}

// resetRound returns a FINISHED room to WAITING: bots leave, scores zero,
// bodies clear, human occupants stay members.
func (r *Room) resetRound() {
	for id, s := range r.snakes {
		if s.IsAI {
			delete(r.snakes, id)
		}
	}
	for _, s := range r.snakes {
		s.Score = 0
		s.Alive = false
		s.participated = false
		s.clearBody()
	}
	clear(r.food)
	clear(r.pending)
	r.tick = 0

	if len(r.snakes) == 0 {
		r.toIdle()
		return
	}
	r.status = StatusWaiting
	r.countdownAt = time.Time{}
	r.broadcastState()
}

// recoverRound is the panic path: same cleanup as resetRound, entered from
// an arbitrary mid-tick state.
func (r *Room) recoverRound() {
	r.resetRound()
}

func (r *Room) toIdle() {
	r.status = StatusIdle
	r.hostID = ""
	r.countdownAt = time.Time{}
	r.tick = 0
	clear(r.food)
	clear(r.pending)
	for id := range r.snakes {
		delete(r.snakes, id)
	}
}

func (r *Room) handleJoin(c joinCmd) {
	if _, ok := r.snakes[c.playerID]; ok {
		c.reply <- joinReply{Err: fmt.Errorf("player %s already joined", c.playerID)}
		return
	}
	if len(r.snakes) >= r.capacity {
		c.reply <- joinReply{Err: ErrRoomFull}
		return
	}

	s := &Snake{
		ID:      c.playerID,
		Name:    c.name,
		joinSeq: r.nextJoinSeq(),
	}
	// Latecomers spectate: the simulation is never paused or replayed.
	s.Alive = false

	r.snakes[c.playerID] = s
	r.sinks[c.playerID] = c.sink

	if r.hostID == "" {
		r.hostID = c.playerID
	}
	if r.status == StatusIdle {
		r.status = StatusWaiting
	}

	log.Printf("👤 room %s: %s joined (%d/%d)", r.id, c.name, len(r.snakes), r.capacity)
	// Publish before replying so a stats read that races the join reply
	// already sees the new occupancy.
	r.publish()
	c.reply <- joinReply{
		IsHost:   c.playerID == r.hostID,
		Status:   r.status,
		Grid:     r.grid,
		Snapshot: r.snapshot(),
	}
}

func (r *Room) handleLeave(playerID string) {
	s, ok := r.snakes[playerID]
	if !ok {
		return
	}
	delete(r.snakes, playerID)
	delete(r.sinks, playerID)
	delete(r.pending, playerID)
	log.Printf("👋 room %s: %s left", r.id, s.Name)

	if r.hostID == playerID {
		r.hostID = r.electHost()
	}

	humans := 0
	for _, s2 := range r.snakes {
		if !s2.IsAI {
			humans++
		}
	}
	if humans == 0 {
		// Bots alone never keep a room open.
		r.toIdle()
		return
	}
	if r.status == StatusWaiting && len(r.snakes) < 2 {
		r.countdownAt = time.Time{}
	}
}

// electHost picks the earliest-joined human occupant.
func (r *Room) electHost() string {
	var host *Snake
	for _, s := range r.snakes {
		if s.IsAI {
			continue
		}
		if host == nil || s.joinSeq < host.joinSeq {
			host = s
		}
	}
	if host == nil {
		return ""
	}
	return host.ID
}

func (r *Room) handleInput(c inputCmd) {
	s, ok := r.snakes[c.playerID]
	if !ok || !s.Alive {
		return // dead snakes and spectators have no say
	}
	r.pending[c.playerID] = c.dir
}

func (r *Room) handleStart(playerID string) {
	if playerID != r.hostID || r.status != StatusWaiting {
		return
	}
	r.startRound("manual")
}

// view builds the read-only board view handed to AI policies.
func (r *Room) view() BoardView {
	v := BoardView{
		Grid:     r.grid,
		Food:     sortedFood(r.food),
		occupied: occupiedCells(r.ordered()),
		snakes:   make(map[string]viewSnake),
	}
	for _, s := range r.snakes {
		if s.Alive && len(s.Body) > 0 {
			v.snakes[s.ID] = viewSnake{head: s.Head(), dir: s.Dir}
		}
	}
	return v
}

// spawnBody searches for a collision-free horizontal starting body, keeping
// a margin off the walls. Returns nil when no spot can be found.
func (r *Room) spawnBody(occupied map[Cell]struct{}) []Cell {
	if r.grid.Width < initialLength+4 || r.grid.Height < 4 {
		return nil
	}
	for i := 0; i < spawnAttempts; i++ {
		sx := 2 + r.rng.Intn(r.grid.Width-4)
		sy := 2 + r.rng.Intn(r.grid.Height-4)
		if sx-initialLength+1 < 0 {
			continue
		}
		body := make([]Cell, 0, initialLength)
		blocked := false
		for j := 0; j < initialLength; j++ {
			c := Cell{X: sx - j, Y: sy}
			if _, ok := occupied[c]; ok {
				blocked = true
				break
			}
			if _, ok := r.food[c]; ok {
				blocked = true
				break
			}
			body = append(body, c)
		}
		if !blocked {
			return body
		}
	}
	return nil
}

// ordered returns the room's snakes by join order, the canonical iteration
// order for broadcasts and tie-breaks.
func (r *Room) ordered() []*Snake {
	out := make([]*Snake, 0, len(r.snakes))
	for _, s := range r.snakes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinSeq < out[j].joinSeq })
	return out
}

func (r *Room) nextJoinSeq() int {
	r.joinSeq++
	return r.joinSeq
}

// snapshot assembles the broadcastable room state for the current tick.
func (r *Room) snapshot() StateSnapshot {
	snap := StateSnapshot{
		T:          "state",
		Tick:       r.tick,
		RoomStatus: r.status,
		Snakes:     make([]SnakeState, 0, len(r.snakes)),
		Food:       sortedFood(r.food),
	}
	for _, s := range r.ordered() {
		body := make([]Cell, len(s.Body))
		copy(body, s.Body)
		snap.Snakes = append(snap.Snakes, SnakeState{
			PlayerID:    s.ID,
			DisplayName: s.Name,
			IsAI:        s.IsAI,
			AITier:      s.Tier,
			Alive:       s.Alive,
			Score:       s.Score,
			Body:        body,
		})
	}
	return snap
}

func (r *Room) broadcastState() {
	r.broadcast(r.snapshot())
}

// broadcast marshals once and fans out to every connected member without
// blocking; receivers that cannot keep up lose the frame.
func (r *Room) broadcast(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ room %s: broadcast marshal: %v", r.id, err)
		return
	}
	for _, sink := range r.sinks {
		if !sink.TrySend(frame) && r.hooks.FrameDropped != nil {
			r.hooks.FrameDropped()
		}
	}
}

// publish refreshes the lock-free read side. Stats and snapshot reads
// observe either the pre- or post-state of a command or tick, never a tear.
func (r *Room) publish() {
	stats := r.computeStats()
	r.stats.Store(&stats)
	snap := r.snapshot()
	r.snap.Store(&snap)
}

func (r *Room) computeStats() RoomStats {
	humans, liveBots := 0, 0
	for _, s := range r.snakes {
		if s.IsAI {
			if s.Alive {
				liveBots++
			}
		} else {
			humans++
		}
	}

	// A room with no human occupants reports its bot presence as a single
	// aggregated unit, while connected_players stays the literal count.
	display := len(r.snakes)
	if humans == 0 {
		display = 0
		if liveBots > 0 {
			display = 1
		}
	}

	used := len(r.snakes)
	return RoomStats{
		RoomID:           r.id,
		Status:           r.status,
		ConnectedPlayers: len(r.snakes),
		DisplayPlayers:   display,
		UsedSlots:        used,
		Capacity:         r.capacity,
		AvailableSlots:   r.capacity - used,
	}
}

// Stats returns the room's latest published summary without touching the
// tick loop.
func (r *Room) Stats() RoomStats {
	return *r.stats.Load()
}

// Snapshot returns the latest published state snapshot.
func (r *Room) Snapshot() StateSnapshot {
	return *r.snap.Load()
}
