package api

import (
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"snake-arena/internal/config"
	"snake-arena/internal/game"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size. Client messages are tiny.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ websocket rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// ConnGate enforces the process-wide and per-IP websocket connection caps.
type ConnGate struct {
	total     atomic.Int32
	maxTotal  int
	ipLimiter *WebSocketRateLimiter
}

// NewConnGate creates the connection gate from server config.
func NewConnGate(cfg config.ServerConfig) *ConnGate {
	return &ConnGate{
		maxTotal:  cfg.MaxConnsTotal,
		ipLimiter: NewWebSocketRateLimiter(cfg.MaxConnsPerIP),
	}
}

// client is the per-socket actor: it reads the peer's messages, forwards
// validated commands to the owning room via the manager, and relays that
// room's broadcasts back to the socket. It never touches room state
// directly.
type client struct {
	conn *websocket.Conn
	mgr  *game.Manager
	cfg  config.ServerConfig
	ip   string

	// send buffers outbound frames; a full buffer drops the frame so a
	// slow socket can never stall a room's tick loop. The channel is never
	// closed; the room may broadcast until its leave command lands.
	send chan []byte
	done chan struct{}

	playerID string
	roomID   string
	joined   bool
}

// TrySend implements game.Sink.
func (c *client) TrySend(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// enqueue pushes a control reply, counting any drop.
func (c *client) enqueue(frame []byte) {
	if !c.TrySend(frame) {
		RecordFrameDropped()
	}
}

// HandleWebSocket upgrades the connection and runs the read side. Called
// from the router's /ws route.
func HandleWebSocket(w http.ResponseWriter, r *http.Request, mgr *game.Manager, cfg config.ServerConfig, gate *ConnGate) {
	ip := GetClientIP(r)

	// Reserve the global slot up front; a bare load-then-add would let
	// concurrent upgrades race past the cap.
	if int(gate.total.Add(1)) > gate.maxTotal {
		gate.total.Add(-1)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !gate.ipLimiter.Allow(ip) {
		gate.total.Add(-1)
		log.Printf("⚠️ websocket rejected from %s: per-IP limit", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		gate.total.Add(-1)
		gate.ipLimiter.Release(ip)
		return
	}

	UpdateWSConnections(int(gate.total.Load()))

	c := &client{
		conn: conn,
		mgr:  mgr,
		cfg:  cfg,
		ip:   ip,
		send: make(chan []byte, cfg.SendBufferSize),
		done: make(chan struct{}),
	}

	go c.writePump()
	go func() {
		c.readPump()
		if c.joined {
			c.mgr.Leave(c.roomID, c.playerID)
		}
		close(c.done)
		gate.ipLimiter.Release(ip)
		UpdateWSConnections(int(gate.total.Add(-1)))
	}()
}

// readPump reads frames until the peer goes away.
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages()
		if !c.dispatch(data) {
			return
		}
	}
}

// dispatch handles one inbound frame; returns false to close the connection.
func (c *client) dispatch(data []byte) bool {
	msg, err := decodeClientMessage(data)
	if err != nil {
		c.enqueue(newErrorFrame(ReasonInvalidMessage))
		return true
	}

	switch msg.T {
	case MsgRoomStatsReq:
		// Answerable at any time, join or no join.
		c.enqueue(newRoomStatsFrame(c.mgr.Stats()))

	case MsgJoin:
		c.handleJoin(msg)

	case MsgInput:
		if !c.joined {
			return true
		}
		dir, ok := game.ParseDirection(msg.Direction)
		if !ok {
			return true // IllegalInput: tolerated, never surfaced
		}
		c.mgr.Input(c.roomID, c.playerID, dir)

	case MsgStart:
		if c.joined {
			c.mgr.Start(c.roomID, c.playerID)
		}

	case MsgExit:
		return false
	}
	return true
}

func (c *client) handleJoin(msg clientMessage) {
	if c.joined {
		c.enqueue(newErrorFrame(ReasonInvalidMessage))
		return
	}

	playerID := msg.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()[:8]
	}
	name := sanitizeName(msg.DisplayName, c.cfg.MaxNameLength)

	info, err := c.mgr.Join(msg.RoomID, playerID, name, c)
	if err != nil {
		c.enqueue(newErrorFrame(errorReason(err)))
		return
	}

	c.playerID = playerID
	c.roomID = info.RoomID
	c.joined = true
	c.enqueue(newJoinedFrame(playerID, info))
}

// sanitizeName trims and bounds a display name. Truncation counts runes so
// a multi-byte name is never cut mid-character.
func sanitizeName(raw string, max int) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "Guest"
	}
	if runes := []rune(name); len(runes) > max {
		name = string(runes[:max])
	}
	return name
}

// writePump drains the send buffer to the socket and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
