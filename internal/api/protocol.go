package api

import (
	"encoding/json"
	"errors"

	"snake-arena/internal/game"
)

// Wire message type tags. Every frame in either direction carries exactly
// one `t` field identifying it.
const (
	MsgJoin         = "join"
	MsgJoined       = "joined"
	MsgInput        = "input"
	MsgStart        = "start"
	MsgExit         = "exit"
	MsgState        = "state"
	MsgRoundResult  = "round_result"
	MsgRoomStatsReq = "room_stats_req"
	MsgRoomStats    = "room_stats"
	MsgError        = "error"
)

// Protocol error reasons reported to the offending connection only.
const (
	ReasonRoomFull       = "RoomFull"
	ReasonUnknownRoom    = "UnknownRoom"
	ReasonInvalidMessage = "InvalidMessage"
)

// ErrInvalidMessage marks a frame that could not be decoded or dispatched.
var ErrInvalidMessage = errors.New("invalid message")

// clientMessage is the union of all inbound frames. Fields outside the
// message's own set are simply left zero.
type clientMessage struct {
	T           string `json:"t"`
	PlayerID    string `json:"player_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	RoomID      string `json:"room_id,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// decodeClientMessage parses an inbound frame. Unknown or untagged frames
// are invalid; bad direction values are NOT flagged here. IllegalInput is
// dropped silently at dispatch, not surfaced as a protocol error.
func decodeClientMessage(data []byte) (clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return clientMessage{}, ErrInvalidMessage
	}
	switch msg.T {
	case MsgJoin, MsgInput, MsgStart, MsgExit, MsgRoomStatsReq:
		return msg, nil
	}
	return clientMessage{}, ErrInvalidMessage
}

// errorMessage is the only frame a misbehaving request ever produces; it
// never affects other connections in the room.
type errorMessage struct {
	T      string `json:"t"`
	Reason string `json:"reason"`
}

func newErrorFrame(reason string) []byte {
	frame, _ := json.Marshal(errorMessage{T: MsgError, Reason: reason})
	return frame
}

// joinedMessage answers a successful join with everything the client needs
// to render: identity, role, grid dimensions and the current snapshot.
type joinedMessage struct {
	T        string             `json:"t"`
	RoomID   string             `json:"room_id"`
	PlayerID string             `json:"player_id"`
	IsHost   bool               `json:"is_host"`
	Status   game.Status        `json:"status"`
	Grid     game.Grid          `json:"grid"`
	Snapshot game.StateSnapshot `json:"snapshot"`
}

func newJoinedFrame(playerID string, info game.JoinInfo) []byte {
	frame, _ := json.Marshal(joinedMessage{
		T:        MsgJoined,
		RoomID:   info.RoomID,
		PlayerID: playerID,
		IsHost:   info.IsHost,
		Status:   info.Status,
		Grid:     info.Grid,
		Snapshot: info.Snapshot,
	})
	return frame
}

// roomStatsMessage answers a room_stats_req; available before any join.
type roomStatsMessage struct {
	T     string           `json:"t"`
	Rooms []game.RoomStats `json:"rooms"`
}

func newRoomStatsFrame(rooms []game.RoomStats) []byte {
	frame, _ := json.Marshal(roomStatsMessage{T: MsgRoomStats, Rooms: rooms})
	return frame
}

// errorReason maps join errors onto wire reasons.
func errorReason(err error) string {
	switch {
	case errors.Is(err, game.ErrRoomFull):
		return ReasonRoomFull
	case errors.Is(err, game.ErrUnknownRoom):
		return ReasonUnknownRoom
	default:
		return ReasonInvalidMessage
	}
}
