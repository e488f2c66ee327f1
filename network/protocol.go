package network

import (
	"fmt"

	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/sim"
)

// Kind identifies the payload type carried by a frame.
type Kind uint16

const (
	KindJoin         Kind = 1
	KindJoinAccepted Kind = 2
	KindJoinRejected Kind = 3
	KindInput        Kind = 101
	KindEquip        Kind = 102
	KindUnequip      Kind = 103
	KindSnapshot     Kind = 201
	KindPlayerLeft   Kind = 202
	KindPing         Kind = 301
	KindPong         Kind = 302
)

var kindNames = map[Kind]string{
	KindJoin:         "Join",
	KindJoinAccepted: "JoinAccepted",
	KindJoinRejected: "JoinRejected",
	KindInput:        "Input",
	KindEquip:        "Equip",
	KindUnequip:      "Unequip",
	KindSnapshot:     "Snapshot",
	KindPlayerLeft:   "PlayerLeft",
	KindPing:         "Ping",
	KindPong:         "Pong",
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// Close and rejection reasons. Departure reasons live in sim.
const (
	ReasonSessionFull  = "SessionFull"
	ReasonBadHandshake = "BadHandshake"
	ReasonShutdown     = "Shutdown"
)

type Join struct {
	Name string `msgpack:"name"`
}

type JoinAccepted struct {
	PlayerID sim.PlayerID   `msgpack:"player_id"`
	MatchID  string         `msgpack:"match_id"`
	TickRate int            `msgpack:"tick_rate"`
	Tick     uint64         `msgpack:"tick"`
	Graph    *dungeon.Graph `msgpack:"graph"`
}

type JoinRejected struct {
	Reason string `msgpack:"reason"`
}

// Input is the per-frame intent a client sends. The host fills in the
// player and arrival stamps; they never travel on the wire.
type Input = sim.InputCommand

type Equip struct {
	InventorySlot int `msgpack:"inventory_slot"`
}

type Unequip struct {
	Slot sim.EquipSlot `msgpack:"slot"`
}

type Snapshot = sim.Snapshot

type PlayerLeft = sim.Leave

type Ping struct {
	Nonce    uint32 `msgpack:"nonce"`
	SentUnix int64  `msgpack:"sent_unix"`
}

type Pong struct {
	Nonce    uint32 `msgpack:"nonce"`
	SentUnix int64  `msgpack:"sent_unix"`
	Tick     uint64 `msgpack:"tick"`
}
