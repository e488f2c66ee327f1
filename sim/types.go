package sim

import (
	"errors"

	"github.com/wfunc/flyknight/geom"
)

type (
	PlayerID uint32
	EnemyID  uint32
	ItemID   uint32
)

const (
	PlayerSize     = 32
	PlayerSpeed    = 200.0
	SprintFactor   = 1.5
	PlayerMaxHP    = 100
	MaxStamina     = 100.0
	StaminaRegen   = 30.0
	InventorySize  = 20
	AttackArc      = 0.7853981633974483 // 45 degrees either side of facing
	attackWindup   = 0.3
	attackRecovery = 0.4
	lungeSeconds   = 0.3
)

var (
	ErrInvalidEquip  = errors.New("invalid equip")
	ErrInventoryFull = errors.New("inventory full")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrEmptySlot     = errors.New("empty slot")
)

// InputCommand is one client intent frame. Arrival is stamped by the
// ingestion queue and orders contested actions within a tick.
type InputCommand struct {
	Player   PlayerID  `msgpack:"-"`
	Seq      uint32    `msgpack:"seq"`
	Move     geom.Vec2 `msgpack:"move"`
	Facing   float64   `msgpack:"facing"`
	Attack   bool      `msgpack:"attack"`
	Block    bool      `msgpack:"block"`
	Sprint   bool      `msgpack:"sprint"`
	Interact bool      `msgpack:"interact"`
	// PickupTarget names an explicit item for Interact; zero means nearest.
	PickupTarget ItemID `msgpack:"pickup_target,omitempty"`
	Arrival      uint64 `msgpack:"-"`
}

// EquipSlot is an equipment slot on a player.
type EquipSlot uint8

const (
	SlotWeapon EquipSlot = iota
	SlotShield
	SlotHelmet
	SlotChestplate
	SlotGreaves
	slotCount
)

func (s EquipSlot) String() string {
	switch s {
	case SlotWeapon:
		return "weapon"
	case SlotShield:
		return "shield"
	case SlotHelmet:
		return "helmet"
	case SlotChestplate:
		return "chestplate"
	case SlotGreaves:
		return "greaves"
	default:
		return "unknown"
	}
}

// EquipRequest moves an item between inventory and equipment. Equip uses
// InventorySlot, Unequip uses Slot.
type EquipRequest struct {
	Player        PlayerID
	Unequip       bool
	InventorySlot int
	Slot          EquipSlot
	Arrival       uint64
}

// Join admits a new player at the next tick boundary.
type Join struct {
	Player PlayerID
	Name   string
}

// Leave reasons.
const (
	ReasonDisconnected = "Disconnected"
	ReasonTimeout      = "Timeout"
	ReasonKicked       = "Kicked"
	ReasonProtocol     = "ProtocolError"
)

type Leave struct {
	Player PlayerID `msgpack:"player_id"`
	Reason string   `msgpack:"reason"`
}

// StepInput is everything the tick loop drained from the ingestion side
// since the previous tick. Commands and Equips are in arrival order.
type StepInput struct {
	Joins    []Join
	Leaves   []Leave
	Commands []InputCommand
	Equips   []EquipRequest
}

// ItemState is the lifecycle of a world item.
type ItemState uint8

const (
	OnGround ItemState = iota
	Claimed
	Owned
)

func (s ItemState) String() string {
	switch s {
	case OnGround:
		return "on_ground"
	case Claimed:
		return "claimed"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

// Item is a catalog item instance. Pos is meaningful while OnGround, Owner
// while Claimed or Owned.
type Item struct {
	ID    ItemID
	Type  string
	State ItemState
	Pos   geom.Vec2
	Owner PlayerID
}
