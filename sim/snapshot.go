package sim

import (
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/state"
)

// Snapshot is the finished state of one tick. It shares no memory with the
// session and is never modified after Step returns it.
type Snapshot struct {
	Tick    uint64       `msgpack:"tick"`
	Seed    int64        `msgpack:"seed"`
	Players []PlayerSnap `msgpack:"players"`
	Enemies []EnemySnap  `msgpack:"enemies"`
	Items   []ItemSnap   `msgpack:"items"`
	Rooms   []RoomSnap   `msgpack:"rooms"`

	// Left lists players removed this tick. It travels as PlayerLeft frames,
	// not inside the snapshot payload.
	Left []Leave `msgpack:"-"`
}

type InventoryEntry struct {
	ID   ItemID `msgpack:"id"`
	Type string `msgpack:"type"`
}

type PlayerSnap struct {
	ID        PlayerID          `msgpack:"id"`
	Name      string            `msgpack:"name"`
	Pos       geom.Vec2         `msgpack:"pos"`
	Facing    float64           `msgpack:"facing"`
	HP        int               `msgpack:"hp"`
	MaxHP     int               `msgpack:"max_hp"`
	Stamina   float64           `msgpack:"stamina"`
	Blocking  bool              `msgpack:"blocking"`
	Sprinting bool              `msgpack:"sprinting"`
	Attacking bool              `msgpack:"attacking"`
	LastSeq   uint32            `msgpack:"last_seq"`
	Equipped  [slotCount]string `msgpack:"equipped"`
	Inventory []InventoryEntry  `msgpack:"inventory"`
}

type EnemySnap struct {
	ID     EnemyID     `msgpack:"id"`
	Type   string      `msgpack:"type"`
	Pos    geom.Vec2   `msgpack:"pos"`
	Facing float64     `msgpack:"facing"`
	HP     int         `msgpack:"hp"`
	MaxHP  int         `msgpack:"max_hp"`
	AI     state.State `msgpack:"ai"`
	Ranged bool        `msgpack:"ranged"`
	Target PlayerID    `msgpack:"target"`
}

type ItemSnap struct {
	ID    ItemID    `msgpack:"id"`
	Type  string    `msgpack:"type"`
	State ItemState `msgpack:"state"`
	Pos   geom.Vec2 `msgpack:"pos"`
	Owner PlayerID  `msgpack:"owner"`
}

type RoomSnap struct {
	ID      dungeon.RoomID `msgpack:"id"`
	Active  bool           `msgpack:"active"`
	Cleared bool           `msgpack:"cleared"`
}

func (s *Snapshot) Player(id PlayerID) (PlayerSnap, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnap{}, false
}

func (s *Snapshot) Enemy(id EnemyID) (EnemySnap, bool) {
	for _, e := range s.Enemies {
		if e.ID == id {
			return e, true
		}
	}
	return EnemySnap{}, false
}

func (s *Snapshot) Item(id ItemID) (ItemSnap, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemSnap{}, false
}

func (s *Snapshot) Room(id dungeon.RoomID) (RoomSnap, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return RoomSnap{}, false
}

func (s *Session) snapshot(left []Leave) *Snapshot {
	snap := &Snapshot{
		Tick:    s.tick,
		Seed:    s.rngSeed,
		Players: make([]PlayerSnap, 0, len(s.players)),
		Enemies: make([]EnemySnap, 0, len(s.enemies)),
		Items:   make([]ItemSnap, 0, len(s.items)),
		Rooms:   make([]RoomSnap, 0, len(s.roomOrder)),
		Left:    left,
	}

	for _, id := range s.playerIDs() {
		p := s.players[id]
		ps := PlayerSnap{
			ID:        p.ID,
			Name:      p.Name,
			Pos:       p.Pos,
			Facing:    p.Facing,
			HP:        p.HP,
			MaxHP:     p.MaxHP,
			Stamina:   p.Stamina,
			Blocking:  p.Blocking,
			Sprinting: p.Sprinting,
			Attacking: p.Attacking,
			LastSeq:   p.LastSeq,
			Inventory: make([]InventoryEntry, 0, len(p.Inventory)),
		}
		for slot, itemID := range p.Equipped {
			ps.Equipped[slot] = s.itemType(itemID)
		}
		for _, itemID := range p.Inventory {
			ps.Inventory = append(ps.Inventory, InventoryEntry{ID: itemID, Type: s.itemType(itemID)})
		}
		snap.Players = append(snap.Players, ps)
	}

	for _, id := range s.enemyIDs() {
		e := s.enemies[id]
		snap.Enemies = append(snap.Enemies, EnemySnap{
			ID:     e.ID,
			Type:   e.Type,
			Pos:    e.Pos,
			Facing: e.Facing,
			HP:     e.HP,
			MaxHP:  e.MaxHP,
			AI:     e.AI,
			Ranged: e.Ranged,
			Target: e.Target,
		})
	}

	for _, id := range s.itemIDs() {
		it := s.items[id]
		snap.Items = append(snap.Items, ItemSnap{
			ID:    it.ID,
			Type:  it.Type,
			State: it.State,
			Pos:   it.Pos,
			Owner: it.Owner,
		})
	}

	for _, id := range s.roomOrder {
		rs := s.rooms[id]
		snap.Rooms = append(snap.Rooms, RoomSnap{ID: id, Active: rs.active, Cleared: rs.cleared})
	}
	return snap
}
