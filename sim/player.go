package sim

import (
	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/geom"
)

type Player struct {
	ID      PlayerID
	Name    string
	Pos     geom.Vec2
	Vel     geom.Vec2
	Facing  float64
	HP      int
	MaxHP   int
	Stamina float64

	Equipped  [slotCount]ItemID
	Inventory []ItemID

	LastSeq uint32

	// Latest applied intent.
	move         geom.Vec2
	block        bool
	sprint       bool
	attackHeld   bool
	interactHeld bool

	// Edge-triggered requests consumed this tick.
	attackPressed bool
	pickup        *pickupRequest

	Blocking  bool
	Sprinting bool
	Attacking bool

	attackReadyTick uint64
	immuneUntilTick uint64
}

func (p *Player) Alive() bool { return p.HP > 0 }

func (p *Player) Bounds() geom.Rect { return geom.Around(p.Pos, PlayerSize) }

func (p *Player) HasFreeSlot() bool { return len(p.Inventory) < InventorySize }

func clampStamina(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > MaxStamina {
		return MaxStamina
	}
	return v
}

func (p *Player) spendStamina(amount float64) {
	p.Stamina = clampStamina(p.Stamina - amount)
}

// weapon returns the stats of the equipped weapon, or unarmed.
func (s *Session) weapon(p *Player) catalog.WeaponStats {
	return s.cat.Weapon(s.itemType(p.Equipped[SlotWeapon]))
}

func (s *Session) shield(p *Player) (catalog.ShieldStats, bool) {
	id := p.Equipped[SlotShield]
	if id == 0 {
		return catalog.ShieldStats{}, false
	}
	return s.cat.Shield(s.itemType(id))
}

// armorSet returns the set name when all three pieces belong to one set.
func (s *Session) armorSet(p *Player) string {
	set := ""
	for _, slot := range []EquipSlot{SlotHelmet, SlotChestplate, SlotGreaves} {
		id := p.Equipped[slot]
		if id == 0 {
			return ""
		}
		c := s.cat.Classify(s.itemType(id))
		if c.Kind != catalog.KindArmor {
			return ""
		}
		if set == "" {
			set = c.Set
		} else if set != c.Set {
			return ""
		}
	}
	return set
}

func (s *Session) itemType(id ItemID) string {
	if id == 0 {
		return ""
	}
	if it, ok := s.items[id]; ok {
		return it.Type
	}
	return ""
}

var startingGear = []struct {
	slot EquipSlot
	item string
}{
	{SlotWeapon, "sword"},
	{SlotHelmet, "knight_helmet"},
	{SlotChestplate, "knight_chestplate"},
	{SlotGreaves, "knight_greaves"},
}

func (s *Session) addPlayer(id PlayerID, name string) *Player {
	p := &Player{
		ID:      id,
		Name:    name,
		Pos:     s.graph.SpawnPosition(),
		HP:      PlayerMaxHP,
		MaxHP:   PlayerMaxHP,
		Stamina: MaxStamina,
	}
	for _, g := range startingGear {
		it := s.newItem(g.item)
		it.State = Owned
		it.Owner = id
		p.Equipped[g.slot] = it.ID
	}
	s.players[id] = p
	return p
}

// removePlayer drops the player and every item it owns.
func (s *Session) removePlayer(id PlayerID) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	for itemID, it := range s.items {
		if it.Owner == id && it.State != OnGround {
			delete(s.items, itemID)
		}
	}
	delete(s.players, id)
	return true
}
