package sim

import (
	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/logger"
)

func armorSlot(piece catalog.ArmorPiece) (EquipSlot, bool) {
	switch piece {
	case catalog.PieceHelmet:
		return SlotHelmet, true
	case catalog.PieceChestplate:
		return SlotChestplate, true
	case catalog.PieceGreaves:
		return SlotGreaves, true
	}
	return 0, false
}

// Equip moves the item in inventory slot invSlot into its equipment slot,
// swapping any previously equipped item into the same inventory position.
// A two-handed weapon pushes the shield into the inventory in the same
// operation. On error the player is left unchanged.
func (s *Session) Equip(id PlayerID, invSlot int) error {
	p, ok := s.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	if invSlot < 0 || invSlot >= len(p.Inventory) {
		return ErrEmptySlot
	}
	itemID := p.Inventory[invSlot]
	class := s.cat.Classify(s.itemType(itemID))

	var slot EquipSlot
	displaceShield := false
	switch class.Kind {
	case catalog.KindWeapon:
		slot = SlotWeapon
		if s.cat.Weapon(s.itemType(itemID)).TwoHanded && p.Equipped[SlotShield] != 0 {
			displaceShield = true
		}
	case catalog.KindShield:
		if s.weapon(p).TwoHanded {
			return ErrInvalidEquip
		}
		slot = SlotShield
	case catalog.KindArmor:
		as, valid := armorSlot(class.Piece)
		if !valid {
			return ErrInvalidEquip
		}
		slot = as
	default:
		return ErrInvalidEquip
	}

	old := p.Equipped[slot]
	if displaceShield {
		size := len(p.Inventory) + 1
		if old == 0 {
			size--
		}
		if size > InventorySize {
			return ErrInventoryFull
		}
	}

	p.Equipped[slot] = itemID
	if old != 0 {
		p.Inventory[invSlot] = old
	} else {
		p.Inventory = append(p.Inventory[:invSlot], p.Inventory[invSlot+1:]...)
	}
	if displaceShield {
		p.Inventory = append(p.Inventory, p.Equipped[SlotShield])
		p.Equipped[SlotShield] = 0
		p.Blocking = false
	}
	return nil
}

// Unequip moves an equipped item to the end of the inventory.
func (s *Session) Unequip(id PlayerID, slot EquipSlot) error {
	p, ok := s.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	if slot >= slotCount || p.Equipped[slot] == 0 {
		return ErrEmptySlot
	}
	if !p.HasFreeSlot() {
		return ErrInventoryFull
	}
	p.Inventory = append(p.Inventory, p.Equipped[slot])
	p.Equipped[slot] = 0
	if slot == SlotShield {
		p.Blocking = false
	}
	return nil
}

func (s *Session) applyEquips(reqs []EquipRequest) {
	for _, r := range reqs {
		p, ok := s.players[r.Player]
		if !ok || !p.Alive() {
			continue
		}
		var err error
		if r.Unequip {
			err = s.Unequip(r.Player, r.Slot)
		} else {
			err = s.Equip(r.Player, r.InventorySlot)
		}
		if err != nil {
			s.stats.EquipRejected++
			logger.Log.Debugw("equip rejected", "player_id", r.Player, "tick", s.tick, "err", err)
		}
	}
}
