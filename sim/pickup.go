package sim

import (
	"sort"

	"github.com/wfunc/flyknight/logger"
)

type pickupRequest struct {
	player  PlayerID
	target  ItemID
	arrival uint64
}

// pickupTarget resolves a request to an OnGround item within reach: the
// explicit target if it qualifies, otherwise the nearest item (lowest id on
// ties) when none was named.
func (s *Session) pickupTarget(p *Player, req *pickupRequest) (*Item, bool) {
	reach := s.cfg.PickupRadius
	if req.target != 0 {
		it, ok := s.items[req.target]
		if !ok || it.State != OnGround || it.Pos.Dist(p.Pos) > reach {
			return nil, false
		}
		return it, true
	}

	var best *Item
	bestDist := 0.0
	for _, id := range s.itemIDs() {
		it := s.items[id]
		if it.State != OnGround {
			continue
		}
		d := it.Pos.Dist(p.Pos)
		if d > reach {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = it, d
		}
	}
	return best, best != nil
}

// resolvePickups arbitrates this tick's interact requests. Requests for the
// same item are ordered by arrival; only the earliest is considered and it
// succeeds only if that player has a free slot.
func (s *Session) resolvePickups() {
	claims := make(map[ItemID][]*pickupRequest)
	for _, id := range s.playerIDs() {
		p := s.players[id]
		if p.pickup == nil || !p.Alive() {
			continue
		}
		if it, ok := s.pickupTarget(p, p.pickup); ok {
			claims[it.ID] = append(claims[it.ID], p.pickup)
		}
	}
	if len(claims) == 0 {
		return
	}

	ids := make([]ItemID, 0, len(claims))
	for id := range claims {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		reqs := claims[id]
		sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].arrival < reqs[j].arrival })
		if len(reqs) > 1 {
			s.stats.ContestedPickups++
		}

		it := s.items[id]
		winner := s.players[reqs[0].player]
		it.State, it.Owner = Claimed, winner.ID

		if !winner.HasFreeSlot() {
			it.State, it.Owner = OnGround, 0
			s.stats.RefusedPickups++
			continue
		}
		it.State = Owned
		winner.Inventory = append(winner.Inventory, it.ID)
		logger.Log.Debugw("item picked up", "player_id", winner.ID, "item_id", it.ID, "tick", s.tick, "contenders", len(reqs))
	}
}
