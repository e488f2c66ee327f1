package sim

import (
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/logger"
	"github.com/wfunc/flyknight/state"
)

type roomState struct {
	room      *dungeon.Room
	active    bool
	spawned   bool
	cleared   bool
	remaining int
}

// unlocked reports whether the room may activate: the spawn room always may,
// any other room once a neighbor is cleared.
func (s *Session) unlocked(rs *roomState) bool {
	if rs.room.ID == s.graph.SpawnRoom {
		return true
	}
	for _, n := range rs.room.Edges {
		if other, ok := s.rooms[n]; ok && other.cleared {
			return true
		}
	}
	return false
}

func (s *Session) occupied(rs *roomState) bool {
	for _, id := range s.playerIDs() {
		p := s.players[id]
		if p.Alive() && p.Bounds().Overlaps(rs.room.Bounds) {
			return true
		}
	}
	return false
}

func (s *Session) activateRooms() {
	for _, id := range s.roomOrder {
		rs := s.rooms[id]
		if rs.active || !s.unlocked(rs) || !s.occupied(rs) {
			continue
		}
		rs.active = true
		if !rs.spawned {
			s.spawnGroup(rs)
		}
		logger.Log.Infow("room activated", "room_id", id, "tick", s.tick, "enemies", rs.remaining)
	}
}

func (s *Session) spawnGroup(rs *roomState) {
	rs.spawned = true
	g := rs.room.Group
	kind, ok := state.ParseKind(g.Type)
	if !ok || g.Count == 0 {
		rs.cleared = true
		return
	}
	for _, pos := range rs.room.SpawnPoints {
		s.spawnEnemy(kind, g.Type, pos, rs.room.ID)
		rs.remaining++
	}
	if rs.remaining == 0 {
		rs.cleared = true
	}
}

// RoomCleared reports the cleared flag of a room.
func (s *Session) RoomCleared(id dungeon.RoomID) bool {
	rs, ok := s.rooms[id]
	return ok && rs.cleared
}

func (s *Session) RoomActive(id dungeon.RoomID) bool {
	rs, ok := s.rooms[id]
	return ok && rs.active
}
