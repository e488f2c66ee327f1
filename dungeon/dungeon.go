// Package dungeon defines the room graph the simulation consumes and a
// default seeded generator for it.
package dungeon

import (
	"github.com/wfunc/flyknight/geom"
)

type RoomID uint32

// EnemyGroup is fixed at generation time. The spawn room has a zero group.
type EnemyGroup struct {
	Type  string `msgpack:"type"`
	Count int    `msgpack:"count"`
}

type Room struct {
	ID          RoomID      `msgpack:"id"`
	Bounds      geom.Rect   `msgpack:"bounds"`
	Edges       []RoomID    `msgpack:"edges"`
	Group       EnemyGroup  `msgpack:"group"`
	SpawnPoints []geom.Vec2 `msgpack:"spawn_points,omitempty"`
}

// Corridor is an L-shaped passage made of up to two rectangles.
type Corridor struct {
	From     RoomID      `msgpack:"from"`
	To       RoomID      `msgpack:"to"`
	Segments []geom.Rect `msgpack:"segments"`
}

// Graph is read-only once generated.
type Graph struct {
	Rooms     []Room     `msgpack:"rooms"`
	Corridors []Corridor `msgpack:"corridors"`
	SpawnRoom RoomID     `msgpack:"spawn_room"`
}

// Generator produces a room graph. Implementations must be deterministic for
// a given seed.
type Generator interface {
	Generate(seed int64, roomCount int) (*Graph, error)
}

// Room returns the room with id, or false.
func (g *Graph) Room(id RoomID) (*Room, bool) {
	for i := range g.Rooms {
		if g.Rooms[i].ID == id {
			return &g.Rooms[i], true
		}
	}
	return nil, false
}

// SpawnPosition is the center of the spawn room.
func (g *Graph) SpawnPosition() geom.Vec2 {
	if r, ok := g.Room(g.SpawnRoom); ok {
		return r.Bounds.Center()
	}
	return geom.Vec2{}
}

// RoomAt returns the first room containing p.
func (g *Graph) RoomAt(p geom.Vec2) (*Room, bool) {
	for i := range g.Rooms {
		if g.Rooms[i].Bounds.Contains(p) {
			return &g.Rooms[i], true
		}
	}
	return nil, false
}

// Walkable reports whether p lies inside a room or a corridor.
func (g *Graph) Walkable(p geom.Vec2) bool {
	for i := range g.Rooms {
		if g.Rooms[i].Bounds.Contains(p) {
			return true
		}
	}
	for _, c := range g.Corridors {
		for _, seg := range c.Segments {
			if seg.Contains(p) {
				return true
			}
		}
	}
	return false
}

const losStep = 16.0

// LineOfSight samples the segment a→b and reports whether every sample is
// walkable.
func (g *Graph) LineOfSight(a, b geom.Vec2) bool {
	d := b.Sub(a)
	dist := d.Len()
	if dist == 0 {
		return g.Walkable(a)
	}
	steps := int(dist/losStep) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		if !g.Walkable(a.Add(d.Scale(t))) {
			return false
		}
	}
	return true
}

// Neighbors returns the ids connected to room id.
func (g *Graph) Neighbors(id RoomID) []RoomID {
	if r, ok := g.Room(id); ok {
		return r.Edges
	}
	return nil
}
