package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/config"
	"github.com/wfunc/flyknight/dungeon"
	"github.com/wfunc/flyknight/geom"
	"github.com/wfunc/flyknight/state"
)

// testGraph is three rooms in a row: the spawn room, an ant room and a
// larva room, joined by short corridors.
func testGraph() *dungeon.Graph {
	return &dungeon.Graph{
		SpawnRoom: 0,
		Rooms: []dungeon.Room{
			{ID: 0, Bounds: geom.Rect{X: 0, Y: 0, W: 400, H: 400}, Edges: []dungeon.RoomID{1}},
			{
				ID: 1, Bounds: geom.Rect{X: 500, Y: 0, W: 400, H: 400}, Edges: []dungeon.RoomID{0, 2},
				Group:       dungeon.EnemyGroup{Type: "ant", Count: 1},
				SpawnPoints: []geom.Vec2{{X: 700, Y: 200}},
			},
			{
				ID: 2, Bounds: geom.Rect{X: 1000, Y: 0, W: 400, H: 400}, Edges: []dungeon.RoomID{1},
				Group:       dungeon.EnemyGroup{Type: "larva", Count: 1},
				SpawnPoints: []geom.Vec2{{X: 1200, Y: 200}},
			},
		},
		Corridors: []dungeon.Corridor{
			{From: 0, To: 1, Segments: []geom.Rect{{X: 400, Y: 170, W: 100, H: 60}}},
			{From: 1, To: 2, Segments: []geom.Rect{{X: 900, Y: 170, W: 100, H: 60}}},
		},
	}
}

// testCatalog removes the ant bow roll so enemy behavior does not depend on
// the seed.
func testCatalog() *catalog.Catalog {
	c := catalog.Default()
	ant := c.Enemies["ant"]
	ant.BowChance = 0
	c.Enemies["ant"] = ant
	return c
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default().Sim
	cfg.Seed = 1
	return NewSession(cfg, testGraph(), testCatalog())
}

func joinPlayers(s *Session, ids ...PlayerID) {
	var in StepInput
	for _, id := range ids {
		in.Joins = append(in.Joins, Join{Player: id, Name: "p"})
	}
	s.Step(in)
}

func giveItem(s *Session, p *Player, kind string) ItemID {
	it := s.newItem(kind)
	it.State, it.Owner = Owned, p.ID
	p.Inventory = append(p.Inventory, it.ID)
	return it.ID
}

func dropItem(s *Session, kind string, pos geom.Vec2) *Item {
	it := s.newItem(kind)
	it.Pos = pos
	return it
}

func mustPlayer(t *testing.T, s *Session, id PlayerID) *Player {
	t.Helper()
	p, ok := s.Player(id)
	if !ok {
		t.Fatalf("Expected player %d to exist", id)
	}
	return p
}

func TestJoin_StartingState(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)

	p := mustPlayer(t, s, 1)
	if p.Pos != geom.V(200, 200) {
		t.Errorf("Expected spawn at room center, got %+v", p.Pos)
	}
	if p.HP != PlayerMaxHP || p.Stamina != MaxStamina {
		t.Errorf("Expected full hp and stamina, got hp=%d stamina=%v", p.HP, p.Stamina)
	}
	if got := s.itemType(p.Equipped[SlotWeapon]); got != "sword" {
		t.Errorf("Expected starting sword, got %q", got)
	}
	if got := s.armorSet(p); got != "knight" {
		t.Errorf("Expected knight set, got %q", got)
	}
	if !s.RoomActive(0) || !s.RoomCleared(0) {
		t.Error("Expected spawn room active and cleared")
	}
}

func TestApplyCommands_DuplicateSeqIsNoop(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	joinPlayers(a, 1)
	joinPlayers(b, 1)

	first := InputCommand{Player: 1, Seq: 1, Move: geom.V(1, 0)}
	a.Step(StepInput{Commands: []InputCommand{first}})
	b.Step(StepInput{Commands: []InputCommand{first}})

	a.Step(StepInput{})
	dup := InputCommand{Player: 1, Seq: 1, Move: geom.V(0, 1), Attack: true}
	b.Step(StepInput{Commands: []InputCommand{dup}})

	pa, pb := mustPlayer(t, a, 1), mustPlayer(t, b, 1)
	if pa.Pos != pb.Pos || pa.Stamina != pb.Stamina {
		t.Errorf("Expected duplicate seq to be a no-op, got %+v/%v vs %+v/%v", pa.Pos, pa.Stamina, pb.Pos, pb.Stamina)
	}
	if b.Stats().StaleCommands != 1 {
		t.Errorf("Expected 1 stale command, got %d", b.Stats().StaleCommands)
	}
}

func TestApplyCommands_NonFiniteIsDropped(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	start, facing := p.Pos, p.Facing

	s.Step(StepInput{Commands: []InputCommand{
		{Player: 1, Seq: 1, Move: geom.V(math.NaN(), 0)},
		{Player: 1, Seq: 2, Move: geom.V(1, 0), Facing: math.Inf(1)},
	}})
	if p.Pos != start || p.Facing != facing || p.LastSeq != 0 {
		t.Errorf("Expected non-finite commands ignored, got pos %+v facing %v seq %d", p.Pos, p.Facing, p.LastSeq)
	}
	if s.Stats().StaleCommands != 2 {
		t.Errorf("Expected 2 dropped commands, got %d", s.Stats().StaleCommands)
	}

	snap := s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: 3, Move: geom.V(1, 0)}}})
	ps, _ := snap.Player(1)
	if ps.LastSeq != 3 || ps.Pos.X <= start.X {
		t.Errorf("Expected the next valid command to apply, got %+v", ps)
	}
}

func TestApplyCommands_AttackIsEdgeTriggered(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)

	s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: 1, Attack: true}}})
	p := mustPlayer(t, s, 1)
	if !p.Attacking {
		t.Fatal("Expected the first press to attack")
	}
	afterFirst := p.Stamina

	// Held across many ticks: no second attack even after the cooldown.
	for seq := uint32(2); seq < 40; seq++ {
		s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: seq, Attack: true}}})
		if p.Attacking {
			t.Fatalf("Expected no attack while held, got one at seq %d", seq)
		}
	}
	if p.Stamina < afterFirst {
		t.Errorf("Expected stamina to recover while holding, got %v < %v", p.Stamina, afterFirst)
	}
}

func TestStep_Deterministic(t *testing.T) {
	run := func() []*Snapshot {
		s := newTestSession(t)
		joinPlayers(s, 1, 2)
		s.players[1].Pos = geom.V(650, 200)
		var out []*Snapshot
		for seq := uint32(1); seq <= 60; seq++ {
			out = append(out, s.Step(StepInput{Commands: []InputCommand{
				{Player: 1, Seq: seq, Move: geom.V(1, 0.5), Attack: seq%7 == 0, Facing: 0.1, Arrival: uint64(seq * 2)},
				{Player: 2, Seq: seq, Move: geom.V(1, 0), Sprint: true, Arrival: uint64(seq*2 + 1)},
			}}))
		}
		return out
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Expected identical snapshots for identical inputs and seed")
	}
}

func TestStep_DisconnectRemovesPlayer(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1, 2)
	p := mustPlayer(t, s, 2)
	owned := giveItem(s, p, "spear")

	snap := s.Step(StepInput{Leaves: []Leave{{Player: 2, Reason: ReasonDisconnected}}})
	if _, ok := snap.Player(2); ok {
		t.Error("Expected player 2 to be absent from the snapshot")
	}
	if _, ok := snap.Player(1); !ok {
		t.Error("Expected player 1 to remain")
	}
	if len(snap.Left) != 1 || snap.Left[0].Player != 2 {
		t.Errorf("Expected one PlayerLeft notice for 2, got %+v", snap.Left)
	}
	if _, ok := s.Item(owned); ok {
		t.Error("Expected inventory items to vanish with the player")
	}

	// A second departure for the same player is ignored.
	snap = s.Step(StepInput{Leaves: []Leave{{Player: 2, Reason: ReasonTimeout}}})
	if len(snap.Left) != 0 {
		t.Errorf("Expected no notice for an unknown player, got %+v", snap.Left)
	}
}

func TestStep_JoinAndLeaveInOneTick(t *testing.T) {
	s := newTestSession(t)
	snap := s.Step(StepInput{
		Joins:  []Join{{Player: 7, Name: "p"}},
		Leaves: []Leave{{Player: 7, Reason: ReasonDisconnected}},
	})
	if _, ok := snap.Player(7); ok {
		t.Error("Expected player 7 to be absent from the snapshot")
	}
	if len(snap.Left) != 1 || snap.Left[0].Player != 7 {
		t.Errorf("Expected one PlayerLeft notice for 7, got %+v", snap.Left)
	}
	for i := 0; i < 5; i++ {
		snap = s.Step(StepInput{})
	}
	if s.PlayerCount() != 0 || len(snap.Players) != 0 {
		t.Errorf("Expected an empty session, got %d players", s.PlayerCount())
	}
}

func TestRoomActivation_RequiresClearedNeighbor(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)

	p.Pos = geom.V(1200, 200)
	s.Step(StepInput{})
	if s.RoomActive(2) {
		t.Fatal("Expected room 2 to stay dormant while room 1 is uncleared")
	}
	if len(s.enemies) != 0 {
		t.Fatalf("Expected no enemies spawned, got %d", len(s.enemies))
	}

	p.Pos = geom.V(600, 200)
	s.Step(StepInput{})
	if !s.RoomActive(1) {
		t.Fatal("Expected room 1 to activate next to the cleared spawn room")
	}
	if len(s.enemies) != 1 {
		t.Errorf("Expected the ant group to spawn, got %d enemies", len(s.enemies))
	}
}

func activateAntRoom(t *testing.T, s *Session, p *Player) *Enemy {
	t.Helper()
	p.Pos = geom.V(600, 200)
	s.Step(StepInput{})
	for _, e := range s.enemies {
		return e
	}
	t.Fatal("Expected an ant to spawn")
	return nil
}

func TestRoomCleared_SameTick(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	ant := activateAntRoom(t, s, p)

	ant.Pos = geom.V(630, 200)
	ant.HP = 30
	snap := s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: 1, Attack: true, Facing: 0}}})

	room, _ := snap.Room(1)
	if !room.Cleared {
		t.Fatal("Expected room 1 to be cleared in the tick its last enemy died")
	}
	es, ok := snap.Enemy(ant.ID)
	if !ok || es.HP != 0 || es.AI != state.Dead {
		t.Errorf("Expected the dead ant in this tick's snapshot, got %+v (present=%v)", es, ok)
	}

	snap = s.Step(StepInput{})
	if _, ok := snap.Enemy(ant.ID); ok {
		t.Error("Expected the dead ant to be purged on the next tick")
	}
}

func TestRoomCleared_FalseWhileEnemiesRemain(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	ant := activateAntRoom(t, s, p)

	ant.Pos = geom.V(630, 200)
	snap := s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: 1, Attack: true}}})
	room, _ := snap.Room(1)
	if room.Cleared {
		t.Error("Expected room 1 to stay uncleared")
	}
	if ant.HP != 30 {
		t.Errorf("Expected ant hp 30 after one sword hit, got %d", ant.HP)
	}
}

func TestAI_AntHysteresis(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	ant := activateAntRoom(t, s, p)

	place := func(dist float64) {
		p.Pos = ant.Pos.Add(geom.V(dist, 0))
		s.Step(StepInput{})
	}

	place(400)
	if ant.AI != state.Wander {
		t.Fatalf("Expected Wander with no player in radius, got %v", ant.AI)
	}
	place(200)
	if ant.AI != state.Alert || ant.Target != 1 {
		t.Fatalf("Expected chase of player 1, got %v target %d", ant.AI, ant.Target)
	}
	place(290)
	if ant.AI != state.Alert {
		t.Fatalf("Expected chase to hold inside the hysteresis margin, got %v", ant.AI)
	}
	place(310)
	if ant.AI != state.Wander || ant.Target != 0 {
		t.Errorf("Expected Wander after leaving radius+margin, got %v target %d", ant.AI, ant.Target)
	}
}

func TestAI_DanglingTargetResolvesToNone(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	ant := activateAntRoom(t, s, p)
	p.Pos = geom.V(1100, 200)

	ant.Target = 99
	ant.AI = state.Alert
	s.Step(StepInput{})
	if ant.Target != 0 || ant.AI != state.Wander {
		t.Errorf("Expected the missing target to resolve to none, got %v target %d", ant.AI, ant.Target)
	}
}

func TestDeadPlayerIsInert(t *testing.T) {
	s := newTestSession(t)
	joinPlayers(s, 1)
	p := mustPlayer(t, s, 1)
	p.HP = 0
	start := p.Pos
	dropItem(s, "sword", start)

	snap := s.Step(StepInput{Commands: []InputCommand{{Player: 1, Seq: 1, Move: geom.V(1, 0), Attack: true, Interact: true}}})
	if p.Pos != start || p.Attacking || len(p.Inventory) != 0 {
		t.Errorf("Expected a dead player to do nothing, got pos=%+v attacking=%v inv=%d", p.Pos, p.Attacking, len(p.Inventory))
	}
	if _, ok := snap.Player(1); !ok {
		t.Error("Expected the dead player to stay in the session")
	}
}

func TestMove_SlidesAlongWalls(t *testing.T) {
	g := testGraph()

	// Diagonal into the top wall keeps the x component.
	pos := Slide(g, geom.V(200, 1), geom.V(5, -5))
	if pos != geom.V(205, 1) {
		t.Errorf("Expected slide along the wall to (205,1), got %+v", pos)
	}

	dt := 1.0 / 30
	got := Move(g, geom.V(200, 200), geom.V(3, 4), false, dt)
	want := geom.V(200+0.6*PlayerSpeed*dt, 200+0.8*PlayerSpeed*dt)
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
		t.Errorf("Expected move vector clamped to unit length, got %+v want %+v", got, want)
	}

	sprint := Move(g, geom.V(200, 200), geom.V(1, 0), true, dt)
	if math.Abs(sprint.X-200-PlayerSpeed*SprintFactor*dt) > 1e-9 {
		t.Errorf("Expected sprint speed, got %+v", sprint)
	}
}
