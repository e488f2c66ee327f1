package dungeon

import (
	"errors"
	"math"
	"math/rand"

	"github.com/wfunc/flyknight/catalog"
	"github.com/wfunc/flyknight/geom"
)

const (
	roomMinSize    = 400
	roomMaxSize    = 700
	roomPadding    = 100
	corridorWidth  = 60
	spawnMargin    = 50
	placeAttempts  = 100
	fallbackSpread = 2000
)

var ErrNoRooms = errors.New("dungeon: room count must be positive")

// Default places rooms around existing ones, links them with a minimum
// spanning tree plus a few extra edges and assigns one weighted enemy group
// to every room except the spawn room.
type Default struct {
	Catalog *catalog.Catalog
}

func NewGenerator(c *catalog.Catalog) *Default {
	return &Default{Catalog: c}
}

func (d *Default) Generate(seed int64, roomCount int) (*Graph, error) {
	if roomCount <= 0 {
		return nil, ErrNoRooms
	}
	rng := rand.New(rand.NewSource(seed))
	g := &Graph{}

	d.placeRooms(g, rng, roomCount)
	d.connect(g, rng)
	d.assignGroups(g, rng)
	return g, nil
}

func randSize(rng *rand.Rand) float64 {
	return float64(roomMinSize + rng.Intn(roomMaxSize-roomMinSize+1))
}

func intersects(a, b geom.Rect) bool {
	return a.Grow(roomPadding / 2).Overlaps(b.Grow(roomPadding / 2))
}

func (d *Default) placeRooms(g *Graph, rng *rand.Rand, roomCount int) {
	g.Rooms = append(g.Rooms, Room{
		ID:     0,
		Bounds: geom.Rect{W: randSize(rng), H: randSize(rng)},
	})
	g.SpawnRoom = 0

	fits := func(r geom.Rect) bool {
		for _, other := range g.Rooms {
			if intersects(r, other.Bounds) {
				return false
			}
		}
		return true
	}

	// A room that cannot be placed after the fallback is skipped, so the graph
	// may end up smaller than requested.
	for want := 1; want < roomCount; want++ {
		placed := false
		for attempt := 0; attempt < placeAttempts && !placed; attempt++ {
			w, h := randSize(rng), randSize(rng)
			base := g.Rooms[rng.Intn(len(g.Rooms))].Bounds.Center()
			angle := rng.Float64() * 2 * math.Pi
			dist := float64(roomMinSize + rng.Intn(roomMaxSize*2-roomMinSize+1))
			r := geom.Rect{
				X: math.Floor(base.X + math.Cos(angle)*dist - w/2),
				Y: math.Floor(base.Y + math.Sin(angle)*dist - h/2),
				W: w,
				H: h,
			}
			if fits(r) {
				g.Rooms = append(g.Rooms, Room{ID: RoomID(len(g.Rooms)), Bounds: r})
				placed = true
			}
		}
		if !placed {
			r := geom.Rect{
				X: float64(rng.Intn(2*fallbackSpread+1) - fallbackSpread),
				Y: float64(rng.Intn(2*fallbackSpread+1) - fallbackSpread),
				W: roomMinSize,
				H: roomMinSize,
			}
			if fits(r) {
				g.Rooms = append(g.Rooms, Room{ID: RoomID(len(g.Rooms)), Bounds: r})
			}
		}
	}
}

func (d *Default) link(g *Graph, a, b int) {
	ra, rb := &g.Rooms[a], &g.Rooms[b]
	ra.Edges = append(ra.Edges, rb.ID)
	rb.Edges = append(rb.Edges, ra.ID)
	g.Corridors = append(g.Corridors, Corridor{
		From:     ra.ID,
		To:       rb.ID,
		Segments: corridorSegments(ra.Bounds.Center(), rb.Bounds.Center()),
	})
}

func linked(r *Room, id RoomID) bool {
	for _, e := range r.Edges {
		if e == id {
			return true
		}
	}
	return false
}

func (d *Default) connect(g *Graph, rng *rand.Rand) {
	n := len(g.Rooms)
	if n < 2 {
		return
	}
	connected := make([]bool, n)
	connected[0] = true
	for count := 1; count < n; count++ {
		best := math.Inf(1)
		bestA, bestB := -1, -1
		for a := 0; a < n; a++ {
			if !connected[a] {
				continue
			}
			for b := 0; b < n; b++ {
				if connected[b] {
					continue
				}
				dist := g.Rooms[a].Bounds.Center().Dist(g.Rooms[b].Bounds.Center())
				if dist < best {
					best, bestA, bestB = dist, a, b
				}
			}
		}
		d.link(g, bestA, bestB)
		connected[bestB] = true
	}

	extra := n / 4
	if extra < 1 {
		extra = 1
	}
	for i := 0; i < extra; i++ {
		a, b := rng.Intn(n), rng.Intn(n)
		if a != b && !linked(&g.Rooms[a], g.Rooms[b].ID) {
			d.link(g, a, b)
		}
	}
}

func corridorSegments(from, to geom.Vec2) []geom.Rect {
	var segs []geom.Rect
	half := float64(corridorWidth) / 2
	if from.X != to.X {
		minX, maxX := math.Min(from.X, to.X), math.Max(from.X, to.X)
		segs = append(segs, geom.Rect{X: minX, Y: from.Y - half, W: maxX - minX + half, H: corridorWidth})
	}
	if from.Y != to.Y {
		minY, maxY := math.Min(from.Y, to.Y), math.Max(from.Y, to.Y)
		segs = append(segs, geom.Rect{X: to.X - half, Y: minY, W: corridorWidth, H: maxY - minY})
	}
	return segs
}

func (d *Default) pickType(rng *rand.Rand) string {
	names := d.Catalog.EnemyNames()
	total := 0
	for _, name := range names {
		total += d.Catalog.Enemies[name].SpawnWeight
	}
	if total <= 0 {
		return ""
	}
	roll := rng.Intn(total)
	for _, name := range names {
		roll -= d.Catalog.Enemies[name].SpawnWeight
		if roll < 0 {
			return name
		}
	}
	return names[len(names)-1]
}

func (d *Default) assignGroups(g *Graph, rng *rand.Rand) {
	for i := range g.Rooms {
		room := &g.Rooms[i]
		if room.ID == g.SpawnRoom {
			continue
		}
		kind := d.pickType(rng)
		if kind == "" {
			continue
		}
		stats := d.Catalog.Enemies[kind]
		count := stats.GroupMin + rng.Intn(stats.GroupMax-stats.GroupMin+1)
		room.Group = EnemyGroup{Type: kind, Count: count}
		room.SpawnPoints = make([]geom.Vec2, count)
		for j := range room.SpawnPoints {
			b := room.Bounds
			room.SpawnPoints[j] = geom.Vec2{
				X: b.X + spawnMargin + rng.Float64()*(b.W-2*spawnMargin),
				Y: b.Y + spawnMargin + rng.Float64()*(b.H-2*spawnMargin),
			}
		}
	}
}
