// Package state is the enemy AI state machine: a closed set of enemy kinds and
// states and a pure transition function stepped once per tick.
package state

import (
	"errors"
)

// Kind is the enemy type.
type Kind uint8

const (
	Larva Kind = iota
	Ant
	Wasp
)

func (k Kind) String() string {
	switch k {
	case Larva:
		return "larva"
	case Ant:
		return "ant"
	case Wasp:
		return "wasp"
	default:
		return "unknown"
	}
}

// ParseKind maps a catalog enemy name to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "larva":
		return Larva, true
	case "ant":
		return Ant, true
	case "wasp":
		return Wasp, true
	}
	return 0, false
}

// State is the AI state of one enemy.
type State uint8

const (
	Idle State = iota
	Wander
	Alert
	Attack
	Dead
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Wander:
		return "wander"
	case Alert:
		return "alert"
	case Attack:
		return "attack"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Each behaviour uses its own subset of states. Staying put is allowed
// inside the subset; Dead has no edges.
var (
	larvaEdges = map[State]map[State]bool{
		Wander: {Attack: true, Dead: true},
		Attack: {Wander: true, Dead: true},
		Dead:   {},
	}
	archerEdges = map[State]map[State]bool{
		Idle:   {Attack: true, Dead: true},
		Attack: {Idle: true, Dead: true},
		Dead:   {},
	}
	chaserEdges = map[State]map[State]bool{
		Wander: {Alert: true, Attack: true, Dead: true},
		Alert:  {Wander: true, Attack: true, Dead: true},
		Attack: {Wander: true, Alert: true, Dead: true},
		Dead:   {},
	}
)

func edges(kind Kind, ranged bool) map[State]map[State]bool {
	switch {
	case kind == Larva:
		return larvaEdges
	case kind == Ant && ranged:
		return archerEdges
	default:
		return chaserEdges
	}
}

// Allowed reports whether from → to is a legal transition for the kind.
func Allowed(kind Kind, ranged bool, from, to State) bool {
	table := edges(kind, ranged)
	next, ok := table[from]
	if !ok {
		return false
	}
	if from == to {
		return from != Dead
	}
	return next[to]
}

// Change validates a transition and returns the resulting state. On a
// rejected transition the current state is returned unchanged.
func Change(kind Kind, ranged bool, from, to State) (State, error) {
	if from == Dead && to == Dead {
		return Dead, nil
	}
	if !Allowed(kind, ranged, from, to) {
		return from, ErrTransitionNotAllowed
	}
	return to, nil
}

// Initial is the state an enemy is spawned in.
func Initial(kind Kind, ranged bool) State {
	if kind == Ant && ranged {
		return Idle
	}
	return Wander
}
