package state

import (
	"testing"
)

func TestChange_DeadIsTerminal(t *testing.T) {
	for _, to := range []State{Idle, Wander, Alert, Attack} {
		got, err := Change(Ant, false, Dead, to)
		if err != ErrTransitionNotAllowed {
			t.Errorf("Dead -> %v: expected ErrTransitionNotAllowed, got %v", to, err)
		}
		if got != Dead {
			t.Errorf("Dead -> %v: expected state to remain dead, got %v", to, got)
		}
	}
	if got, err := Change(Ant, false, Dead, Dead); err != nil || got != Dead {
		t.Errorf("Expected Dead -> Dead to be a no-op, got %v, %v", got, err)
	}
}

func TestChange_Allowed(t *testing.T) {
	got, err := Change(Ant, false, Wander, Alert)
	if err != nil {
		t.Fatalf("Change should not return an error, but got: %v", err)
	}
	if got != Alert {
		t.Errorf("Expected Alert, got %v", got)
	}
}

func TestChange_PerKindEdges(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		ranged   bool
		from, to State
		allowed  bool
	}{
		{"larva lunges", Larva, false, Wander, Attack, true},
		{"larva never chases", Larva, false, Wander, Alert, false},
		{"larva never idles", Larva, false, Attack, Idle, false},
		{"archer fires", Ant, true, Idle, Attack, true},
		{"archer never wanders", Ant, true, Idle, Wander, false},
		{"archer never chases", Ant, true, Attack, Alert, false},
		{"melee ant chases", Ant, false, Wander, Alert, true},
		{"melee ant never idles", Ant, false, Attack, Idle, false},
		{"wasp disengages", Wasp, false, Attack, Wander, true},
		{"wasp stays from foreign state", Wasp, false, Idle, Idle, false},
	}
	for _, tt := range tests {
		if got := Allowed(tt.kind, tt.ranged, tt.from, tt.to); got != tt.allowed {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.allowed, got)
		}
	}
}

func TestNext_ForeignStateRestarts(t *testing.T) {
	in := Input{
		Kind:       Larva,
		Current:    Alert,
		Target:     1,
		HP:         30,
		Radius:     300,
		Hysteresis: 50,
		JumpReady:  true,
		Candidates: []Candidate{{ID: 1, Distance: 100, Alive: true, LineOfSight: true}},
	}
	out := Next(in)
	if out.State != Wander || out.Target != NoTarget {
		t.Errorf("Expected a larva in Alert to restart in Wander without a target, got %+v", out)
	}
}

func TestInitial(t *testing.T) {
	if got := Initial(Ant, true); got != Idle {
		t.Errorf("Expected ranged ant to start Idle, got %v", got)
	}
	if got := Initial(Ant, false); got != Wander {
		t.Errorf("Expected melee ant to start Wander, got %v", got)
	}
	if got := Initial(Wasp, false); got != Wander {
		t.Errorf("Expected wasp to start Wander, got %v", got)
	}
}

func TestSelectTarget(t *testing.T) {
	tests := []struct {
		name    string
		cands   []Candidate
		current uint32
		want    uint32
		found   bool
	}{
		{
			name:  "nearest wins",
			cands: []Candidate{{ID: 1, Distance: 200, Alive: true}, {ID: 2, Distance: 100, Alive: true}},
			want:  2, found: true,
		},
		{
			name:  "tie broken by lowest id",
			cands: []Candidate{{ID: 3, Distance: 100, Alive: true}, {ID: 2, Distance: 100, Alive: true}},
			want:  2, found: true,
		},
		{
			name:  "dead players ignored",
			cands: []Candidate{{ID: 1, Distance: 50, Alive: false}, {ID: 2, Distance: 120, Alive: true}},
			want:  2, found: true,
		},
		{
			name:    "current kept inside hysteresis",
			cands:   []Candidate{{ID: 1, Distance: 280, Alive: true}, {ID: 2, Distance: 100, Alive: true}},
			current: 1,
			want:    1, found: true,
		},
		{
			name:    "current dropped beyond hysteresis",
			cands:   []Candidate{{ID: 1, Distance: 310, Alive: true}},
			current: 1,
			found:   false,
		},
		{
			name:    "dangling target resolves to none",
			cands:   []Candidate{},
			current: 7,
			found:   false,
		},
	}

	for _, tt := range tests {
		got, ok := SelectTarget(tt.cands, tt.current, 250, 50, false)
		if ok != tt.found {
			t.Errorf("%s: expected found=%v, got %v", tt.name, tt.found, ok)
			continue
		}
		if ok && got.ID != tt.want {
			t.Errorf("%s: expected target %d, got %d", tt.name, tt.want, got.ID)
		}
	}
}

func antInput(current State, target uint32, dist float64) Input {
	return Input{
		Kind:        Ant,
		Current:     current,
		HP:          60,
		Target:      target,
		Candidates:  []Candidate{{ID: 1, Distance: dist, Alive: true, LineOfSight: true}},
		Radius:      250,
		Hysteresis:  50,
		AttackRange: 40,
	}
}

func TestNext_AntChaseAndDisengage(t *testing.T) {
	out := Next(antInput(Wander, NoTarget, 400))
	if out.State != Wander || out.Target != NoTarget {
		t.Fatalf("Expected ant to keep wandering, got %v target %d", out.State, out.Target)
	}

	out = Next(antInput(out.State, out.Target, 200))
	if out.State != Alert || out.Target != 1 {
		t.Fatalf("Expected ant to chase player 1, got %v target %d", out.State, out.Target)
	}

	out = Next(antInput(out.State, out.Target, 30))
	if out.State != Attack {
		t.Fatalf("Expected ant to attack in melee range, got %v", out.State)
	}

	// Inside radius+hysteresis the chase holds.
	out = Next(antInput(out.State, out.Target, 290))
	if out.State != Alert || out.Target != 1 {
		t.Fatalf("Expected ant to keep chasing within hysteresis, got %v target %d", out.State, out.Target)
	}

	out = Next(antInput(out.State, out.Target, 301))
	if out.State != Wander || out.Target != NoTarget {
		t.Errorf("Expected ant to return to Wander, got %v target %d", out.State, out.Target)
	}
}

func TestNext_RangedAnt(t *testing.T) {
	in := antInput(Idle, NoTarget, 400)
	in.Ranged = true
	if out := Next(in); out.State != Idle {
		t.Fatalf("Expected archer to stay Idle, got %v", out.State)
	}

	in = antInput(Idle, NoTarget, 200)
	in.Ranged = true
	out := Next(in)
	if out.State != Attack || out.Target != 1 {
		t.Errorf("Expected archer to fire at player 1, got %v target %d", out.State, out.Target)
	}
}

func TestNext_LarvaLunge(t *testing.T) {
	in := Input{
		Kind:       Larva,
		Current:    Wander,
		HP:         30,
		Candidates: []Candidate{{ID: 2, Distance: 150, Alive: true, LineOfSight: false}},
		Radius:     300,
		Hysteresis: 50,
		JumpReady:  true,
	}
	if out := Next(in); out.State != Wander || out.StartLunge {
		t.Fatalf("Expected larva without line of sight to wander, got %+v", out)
	}

	in.Candidates[0].LineOfSight = true
	out := Next(in)
	if out.State != Attack || !out.StartLunge || out.Target != 2 {
		t.Fatalf("Expected larva to lunge at player 2, got %+v", out)
	}

	in.Current, in.Target, in.Lunging, in.JumpReady = out.State, out.Target, true, false
	if out = Next(in); out.State != Attack || out.StartLunge {
		t.Fatalf("Expected lunge in flight to continue, got %+v", out)
	}

	in.Lunging = false
	if out = Next(in); out.State != Wander {
		t.Errorf("Expected larva to return to Wander after the lunge, got %v", out.State)
	}
}

func TestNext_WaspHoldsUntilTargetDies(t *testing.T) {
	in := Input{
		Kind:        Wasp,
		Current:     Alert,
		HP:          100,
		Target:      1,
		Candidates:  []Candidate{{ID: 1, Distance: 320, Alive: true}, {ID: 2, Distance: 60, Alive: true}},
		Radius:      300,
		Hysteresis:  50,
		AttackRange: 40,
	}
	if out := Next(in); out.Target != 1 {
		t.Fatalf("Expected wasp to stay on player 1, got %d", out.Target)
	}

	in.Candidates[0].Alive = false
	if out := Next(in); out.Target != 2 || out.State != Alert {
		t.Errorf("Expected wasp to switch to player 2 after target death, got %v target %d", out.State, out.Target)
	}
}

func TestNext_ZeroHPIsDead(t *testing.T) {
	in := antInput(Attack, 1, 10)
	in.HP = 0
	out := Next(in)
	if out.State != Dead || out.Target != NoTarget {
		t.Errorf("Expected Dead with no target, got %v target %d", out.State, out.Target)
	}
}
