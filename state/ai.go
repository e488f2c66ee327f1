package state

// NoTarget is the zero player id.
const NoTarget uint32 = 0

// Candidate is one player as seen by an enemy this tick.
type Candidate struct {
	ID          uint32
	Distance    float64
	Alive       bool
	LineOfSight bool
}

// Input is everything Next needs to decide one enemy's transition.
type Input struct {
	Kind    Kind
	Ranged  bool
	Current State
	HP      int
	Target  uint32

	// Candidates may be in any order; ties are broken by ID.
	Candidates []Candidate

	Radius      float64
	Hysteresis  float64
	AttackRange float64

	// Larva lunge bookkeeping.
	Lunging   bool
	JumpReady bool
}

// Output is the decided state and target. StartLunge is set on the tick a
// larva begins a new jump.
type Output struct {
	State      State
	Target     uint32
	StartLunge bool
}

func find(cands []Candidate, id uint32) (Candidate, bool) {
	for _, c := range cands {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// SelectTarget keeps the current target while it is alive and within
// radius+hysteresis, otherwise picks the nearest alive candidate within
// radius. A current target missing from cands resolves to no target.
func SelectTarget(cands []Candidate, current uint32, radius, hysteresis float64, needSight bool) (Candidate, bool) {
	if current != NoTarget {
		if c, ok := find(cands, current); ok && c.Alive && c.Distance <= radius+hysteresis {
			if !needSight || c.LineOfSight {
				return c, true
			}
		}
	}

	var best Candidate
	found := false
	for _, c := range cands {
		if !c.Alive || c.Distance > radius {
			continue
		}
		if needSight && !c.LineOfSight {
			continue
		}
		if !found || c.Distance < best.Distance || (c.Distance == best.Distance && c.ID < best.ID) {
			best = c
			found = true
		}
	}
	return best, found
}

// Next is the per-tick transition function. It does no I/O and draws no
// random numbers.
func Next(in Input) Output {
	if in.Current == Dead || in.HP <= 0 {
		return Output{State: Dead, Target: NoTarget}
	}

	var out Output
	switch in.Kind {
	case Larva:
		out = nextLarva(in)
	case Ant:
		if in.Ranged {
			out = nextArcher(in)
		} else {
			out = nextChaser(in)
		}
	case Wasp:
		out = nextChaser(in)
	default:
		out = Output{State: in.Current, Target: NoTarget}
	}

	// A state outside the kind's behaviour cannot be continued from; the
	// enemy starts over without a target.
	if _, err := Change(in.Kind, in.Ranged, in.Current, out.State); err != nil {
		return Output{State: Initial(in.Kind, in.Ranged), Target: NoTarget}
	}
	return out
}

func nextLarva(in Input) Output {
	// A lunge in flight runs to completion toward the last seen position.
	if in.Current == Attack && in.Lunging {
		return Output{State: Attack, Target: in.Target}
	}

	c, ok := SelectTarget(in.Candidates, in.Target, in.Radius, in.Hysteresis, true)
	if ok && in.JumpReady {
		return Output{State: Attack, Target: c.ID, StartLunge: true}
	}
	if ok {
		return Output{State: Wander, Target: c.ID}
	}
	return Output{State: Wander, Target: NoTarget}
}

func nextArcher(in Input) Output {
	c, ok := SelectTarget(in.Candidates, in.Target, in.Radius, in.Hysteresis, false)
	if !ok {
		return Output{State: Idle, Target: NoTarget}
	}
	return Output{State: Attack, Target: c.ID}
}

func nextChaser(in Input) Output {
	c, ok := SelectTarget(in.Candidates, in.Target, in.Radius, in.Hysteresis, false)
	if !ok {
		return Output{State: Wander, Target: NoTarget}
	}
	if c.Distance <= in.AttackRange {
		return Output{State: Attack, Target: c.ID}
	}
	return Output{State: Alert, Target: c.ID}
}
