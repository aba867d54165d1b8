package network

import (
	"log"
)

// CleanseOptions configures Cleanse.
type CleanseOptions struct {
	// MutateInputs lets Cleanse filter and rewrite the input slice in place
	// instead of working on a deep copy. The caller's slice is consumed.
	MutateInputs bool
	// Logger receives one line per dropped malformed segment. Defaults to log.Default().
	Logger *log.Logger
}

// CleanseStats summarizes a Cleanse run.
type CleanseStats struct {
	Input            int
	Malformed        int
	PrunedDirections int // directions lost to a cheaper or earlier parallel segment
	Removed          int // valid segments that lost every direction
	Output           int
}

type traversal struct {
	from, to string
}

type claim struct {
	seg     int
	forward bool
	cost    float64
}

// Cleanse drops malformed segments and keeps, for every ordered
// (origin, destination) traversal, only the cheapest segment direction that
// provides it. Ties keep the earliest segment. The forward and backward sides
// of a segment compete independently: a segment that loses one side keeps the
// other with its Direction narrowed, and a segment that loses both is removed.
// Output order follows input order. Running Cleanse on its own output is a no-op.
func Cleanse(segs []Segment, opts ...CleanseOptions) ([]Segment, CleanseStats) {
	var o CleanseOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = log.Default()
	}

	stats := CleanseStats{Input: len(segs)}

	var work []Segment
	if o.MutateInputs {
		work = segs[:0]
	} else {
		work = make([]Segment, 0, len(segs))
	}
	for i := range segs {
		if err := segs[i].Validate(); err != nil {
			logger.Printf("network: skipping segment %d (id=%v): %v", i, segs[i].ID(), err)
			stats.Malformed++
			continue
		}
		if o.MutateInputs {
			work = append(work, segs[i])
		} else {
			work = append(work, segs[i].clone())
		}
	}

	inventory := make(map[traversal]claim, len(work)*2)
	offer := func(key traversal, c claim) {
		if cur, ok := inventory[key]; ok && c.cost >= cur.cost {
			return
		}
		inventory[key] = c
	}
	for i := range work {
		s := &work[i]
		from, to := s.Start(), s.End()
		if s.Direction.Forward() {
			offer(traversal{from, to}, claim{seg: i, forward: true, cost: s.ForwardCostValue()})
		}
		if s.Direction.Backward() {
			offer(traversal{to, from}, claim{seg: i, forward: false, cost: s.BackwardCostValue()})
		}
	}

	fwd := make([]bool, len(work))
	bwd := make([]bool, len(work))
	for _, c := range inventory {
		if c.forward {
			fwd[c.seg] = true
		} else {
			bwd[c.seg] = true
		}
	}

	out := work[:0]
	for i := range work {
		s := work[i]
		if s.Direction.Forward() && !fwd[i] {
			stats.PrunedDirections++
		}
		if s.Direction.Backward() && !bwd[i] {
			stats.PrunedDirections++
		}
		switch {
		case fwd[i] && bwd[i]:
			s.Direction = Both
		case fwd[i]:
			s.Direction = Forward
		case bwd[i]:
			s.Direction = Backward
		default:
			stats.Removed++
			continue
		}
		out = append(out, s)
	}
	// Drop references held past the new length.
	clear(work[len(out):])

	stats.Output = len(out)
	return out, stats
}
