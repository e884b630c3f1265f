package a2c

import (
	tstarbot "github.com/HaoshengZou/TStarBot1"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// A TapeMaker allocates the backing storage for one
// recorded rollout component, returning the tape and the
// channel its batches are written to.
//
// lazyseq.ReferenceTape has this shape and is the
// in-memory default.
type TapeMaker func(c anyvec.Creator) (tape lazyseq.Tape,
	writer chan<- *anyseq.Batch)

// A Rollout is a fixed-length batch of transitions
// gathered in lockstep from a vectorized environment.
//
// Each tape holds exactly Steps batches, every batch
// fully present with one row per replica in slot order.
type Rollout struct {
	Creator anyvec.Creator

	// Steps is the number of recorded timesteps.
	Steps int

	// NumEnvs is the replica count.
	NumEnvs int

	// Spatial holds the spatial observation component at
	// each timestep.
	// For single-tensor environments it holds the whole
	// observation and the other component tapes are nil.
	Spatial    lazyseq.Tape
	NonSpatial lazyseq.Tape
	Mask       lazyseq.Tape

	// Actions holds the sampled actions as one-hot
	// vectors, one per replica per timestep.
	Actions lazyseq.Tape

	// Rewards and Dones record the step results, one
	// sequence of length Steps per replica.
	Rewards anyrl.Rewards
	Dones   [][]bool

	// Final is the batched observation which followed
	// the last recorded step.
	// It seeds the bootstrapped targets and the next
	// rollout, so consecutive rollouts stitch together
	// back to back.
	Final tstarbot.Obs
}

// PackedObs joins the recorded observations into one
// batched observation of Steps*NumEnvs rows in time
// order.
func (r *Rollout) PackedObs() tstarbot.Obs {
	spatial := r.packTape(r.Spatial)
	if r.NonSpatial == nil {
		return &tstarbot.VecObs{Data: spatial}
	}
	res := &tstarbot.CompositeObs{
		Spatial:    spatial,
		NonSpatial: r.packTape(r.NonSpatial),
	}
	if r.Mask != nil {
		res.Mask = r.packTape(r.Mask)
	}
	return res
}

// PackedActions joins the recorded one-hot actions into
// one vector in the same order as PackedObs.
func (r *Rollout) PackedActions() anyvec.Vector {
	return r.packTape(r.Actions)
}

func (r *Rollout) packTape(tape lazyseq.Tape) anyvec.Vector {
	var parts []anyvec.Vector
	for batch := range tape.ReadTape(0, -1) {
		parts = append(parts, batch.Packed)
	}
	return r.Creator.Concat(parts...)
}

func makeTape(c anyvec.Creator, maker TapeMaker) (lazyseq.Tape,
	chan<- *anyseq.Batch) {
	if maker != nil {
		return maker(c)
	} else {
		return lazyseq.ReferenceTape(c)
	}
}
