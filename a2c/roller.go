package a2c

import (
	"fmt"
	"math/rand"

	tstarbot "github.com/HaoshengZou/TStarBot1"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/lazyseq"
)

// A Roller gathers fixed-length rollouts from a
// vectorized environment by sampling actions from the
// agent's policy.
type Roller struct {
	// Agent chooses the actions.
	Agent *Agent

	// NumSteps is the exact number of lockstep timesteps
	// per rollout.
	NumSteps int

	// Rand is the sampling source.
	// It is the only source of randomness used while
	// collecting rollouts.
	Rand *rand.Rand

	// Logger, if non-nil, is told whenever a replica
	// finishes an episode.
	Logger Logger

	// MakeInputTape and MakeActionTape control where the
	// recorded observation components and actions live,
	// e.g. to spill large screen batches to disk.
	//
	// For nil fields, lazyseq.ReferenceTape is used.
	MakeInputTape  TapeMaker
	MakeActionTape TapeMaker

	// Episode rewards accumulate across consecutive
	// rollouts, since episodes outlive rollouts.
	episodeRewards []float64
}

// Rollout runs exactly r.NumSteps steps against env,
// starting from obs, the batched observation most
// recently produced by env.
//
// The returned rollout's Final field is the observation
// to pass to the next Rollout call.
func (r *Roller) Rollout(env *tstarbot.ParallelEnv,
	obs tstarbot.Obs) (rollout *Rollout, err error) {
	defer essentials.AddCtxTo("collect rollout", &err)

	if r.NumSteps <= 0 {
		panic("rollout length must be positive")
	}
	n := env.NumEnvs()
	c := obs.Creator()
	if r.episodeRewards == nil {
		r.episodeRewards = make([]float64, n)
	}

	rec := newObsRecorder(c, obs, n, r.MakeInputTape)
	actionsTape, actionsCh := makeTape(c, r.MakeActionTape)
	defer func() {
		rec.close()
		close(actionsCh)
	}()

	rewards := make(anyrl.Rewards, n)
	dones := make([][]bool, n)
	for i := range rewards {
		rewards[i] = make([]float64, 0, r.NumSteps)
		dones[i] = make([]bool, 0, r.NumSteps)
	}

	for t := 0; t < r.NumSteps; t++ {
		logits, _ := r.Agent.Eval(obs, n)
		logitsOut := logits.Output()
		actions := sampleActions(r.Rand, logitsOut, n)

		rec.record(obs)
		actionsCh <- &anyseq.Batch{
			Packed:  oneHotActions(c, actions, logitsOut.Len()/n),
			Present: rec.present,
		}

		nextObs, stepRewards, stepDones, _, stepErr := env.Step(actions)
		if stepErr != nil {
			return nil, stepErr
		}
		for i := range stepRewards {
			rewards[i] = append(rewards[i], stepRewards[i])
			dones[i] = append(dones[i], stepDones[i])
			r.episodeRewards[i] += stepRewards[i]
			if stepDones[i] {
				if r.Logger != nil {
					r.Logger.LogEpisode(i, r.episodeRewards[i])
				}
				r.episodeRewards[i] = 0
			}
		}
		obs = nextObs
	}

	return &Rollout{
		Creator:    c,
		Steps:      r.NumSteps,
		NumEnvs:    n,
		Spatial:    rec.spatialTape,
		NonSpatial: rec.nonSpatialTape,
		Mask:       rec.maskTape,
		Actions:    actionsTape,
		Rewards:    rewards,
		Dones:      dones,
		Final:      obs,
	}, nil
}

// sampleActions draws one action index per replica from
// softmax(logits).
func sampleActions(rng *rand.Rand, logits anyvec.Vector, n int) []int {
	if logits.Len()%n != 0 {
		panic("batch size must divide logit count")
	}
	chunk := logits.Len() / n
	probs := logits.Copy()
	anyvec.LogSoftmax(probs, chunk)
	anyvec.Exp(probs)
	values := vectorToFloats(probs)

	actions := make([]int, n)
	for i := range actions {
		row := values[i*chunk : (i+1)*chunk]
		num := rng.Float64()
		idx := chunk - 1
		for j, x := range row {
			num -= x
			if num < 0 {
				idx = j
				break
			}
		}
		actions[i] = idx
	}
	return actions
}

func oneHotActions(c anyvec.Creator, actions []int, numActions int) anyvec.Vector {
	data := make([]float64, len(actions)*numActions)
	for i, a := range actions {
		data[i*numActions+a] = 1
	}
	return c.MakeVectorData(c.MakeNumericList(data))
}

// An obsRecorder writes per-step batched observations to
// one tape per observation component.
type obsRecorder struct {
	present []bool

	spatialTape    lazyseq.Tape
	nonSpatialTape lazyseq.Tape
	maskTape       lazyseq.Tape

	spatialCh    chan<- *anyseq.Batch
	nonSpatialCh chan<- *anyseq.Batch
	maskCh       chan<- *anyseq.Batch
}

func newObsRecorder(c anyvec.Creator, obs tstarbot.Obs, n int,
	maker TapeMaker) *obsRecorder {
	rec := &obsRecorder{present: make([]bool, n)}
	for i := range rec.present {
		rec.present[i] = true
	}
	rec.spatialTape, rec.spatialCh = makeTape(c, maker)
	if composite, ok := obs.(*tstarbot.CompositeObs); ok {
		rec.nonSpatialTape, rec.nonSpatialCh = makeTape(c, maker)
		if composite.Mask != nil {
			rec.maskTape, rec.maskCh = makeTape(c, maker)
		}
	}
	return rec
}

func (o *obsRecorder) record(obs tstarbot.Obs) {
	switch obs := obs.(type) {
	case *tstarbot.VecObs:
		o.spatialCh <- &anyseq.Batch{Packed: obs.Data, Present: o.present}
	case *tstarbot.CompositeObs:
		o.spatialCh <- &anyseq.Batch{Packed: obs.Spatial, Present: o.present}
		o.nonSpatialCh <- &anyseq.Batch{Packed: obs.NonSpatial,
			Present: o.present}
		if o.maskCh != nil {
			o.maskCh <- &anyseq.Batch{Packed: obs.Mask, Present: o.present}
		}
	default:
		panic(fmt.Sprintf("unsupported observation type: %T", obs))
	}
}

func (o *obsRecorder) close() {
	close(o.spatialCh)
	if o.nonSpatialCh != nil {
		close(o.nonSpatialCh)
	}
	if o.maskCh != nil {
		close(o.maskCh)
	}
}
