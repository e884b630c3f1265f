package a2c

import (
	"fmt"

	tstarbot "github.com/HaoshengZou/TStarBot1"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
)

// An Encoder maps a batch of observations to a batch of
// feature vectors.
type Encoder interface {
	// Encode produces one feature vector per replica in
	// the batched observation.
	Encode(obs tstarbot.Obs, n int) anydiff.Res

	// Parameters returns the learnable variables of the
	// encoder.
	Parameters() []*anydiff.Var
}

// An Agent is a feed-forward actor-critic network.
//
// Observations flow through the shared Encoder trunk,
// whose features feed both heads.
// An Agent carries no state between evaluations.
type Agent struct {
	// Encoder is the shared trunk.
	Encoder Encoder

	// Actor maps features to one logit per action.
	Actor anynet.Layer

	// Critic maps features to a single value estimate.
	Critic anynet.Layer
}

// Eval applies the agent to a batch of n observations,
// producing action logits and value estimates.
//
// The results participate in gradients only if the
// caller propagates them; discarding them after reading
// the outputs is the inference mode used during rollout
// collection.
func (a *Agent) Eval(obs tstarbot.Obs, n int) (logits, value anydiff.Res) {
	features := a.Encoder.Encode(obs, n)
	return a.Actor.Apply(features, n), a.Critic.Apply(features, n)
}

// Parameters returns all learnable variables of the
// trunk and both heads.
func (a *Agent) Parameters() []*anydiff.Var {
	res := a.Encoder.Parameters()
	return append(res, anynet.AllParameters(a.Actor, a.Critic)...)
}

// VecEncoder encodes single-tensor observations with a
// feed-forward network.
type VecEncoder struct {
	Net anynet.Layer
}

// Encode applies the network to the observation batch.
func (v *VecEncoder) Encode(obs tstarbot.Obs, n int) anydiff.Res {
	switch obs := obs.(type) {
	case *tstarbot.VecObs:
		return v.Net.Apply(anydiff.NewConst(obs.Data), n)
	default:
		panic(fmt.Sprintf("unsupported observation type: %T", obs))
	}
}

// Parameters returns the network's variables.
func (v *VecEncoder) Parameters() []*anydiff.Var {
	return anynet.AllParameters(v.Net)
}

// ConvEncoder encodes composite observations: the
// spatial component goes through a convolutional trunk
// and the non-spatial component through a fully
// connected branch.
// Both branches must produce features of the same size;
// the branch outputs are summed.
//
// The action availability mask, if present, is not
// consumed here; masking is an action-space concern.
type ConvEncoder struct {
	Spatial    anynet.Layer
	NonSpatial anynet.Layer
}

// Encode applies both branches to the observation batch.
func (c *ConvEncoder) Encode(obs tstarbot.Obs, n int) anydiff.Res {
	switch obs := obs.(type) {
	case *tstarbot.CompositeObs:
		spatial := c.Spatial.Apply(anydiff.NewConst(obs.Spatial), n)
		nonSpatial := c.NonSpatial.Apply(anydiff.NewConst(obs.NonSpatial), n)
		return anydiff.Add(spatial, nonSpatial)
	default:
		panic(fmt.Sprintf("unsupported observation type: %T", obs))
	}
}

// Parameters returns the variables of both branches.
func (c *ConvEncoder) Parameters() []*anydiff.Var {
	return anynet.AllParameters(c.Spatial, c.NonSpatial)
}
