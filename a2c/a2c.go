// Package a2c implements synchronous Advantage
// Actor-Critic for Reinforcement Learning on lockstep
// vectorized environments.
package a2c

import (
	tstarbot "github.com/HaoshengZou/TStarBot1"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/essentials"
)

// DefaultMaxGradNorm is the global gradient norm cap
// used when A2C.MaxGradNorm is 0.
const DefaultMaxGradNorm = 40

// An ActionSpace provides the distribution math for a
// discrete policy head.
//
// anyrl.Softmax implements it.
type ActionSpace interface {
	anyrl.LogProber
	anyrl.Entropyer
}

// UpdateStats describes a single parameter update.
type UpdateStats struct {
	// Loss terms, as minimized.
	Loss       float64
	PolicyLoss float64
	ValueLoss  float64

	// Entropy is the mean action distribution entropy.
	Entropy float64

	// GradNorm is the global gradient norm before
	// clipping.
	GradNorm float64

	// MeanReward is the mean per-replica reward total
	// over the rollout.
	MeanReward float64
}

// A2C implements synchronous advantage actor-critic.
//
// Each iteration gathers one fixed-length rollout from
// every replica, computes bootstrapped target values,
// and applies a single gradient update.
type A2C struct {
	// Agent is the trained actor-critic network.
	Agent *Agent

	// Params are the variables to update.
	Params []*anydiff.Var

	// ActionSpace grades the sampled actions.
	// Use anyrl.Softmax{} for a flat discrete space.
	ActionSpace ActionSpace

	// Roller gathers the training data.
	Roller *Roller

	// Discount is the reward discount factor, typically
	// just below 1.
	Discount float64

	// ValCoef scales the value loss term.
	ValCoef float64

	// EntCoef scales the mean policy entropy, which is
	// added to the loss as-is: a positive coefficient
	// penalizes high-entropy policies.
	// Pass a negative coefficient for the conventional
	// exploration bonus.
	EntCoef float64

	// StepSize is the learning rate.
	StepSize float64

	// MaxGradNorm caps the global gradient norm before
	// the update.
	// If 0, DefaultMaxGradNorm is used.
	MaxGradNorm float64

	// Transformer, if non-nil, post-processes clipped
	// gradients (e.g. anysgd.RMSProp).
	Transformer anysgd.Transformer

	// Log, if non-nil, receives per-update statistics.
	Log Logger
}

// Run trains for numIters rollout/update cycles.
//
// If done is non-nil and closed, Run finishes gracefully
// after the current iteration and returns nil.
//
// If the environment produces an error, Run stops and
// returns the error.
func (a *A2C) Run(env *tstarbot.ParallelEnv, numIters int,
	done <-chan struct{}) (err error) {
	defer essentials.AddCtxTo("run A2C", &err)

	obs, err := env.Reset()
	if err != nil {
		return err
	}
	for i := 0; i < numIters; i++ {
		select {
		case <-done:
			return nil
		default:
		}
		rollout, err := a.Roller.Rollout(env, obs)
		if err != nil {
			return err
		}
		stats := a.Update(rollout)
		if a.Log != nil {
			a.Log.LogUpdate(i, stats)
		}
		obs = rollout.Final
	}
	return nil
}

// Update performs one gradient update on the rollout and
// returns the update's statistics.
func (a *A2C) Update(r *Rollout) *UpdateStats {
	c := r.Creator
	n := r.Steps * r.NumEnvs

	// Value estimates at the truncation point, with no
	// gradient history retained.
	_, finalValue := a.Agent.Eval(r.Final, r.NumEnvs)
	finalValues := vectorToFloats(finalValue.Output())

	booter := &Bootstrapper{Discount: a.Discount}
	targets := booter.Targets(r.Rewards, r.Dones, finalValues)

	// Flatten the replica-major targets into the time
	// order used by PackedObs.
	flat := make([]float64, n)
	for i, seq := range targets {
		for t, x := range seq {
			flat[t*r.NumEnvs+i] = x
		}
	}
	targetVec := c.MakeVectorData(c.MakeNumericList(flat))

	logits, value := a.Agent.Eval(r.PackedObs(), n)
	advantage := anydiff.Sub(anydiff.NewConst(targetVec), value)

	// The advantage is detached for the policy term so
	// the policy gradient cannot reach the value head.
	detached := anydiff.NewConst(advantage.Output())
	logProb := a.ActionSpace.LogProb(logits, r.PackedActions(), n)
	policyLoss := anydiff.Scale(
		anydiff.Sum(anydiff.Mul(logProb, detached)),
		c.MakeNumeric(-1/float64(n)),
	)

	valueLoss := anydiff.Scale(
		anydiff.Sum(anydiff.Square(advantage)),
		c.MakeNumeric(0.5/float64(n)),
	)

	entropy := anydiff.Scale(
		anydiff.Sum(a.ActionSpace.Entropy(logits, n)),
		c.MakeNumeric(1/float64(n)),
	)

	loss := anydiff.Add(
		policyLoss,
		anydiff.Add(
			anydiff.Scale(valueLoss, c.MakeNumeric(a.ValCoef)),
			anydiff.Scale(entropy, c.MakeNumeric(a.EntCoef)),
		),
	)

	stats := &UpdateStats{
		Loss:       vectorToFloats(loss.Output())[0],
		PolicyLoss: vectorToFloats(policyLoss.Output())[0],
		ValueLoss:  vectorToFloats(valueLoss.Output())[0],
		Entropy:    vectorToFloats(entropy.Output())[0],
		MeanReward: r.Rewards.Mean(),
	}

	grad := anydiff.NewGrad(a.Params...)
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	loss.Propagate(one, grad)

	maxNorm := a.MaxGradNorm
	if maxNorm == 0 {
		maxNorm = DefaultMaxGradNorm
	}
	stats.GradNorm = ClipNorm(grad, maxNorm)

	if a.Transformer != nil {
		grad = a.Transformer.Transform(grad)
	}
	grad.Scale(c.MakeNumeric(-a.StepSize))
	grad.AddToVars()

	return stats
}
