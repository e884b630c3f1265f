package a2c

import "github.com/unixpickle/anyrl"

// A Bootstrapper converts rollout rewards and episode
// boundaries into per-step target values by backward
// recursion from a value estimate at the truncation
// point.
type Bootstrapper struct {
	// Discount is the per-step reward discount factor.
	// A zero discount makes every target equal its
	// step's immediate reward.
	Discount float64
}

// Targets computes one target per recorded timestep.
//
// rewards and dones are replica-major, one sequence per
// replica; finalValues[i] is the value estimate for
// replica i at the observation following the last step.
//
// A done flag at step t cuts the recursion: no value
// from steps after t leaks into the target for t or any
// earlier step of the finished episode.
func (b *Bootstrapper) Targets(rewards anyrl.Rewards, dones [][]bool,
	finalValues []float64) anyrl.Rewards {
	res := make(anyrl.Rewards, len(rewards))
	for i, seq := range rewards {
		targets := make([]float64, len(seq))
		if len(seq) == 0 {
			res[i] = targets
			continue
		}
		running := finalValues[i]
		for t := len(seq) - 1; t >= 0; t-- {
			if dones[i][t] {
				running = 0
			}
			running = seq[t] + b.Discount*running
			targets[t] = running
		}
		res[i] = targets
	}
	return res
}
