package tstarbot

import (
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	gym "github.com/unixpickle/gym-socket-api/binding-go"
)

type gymEnv struct {
	creator anyvec.Creator
	env     gym.Env
	spec    EnvSpec
}

// GymEnv wraps a gym-socket-api environment handle as an
// Env producing single-tensor observations.
//
// The handle must have a Discrete action space; the
// observation space is flattened.
func GymEnv(c anyvec.Creator, env gym.Env) (res Env, err error) {
	defer essentials.AddCtxTo("create gym Env", &err)
	actionSpace, err := env.ActionSpace()
	if err != nil {
		return nil, err
	}
	if actionSpace.Type != "Discrete" {
		return nil, fmt.Errorf("unsupported action space: %s",
			actionSpace.Type)
	}
	obsSpace, err := env.ObservationSpace()
	if err != nil {
		return nil, err
	}
	obsSize := 1
	for _, d := range obsSpace.Shape {
		obsSize *= d
	}
	return &gymEnv{
		creator: c,
		env:     env,
		spec: EnvSpec{
			NumActions: actionSpace.N,
			ObsSize:    obsSize,
		},
	}, nil
}

func (g *gymEnv) Spec() EnvSpec {
	return g.spec
}

func (g *gymEnv) Reset() (obs Obs, err error) {
	defer essentials.AddCtxTo("reset gym Env", &err)
	rawObs, err := g.env.Reset()
	if err != nil {
		return nil, err
	}
	return g.obsVec(rawObs)
}

func (g *gymEnv) Step(action int) (obs Obs, reward float64, done bool,
	info Info, err error) {
	defer essentials.AddCtxTo("step gym Env", &err)
	rawObs, reward, done, rawInfo, err := g.env.Step(action)
	if err != nil {
		return
	}
	obs, err = g.obsVec(rawObs)
	if err != nil {
		return
	}
	info = Info{"gym": rawInfo}
	return
}

func (g *gymEnv) Close() error {
	return g.env.Close()
}

func (g *gymEnv) obsVec(rawObs gym.Obs) (Obs, error) {
	values, err := gym.Flatten(rawObs)
	if err != nil {
		return nil, err
	}
	if len(values) != g.spec.ObsSize {
		return nil, fmt.Errorf("expected observation size %d but got %d",
			g.spec.ObsSize, len(values))
	}
	return &VecObs{Data: anyvec.Make(g.creator, values)}, nil
}
