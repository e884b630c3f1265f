package tstarbot

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec"
)

// Info carries auxiliary diagnostic values from an
// environment step.
type Info map[string]interface{}

// An Obs is an observation, either for a single replica
// or for a batch of replicas.
//
// There are exactly two kinds of observation: *VecObs
// and *CompositeObs.
// Code which consumes observations should type switch on
// the kind and treat any other type as a hard error.
type Obs interface {
	// Creator returns the creator of the underlying
	// vector components.
	Creator() anyvec.Creator

	obsKind()
}

// VecObs is an observation consisting of a single
// flattened tensor.
type VecObs struct {
	Data anyvec.Vector
}

// Creator returns the creator of the observation data.
func (v *VecObs) Creator() anyvec.Creator {
	return v.Data.Creator()
}

func (v *VecObs) obsKind() {}

// CompositeObs is an observation consisting of a spatial
// tensor and a non-spatial tensor, plus an optional
// action availability mask.
type CompositeObs struct {
	Spatial    anyvec.Vector
	NonSpatial anyvec.Vector

	// Mask may be nil if the environment does not
	// report action availability.
	Mask anyvec.Vector
}

// Creator returns the creator of the observation data.
func (c *CompositeObs) Creator() anyvec.Creator {
	return c.Spatial.Creator()
}

func (c *CompositeObs) obsKind() {}

// An EnvSpec describes the action and observation spaces
// of an environment.
type EnvSpec struct {
	// NumActions is the number of discrete actions.
	NumActions int

	// Composite is true if observations are
	// *CompositeObs rather than *VecObs.
	Composite bool

	// ObsSize is the component size of a *VecObs.
	// It is 0 for composite observations.
	ObsSize int

	// SpatialSize and NonSpatialSize are the component
	// sizes of a *CompositeObs.
	// They are 0 for single-tensor observations.
	SpatialSize    int
	NonSpatialSize int

	// HasMask is true if composite observations carry
	// an action availability mask.
	HasMask bool
}

// An Env is a single environment replica with a discrete
// action space.
type Env interface {
	// Spec returns static space metadata.
	Spec() EnvSpec

	// Reset starts a new episode and returns the first
	// observation.
	Reset() (Obs, error)

	// Step advances the episode by one tick.
	Step(action int) (obs Obs, reward float64, done bool,
		info Info, err error)

	// Close releases the environment's resources.
	Close() error
}

// StackObs joins per-replica observations into a single
// batched observation.
//
// Row i of the result is obs[i], so batch order always
// follows slot order.
// Composite observations are stacked component-wise; the
// replicas must agree on the observation kind and on the
// presence of a mask.
func StackObs(obs []Obs) (Obs, error) {
	if len(obs) == 0 {
		return nil, errors.New("stack observations: no observations")
	}
	switch first := obs[0].(type) {
	case *VecObs:
		vecs := make([]anyvec.Vector, len(obs))
		for i, o := range obs {
			vo, ok := o.(*VecObs)
			if !ok {
				return nil, fmt.Errorf("stack observations: slot %d: "+
					"mixed observation kinds", i)
			}
			vecs[i] = vo.Data
		}
		return &VecObs{Data: first.Creator().Concat(vecs...)}, nil
	case *CompositeObs:
		c := first.Creator()
		spatial := make([]anyvec.Vector, len(obs))
		nonSpatial := make([]anyvec.Vector, len(obs))
		var masks []anyvec.Vector
		if first.Mask != nil {
			masks = make([]anyvec.Vector, len(obs))
		}
		for i, o := range obs {
			co, ok := o.(*CompositeObs)
			if !ok {
				return nil, fmt.Errorf("stack observations: slot %d: "+
					"mixed observation kinds", i)
			}
			if (co.Mask != nil) != (masks != nil) {
				return nil, fmt.Errorf("stack observations: slot %d: "+
					"inconsistent action mask", i)
			}
			spatial[i] = co.Spatial
			nonSpatial[i] = co.NonSpatial
			if masks != nil {
				masks[i] = co.Mask
			}
		}
		res := &CompositeObs{
			Spatial:    c.Concat(spatial...),
			NonSpatial: c.Concat(nonSpatial...),
		}
		if masks != nil {
			res.Mask = c.Concat(masks...)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("stack observations: unsupported type %T",
			obs[0])
	}
}
