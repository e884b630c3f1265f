package tstarbot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unixpickle/anyvec/anyvec64"
)

// A scriptedEnv deterministically encodes its identity
// and progress into observations so tests can tell the
// replicas apart.
type scriptedEnv struct {
	id    int
	delay time.Duration

	// epLen, if non-zero, ends an episode every epLen
	// steps.
	epLen int

	// failAt, if non-zero, makes that step fail.
	failAt int

	step   int
	total  int
	resets int
	closed bool
}

func (s *scriptedEnv) Spec() EnvSpec {
	return EnvSpec{NumActions: 3, ObsSize: 2}
}

func (s *scriptedEnv) Reset() (Obs, error) {
	s.resets++
	s.step = 0
	return s.obs(), nil
}

func (s *scriptedEnv) Step(action int) (Obs, float64, bool, Info, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.step++
	s.total++
	if s.failAt > 0 && s.total == s.failAt {
		return nil, 0, false, nil, errors.New("scripted failure")
	}
	done := s.epLen > 0 && s.step == s.epLen
	reward := float64(s.id*10 + s.step)
	return s.obs(), reward, done, Info{"total": s.total}, nil
}

func (s *scriptedEnv) Close() error {
	s.closed = true
	return nil
}

func (s *scriptedEnv) obs() Obs {
	c := anyvec64.DefaultCreator{}
	data := []float64{float64(s.id), float64(s.resets*100 + s.step)}
	return &VecObs{Data: c.MakeVectorData(data)}
}

func newScriptedParallelEnv(t *testing.T, envs []*scriptedEnv) *ParallelEnv {
	makers := make([]func() (Env, error), len(envs))
	for i, e := range envs {
		e := e
		makers[i] = func() (Env, error) {
			return e, nil
		}
	}
	p, err := NewParallelEnv(makers...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func batchRows(t *testing.T, obs Obs, numEnvs int) [][]float64 {
	data := obs.(*VecObs).Data.Data().([]float64)
	if len(data)%numEnvs != 0 {
		t.Fatalf("batch size %d not divisible by %d", len(data), numEnvs)
	}
	size := len(data) / numEnvs
	rows := make([][]float64, numEnvs)
	for i := range rows {
		rows[i] = data[i*size : (i+1)*size]
	}
	return rows
}

func TestParallelEnvOrdering(t *testing.T) {
	// The slowest replica comes first so replies arrive
	// in reverse slot order.
	envs := make([]*scriptedEnv, 4)
	for i := range envs {
		envs[i] = &scriptedEnv{
			id:    i,
			delay: time.Duration(len(envs)-i) * 10 * time.Millisecond,
		}
	}
	p := newScriptedParallelEnv(t, envs)
	defer p.Close()

	if _, err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	obs, rewards, _, infos, err := p.Step([]int{0, 1, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	rows := batchRows(t, obs, len(envs))
	for i := range envs {
		if rows[i][0] != float64(i) {
			t.Errorf("slot %d holds replica %v", i, rows[i][0])
		}
		if rewards[i] != float64(i*10+1) {
			t.Errorf("slot %d reward: expected %d but got %f", i,
				i*10+1, rewards[i])
		}
		if infos[i]["total"] != 1 {
			t.Errorf("slot %d info: %v", i, infos[i])
		}
	}
}

func TestParallelEnvLockstep(t *testing.T) {
	envs := []*scriptedEnv{{id: 0}, {id: 1}, {id: 2}}
	p := newScriptedParallelEnv(t, envs)
	defer p.Close()

	if _, err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 5; step++ {
		if _, _, _, _, err := p.Step([]int{0, 0, 0}); err != nil {
			t.Fatal(err)
		}
	}
	for i, e := range envs {
		if e.total != 5 {
			t.Errorf("replica %d advanced %d steps", i, e.total)
		}
	}
}

func TestParallelEnvAutoReset(t *testing.T) {
	envs := []*scriptedEnv{{id: 0, epLen: 3}, {id: 1}}
	p := newScriptedParallelEnv(t, envs)
	defer p.Close()

	if _, err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	var obs Obs
	var dones []bool
	var err error
	for step := 0; step < 3; step++ {
		obs, _, dones, _, err = p.Step([]int{0, 0})
		if err != nil {
			t.Fatal(err)
		}
	}
	if !dones[0] || dones[1] {
		t.Fatalf("bad done flags: %v", dones)
	}
	rows := batchRows(t, obs, 2)

	// The slot 0 observation must already belong to the
	// next episode, i.e. look exactly like a fresh reset.
	if rows[0][1] != float64(envs[0].resets*100) {
		t.Errorf("expected reset observation but got %v", rows[0])
	}
	if envs[0].resets != 2 {
		t.Errorf("expected 2 resets but got %d", envs[0].resets)
	}
	if rows[1][1] != float64(100+3) {
		t.Errorf("unexpected slot 1 observation: %v", rows[1])
	}
}

func TestParallelEnvError(t *testing.T) {
	envs := []*scriptedEnv{{id: 0}, {id: 1, failAt: 2}}
	p := newScriptedParallelEnv(t, envs)
	defer p.Close()

	if _, err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, _, err := p.Step([]int{0, 0}); err != nil {
		t.Fatal(err)
	}
	_, _, _, _, err := p.Step([]int{0, 0})
	if err == nil {
		t.Fatal("expected error from failing replica")
	}
	if !strings.Contains(err.Error(), "step parallel env") {
		t.Errorf("missing error context: %v", err)
	}
}

func TestParallelEnvSpec(t *testing.T) {
	envs := []*scriptedEnv{{id: 0}, {id: 1}}
	p := newScriptedParallelEnv(t, envs)
	defer p.Close()

	spec, err := p.Spec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.NumActions != 3 || spec.ObsSize != 2 {
		t.Errorf("unexpected spec: %+v", spec)
	}
	if p.NumEnvs() != 2 {
		t.Errorf("expected 2 replicas but got %d", p.NumEnvs())
	}
}

func TestParallelEnvClose(t *testing.T) {
	envs := []*scriptedEnv{{id: 0}, {id: 1}, {id: 2}}
	p := newScriptedParallelEnv(t, envs)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	for i, e := range envs {
		if !e.closed {
			t.Errorf("replica %d was not closed", i)
		}
	}
}
