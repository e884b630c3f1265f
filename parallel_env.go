package tstarbot

import (
	"fmt"

	"github.com/unixpickle/essentials"
)

type workerOp int

const (
	opStep workerOp = iota
	opReset
	opSpaces
	opClose
)

type workerCmd struct {
	op     workerOp
	action int
}

type workerReply struct {
	obs    Obs
	reward float64
	done   bool
	info   Info
	spec   EnvSpec
	err    error
}

// An envWorker owns exactly one Env for its whole
// lifetime and services commands for it.
type envWorker struct {
	cmds    chan workerCmd
	replies chan workerReply
	done    chan struct{}
}

func newEnvWorker(makeEnv func() (Env, error)) *envWorker {
	w := &envWorker{
		cmds:    make(chan workerCmd, 1),
		replies: make(chan workerReply, 1),
		done:    make(chan struct{}),
	}
	go w.run(makeEnv)
	return w
}

func (w *envWorker) run(makeEnv func() (Env, error)) {
	defer close(w.done)

	env, err := makeEnv()
	w.replies <- workerReply{err: err}

	for cmd := range w.cmds {
		if cmd.op == opClose {
			if env != nil {
				env.Close()
			}
			return
		}
		if err != nil {
			// The environment never came up; keep
			// answering so the barrier stays sound.
			w.replies <- workerReply{err: err}
			continue
		}
		switch cmd.op {
		case opStep:
			obs, reward, done, info, stepErr := env.Step(cmd.action)
			if stepErr == nil && done {
				// Start the next episode immediately so
				// the caller always receives a live
				// observation.
				obs, stepErr = env.Reset()
			}
			w.replies <- workerReply{
				obs:    obs,
				reward: reward,
				done:   done,
				info:   info,
				err:    stepErr,
			}
		case opReset:
			obs, resetErr := env.Reset()
			w.replies <- workerReply{obs: obs, err: resetErr}
		case opSpaces:
			w.replies <- workerReply{spec: env.Spec()}
		default:
			panic(fmt.Sprintf("unsupported worker command: %d", cmd.op))
		}
	}
}

// ParallelEnv advances N environment replicas in
// lockstep and presents them as one batched environment.
//
// Every operation is a synchronous barrier: it returns
// only once all replicas have replied, and result slot i
// always belongs to replica i regardless of which
// replica finished first.
type ParallelEnv struct {
	workers []*envWorker
}

// NewParallelEnv starts one worker per maker, each of
// which constructs and then exclusively owns one Env.
//
// If any maker fails, the remaining replicas are shut
// down and the error is returned.
func NewParallelEnv(makers ...func() (Env, error)) (p *ParallelEnv, err error) {
	defer essentials.AddCtxTo("create parallel env", &err)
	p = &ParallelEnv{}
	for _, m := range makers {
		p.workers = append(p.workers, newEnvWorker(m))
	}
	for _, w := range p.workers {
		if reply := <-w.replies; reply.err != nil && err == nil {
			err = reply.err
		}
	}
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NumEnvs returns the number of replicas.
func (p *ParallelEnv) NumEnvs() int {
	return len(p.workers)
}

// Spec fetches the space metadata, which all replicas
// share.
func (p *ParallelEnv) Spec() (spec EnvSpec, err error) {
	defer essentials.AddCtxTo("query parallel env spaces", &err)
	w := p.workers[0]
	w.cmds <- workerCmd{op: opSpaces}
	reply := <-w.replies
	return reply.spec, reply.err
}

// Reset restarts every replica and returns the batched
// first observations.
func (p *ParallelEnv) Reset() (obs Obs, err error) {
	defer essentials.AddCtxTo("reset parallel env", &err)
	for _, w := range p.workers {
		w.cmds <- workerCmd{op: opReset}
	}
	all := make([]Obs, len(p.workers))
	for i, w := range p.workers {
		reply := <-w.replies
		if reply.err != nil && err == nil {
			err = reply.err
		}
		all[i] = reply.obs
	}
	if err != nil {
		return nil, err
	}
	return StackObs(all)
}

// Step advances every replica by one tick, sending
// actions[i] to replica i.
//
// If a replica ends its episode, dones[i] is true and
// the returned observation for that slot already belongs
// to the replica's next episode.
func (p *ParallelEnv) Step(actions []int) (obs Obs, rewards []float64,
	dones []bool, infos []Info, err error) {
	defer essentials.AddCtxTo("step parallel env", &err)
	if len(actions) != len(p.workers) {
		panic("action count must match replica count")
	}
	for i, w := range p.workers {
		w.cmds <- workerCmd{op: opStep, action: actions[i]}
	}
	all := make([]Obs, len(p.workers))
	rewards = make([]float64, len(p.workers))
	dones = make([]bool, len(p.workers))
	infos = make([]Info, len(p.workers))
	for i, w := range p.workers {
		reply := <-w.replies
		if reply.err != nil && err == nil {
			err = reply.err
		}
		all[i] = reply.obs
		rewards[i] = reply.reward
		dones[i] = reply.done
		infos[i] = reply.info
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}
	obs, err = StackObs(all)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return
}

// Close shuts down every replica and waits for all
// workers to terminate.
func (p *ParallelEnv) Close() error {
	for _, w := range p.workers {
		w.cmds <- workerCmd{op: opClose}
	}
	for _, w := range p.workers {
		<-w.done
	}
	return nil
}
