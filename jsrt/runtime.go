package jsrt

import (
	"io/ioutil"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// Runtime runs scripts on a goja event loop. Request completions are posted
// back onto the loop, and a script run lasts until every request it started
// has delivered its events.
type Runtime struct {
	loop      *eventloop.EventLoop
	scheduler *loopScheduler
	started   bool

	lock sync.Mutex
	vm   *goja.Runtime // set the first time the loop runs a job
}

// NewRuntime with console and require enabled
func NewRuntime() *Runtime {
	loop := eventloop.NewEventLoop()
	return &Runtime{
		loop:      loop,
		scheduler: &loopScheduler{loop: loop},
	}
}

// Scheduler for native requests used by scripts in this runtime
func (r *Runtime) Scheduler() xhrk.Scheduler {
	return r.scheduler
}

// Start the event loop
func (r *Runtime) Start() {
	if r.started {
		return
	}
	r.loop.Start()
	r.started = true
}

// Stop the event loop, pending timers are discarded
func (r *Runtime) Stop() {
	if !r.started {
		return
	}
	r.loop.Stop()
	r.started = false
}

// Bind XMLHttpRequest to factory in the runtime
func (r *Runtime) Bind(factory xhrk.Factory) error {
	var err error
	r.Do(func(vm *goja.Runtime) {
		err = Bind(vm, factory)
	})
	return err
}

// Do runs fn on the loop and waits for it to return
func (r *Runtime) Do(fn func(vm *goja.Runtime)) {
	r.Start()
	done := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		r.lock.Lock()
		r.vm = vm
		r.lock.Unlock()
		fn(vm)
	})
	<-done
}

// Interrupt the running script, safe to call from any goroutine. Requests
// already in flight still complete, their script listeners fail with the
// interrupt.
func (r *Runtime) Interrupt(reason interface{}) {
	r.lock.Lock()
	vm := r.vm
	r.lock.Unlock()
	if vm == nil {
		log.Warn().Msg("interrupt before any script ran")
		return
	}
	vm.Interrupt(reason)
}

// RunString evaluates src then waits for the requests it started
func (r *Runtime) RunString(name, src string) (goja.Value, error) {
	var result goja.Value
	var err error
	r.Do(func(vm *goja.Runtime) {
		var prog *goja.Program
		prog, err = goja.Compile(name, src, false)
		if err != nil {
			return
		}
		result, err = vm.RunProgram(prog)
	})
	r.scheduler.wait()
	if err != nil {
		return nil, errors.Wrapf(err, "error running %s", name)
	}
	return result, nil
}

// RunFile reads and runs the script at path
func (r *Runtime) RunFile(path string) (goja.Value, error) {
	src, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script")
	}
	log.Info().Str("file", path).Msg("running script")
	return r.RunString(path, string(src))
}

// loopScheduler runs round trips on goroutines and posts the continuation
// onto the event loop
type loopScheduler struct {
	loop *eventloop.EventLoop
	wg   sync.WaitGroup
}

func (s *loopScheduler) Go(task func() func()) {
	s.wg.Add(1)
	go func() {
		next := task()
		if next == nil {
			s.wg.Done()
			return
		}
		s.loop.RunOnLoop(func(*goja.Runtime) {
			defer s.wg.Done()
			next()
		})
	}()
}

// wait for all tasks and continuations, continuations that start new
// requests add to the group before they finish
func (s *loopScheduler) wait() {
	s.wg.Wait()
}
