// Package engine implements the transactional event engine (§4.F): lock,
// deep-clone, dispatch, validate, commit-or-discard, then run post-commit
// triggers outside the critical section. It is a direct translation of
// vula/engine.py's Engine class: the @event/@action/@write decorator trio
// becomes, respectively, Engine.Apply, plain Go methods that call the
// WriteOp helpers in writeop.go, and those helpers themselves.
package engine

import (
	"fmt"
	"sync"

	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/vlog"
)

// TriggerTarget is the collaborator method surface from §6, invoked
// post-commit. Each method returns a text log on success; an error is
// recorded into TriggerResults without aborting the remaining triggers.
type TriggerTarget interface {
	SyncPeer(vk string) (string, error)
	SyncPeerRemoved(vk string) (string, error)
	SyncInterface() (string, error)
	SyncHosts() (string, error)
	SyncPublish(descriptors map[string]string) (string, error)
}

// Handler is an event method: a pure function of (next_state, result) that
// mutates next_state via the WriteOp helpers and appends actions/triggers
// to result. Any value from the outside world must already be captured in
// the closure the caller builds (§4.F: "must be captured inside the event
// arguments").
type Handler func(next *state.State, res *state.Result) error

// Engine is the single-threaded cooperative core (§5): one mutex guards
// every event; triggers run after the mutex is released.
type Engine struct {
	mu       sync.Mutex
	live     *state.State
	target   TriggerTarget
	persist  func(*state.State) error
	log      *vlog.Logger
	recorder func(*state.Result)
}

// New constructs an Engine around an already-loaded State. persist is
// called with the newly committed state after every successful event
// (state file rewrite, §5); it may be nil to skip persistence (tests).
// target may be nil, in which case triggers are skipped entirely — this is
// how unit tests exercise organize rules without a kernel WireGuard
// collaborator.
func New(initial *state.State, target TriggerTarget, persist func(*state.State) error) *Engine {
	return &Engine{
		live:    initial,
		target:  target,
		persist: persist,
		log:     vlog.New("engine"),
	}
}

// SetRecorder installs the supplemented event-log appender (§11): called
// with every Result, whether it committed or rolled back, so replay_from_log
// can reconstruct state later if prefs.record_events is set.
func (e *Engine) SetRecorder(fn func(*state.Result)) {
	e.recorder = fn
}

// State returns a snapshot of the live state's views; callers must not
// mutate it — it's read-only access for RPC queries between events.
func (e *Engine) State() *state.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// Apply runs one named event to completion per §4.F's numbered steps.
func (e *Engine) Apply(name string, handler Handler) *state.Result {
	e.mu.Lock()

	res := &state.Result{Event: name}
	next := e.live.Clone()

	err := e.runHandler(handler, next, res)
	if err == nil {
		_, err = state.Validate(next)
	}

	if err != nil {
		res.Err = err
		res.Triggers = nil // discarded along with next_state; never run
		e.mu.Unlock()
		e.finish(res)
		return res
	}

	e.live = next
	if e.persist != nil {
		if perr := e.persist(next); perr != nil {
			e.log.Printf("persist failed after committing event %s: %v", name, perr)
		}
	}
	e.mu.Unlock()

	e.runTriggers(res)
	e.finish(res)
	return res
}

// runHandler recovers a panicking handler into a plain error on the Result
// (no errs.Kind attached), since Go has no equivalent to Python's blanket except Exception
// and a misbehaving organize rule must still roll back cleanly.
func (e *Engine) runHandler(handler Handler, next *state.State, res *state.Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler(next, res)
}

func (e *Engine) runTriggers(res *state.Result) {
	if e.target == nil {
		return
	}
	for _, t := range res.Triggers {
		output, err := e.invokeTrigger(t)
		tr := state.TriggerResult{Method: t.Method, Output: output, Err: err}
		res.TriggerResults = append(res.TriggerResults, tr)
	}
}

func (e *Engine) invokeTrigger(t state.TriggerCall) (string, error) {
	switch t.Method {
	case "sync_peer":
		return e.target.SyncPeer(argString(t.Args, 0))
	case "sync_peer_removed":
		return e.target.SyncPeerRemoved(argString(t.Args, 0))
	case "sync_interface":
		return e.target.SyncInterface()
	case "sync_hosts":
		return e.target.SyncHosts()
	case "sync_publish":
		descs, _ := t.Args[0].(map[string]string)
		return e.target.SyncPublish(descs)
	default:
		return "", fmt.Errorf("unknown trigger method %q", t.Method)
	}
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func (e *Engine) finish(res *state.Result) {
	if e.recorder != nil {
		e.recorder(res)
	}
	e.log.Printf("%s", res.Summary())
}
