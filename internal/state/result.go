package state

import "github.com/vula-mesh/vula/internal/errs"

// WriteKind is one of the three write operations the engine's write ops
// record (§4.F).
type WriteKind string

const (
	Set    WriteKind = "SET"
	Add    WriteKind = "ADD"
	Remove WriteKind = "REMOVE"
)

// WriteOp is one committed mutation to next_state: (kind, path, value).
// Path is a dotted locator such as "peers.<vk>.pinned" or
// "prefs.local_domains", matching the teacher's error-wrapping style of
// naming the field a failure occurred on.
type WriteOp struct {
	Kind  WriteKind
	Path  string
	Value any
}

// Action is one named outcome of an event, e.g. ACCEPT_NEW_PEER, REJECT.
type Action struct {
	Name string
	Args map[string]any
}

// TriggerCall is a registered (name, args) tuple, dispatched post-commit
// against the collaborator surface (§6) — never a closure over state,
// per §9's Design Notes.
type TriggerCall struct {
	Method string
	Args   []any
}

// TriggerResult captures what happened when a TriggerCall actually ran.
type TriggerResult struct {
	Method string
	Output string
	Err    error
}

// Result is the record of one event: actions + writes + triggers +
// trigger_results + optional error (§4.F, §7).
type Result struct {
	Event          string
	Actions        []Action
	Writes         []WriteOp
	Triggers       []TriggerCall
	TriggerResults []TriggerResult
	Err            error
}

// Summary renders "OK: <actions>" or "ERROR: <kind>: <detail>" per §7.
func (r *Result) Summary() string {
	if r.Err != nil {
		return "ERROR: " + r.Err.Error()
	}
	s := "OK:"
	for _, a := range r.Actions {
		s += " " + a.Name
	}
	return s
}

// AddAction records an action outcome.
func (r *Result) AddAction(name string, args map[string]any) {
	r.Actions = append(r.Actions, Action{Name: name, Args: args})
}

// AddWrite records a write op.
func (r *Result) AddWrite(kind WriteKind, path string, value any) {
	r.Writes = append(r.Writes, WriteOp{Kind: kind, Path: path, Value: value})
}

// AddTrigger registers a post-commit trigger call.
func (r *Result) AddTrigger(method string, args ...any) {
	r.Triggers = append(r.Triggers, TriggerCall{Method: method, Args: args})
}

// Fail records a terminal error on the result. Handlers call this and
// return; the engine discards next_state when Err is non-nil.
func (r *Result) Fail(kind errs.Kind, format string, args ...any) error {
	err := errs.New(kind, format, args...)
	r.Err = err
	return err
}
