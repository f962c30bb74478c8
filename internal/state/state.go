// Package state defines the engine root (§3 State) and its aggregate
// validator (§4.E). State exclusively owns peers and their descriptors;
// Peer exclusively owns its own nicknames/address maps (§3 Ownership).
package state

import (
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/sysstate"
)

// State is the engine root: peers keyed by vk (base64), prefs, the current
// system-state snapshot, and an optional event log (populated only when
// prefs.record_events is set, per §11's supplemented replay feature).
type State struct {
	Peers      map[string]*peer.Peer
	Prefs      *prefs.Prefs
	System     sysstate.SystemState
	EventLog   []*Result
	SchemaVer  int
}

// New returns an empty State with defaulted Prefs, as a fresh daemon
// bootstraps before loading any persisted state file.
func New() *State {
	return &State{
		Peers:     map[string]*peer.Peer{},
		Prefs:     prefs.New(),
		System:    sysstate.Empty(),
		SchemaVer: 1,
	}
}

// Views rebuilds the indexed peer lookups over the current peer set.
// Per §9, these are never cached across commits; call fresh whenever
// needed.
func (s *State) Views() *peer.Views {
	return peer.BuildViews(s.Peers)
}

// Clone deep-copies State for the engine's per-event tentative next_state
// (§4.F step 2, §9's copy-on-write approach to cheap rollback). EventLog is
// intentionally not deep-copied entry-by-entry (Results are immutable once
// committed); only the backing slice header is copied so appends during
// the tentative event don't alias the live log.
func (s *State) Clone() *State {
	c := &State{
		Peers:     make(map[string]*peer.Peer, len(s.Peers)),
		Prefs:     s.Prefs.Clone(),
		System:    s.System.Clone(),
		EventLog:  append([]*Result(nil), s.EventLog...),
		SchemaVer: s.SchemaVer,
	}
	for vk, p := range s.Peers {
		c.Peers[vk] = p.Clone()
	}
	return c
}
