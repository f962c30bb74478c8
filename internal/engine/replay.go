package engine

import (
	"net/netip"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/sysstate"
)

// ReplayFromLog reconstructs a State by re-applying every WriteOp from a
// recorded event log, in order, against a fresh zero State (§11's
// replay_from_log operation). It never re-runs organize's rules or any
// trigger — vula/engine.py's Result docstring notes that replaying the
// writes from a log should reproduce identical state, since a Result's
// writes are themselves the full record of what an event changed; only
// TriggerResults (which depend on the live system outside the engine) are
// not reproduced.
//
// Failed events (Result.Err set) contribute no writes and are skipped, as
// the engine itself discards their tentative next_state.
func ReplayFromLog(log []*state.Result) (*state.State, error) {
	next := state.New()
	for _, res := range log {
		if res == nil || res.Err != nil {
			continue
		}
		for _, w := range res.Writes {
			if err := applyReplayedWrite(next, w); err != nil {
				return nil, errs.Wrap(errs.CorruptState, err, "replay event %s", res.Event)
			}
		}
	}
	if _, err := state.Validate(next); err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "validate replayed state")
	}
	return next, nil
}

func applyReplayedWrite(next *state.State, w state.WriteOp) error {
	root, rest, hasRest := cutDotReplay(w.Path)
	switch root {
	case "peers":
		if !hasRest {
			return applyReplayedPeerOp(next, w)
		}
		return applyReplayedPeerFieldOp(next, w.Kind, rest, w.Value)
	case "system_state":
		snapshot, ok := w.Value.(sysstate.SystemState)
		if !ok {
			return errs.New(errs.SchemaErr, "replayed system_state write has wrong value type")
		}
		next.System = snapshot
		return nil
	case "prefs":
		if !hasRest {
			return errs.New(errs.SchemaErr, "malformed replayed prefs path %q", w.Path)
		}
		return applyReplayedPrefOp(next, w.Kind, rest, w.Value)
	default:
		return nil
	}
}

func cutDotReplay(path string) (head, tail string, ok bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}
	return path, "", false
}

func applyReplayedPeerOp(next *state.State, w state.WriteOp) error {
	switch w.Kind {
	case state.Add:
		npw, ok := w.Value.(NewPeerWrite)
		if !ok {
			return errs.New(errs.SchemaErr, "replayed peer-add write has wrong value type")
		}
		desc, err := descriptor.Parse(npw.DescriptorText)
		if err != nil {
			return errs.Wrap(errs.SchemaErr, err, "replayed peer descriptor no longer parses")
		}
		p := peer.New(desc, npw.Pinned)
		next.Peers[p.ID()] = p
		return nil
	case state.Remove:
		vk, _ := w.Value.(string)
		delete(next.Peers, vk)
		return nil
	default:
		return errs.New(errs.SchemaErr, "unexpected write kind %q on peers", w.Kind)
	}
}

func applyReplayedPeerFieldOp(next *state.State, kind state.WriteKind, rest string, value any) error {
	vk, field, ok := cutDotReplay(rest)
	if !ok {
		return errs.New(errs.SchemaErr, "malformed replayed peer path %q", rest)
	}
	p, ok := next.Peers[vk]
	if !ok {
		return errs.New(errs.SchemaErr, "replayed write references unknown peer %q", vk)
	}
	name, sub, hasSub := cutDotReplay(field)
	if !hasSub {
		name = field
	}
	switch name {
	case "descriptor":
		text, _ := value.(string)
		desc, err := descriptor.Parse(text)
		if err != nil {
			return errs.Wrap(errs.SchemaErr, err, "replayed descriptor update no longer parses")
		}
		return p.ApplyDescriptorUpdate(desc)
	case "enabled":
		b, _ := value.(bool)
		p.SetEnabled(b)
		return nil
	case "use_as_gateway":
		b, _ := value.(bool)
		p.UseAsGateway = b
		return nil
	case "pinned":
		b, _ := value.(bool)
		p.Pinned = b
		return nil
	case "petname":
		s, _ := value.(string)
		p.Petname = s
		return nil
	case "nicknames":
		return applyReplayedNicknameOp(p, kind, sub, hasSub, value)
	case "addrs":
		return applyReplayedAddrOp(p, kind, sub, hasSub, value)
	default:
		return errs.New(errs.SchemaErr, "unknown replayed peer field %q", name)
	}
}

func applyReplayedNicknameOp(p *peer.Peer, kind state.WriteKind, sub string, hasSub bool, value any) error {
	if hasSub {
		b, _ := value.(bool)
		return p.SetNicknameEnabled(sub, b)
	}
	name, _ := value.(string)
	switch kind {
	case state.Add:
		p.AddNickname(name)
	case state.Remove:
		p.RemoveNickname(name)
	}
	return nil
}

func applyReplayedAddrOp(p *peer.Peer, kind state.WriteKind, sub string, hasSub bool, value any) error {
	if hasSub {
		b, _ := value.(bool)
		return p.SetIPEnabled(sub, b)
	}
	addr, _ := value.(string)
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return errs.Wrap(errs.SchemaErr, err, "replayed address %q no longer parses", addr)
	}
	switch kind {
	case state.Add:
		if parsed.Is4() {
			p.AddIPv4(addr)
		} else {
			p.AddIPv6(addr)
		}
	case state.Remove:
		if parsed.Is4() {
			p.RemoveIPv4(addr)
		} else {
			p.RemoveIPv6(addr)
		}
	}
	return nil
}

func applyReplayedPrefOp(next *state.State, kind state.WriteKind, field string, value any) error {
	if prefs.IsBoolKey(field) {
		b, _ := value.(bool)
		return next.Prefs.SetBool(prefs.Bool(field), b)
	}
	key := prefs.List(field)
	switch kind {
	case state.Set:
		values, _ := value.([]string)
		return next.Prefs.SetList(key, values)
	case state.Add:
		v, _ := value.(string)
		return next.Prefs.AddListValue(key, v)
	case state.Remove:
		v, _ := value.(string)
		return next.Prefs.RemoveListValue(key, v)
	}
	return nil
}
