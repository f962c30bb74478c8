package organize

import (
	"strings"

	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

// applyUserEdit dispatches USER_EDIT(op, path, value) to the engine's
// typed write-op helpers (§4.G). Recorded actions are named after the
// write kind itself (SET/ADD/REMOVE), since the spec's closed Actions
// list has nothing USER_EDIT-specific to reuse. Supported path shapes:
//
//	prefs.<bool_key>                          SET bool
//	prefs.<list_key>                          SET []string, ADD/REMOVE string
//	peers.<vk>.enabled                        SET bool
//	peers.<vk>.pinned                         SET bool
//	peers.<vk>.petname                        SET string
//	peers.<vk>.use_as_gateway                 SET bool (gated by gateway policy)
//	peers.<vk>.nicknames                      ADD/REMOVE string
//	peers.<vk>.nicknames.<name>               SET bool
//	peers.<vk>.ipv4addrs / ipv6addrs          ADD/REMOVE string
//	peers.<vk>.ipv4addrs.<a> / ipv6addrs.<a>  SET bool
func applyUserEdit(next *state.State, res *state.Result, op state.WriteKind, path string, value any) error {
	root, rest, ok := cutDot(path)
	if !ok {
		return errs.New(errs.SchemaErr, "malformed edit path %q", path)
	}

	var err error
	switch root {
	case "prefs":
		err = applyPrefEdit(next, res, op, rest, value)
	case "peers":
		vk, field, ok := cutDot(rest)
		if !ok {
			return errs.New(errs.SchemaErr, "malformed peer edit path %q", path)
		}
		err = applyPeerEdit(next, res, op, vk, field, value)
	default:
		return errs.New(errs.SchemaErr, "unknown edit path root %q", root)
	}
	if err != nil {
		return err
	}
	res.AddAction(string(op), map[string]any{"path": path})
	return nil
}

// cutDot splits path on its first '.', unlike strings.Split this keeps any
// further dots (an IPv4 address or a dotted hostname) intact in the tail.
func cutDot(path string) (head, tail string, ok bool) {
	i := strings.IndexByte(path, '.')
	if i < 0 {
		return path, "", false
	}
	return path[:i], path[i+1:], true
}

func applyPrefEdit(next *state.State, res *state.Result, op state.WriteKind, field string, value any) error {
	if prefs.IsBoolKey(field) {
		b, ok := value.(bool)
		if !ok || op != state.Set {
			return errs.New(errs.SchemaErr, "prefs.%s requires SET bool", field)
		}
		return engine.SetPrefBool(next, res, prefs.Bool(field), b)
	}

	if !prefs.IsListKey(field) {
		return errs.New(errs.SchemaErr, "unknown preference %q", field)
	}
	key := prefs.List(field)

	switch op {
	case state.Set:
		values, ok := value.([]string)
		if !ok {
			return errs.New(errs.SchemaErr, "prefs.%s SET requires a []string value", field)
		}
		return engine.SetPrefList(next, res, key, values)
	case state.Add:
		v, ok := value.(string)
		if !ok {
			return errs.New(errs.SchemaErr, "prefs.%s ADD requires a string value", field)
		}
		return engine.AddPrefListValue(next, res, key, v)
	case state.Remove:
		v, ok := value.(string)
		if !ok {
			return errs.New(errs.SchemaErr, "prefs.%s REMOVE requires a string value", field)
		}
		return engine.RemovePrefListValue(next, res, key, v)
	default:
		return errs.New(errs.SchemaErr, "unknown write op %q", op)
	}
}

func applyPeerEdit(next *state.State, res *state.Result, op state.WriteKind, vk string, field string, value any) error {
	p, ok := next.Peers[vk]
	if !ok {
		return errs.New(errs.NotFound, "no such peer %q", vk)
	}

	name, sub, hasSub := cutDot(field)
	if !hasSub {
		name = field
	}

	switch name {
	case "enabled":
		b, ok := value.(bool)
		if !ok || op != state.Set {
			return errs.New(errs.SchemaErr, "peers.%s.enabled requires SET bool", vk)
		}
		engine.SetPeerEnabled(next, res, p, b)
		return nil

	case "pinned":
		b, ok := value.(bool)
		if !ok || op != state.Set {
			return errs.New(errs.SchemaErr, "peers.%s.pinned requires SET bool", vk)
		}
		engine.SetPeerPinned(next, res, p, b)
		return nil

	case "petname":
		s, ok := value.(string)
		if !ok || op != state.Set {
			return errs.New(errs.SchemaErr, "peers.%s.petname requires SET string", vk)
		}
		engine.SetPeerPetname(next, res, p, s)
		return nil

	case "use_as_gateway":
		b, ok := value.(bool)
		if !ok || op != state.Set {
			return errs.New(errs.SchemaErr, "peers.%s.use_as_gateway requires SET bool", vk)
		}
		if b {
			allowed, err := canBeGateway(next, p)
			if err != nil {
				return err
			}
			if !allowed {
				return errs.New(errs.GatewayConflict, "peer %s does not satisfy gateway election policy", vk)
			}
		}
		engine.SetPeerUseAsGateway(next, res, p, b)
		return nil

	case "nicknames":
		return applyNicknameEdit(next, res, op, p, sub, hasSub, value)

	case "ipv4addrs", "ipv6addrs":
		return applyAddrEdit(next, res, op, p, sub, hasSub, value)

	default:
		return errs.New(errs.SchemaErr, "unknown peer field %q", name)
	}
}

// applyNicknameEdit handles peers.<vk>.nicknames[.<name>]: ADD/REMOVE
// operate on the bare "nicknames" path (value carries the name), SET
// operates on "nicknames.<name>" and toggles an existing entry. sub keeps
// any dots a hostname contains intact, since it comes from cutDot rather
// than strings.Split.
func applyNicknameEdit(next *state.State, res *state.Result, op state.WriteKind, p *peer.Peer, sub string, hasSub bool, value any) error {
	if !hasSub {
		name, ok := value.(string)
		if !ok {
			return errs.New(errs.SchemaErr, "peers.%s.nicknames requires a string value", p.ID())
		}
		switch op {
		case state.Add:
			engine.AddPeerNickname(next, res, p, name)
			return applyHostnamePolicy(next, res, p, name)
		case state.Remove:
			engine.RemovePeerNickname(next, res, p, name)
			return nil
		default:
			return errs.New(errs.SchemaErr, "peers.%s.nicknames supports ADD/REMOVE only", p.ID())
		}
	}

	enabled, ok := value.(bool)
	if !ok || op != state.Set {
		return errs.New(errs.SchemaErr, "peers.%s.nicknames.%s requires SET bool", p.ID(), sub)
	}
	return engine.SetNicknameEnabled(next, res, p, sub, enabled)
}

// applyAddrEdit mirrors applyNicknameEdit for ipv4addrs/ipv6addrs.
func applyAddrEdit(next *state.State, res *state.Result, op state.WriteKind, p *peer.Peer, sub string, hasSub bool, value any) error {
	if !hasSub {
		addr, ok := value.(string)
		if !ok {
			return errs.New(errs.SchemaErr, "peer address edit requires a string value")
		}
		switch op {
		case state.Add:
			return engine.AddPeerIP(next, res, p, addr)
		case state.Remove:
			return engine.RemovePeerIP(next, res, p, addr)
		default:
			return errs.New(errs.SchemaErr, "peer address list supports ADD/REMOVE only")
		}
	}

	enabled, ok := value.(bool)
	if !ok || op != state.Set {
		return errs.New(errs.SchemaErr, "peer address %q requires SET bool", sub)
	}
	return engine.SetIPEnabled(next, res, p, sub, enabled)
}
