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

// This file is the Go equivalent of engine.py's _SET/_ADD/_REMOVE: the
// only places state is allowed to change during an event. Go's static
// typing makes a single reflective path-walker (as the Python source
// does) the wrong fit, so each helper pairs one typed mutation with one
// state.Result.AddWrite call recording (kind, path, value) for the replay
// log and RPC Result text, keeping the same write-op trail the spec
// requires without reflection over arbitrary field paths.

// NewPeerWrite is the replayable payload recorded for ACCEPT_NEW_PEER: the
// full signed descriptor text plus the pin decision, enough on its own to
// reconstruct the peer without re-running INCOMING_DESCRIPTOR's policy.
type NewPeerWrite struct {
	DescriptorText string
	Pinned         bool
}

// AcceptPeer creates a Peer from desc and inserts it into next.Peers,
// keyed by its vk (ACCEPT_NEW_PEER's underlying write, §4.G).
func AcceptPeer(next *state.State, res *state.Result, desc *descriptor.Descriptor, pinned bool) *peer.Peer {
	p := peer.New(desc, pinned)
	next.Peers[p.ID()] = p
	text, _ := desc.Encode()
	res.AddWrite(state.Add, "peers", NewPeerWrite{DescriptorText: text, Pinned: pinned})
	return p
}

// UpdatePeerDescriptor replaces an existing peer's descriptor in place.
func UpdatePeerDescriptor(next *state.State, res *state.Result, p *peer.Peer, desc *descriptor.Descriptor) error {
	if err := p.ApplyDescriptorUpdate(desc); err != nil {
		return err
	}
	text, _ := desc.Encode()
	res.AddWrite(state.Set, "peers."+p.ID()+".descriptor", text)
	return nil
}

// RemovePeer drops a peer from next.Peers.
func RemovePeer(next *state.State, res *state.Result, vk string) {
	delete(next.Peers, vk)
	res.AddWrite(state.Remove, "peers", vk)
}

// SetPeerEnabled flips a peer's global enabled flag.
func SetPeerEnabled(next *state.State, res *state.Result, p *peer.Peer, enabled bool) {
	p.SetEnabled(enabled)
	res.AddWrite(state.Set, "peers."+p.ID()+".enabled", enabled)
}

// SetPeerUseAsGateway flips a peer's use_as_gateway flag.
func SetPeerUseAsGateway(next *state.State, res *state.Result, p *peer.Peer, use bool) {
	p.UseAsGateway = use
	res.AddWrite(state.Set, "peers."+p.ID()+".use_as_gateway", use)
}

// SetPeerPinned flips a peer's pinned flag.
func SetPeerPinned(next *state.State, res *state.Result, p *peer.Peer, pinned bool) {
	p.Pinned = pinned
	res.AddWrite(state.Set, "peers."+p.ID()+".pinned", pinned)
}

// SetNicknameEnabled enables/disables one of a peer's existing nicknames.
func SetNicknameEnabled(next *state.State, res *state.Result, p *peer.Peer, name string, enabled bool) error {
	if err := p.SetNicknameEnabled(name, enabled); err != nil {
		return err
	}
	res.AddWrite(state.Set, "peers."+p.ID()+".nicknames."+name, enabled)
	return nil
}

// SetIPEnabled enables/disables one of a peer's existing addresses.
func SetIPEnabled(next *state.State, res *state.Result, p *peer.Peer, addr string, enabled bool) error {
	if err := p.SetIPEnabled(addr, enabled); err != nil {
		return err
	}
	res.AddWrite(state.Set, "peers."+p.ID()+".addrs."+addr, enabled)
	return nil
}

// SetPeerPetname sets a peer's display petname (USER_EDIT peers.<vk>.petname).
func SetPeerPetname(next *state.State, res *state.Result, p *peer.Peer, name string) {
	p.Petname = name
	res.AddWrite(state.Set, "peers."+p.ID()+".petname", name)
}

// AddPeerNickname idempotently inserts a new enabled nickname for a peer
// (USER_EDIT peers.<vk>.nicknames ADD, §4.G).
func AddPeerNickname(next *state.State, res *state.Result, p *peer.Peer, name string) {
	p.AddNickname(name)
	res.AddWrite(state.Add, "peers."+p.ID()+".nicknames", name)
}

// RemovePeerNickname deletes a nickname outright, idempotently.
func RemovePeerNickname(next *state.State, res *state.Result, p *peer.Peer, name string) {
	p.RemoveNickname(name)
	res.AddWrite(state.Remove, "peers."+p.ID()+".nicknames", name)
}

// AddPeerIP idempotently inserts a new enabled address for a peer, routing
// to the v4 or v6 map by parsing addr (USER_EDIT ipv4addrs/ipv6addrs ADD).
func AddPeerIP(next *state.State, res *state.Result, p *peer.Peer, addr string) error {
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return errs.Wrap(errs.SchemaErr, err, "invalid address %q", addr)
	}
	if parsed.Is4() {
		p.AddIPv4(addr)
	} else {
		p.AddIPv6(addr)
	}
	res.AddWrite(state.Add, "peers."+p.ID()+".addrs", addr)
	return nil
}

// RemovePeerIP deletes an address outright from whichever family map holds
// it, idempotently.
func RemovePeerIP(next *state.State, res *state.Result, p *peer.Peer, addr string) error {
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		return errs.Wrap(errs.SchemaErr, err, "invalid address %q", addr)
	}
	if parsed.Is4() {
		p.RemoveIPv4(addr)
	} else {
		p.RemoveIPv6(addr)
	}
	res.AddWrite(state.Remove, "peers."+p.ID()+".addrs", addr)
	return nil
}

// AdjustSystemState overwrites next.System with a fresh snapshot
// (ADJUST_TO_NEW_SYSTEM_STATE's write, §4.G).
func AdjustSystemState(next *state.State, res *state.Result, snapshot sysstate.SystemState) {
	next.System = snapshot
	res.AddWrite(state.Set, "system_state", snapshot)
}

// SetPrefBool writes a boolean preference.
func SetPrefBool(next *state.State, res *state.Result, key prefs.Bool, value bool) error {
	if err := next.Prefs.SetBool(key, value); err != nil {
		return err
	}
	res.AddWrite(state.Set, "prefs."+string(key), value)
	return nil
}

// SetPrefList replaces a list preference outright.
func SetPrefList(next *state.State, res *state.Result, key prefs.List, values []string) error {
	if err := next.Prefs.SetList(key, values); err != nil {
		return err
	}
	res.AddWrite(state.Set, "prefs."+string(key), values)
	return nil
}

// AddPrefListValue idempotently appends one value to a list preference.
func AddPrefListValue(next *state.State, res *state.Result, key prefs.List, value string) error {
	if err := next.Prefs.AddListValue(key, value); err != nil {
		return err
	}
	res.AddWrite(state.Add, "prefs."+string(key), value)
	return nil
}

// RemovePrefListValue idempotently removes one value from a list
// preference; always records a WriteOp, even when value was absent
// (§4.C: "REMOVE is idempotent (absent value is a no-op that still
// produces a WriteOp)").
func RemovePrefListValue(next *state.State, res *state.Result, key prefs.List, value string) error {
	if err := next.Prefs.RemoveListValue(key, value); err != nil {
		return err
	}
	res.AddWrite(state.Remove, "prefs."+string(key), value)
	return nil
}
