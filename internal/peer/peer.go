// Package peer implements the in-memory peer model: a Peer keyed by its
// vk identity, its nickname/address maps, and the aggregate's indexed
// lookup views. All mutation happens under the organize engine's single
// lock, so unlike the teacher's PeerCache this package carries no mutex of
// its own — State owns one copy at a time and the engine's deep-clone /
// commit-or-discard cycle is the only synchronization primitive needed.
package peer

import (
	"bytes"
	"encoding/base64"
	"net/netip"
	"sort"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/errs"
)

// Peer is one known peer, keyed externally by its descriptor's vk.
type Peer struct {
	Descriptor *descriptor.Descriptor

	Petname   string
	Nicknames map[string]bool // hostname -> enabled, insertion order in NicknameOrder
	IPv4Addrs map[string]bool // address -> enabled, insertion order in IPv4Order
	IPv6Addrs map[string]bool

	NicknameOrder []string
	IPv4Order     []string
	IPv6Order     []string

	UseAsGateway bool
	Pinned       bool
	Enabled      bool
	Verified     bool
}

// New creates a Peer from a freshly accepted descriptor: enabled defaults
// to true, pinned/verified are caller-supplied policy decisions (organize's
// ACCEPT_NEW_PEER action sets them from prefs), and nicknames/addresses are
// seeded enabled=true per §4.B.
func New(desc *descriptor.Descriptor, pinned bool) *Peer {
	p := &Peer{
		Descriptor: desc,
		Nicknames:  map[string]bool{},
		IPv4Addrs:  map[string]bool{},
		IPv6Addrs:  map[string]bool{},
		Enabled:    true,
		Pinned:     pinned,
		Verified:   false,
	}
	p.addNickname(desc.Hostname)
	for _, a := range desc.V4A {
		p.addIPv4(a.String())
	}
	for _, a := range desc.V6A {
		p.addIPv6(a.String())
	}
	return p
}

// ApplyDescriptorUpdate replaces p's descriptor, validating §4.B's strict
// vf-monotonicity invariant and merging in any new hostname/addresses as
// newly enabled entries, retaining the old ones until the user disables
// them (§4.G's UPDATE_PEER_DESCRIPTOR semantics).
func (p *Peer) ApplyDescriptorUpdate(desc *descriptor.Descriptor) error {
	if desc.VF <= p.Descriptor.VF {
		return errs.New(errs.Replay, "vf %d is not newer than stored vf %d", desc.VF, p.Descriptor.VF)
	}
	if !bytes.Equal(desc.VK, p.Descriptor.VK) {
		return errs.New(errs.SchemaErr, "descriptor vk does not match peer identity")
	}

	p.Descriptor = desc
	p.addNickname(desc.Hostname)
	for _, a := range desc.V4A {
		p.addIPv4(a.String())
	}
	for _, a := range desc.V6A {
		p.addIPv6(a.String())
	}
	return nil
}

// ID is the base64 vk identity used as the peers-map key and state-file key.
func (p *Peer) ID() string {
	return base64.RawStdEncoding.EncodeToString(p.Descriptor.VK)
}

// Name is the derived display name: petname if set, else the first
// enabled nickname.
func (p *Peer) Name() string {
	if p.Petname != "" {
		return p.Petname
	}
	for _, n := range p.NicknameOrder {
		if p.Nicknames[n] {
			return n
		}
	}
	return ""
}

// EnabledNames returns every enabled nickname in insertion order
// (petname is not included; it is a separate field, not a nickname).
func (p *Peer) EnabledNames() []string {
	var out []string
	for _, n := range p.NicknameOrder {
		if p.Nicknames[n] {
			out = append(out, n)
		}
	}
	return out
}

// EnabledIPs returns every enabled IPv4 and IPv6 address, v4 first, each
// group in insertion order.
func (p *Peer) EnabledIPs() []string {
	var out []string
	for _, a := range p.IPv4Order {
		if p.IPv4Addrs[a] {
			out = append(out, a)
		}
	}
	for _, a := range p.IPv6Order {
		if p.IPv6Addrs[a] {
			out = append(out, a)
		}
	}
	return out
}

// SortLLFirst orders addresses link-local first, then IPv6 ahead of IPv4,
// stable within each group (vula/common.py's sort_LL_first). Unparseable
// entries sort last.
func SortLLFirst(addrs []string) []string {
	out := append([]string(nil), addrs...)
	rank := func(s string) (int, int) {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return 2, 1
		}
		ll := 0
		if !a.IsLinkLocalUnicast() {
			ll = 1
		}
		v4 := 0
		if a.Is4() {
			v4 = 1
		}
		return ll, v4
	}
	sort.SliceStable(out, func(i, j int) bool {
		llI, v4I := rank(out[i])
		llJ, v4J := rank(out[j])
		if llI != llJ {
			return llI < llJ
		}
		return v4I < v4J
	})
	return out
}

// EnabledIPsLLFirst returns EnabledIPs() reordered by SortLLFirst, the
// presentation order used by show_peer.
func (p *Peer) EnabledIPsLLFirst() []string {
	return SortLLFirst(p.EnabledIPs())
}

func (p *Peer) addNickname(name string) {
	if _, exists := p.Nicknames[name]; !exists {
		p.NicknameOrder = append(p.NicknameOrder, name)
	}
	p.Nicknames[name] = true
}

func (p *Peer) addIPv4(addr string) {
	if _, exists := p.IPv4Addrs[addr]; !exists {
		p.IPv4Order = append(p.IPv4Order, addr)
	}
	p.IPv4Addrs[addr] = true
}

func (p *Peer) addIPv6(addr string) {
	if _, exists := p.IPv6Addrs[addr]; !exists {
		p.IPv6Order = append(p.IPv6Order, addr)
	}
	p.IPv6Addrs[addr] = true
}

// SetNicknameEnabled enables or disables an existing nickname. Unknown
// names raise NotFound.
func (p *Peer) SetNicknameEnabled(name string, enabled bool) error {
	if _, ok := p.Nicknames[name]; !ok {
		return errs.New(errs.NotFound, "no such nickname %q", name)
	}
	p.Nicknames[name] = enabled
	return nil
}

// SetIPEnabled enables or disables an existing address (v4 or v6).
// Unknown addresses raise NotFound.
func (p *Peer) SetIPEnabled(addr string, enabled bool) error {
	if _, ok := p.IPv4Addrs[addr]; ok {
		p.IPv4Addrs[addr] = enabled
		return nil
	}
	if _, ok := p.IPv6Addrs[addr]; ok {
		p.IPv6Addrs[addr] = enabled
		return nil
	}
	return errs.New(errs.NotFound, "no such address %q", addr)
}

// AddNickname idempotently inserts an enabled nickname, used by USER_EDIT's
// nicknames ADD (§4.G). Re-adding an existing nickname just re-enables it.
func (p *Peer) AddNickname(name string) {
	p.addNickname(name)
}

// RemoveNickname deletes a nickname outright, unlike SetNicknameEnabled
// which only toggles it. Idempotent: removing an absent nickname is a
// no-op (§4.C's REMOVE semantics apply to peer-scoped lists too).
func (p *Peer) RemoveNickname(name string) {
	delete(p.Nicknames, name)
	p.NicknameOrder = removeFromOrder(p.NicknameOrder, name)
}

// AddIPv4 idempotently inserts an enabled IPv4 address.
func (p *Peer) AddIPv4(addr string) {
	p.addIPv4(addr)
}

// AddIPv6 idempotently inserts an enabled IPv6 address.
func (p *Peer) AddIPv6(addr string) {
	p.addIPv6(addr)
}

// RemoveIPv4 deletes an IPv4 address outright.
func (p *Peer) RemoveIPv4(addr string) {
	delete(p.IPv4Addrs, addr)
	p.IPv4Order = removeFromOrder(p.IPv4Order, addr)
}

// RemoveIPv6 deletes an IPv6 address outright.
func (p *Peer) RemoveIPv6(addr string) {
	delete(p.IPv6Addrs, addr)
	p.IPv6Order = removeFromOrder(p.IPv6Order, addr)
}

func removeFromOrder(order []string, name string) []string {
	for i, n := range order {
		if n == name {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// SetEnabled flips the peer's global enabled flag.
func (p *Peer) SetEnabled(enabled bool) {
	p.Enabled = enabled
}

// Clone deep-copies a Peer, used by the engine when it deep-clones State
// into a tentative next_state for each event (§4.F step 2).
func (p *Peer) Clone() *Peer {
	c := *p
	descCopy := *p.Descriptor
	c.Descriptor = &descCopy

	c.Nicknames = cloneBoolMap(p.Nicknames)
	c.IPv4Addrs = cloneBoolMap(p.IPv4Addrs)
	c.IPv6Addrs = cloneBoolMap(p.IPv6Addrs)
	c.NicknameOrder = append([]string(nil), p.NicknameOrder...)
	c.IPv4Order = append([]string(nil), p.IPv4Order...)
	c.IPv6Order = append([]string(nil), p.IPv6Order...)
	return &c
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys is a small helper shared by the views, kept here rather than
// duplicated per view constructor.
func sortedKeys(m map[string]*Peer) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
