package state

import (
	"net/netip"
	"sort"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/prefs"
)

// Validate rebuilds all aggregate invariants from scratch and returns the
// same State on success, or a SchemaError/IpConflict/NameConflict/
// GatewayConflict/Bogon on failure (§4.E). vf monotonicity is enforced at
// the Peer layer (ApplyDescriptorUpdate) and is not re-derived here. No
// layer checks that a peer keeps at least one enabled IP: an enabled peer
// with no enabled address passes. This pass is strictly the whole-state
// checks that span multiple peers (§9 Design Notes).
func Validate(s *State) (*State, error) {
	ipOwners := map[string][]string{}   // enabled address -> [vk]
	nameOwners := map[string][]string{} // enabled display name -> [vk]
	var gateways []string

	vks := make([]string, 0, len(s.Peers))
	for vk := range s.Peers {
		vks = append(vks, vk)
	}
	sort.Strings(vks)

	for _, vk := range vks {
		p := s.Peers[vk]
		if !p.Enabled {
			continue
		}
		for _, addr := range p.EnabledIPs() {
			ipOwners[addr] = append(ipOwners[addr], vk)
		}
		if name := p.Name(); name != "" {
			nameOwners[name] = append(nameOwners[name], vk)
		}
		if p.UseAsGateway {
			gateways = append(gateways, vk)
		}
	}

	// Invariant 1: no two enabled peers share an enabled address.
	for addr, owners := range ipOwners {
		if len(owners) > 1 {
			return nil, errs.New(errs.IPConflict, "address %s claimed by peers %v", addr, owners)
		}
	}

	// Invariant 2: no two peers resolve to the same enabled display name.
	for name, owners := range nameOwners {
		if len(owners) > 1 {
			return nil, errs.New(errs.NameConflict, "name %q claimed by peers %v", name, owners)
		}
	}

	// Invariant 3: at most one gateway peer.
	if len(gateways) > 1 {
		return nil, errs.New(errs.GatewayConflict, "multiple gateway peers: %v", gateways)
	}

	// Invariant 4: every enabled IP of every enabled, unpinned peer is
	// within a current subnet, unless accept_nonlocal is set. A pinned
	// peer's address going stale (e.g. the host roamed to a new network)
	// is a no-op, not a rejection: NewSystemState already skips removing
	// such peers (§4.G), so this invariant must not re-reject them on
	// every subsequent NEW_SYSTEM_STATE commit. By invariant 1, each
	// address here has exactly one owner.
	nonlocalOK, err := s.Prefs.GetBool(prefs.AcceptNonlocal)
	if err != nil {
		return nil, err
	}
	if !nonlocalOK {
		for addr, owners := range ipOwners {
			parsed, err := netip.ParseAddr(addr)
			if err != nil {
				return nil, errs.New(errs.SchemaErr, "peer address %q does not parse", addr)
			}
			if _, ok := s.System.SubnetContaining(parsed); ok {
				continue
			}
			if s.Peers[owners[0]].Pinned {
				continue
			}
			return nil, errs.New(errs.Bogon, "address %s is outside all current subnets", addr)
		}
	}

	return s, nil
}
