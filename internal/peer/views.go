package peer

import (
	"github.com/vula-mesh/vula/internal/errs"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Views is a set of read-only indexed lookups recomputed from a peer map
// after every commit (§9 Design Notes: never cross-reference Peer objects,
// hold only vk keys, so a stale Views never outlives the State it was
// built from).
type Views struct {
	byID       map[string]*Peer
	withIP     map[string]string // address -> vk
	withHost   map[string]string // hostname -> vk
	byPK       map[wgtypes.Key]string
	gatewayVK  string
	hasGateway bool
}

// BuildViews rebuilds every index in one pass over peers, keyed by vk (ID).
func BuildViews(peers map[string]*Peer) *Views {
	v := &Views{
		byID:     peers,
		withIP:   map[string]string{},
		withHost: map[string]string{},
		byPK:     map[wgtypes.Key]string{},
	}
	for vk, p := range peers {
		for ip, enabled := range p.IPv4Addrs {
			if enabled {
				v.withIP[ip] = vk
			}
		}
		for ip, enabled := range p.IPv6Addrs {
			if enabled {
				v.withIP[ip] = vk
			}
		}
		for name, enabled := range p.Nicknames {
			if enabled {
				v.withHost[name] = vk
			}
		}
		if p.Petname != "" {
			v.withHost[p.Petname] = vk
		}
		v.byPK[p.Descriptor.PK] = vk
		if p.UseAsGateway {
			v.gatewayVK = vk
			v.hasGateway = true
		}
	}
	return v
}

// WithIP returns the peer whose enabled address set contains addr.
func (v *Views) WithIP(addr string) (*Peer, error) {
	vk, ok := v.withIP[addr]
	if !ok {
		return nil, errs.New(errs.NotFound, "no enabled peer with address %q", addr)
	}
	return v.byID[vk], nil
}

// WithHostname returns the peer whose enabled nickname (or petname) set
// contains name.
func (v *Views) WithHostname(name string) (*Peer, error) {
	vk, ok := v.withHost[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "no enabled peer with hostname %q", name)
	}
	return v.byID[vk], nil
}

// ByPK returns the peer whose descriptor carries the given WireGuard
// public key.
func (v *Views) ByPK(pk wgtypes.Key) (*Peer, error) {
	vk, ok := v.byPK[pk]
	if !ok {
		return nil, errs.New(errs.NotFound, "no peer with pk %s", pk.String())
	}
	return v.byID[vk], nil
}

// WithUseAsGateway returns the single gateway peer, if one has been
// elected. Unlike the other views, absence is not an error (§4.B:
// with_use_as_gateway() → Peer?).
func (v *Views) WithUseAsGateway() (*Peer, bool) {
	if !v.hasGateway {
		return nil, false
	}
	return v.byID[v.gatewayVK], true
}
