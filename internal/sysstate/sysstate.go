// Package sysstate holds the system-state snapshot: the current local
// subnets, interfaces, gateways and our own WireGuard public key (§3/§4.D).
// It is a pure value object produced by the out-of-scope netlink/address
// monitor collaborator and handed to the engine inside a NEW_SYSTEM_STATE
// event's arguments (§4.F: external data must be captured in event args).
package sysstate

import (
	"net/netip"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// SystemState is an immutable snapshot; equality is by field.
type SystemState struct {
	CurrentSubnets    map[netip.Prefix][]netip.Addr
	CurrentInterfaces map[string][]netip.Addr
	OurWGPK           wgtypes.Key
	Gateways          []netip.Addr
	HasV6             bool
}

// Empty returns the zero snapshot used before the first netlink read.
func Empty() SystemState {
	return SystemState{
		CurrentSubnets:    map[netip.Prefix][]netip.Addr{},
		CurrentInterfaces: map[string][]netip.Addr{},
	}
}

// IPs flattens every address across every current subnet, in map-iteration
// order (callers needing a stable order should sort the result themselves).
func (s SystemState) IPs() []netip.Addr {
	var out []netip.Addr
	for _, addrs := range s.CurrentSubnets {
		out = append(out, addrs...)
	}
	return out
}

// SubnetContaining returns the CIDR in CurrentSubnets that contains addr,
// if any.
func (s SystemState) SubnetContaining(addr netip.Addr) (netip.Prefix, bool) {
	for subnet := range s.CurrentSubnets {
		if subnet.Contains(addr) {
			return subnet, true
		}
	}
	return netip.Prefix{}, false
}

// IsGateway reports whether addr is one of the system's current default
// gateways, used by organize's gateway-election policy (§4.G).
func (s SystemState) IsGateway(addr netip.Addr) bool {
	for _, gw := range s.Gateways {
		if gw == addr {
			return true
		}
	}
	return false
}

// Clone deep-copies a SystemState for the engine's tentative next_state.
func (s SystemState) Clone() SystemState {
	c := SystemState{
		CurrentSubnets:    make(map[netip.Prefix][]netip.Addr, len(s.CurrentSubnets)),
		CurrentInterfaces: make(map[string][]netip.Addr, len(s.CurrentInterfaces)),
		OurWGPK:           s.OurWGPK,
		Gateways:          append([]netip.Addr(nil), s.Gateways...),
		HasV6:             s.HasV6,
	}
	for k, v := range s.CurrentSubnets {
		c.CurrentSubnets[k] = append([]netip.Addr(nil), v...)
	}
	for k, v := range s.CurrentInterfaces {
		c.CurrentInterfaces[k] = append([]netip.Addr(nil), v...)
	}
	return c
}
