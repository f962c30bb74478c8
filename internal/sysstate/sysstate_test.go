package sysstate

import (
	"net/netip"
	"testing"
)

func TestSubnetContaining(t *testing.T) {
	subnet := netip.MustParsePrefix("10.0.0.0/24")
	s := SystemState{
		CurrentSubnets: map[netip.Prefix][]netip.Addr{
			subnet: {netip.MustParseAddr("10.0.0.9")},
		},
	}

	got, ok := s.SubnetContaining(netip.MustParseAddr("10.0.0.9"))
	if !ok || got != subnet {
		t.Fatalf("SubnetContaining = %v, %v", got, ok)
	}

	_, ok = s.SubnetContaining(netip.MustParseAddr("10.0.1.9"))
	if ok {
		t.Fatal("expected no subnet for out-of-range address")
	}
}

func TestIsGateway(t *testing.T) {
	s := SystemState{Gateways: []netip.Addr{netip.MustParseAddr("10.0.0.1")}}
	if !s.IsGateway(netip.MustParseAddr("10.0.0.1")) {
		t.Fatal("expected 10.0.0.1 to be a gateway")
	}
	if s.IsGateway(netip.MustParseAddr("10.0.0.2")) {
		t.Fatal("expected 10.0.0.2 not to be a gateway")
	}
}

func TestCloneIndependent(t *testing.T) {
	subnet := netip.MustParsePrefix("10.0.0.0/24")
	s := SystemState{CurrentSubnets: map[netip.Prefix][]netip.Addr{subnet: {netip.MustParseAddr("10.0.0.9")}}}
	c := s.Clone()
	c.CurrentSubnets[subnet] = append(c.CurrentSubnets[subnet], netip.MustParseAddr("10.0.0.10"))

	if len(s.CurrentSubnets[subnet]) != 1 {
		t.Fatalf("clone mutation leaked into original: %v", s.CurrentSubnets[subnet])
	}
}
