package collab

import (
	"crypto/ed25519"
	"net"
	"net/netip"
	"testing"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/state"
)

func newCollabTestPeer(t *testing.T, hostname, addr string) *peer.Peer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	d := &descriptor.Descriptor{
		C:        make([]byte, 64),
		VF:       1,
		DT:       3600,
		Port:     51820,
		Hostname: hostname,
		V4A:      []netip.Addr{netip.MustParseAddr(addr)},
	}
	d.VK = pub
	d.Sign(priv)
	return peer.New(d, false)
}

func TestDesiredPeersSkipsDisabled(t *testing.T) {
	s := state.New()
	enabled := newCollabTestPeer(t, "a.local.", "10.0.0.1")
	disabled := newCollabTestPeer(t, "b.local.", "10.0.0.2")
	disabled.SetEnabled(false)
	s.Peers[enabled.ID()] = enabled
	s.Peers[disabled.ID()] = disabled

	desired := desiredPeers(s)
	if len(desired) != 1 {
		t.Fatalf("desiredPeers() = %d entries, want 1", len(desired))
	}
	if _, ok := desired[enabled.Descriptor.PK]; !ok {
		t.Fatal("expected the enabled peer's pk in desiredPeers")
	}
}

func TestAllowedIPNets(t *testing.T) {
	p := newCollabTestPeer(t, "a.local.", "10.0.0.1")
	nets := allowedIPNets(p)
	if len(nets) != 1 {
		t.Fatalf("allowedIPNets() = %v, want one entry", nets)
	}
	if ones, bits := nets[0].Mask.Size(); ones != 32 || bits != 32 {
		t.Fatalf("expected a /32 mask for an IPv4 address, got /%d (of %d)", ones, bits)
	}
}

func TestAllowedIPsEqual(t *testing.T) {
	a := []net.IPNet{{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(32, 32)}}
	b := []net.IPNet{{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(32, 32)}}
	c := []net.IPNet{{IP: net.ParseIP("10.0.0.2"), Mask: net.CIDRMask(32, 32)}}

	if !allowedIPsEqual(a, b) {
		t.Fatal("expected identical AllowedIPs sets to compare equal")
	}
	if allowedIPsEqual(a, c) {
		t.Fatal("expected different AllowedIPs sets to compare unequal")
	}
	if allowedIPsEqual(a, nil) {
		t.Fatal("expected different-length sets to compare unequal")
	}
}
