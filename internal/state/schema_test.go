package state

import (
	"crypto/ed25519"
	"net/netip"
	"testing"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
)

func testPeer(t *testing.T, hostname, addr string) *peer.Peer {
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

func TestValidateAcceptsGoodState(t *testing.T) {
	s := New()
	p := testPeer(t, "alice.local.", "10.0.0.1")
	s.Peers[p.ID()] = p
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {netip.MustParseAddr("10.0.0.9")},
	}

	if _, err := Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsIPConflict(t *testing.T) {
	s := New()
	p1 := testPeer(t, "alice.local.", "10.0.0.1")
	p2 := testPeer(t, "bob.local.", "10.0.0.1")
	s.Peers[p1.ID()] = p1
	s.Peers[p2.ID()] = p2
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {},
	}

	_, err := Validate(s)
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.IPConflict {
		t.Fatalf("expected IpConflict, got %v", err)
	}
}

func TestValidateRejectsGatewayConflict(t *testing.T) {
	s := New()
	p1 := testPeer(t, "alice.local.", "10.0.0.1")
	p2 := testPeer(t, "bob.local.", "10.0.0.2")
	p1.UseAsGateway = true
	p2.UseAsGateway = true
	s.Peers[p1.ID()] = p1
	s.Peers[p2.ID()] = p2
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {},
	}

	_, err := Validate(s)
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.GatewayConflict {
		t.Fatalf("expected GatewayConflict, got %v", err)
	}
}

func TestValidateRejectsBogonUnlessAccepted(t *testing.T) {
	s := New()
	p := testPeer(t, "alice.local.", "10.0.2.1")
	s.Peers[p.ID()] = p
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {},
	}

	_, err := Validate(s)
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.Bogon {
		t.Fatalf("expected Bogon, got %v", err)
	}

	_ = s.Prefs.SetBool("accept_nonlocal", true)
	if _, err := Validate(s); err != nil {
		t.Fatalf("expected accept_nonlocal=true to allow bogon address, got %v", err)
	}
}

func TestValidateExemptsPinnedPeerFromBogon(t *testing.T) {
	s := New()
	p := testPeer(t, "alice.local.", "10.0.2.1")
	p.Pinned = true
	s.Peers[p.ID()] = p
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {},
	}

	if _, err := Validate(s); err != nil {
		t.Fatalf("expected a pinned peer outside current subnets to be a no-op, got %v", err)
	}
}
