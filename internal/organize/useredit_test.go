package organize

import (
	"crypto/ed25519"
	"net/netip"
	"testing"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

func testDescriptor(t *testing.T, hostname string, addr string) *descriptor.Descriptor {
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
	return d
}

func newTestOrganizer(t *testing.T) (*Organizer, *peer.Peer) {
	t.Helper()
	s := state.New()
	s.System.CurrentSubnets = map[netip.Prefix][]netip.Addr{
		netip.MustParsePrefix("10.0.0.0/24"): {netip.MustParseAddr("10.0.0.9")},
	}
	p := peer.New(testDescriptor(t, "alice.local.", "10.0.0.1"), false)
	s.Peers[p.ID()] = p
	eng := engine.New(s, nil, nil)
	return New(eng), p
}

func TestUserEditPrefBool(t *testing.T) {
	o, _ := newTestOrganizer(t)
	res := o.UserEdit(state.Set, "prefs.pin_new_peers", true)
	if res.Err != nil {
		t.Fatalf("UserEdit: %v", res.Err)
	}
	got, _ := o.eng.State().Prefs.GetBool(prefs.PinNewPeers)
	if !got {
		t.Fatal("expected pin_new_peers=true committed")
	}
}

func TestUserEditPrefListAddRemoveIdempotent(t *testing.T) {
	o, _ := newTestOrganizer(t)

	res := o.UserEdit(state.Add, "prefs.local_domains", "local.")
	if res.Err != nil {
		t.Fatalf("ADD: %v", res.Err)
	}
	res = o.UserEdit(state.Add, "prefs.local_domains", "local.")
	if res.Err != nil {
		t.Fatalf("second ADD: %v", res.Err)
	}
	got, _ := o.eng.State().Prefs.GetList(prefs.LocalDomains)
	if len(got) != 1 || got[0] != "local." {
		t.Fatalf("GetList = %v, want one entry", got)
	}

	res = o.UserEdit(state.Remove, "prefs.local_domains", "nonexistent.")
	if res.Err != nil {
		t.Fatalf("REMOVE of absent value should still succeed: %v", res.Err)
	}
	if len(res.Writes) != 1 {
		t.Fatal("expected idempotent REMOVE to still produce a WriteOp")
	}
}

func TestUserEditUnknownPrefRejected(t *testing.T) {
	o, _ := newTestOrganizer(t)
	res := o.UserEdit(state.Set, "prefs.not_a_real_pref", true)
	if res.Err == nil {
		t.Fatal("expected SchemaError for unknown preference")
	}
}

func TestUserEditPeerPinnedAndPetname(t *testing.T) {
	o, p := newTestOrganizer(t)

	res := o.UserEdit(state.Set, "peers."+p.ID()+".pinned", true)
	if res.Err != nil {
		t.Fatalf("pinned: %v", res.Err)
	}
	if !o.eng.State().Peers[p.ID()].Pinned {
		t.Fatal("expected peer to be pinned")
	}

	res = o.UserEdit(state.Set, "peers."+p.ID()+".petname", "Alice")
	if res.Err != nil {
		t.Fatalf("petname: %v", res.Err)
	}
	if o.eng.State().Peers[p.ID()].Name() != "Alice" {
		t.Fatalf("Name() = %q, want Alice", o.eng.State().Peers[p.ID()].Name())
	}
}

func TestUserEditUseAsGatewayRejectedWithoutPolicy(t *testing.T) {
	o, p := newTestOrganizer(t)
	res := o.UserEdit(state.Set, "peers."+p.ID()+".use_as_gateway", true)
	if res.Err == nil {
		t.Fatal("expected GatewayConflict: peer is unpinned and accept_default_route is unset")
	}
	if e, ok := res.Err.(*errs.Error); !ok || e.Kind != errs.GatewayConflict {
		t.Fatalf("expected GatewayConflict, got %v", res.Err)
	}
}

func TestUserEditNicknameAddAppliesHostnamePolicy(t *testing.T) {
	o, p := newTestOrganizer(t)
	o.UserEdit(state.Add, "prefs.local_domains", "home.arpa.")

	res := o.UserEdit(state.Add, "peers."+p.ID()+".nicknames", "bob.evil.")
	if res.Err != nil {
		t.Fatalf("nickname ADD: %v", res.Err)
	}
	updated := o.eng.State().Peers[p.ID()]
	for _, n := range updated.EnabledNames() {
		if n == "bob.evil." {
			t.Fatal("expected nickname outside local_domains to be disabled by policy, not enabled")
		}
	}
}

func TestUserEditNicknameRemove(t *testing.T) {
	o, p := newTestOrganizer(t)
	res := o.UserEdit(state.Remove, "peers."+p.ID()+".nicknames", "alice.local.")
	if res.Err != nil {
		t.Fatalf("nickname REMOVE: %v", res.Err)
	}
	if len(o.eng.State().Peers[p.ID()].EnabledNames()) != 0 {
		t.Fatal("expected nickname to be deleted outright")
	}
}

func TestUserEditAddressAddAndRemove(t *testing.T) {
	o, p := newTestOrganizer(t)

	res := o.UserEdit(state.Add, "peers."+p.ID()+".ipv4addrs", "10.0.0.2")
	if res.Err != nil {
		t.Fatalf("address ADD: %v", res.Err)
	}
	ips := o.eng.State().Peers[p.ID()].EnabledIPs()
	if len(ips) != 2 {
		t.Fatalf("EnabledIPs() = %v, want 2 entries", ips)
	}

	res = o.UserEdit(state.Remove, "peers."+p.ID()+".ipv4addrs", "10.0.0.1")
	if res.Err != nil {
		t.Fatalf("address REMOVE: %v", res.Err)
	}
	ips = o.eng.State().Peers[p.ID()].EnabledIPs()
	if len(ips) != 1 || ips[0] != "10.0.0.2" {
		t.Fatalf("EnabledIPs() after remove = %v", ips)
	}
}

func TestUserEditUnknownPeerIsNotFound(t *testing.T) {
	o, _ := newTestOrganizer(t)
	res := o.UserEdit(state.Set, "peers.nonexistent.enabled", true)
	if res.Err == nil {
		t.Fatal("expected NotFound for unknown peer")
	}
	if e, ok := res.Err.(*errs.Error); !ok || e.Kind != errs.NotFound {
		t.Fatalf("expected NotFound, got %v", res.Err)
	}
}
