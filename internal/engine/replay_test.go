package engine

import (
	"crypto/ed25519"
	"net/netip"
	"testing"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

func newReplayDescriptor(t *testing.T, hostname string, vf int64, addr string) *descriptor.Descriptor {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	d := &descriptor.Descriptor{
		C:        make([]byte, 64),
		VK:       pub,
		VF:       vf,
		DT:       3600,
		Port:     51820,
		Hostname: hostname,
		V4A:      []netip.Addr{netip.MustParseAddr(addr)},
	}
	d.Sign(priv)
	return d
}

func TestReplayFromLogReconstructsState(t *testing.T) {
	e := New(state.New(), nil, nil)
	var log []*state.Result
	e.SetRecorder(func(res *state.Result) { log = append(log, res) })

	desc := newReplayDescriptor(t, "alice.local.", 1000, "10.0.0.5")
	vk := desc.VKBase64()

	res := e.Apply("INCOMING_DESCRIPTOR", func(next *state.State, res *state.Result) error {
		p := AcceptPeer(next, res, desc, true)
		res.AddAction("ACCEPT_NEW_PEER", map[string]any{"vk": p.ID()})
		return nil
	})
	if res.Err != nil {
		t.Fatalf("accept peer event: %v", res.Err)
	}

	res = e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		p := next.Peers[vk]
		SetPeerPetname(next, res, p, "Alice")
		AddPeerNickname(next, res, p, "alice-laptop")
		return nil
	})
	if res.Err != nil {
		t.Fatalf("petname/nickname event: %v", res.Err)
	}

	res = e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		return SetPrefBool(next, res, prefs.PinNewPeers, true)
	})
	if res.Err != nil {
		t.Fatalf("pref event: %v", res.Err)
	}

	replayed, err := ReplayFromLog(log)
	if err != nil {
		t.Fatalf("ReplayFromLog: %v", err)
	}

	live := e.State()
	if len(replayed.Peers) != len(live.Peers) {
		t.Fatalf("expected %d peers, got %d", len(live.Peers), len(replayed.Peers))
	}
	p, ok := replayed.Peers[vk]
	if !ok {
		t.Fatalf("expected peer %s in replayed state", vk)
	}
	if p.Petname != "Alice" {
		t.Fatalf("expected petname Alice, got %q", p.Petname)
	}
	if !p.Pinned {
		t.Fatal("expected replayed peer to still be pinned")
	}
	found := false
	for _, n := range p.EnabledNames() {
		if n == "alice-laptop" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alice-laptop nickname, got %v", p.EnabledNames())
	}

	pinNew, _ := replayed.Prefs.GetBool(prefs.PinNewPeers)
	if !pinNew {
		t.Fatal("expected pin_new_peers=true to survive replay")
	}
}

func TestReplayFromLogSkipsFailedEvents(t *testing.T) {
	e := New(state.New(), nil, nil)
	var log []*state.Result
	e.SetRecorder(func(res *state.Result) { log = append(log, res) })

	e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		return next.Prefs.SetBool("not_a_real_pref", true)
	})

	replayed, err := ReplayFromLog(log)
	if err != nil {
		t.Fatalf("ReplayFromLog: %v", err)
	}
	if len(replayed.Peers) != 0 {
		t.Fatalf("expected empty state after only a failed event, got %d peers", len(replayed.Peers))
	}
}
