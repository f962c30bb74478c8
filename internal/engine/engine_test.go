package engine

import (
	"testing"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

type fakeTarget struct {
	syncedPeers []string
	failNext    bool
}

func (f *fakeTarget) SyncPeer(vk string) (string, error) {
	if f.failNext {
		return "", errs.New(errs.SchemaErr, "simulated sync failure")
	}
	f.syncedPeers = append(f.syncedPeers, vk)
	return "synced " + vk, nil
}
func (f *fakeTarget) SyncPeerRemoved(vk string) (string, error) { return "removed " + vk, nil }
func (f *fakeTarget) SyncInterface() (string, error)            { return "interface ok", nil }
func (f *fakeTarget) SyncHosts() (string, error)                { return "hosts ok", nil }
func (f *fakeTarget) SyncPublish(d map[string]string) (string, error) {
	return "published", nil
}

func TestApplyCommitsOnSuccess(t *testing.T) {
	e := New(state.New(), nil, nil)

	res := e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		res.AddAction("SET_PREF", nil)
		return SetPrefBool(next, res, prefs.PinNewPeers, true)
	})

	if res.Err != nil {
		t.Fatalf("Apply returned error: %v", res.Err)
	}
	got, _ := e.State().Prefs.GetBool(prefs.PinNewPeers)
	if !got {
		t.Fatal("expected pin_new_peers=true to be committed")
	}
	if res.Summary() != "OK: SET_PREF" {
		t.Fatalf("Summary() = %q", res.Summary())
	}
}

func TestApplyRollsBackOnInvariantFailure(t *testing.T) {
	live := state.New()
	e := New(live, nil, nil)

	res := e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		return next.Prefs.SetBool("not_a_real_pref", true)
	})

	if res.Err == nil {
		t.Fatal("expected error from unknown pref")
	}
	if e.State() != live {
		t.Fatal("expected live state to be unchanged (atomicity)")
	}
}

func TestApplyRollsBackOnHandlerPanic(t *testing.T) {
	live := state.New()
	e := New(live, nil, nil)

	res := e.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		panic("boom")
	})

	if res.Err == nil {
		t.Fatal("expected panic to be converted into a Result error")
	}
	if e.State() != live {
		t.Fatal("expected live state to be unchanged after a panicking handler")
	}
}

func TestApplyRunsTriggersAfterCommit(t *testing.T) {
	target := &fakeTarget{}
	e := New(state.New(), target, nil)

	res := e.Apply("INCOMING_DESCRIPTOR", func(next *state.State, res *state.Result) error {
		res.AddAction("ACCEPT_NEW_PEER", nil)
		res.AddTrigger("sync_peer", "vk123")
		res.AddTrigger("sync_hosts")
		return nil
	})

	if res.Err != nil {
		t.Fatalf("Apply: %v", res.Err)
	}
	if len(res.TriggerResults) != 2 {
		t.Fatalf("expected 2 trigger results, got %d", len(res.TriggerResults))
	}
	if len(target.syncedPeers) != 1 || target.syncedPeers[0] != "vk123" {
		t.Fatalf("expected sync_peer to run against the target, got %v", target.syncedPeers)
	}
}

func TestApplyDoesNotRunTriggersOnFailure(t *testing.T) {
	target := &fakeTarget{}
	e := New(state.New(), target, nil)

	res := e.Apply("INCOMING_DESCRIPTOR", func(next *state.State, res *state.Result) error {
		res.AddTrigger("sync_peer", "vk123")
		return next.Prefs.SetBool("not_a_real_pref", true)
	})

	if res.Err == nil {
		t.Fatal("expected error")
	}
	if len(target.syncedPeers) != 0 {
		t.Fatal("expected no triggers to run when the event fails")
	}
	if len(res.Triggers) != 0 {
		t.Fatal("expected triggers to be cleared on failure")
	}
}
