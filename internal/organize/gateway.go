package organize

import (
	"sort"

	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

// canBeGateway implements §4.G's gateway election policy: a peer may carry
// use_as_gateway only if accept_default_route is set, the peer is pinned,
// and one of its enabled IPs equals a current system gateway.
func canBeGateway(next *state.State, p *peer.Peer) (bool, error) {
	acceptDefault, err := next.Prefs.GetBool(prefs.AcceptDefaultRoute)
	if err != nil {
		return false, err
	}
	if !acceptDefault || !p.Pinned {
		return false, nil
	}
	for _, addr := range p.EnabledIPs() {
		parsed, err := parseAddr(addr)
		if err != nil {
			continue
		}
		if next.System.IsGateway(parsed) {
			return true, nil
		}
	}
	return false, nil
}

// electGateway re-promotes a pinned peer to use_as_gateway after a system
// state change, if no peer currently holds the role (§9 Design Notes:
// "If the system-current gateway later reappears as a pinned peer's IP,
// the next NEW_SYSTEM_STATE re-promotes that peer"). A no-op when a
// gateway peer is already elected, preserving invariant 3.
func electGateway(next *state.State, res *state.Result) error {
	if _, ok := next.Views().WithUseAsGateway(); ok {
		return nil
	}

	vks := make([]string, 0, len(next.Peers))
	for vk := range next.Peers {
		vks = append(vks, vk)
	}
	sort.Strings(vks)

	for _, vk := range vks {
		p := next.Peers[vk]
		ok, err := canBeGateway(next, p)
		if err != nil {
			return err
		}
		if ok {
			engine.SetPeerUseAsGateway(next, res, p, true)
			return nil
		}
	}
	return nil
}
