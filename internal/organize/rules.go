// Package organize implements the policy layer: the event/action handlers
// that resolve conflicts, enforce pinning, apply hostname policy, elect a
// gateway, and expire stale peers (§4.G). No organize.py survived the
// original_source retrieval filter, so these handlers are grounded
// directly in spec.md's prose rather than a prior implementation; the
// surrounding trigger-as-data-tuple and write-op-records-itself patterns
// come from vula/engine.py via internal/engine.
package organize

import (
	"net/netip"
	"sort"
	"time"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/sysstate"
)

// Organizer wires the organize rules to a running Engine. It is the
// object cmd/vula-organize and internal/rpcserver call into.
type Organizer struct {
	eng         *engine.Engine
	descriptors func(next *state.State) map[string]string
}

// New wraps an Engine with the organize policy layer.
func New(eng *engine.Engine) *Organizer {
	return &Organizer{eng: eng}
}

// SetDescriptorBuilder installs the our_latest_descriptors() hook (§11,
// see descriptors.go) that NEW_SYSTEM_STATE and INCOMING_DESCRIPTOR use to
// populate the sync_publish trigger's descriptors argument. Left unset in
// tests that don't exercise publishing.
func (o *Organizer) SetDescriptorBuilder(fn func(next *state.State) map[string]string) {
	o.descriptors = fn
}

func (o *Organizer) latestDescriptors(next *state.State) map[string]string {
	if o.descriptors == nil {
		return map[string]string{}
	}
	return o.descriptors(next)
}

// State exposes the engine's current committed state for read-only
// queries (show_peer, show_prefs, peer_ids — §6).
func (o *Organizer) State() *state.State {
	return o.eng.State()
}

// OurLatestDescriptors renders our own descriptor text per interface
// using the installed descriptor builder, for the our_latest_descriptors
// query (§11). Returns an empty map if no builder has been installed.
func (o *Organizer) OurLatestDescriptors() map[string]string {
	return o.latestDescriptors(o.eng.State())
}

func parseAddr(s string) (netip.Addr, error) {
	return netip.ParseAddr(s)
}

// triggerPeerSync registers the sync_peer/sync_hosts/sync_publish trio
// that ACCEPT_NEW_PEER and UPDATE_PEER_DESCRIPTOR both emit.
func triggerPeerSync(res *state.Result, vk string, descriptors map[string]string) {
	res.AddTrigger("sync_peer", vk)
	res.AddTrigger("sync_hosts")
	res.AddTrigger("sync_publish", descriptors)
}

// triggerPeerRemoved registers the pair REMOVE_PEER emits.
func triggerPeerRemoved(res *state.Result, vk string) {
	res.AddTrigger("sync_peer_removed", vk)
	res.AddTrigger("sync_hosts")
}

// applyHostnamePolicy disables a peer's hostname-derived nickname when it
// doesn't match any configured local domain, rather than refusing the
// whole descriptor (§4.G: "otherwise refuse to add as enabled nickname").
func applyHostnamePolicy(next *state.State, res *state.Result, p *peer.Peer, hostname string) error {
	domains, err := next.Prefs.GetList(prefs.LocalDomains)
	if err != nil {
		return err
	}
	if len(domains) == 0 || hostnameAllowed(hostname, domains) {
		return nil
	}
	return engine.SetNicknameEnabled(next, res, p, hostname, false)
}

// NewSystemState handles NEW_SYSTEM_STATE(snapshot): §4.G.
func (o *Organizer) NewSystemState(snapshot sysstate.SystemState) *state.Result {
	return o.eng.Apply("NEW_SYSTEM_STATE", func(next *state.State, res *state.Result) error {
		engine.AdjustSystemState(next, res, snapshot)
		res.AddAction("ADJUST_TO_NEW_SYSTEM_STATE", nil)
		res.AddTrigger("sync_interface")
		res.AddTrigger("sync_publish", o.latestDescriptors(next))

		nonlocalOK, err := next.Prefs.GetBool(prefs.AcceptNonlocal)
		if err != nil {
			return err
		}

		vks := make([]string, 0, len(next.Peers))
		for vk := range next.Peers {
			vks = append(vks, vk)
		}
		sort.Strings(vks)

		for _, vk := range vks {
			p := next.Peers[vk]
			if !p.Enabled || p.Pinned {
				continue
			}
			if nonlocalOK || peerWithinSubnets(next, p) {
				continue
			}
			engine.RemovePeer(next, res, vk)
			res.AddAction("REMOVE_PEER", map[string]any{"vk": vk, "reason": "outside current subnets"})
			triggerPeerRemoved(res, vk)
		}

		return electGateway(next, res)
	})
}

func peerWithinSubnets(next *state.State, p *peer.Peer) bool {
	for _, addrText := range p.EnabledIPs() {
		addr, err := parseAddr(addrText)
		if err != nil {
			continue
		}
		if _, ok := next.System.SubnetContaining(addr); ok {
			return true
		}
	}
	return false
}

// IncomingDescriptor handles INCOMING_DESCRIPTOR(desc): §4.G. now is the
// clock reading captured by the caller (mDNS discover collaborator or
// CLI), satisfying §4.F's determinism contract.
func (o *Organizer) IncomingDescriptor(text string, now time.Time) *state.Result {
	return o.eng.Apply("INCOMING_DESCRIPTOR", func(next *state.State, res *state.Result) error {
		desc, err := descriptor.Parse(text)
		if err != nil {
			res.AddAction("REJECT", map[string]any{"reason": err.Error()})
			return nil
		}
		if err := desc.Validate(now); err != nil {
			res.AddAction("REJECT", map[string]any{"reason": err.Error()})
			return nil
		}
		return o.incomingDescriptor(next, res, desc)
	})
}

func (o *Organizer) incomingDescriptor(next *state.State, res *state.Result, desc *descriptor.Descriptor) error {
	nonlocalOK, err := next.Prefs.GetBool(prefs.AcceptNonlocal)
	if err != nil {
		return err
	}
	if !nonlocalOK {
		for _, addr := range desc.Addrs() {
			if _, ok := next.System.SubnetContaining(addr); !ok {
				res.AddAction("REJECT", map[string]any{"reason": "bogon", "address": addr.String()})
				return nil
			}
		}
	}

	vk := desc.VKBase64()
	if existing, ok := next.Peers[vk]; ok {
		if desc.VF > existing.Descriptor.VF {
			newHostname := desc.Hostname
			if err := engine.UpdatePeerDescriptor(next, res, existing, desc); err != nil {
				return err
			}
			res.AddAction("UPDATE_PEER_DESCRIPTOR", map[string]any{"vk": vk})
			if err := applyHostnamePolicy(next, res, existing, newHostname); err != nil {
				return err
			}
			triggerPeerSync(res, vk, o.latestDescriptors(next))
			return nil
		}
		res.AddAction("IGNORE", map[string]any{"vk": vk, "reason": "replay"})
		return nil
	}

	pinNewPeers, err := next.Prefs.GetBool(prefs.PinNewPeers)
	if err != nil {
		return err
	}

	views := next.Views()
	conflicts := collectConflicts(views, desc)

	for _, c := range conflicts {
		protected := c.Pinned || (pinNewPeers && c.Enabled)
		if protected && c.Enabled {
			res.AddAction("REJECT", map[string]any{"reason": "pin-protected conflict", "conflicting_vk": c.ID()})
			return nil
		}
	}

	for _, c := range conflicts {
		engine.RemovePeer(next, res, c.ID())
		res.AddAction("REMOVE_PEER", map[string]any{"vk": c.ID(), "reason": "superseded by incoming descriptor"})
		triggerPeerRemoved(res, c.ID())
	}

	p := engine.AcceptPeer(next, res, desc, pinNewPeers)
	res.AddAction("ACCEPT_NEW_PEER", map[string]any{"vk": p.ID()})
	if err := applyHostnamePolicy(next, res, p, desc.Hostname); err != nil {
		return err
	}
	triggerPeerSync(res, p.ID(), o.latestDescriptors(next))
	return nil
}

// collectConflicts gathers the distinct existing peers that conflict with
// an incoming new-vk descriptor, in tie-break order {pk, ip, hostname}
// (§4.G).
func collectConflicts(views *peer.Views, desc *descriptor.Descriptor) []*peer.Peer {
	seen := map[string]bool{}
	var out []*peer.Peer

	add := func(p *peer.Peer, err error) {
		if err != nil || p == nil {
			return
		}
		if !seen[p.ID()] {
			seen[p.ID()] = true
			out = append(out, p)
		}
	}

	add(views.ByPK(desc.PK))
	for _, addr := range desc.Addrs() {
		add(views.WithIP(addr.String()))
	}
	add(views.WithHostname(desc.Hostname))

	return out
}

// UserEdit handles USER_EDIT(op, path, value): §4.G. Supported paths are
// documented on applyUserEdit in useredit.go.
func (o *Organizer) UserEdit(op state.WriteKind, path string, value any) *state.Result {
	return o.eng.Apply("USER_EDIT", func(next *state.State, res *state.Result) error {
		return applyUserEdit(next, res, op, path, value)
	})
}

// ReleaseGateway handles RELEASE_GATEWAY(): §4.G.
func (o *Organizer) ReleaseGateway() *state.Result {
	return o.eng.Apply("RELEASE_GATEWAY", func(next *state.State, res *state.Result) error {
		vks := make([]string, 0, len(next.Peers))
		for vk := range next.Peers {
			vks = append(vks, vk)
		}
		sort.Strings(vks)
		for _, vk := range vks {
			p := next.Peers[vk]
			if p.UseAsGateway {
				engine.SetPeerUseAsGateway(next, res, p, false)
			}
		}
		return nil
	})
}

// ExpireTick handles EXPIRE_TICK(now): §4.G.
func (o *Organizer) ExpireTick(now time.Time) *state.Result {
	return o.eng.Apply("EXPIRE_TICK", func(next *state.State, res *state.Result) error {
		expireTime := next.Prefs.ExpireTime
		cutoff := now.Unix() - int64(expireTime)

		vks := make([]string, 0, len(next.Peers))
		for vk := range next.Peers {
			vks = append(vks, vk)
		}
		sort.Strings(vks)

		for _, vk := range vks {
			p := next.Peers[vk]
			if p.Pinned {
				continue
			}
			if p.Descriptor.VF+p.Descriptor.DT < cutoff {
				engine.RemovePeer(next, res, vk)
				res.AddAction("REMOVE_PEER", map[string]any{"vk": vk, "reason": "expired"})
				triggerPeerRemoved(res, vk)
			}
		}
		return nil
	})
}
