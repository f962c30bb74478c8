// Package collab implements the trigger-target collaborators the engine
// invokes post-commit (§6/§9): kernel WireGuard programming, the hosts
// file, the mDNS publish stub, and an optional etcd mirror. None of these
// run inside the engine's critical section; each is a plain method call
// made after Engine.Apply has already committed or discarded next_state.
package collab

import (
	"fmt"
	"net"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/vlog"
)

// WireGuard is the kernel WireGuard collaborator: it reconciles the
// wgctrl-managed device's peer table against the engine's current state,
// grounded on valonctl/pkg/client/wireguard.go's ConfigureDevice/PeerConfig
// shape and coredns-plugin/valon/wg_monitor.go's poll-the-kernel-then-diff
// idiom (reused here as reconcile-then-diff, since Vula programs the
// kernel rather than just observing it).
type WireGuard struct {
	client  *wgctrl.Client
	iface   string
	stateFn func() *state.State
	log     *vlog.Logger
}

// NewWireGuard opens a wgctrl client bound to iface. stateFn returns the
// engine's current committed state; it must be safe to call concurrently
// with the engine (Engine.State() already locks internally).
func NewWireGuard(iface string, stateFn func() *state.State) (*WireGuard, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "open wgctrl client")
	}
	return &WireGuard{client: client, iface: iface, stateFn: stateFn, log: vlog.New("collab/wg")}, nil
}

// Close releases the underlying wgctrl client.
func (w *WireGuard) Close() error {
	return w.client.Close()
}

// desiredPeers computes, from the current enabled peer set, the
// wgtypes.PeerConfig each should have: public key plus one /32 or
// /128 AllowedIPs entry per enabled address.
func desiredPeers(s *state.State) map[wgtypes.Key]wgtypes.PeerConfig {
	out := make(map[wgtypes.Key]wgtypes.PeerConfig, len(s.Peers))
	for _, p := range s.Peers {
		if !p.Enabled {
			continue
		}
		out[p.Descriptor.PK] = wgtypes.PeerConfig{
			PublicKey:         p.Descriptor.PK,
			AllowedIPs:        allowedIPNets(p),
			ReplaceAllowedIPs: true,
		}
	}
	return out
}

func allowedIPNets(p *peer.Peer) []net.IPNet {
	var nets []net.IPNet
	for _, addrText := range p.EnabledIPs() {
		ip := net.ParseIP(addrText)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		mask := net.CIDRMask(bits, bits)
		nets = append(nets, net.IPNet{IP: ip, Mask: mask})
	}
	return nets
}

// reconcile re-reads the live device and pushes only the delta against
// desired (§5's idempotency requirement: repeated calls with unchanged
// state must not reprogram the kernel).
func (w *WireGuard) reconcile() (string, error) {
	s := w.stateFn()
	desired := desiredPeers(s)

	device, err := w.client.Device(w.iface)
	if err != nil {
		return "", errs.Wrap(errs.CorruptState, err, "read device %s", w.iface)
	}

	current := make(map[wgtypes.Key]wgtypes.Peer, len(device.Peers))
	for _, p := range device.Peers {
		current[p.PublicKey] = p
	}

	var changes []wgtypes.PeerConfig
	for pk, want := range desired {
		have, ok := current[pk]
		if !ok || !allowedIPsEqual(have.AllowedIPs, want.AllowedIPs) {
			changes = append(changes, want)
		}
	}
	for pk := range current {
		if _, ok := desired[pk]; !ok {
			changes = append(changes, wgtypes.PeerConfig{PublicKey: pk, Remove: true})
		}
	}

	if len(changes) == 0 {
		return fmt.Sprintf("%s: no changes", w.iface), nil
	}
	if err := w.client.ConfigureDevice(w.iface, wgtypes.Config{Peers: changes}); err != nil {
		return "", errs.Wrap(errs.CorruptState, err, "configure device %s", w.iface)
	}
	return fmt.Sprintf("%s: applied %d peer change(s)", w.iface, len(changes)), nil
}

func allowedIPsEqual(a, b []net.IPNet) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, n := range a {
		seen[n.String()] = true
	}
	for _, n := range b {
		if !seen[n.String()] {
			return false
		}
	}
	return true
}

// SyncPeer implements engine.TriggerTarget. A single reconcile pass covers
// both new and updated peers; the vk argument only shapes the log message,
// since reconcile() is already a full idempotent diff.
func (w *WireGuard) SyncPeer(vk string) (string, error) {
	msg, err := w.reconcile()
	if err != nil {
		return "", err
	}
	w.log.Printf("sync_peer(%s): %s", vk, msg)
	return msg, nil
}

// SyncPeerRemoved implements engine.TriggerTarget. The removed peer is
// already gone from state by the time this runs, so the same full
// reconcile pass drops its kernel peer entry along with the others.
func (w *WireGuard) SyncPeerRemoved(vk string) (string, error) {
	msg, err := w.reconcile()
	if err != nil {
		return "", err
	}
	w.log.Printf("sync_peer_removed(%s): %s", vk, msg)
	return msg, nil
}

// SyncInterface implements engine.TriggerTarget, reconciling the whole
// device after a system-state change (addresses/interfaces have moved).
func (w *WireGuard) SyncInterface() (string, error) {
	msg, err := w.reconcile()
	if err != nil {
		return "", err
	}
	w.log.Printf("sync_interface: %s", msg)
	return msg, nil
}
