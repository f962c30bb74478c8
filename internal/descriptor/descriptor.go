// Package descriptor implements the signed wire-format peer announcement:
// encoding, chunking for mDNS TXT records, and Ed25519 signing/verification.
package descriptor

import (
	"crypto/ed25519"
	"net/netip"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Descriptor is a self-signed peer announcement, as published over mDNS.
type Descriptor struct {
	PK       wgtypes.Key      // WireGuard X25519 public key
	C        []byte           // post-quantum public key (CSIDH-p512), 64 bytes
	VK       ed25519.PublicKey // Ed25519 verify key; stable peer identity
	S        []byte           // Ed25519 signature over the canonical serialization
	VF       int64            // "valid from": monotonic version, seconds since epoch
	DT       int64            // descriptor lifetime in seconds
	Port     uint16           // WireGuard UDP port
	Hostname string           // DNS-form name, trailing dot significant
	V4A      []netip.Addr     // IPv4 addresses, ordered
	V6A      []netip.Addr     // IPv6 addresses, ordered
	R        []netip.Prefix   // offered routes; parsed but unused (see DESIGN.md)
	E        bool             // ephemeral flag
}

// ExpiresAt returns the instant at which the descriptor becomes stale.
func (d *Descriptor) ExpiresAt() time.Time {
	return time.Unix(d.VF+d.DT, 0)
}

// Expired reports whether the descriptor is past vf+dt as of now.
func (d *Descriptor) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt())
}

// Addrs returns V4A and V6A concatenated, preserving order (v4 first).
func (d *Descriptor) Addrs() []netip.Addr {
	out := make([]netip.Addr, 0, len(d.V4A)+len(d.V6A))
	out = append(out, d.V4A...)
	out = append(out, d.V6A...)
	return out
}

// VKBase64 returns the unpadded base64 identity used as Peer.id and as the
// state file's peer map key.
func (d *Descriptor) VKBase64() string {
	return b64enc(d.VK)
}
