package organize

import (
	"net/netip"
	"time"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/keys"
	"github.com/vula-mesh/vula/internal/state"
)

// Identity is the locally-known information a descriptor needs that
// isn't part of the transactional state: our hostname, the WireGuard
// port we listen on, and how long a freshly-minted descriptor stays
// valid (§11's our_latest_descriptors()).
type Identity struct {
	Hostname       string
	Port           uint16
	DescriptorTTL  time.Duration
}

// DescriptorBuilder returns a function suitable for Organizer's
// descriptor-builder hook: for every interface in next.System, build and
// sign a descriptor scoped to that interface's addresses and return the
// per-interface encoded-text map the sync_publish trigger expects
// (vula/backend.py's our_latest_descriptors(), vula/publish.py's
// listen(new_announcements) consumer).
func DescriptorBuilder(kf *keys.KeyFile, id Identity, clock func() time.Time) func(next *state.State) map[string]string {
	if clock == nil {
		clock = time.Now
	}
	return func(next *state.State) map[string]string {
		out := make(map[string]string, len(next.System.CurrentInterfaces))
		now := clock()
		for iface, addrs := range next.System.CurrentInterfaces {
			text, err := buildDescriptor(kf, id, addrs, now)
			if err != nil {
				continue
			}
			out[iface] = text
		}
		return out
	}
}

func buildDescriptor(kf *keys.KeyFile, id Identity, addrs []netip.Addr, now time.Time) (string, error) {
	d := &descriptor.Descriptor{
		PK:       kf.WgPub,
		C:        kf.CsidhPub,
		VK:       kf.EdPub,
		VF:       now.Unix(),
		DT:       int64(id.DescriptorTTL.Seconds()),
		Port:     id.Port,
		Hostname: id.Hostname,
	}
	for _, a := range addrs {
		if a.Is4() {
			d.V4A = append(d.V4A, a)
		} else {
			d.V6A = append(d.V6A, a)
		}
	}
	d.Sign(kf.EdSec)
	return d.Encode()
}
