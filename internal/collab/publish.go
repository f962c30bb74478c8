package collab

import (
	"fmt"
	"sort"

	"github.com/vula-mesh/vula/internal/vlog"
)

// Publish is the mDNS-publish trigger target. spec.md §1 places the mDNS
// publisher and browser themselves out of scope, addressed only through
// this method surface (§6), so Publish does no multicast I/O: it logs what
// would be announced and, when mirror is set, hands the per-interface
// descriptor map to the etcd collaborator as a second real consumer.
type Publish struct {
	mirror *EtcdMirror
	log    *vlog.Logger
}

// NewPublish constructs a Publish stub. mirror may be nil when etcd
// replication is disabled.
func NewPublish(mirror *EtcdMirror) *Publish {
	return &Publish{mirror: mirror, log: vlog.New("collab/publish")}
}

// SyncPublish implements engine.TriggerTarget. descriptors maps interface
// name to the descriptor string the engine computed for that interface
// (§11's our_latest_descriptors()).
func (p *Publish) SyncPublish(descriptors map[string]string) (string, error) {
	ifaces := make([]string, 0, len(descriptors))
	for iface := range descriptors {
		ifaces = append(ifaces, iface)
	}
	sort.Strings(ifaces)

	msg := fmt.Sprintf("announcing on %d interface(s): %v", len(ifaces), ifaces)
	p.log.Printf("sync_publish: %s", msg)

	if p.mirror != nil {
		if err := p.mirror.MirrorDescriptors(descriptors); err != nil {
			return "", err
		}
	}
	return msg, nil
}
