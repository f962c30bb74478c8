package collab

// Collaborator composes the WireGuard, Hosts, and Publish collaborators
// into the single engine.TriggerTarget the daemon wires into its Engine.
// Each concern stays in its own file/type; Collaborator only delegates.
type Collaborator struct {
	WireGuard *WireGuard
	Hosts     *Hosts
	Publish   *Publish
	Mirror    *EtcdMirror // nil when etcd replication is disabled
}

// New assembles a Collaborator. mirror may be nil.
func New(wg *WireGuard, hosts *Hosts, mirror *EtcdMirror) *Collaborator {
	return &Collaborator{
		WireGuard: wg,
		Hosts:     hosts,
		Publish:   NewPublish(mirror),
		Mirror:    mirror,
	}
}

// SyncPeer implements engine.TriggerTarget.
func (c *Collaborator) SyncPeer(vk string) (string, error) {
	return c.WireGuard.SyncPeer(vk)
}

// SyncPeerRemoved implements engine.TriggerTarget. Also drops the peer's
// mirrored etcd entry, if a mirror is configured (§12.3: a second real
// consumer of this trigger).
func (c *Collaborator) SyncPeerRemoved(vk string) (string, error) {
	msg, err := c.WireGuard.SyncPeerRemoved(vk)
	if err != nil {
		return "", err
	}
	if c.Mirror != nil {
		if err := c.Mirror.MirrorPeerRemoved(vk); err != nil {
			return "", err
		}
	}
	return msg, nil
}

// SyncInterface implements engine.TriggerTarget.
func (c *Collaborator) SyncInterface() (string, error) {
	return c.WireGuard.SyncInterface()
}

// SyncHosts implements engine.TriggerTarget.
func (c *Collaborator) SyncHosts() (string, error) {
	return c.Hosts.SyncHosts()
}

// SyncPublish implements engine.TriggerTarget.
func (c *Collaborator) SyncPublish(descriptors map[string]string) (string, error) {
	return c.Publish.SyncPublish(descriptors)
}
