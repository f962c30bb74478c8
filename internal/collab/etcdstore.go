package collab

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/vlog"
)

// EtcdMirror replicates our own published descriptors into etcd under
// /vula/peers/<our_vk_b64>/descriptors/<iface>, reusing the teacher's
// /valon/peers/<pubkey>/... key layout and Txn-based write shape
// (coredns-plugin/valon/etcd_sync.go, valonctl/pkg/client/etcd.go). Unlike
// the teacher's dirty-flag background loop, this mirror writes
// synchronously from the sync_publish/sync_peer_removed triggers
// themselves, since the engine already serializes and batches those calls
// per committed event.
type EtcdMirror struct {
	client *clientv3.Client
	ourVK  string
	log    *vlog.Logger
}

// NewEtcdMirror dials etcd at the given endpoints. ourVK is this host's
// base64 vk identity, used as the key prefix for everything it publishes.
func NewEtcdMirror(endpoints []string, ourVK string) (*EtcdMirror, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "dial etcd")
	}
	return &EtcdMirror{client: client, ourVK: ourVK, log: vlog.New("collab/etcd")}, nil
}

// Close releases the etcd client.
func (m *EtcdMirror) Close() error {
	return m.client.Close()
}

func (m *EtcdMirror) prefix() string {
	return fmt.Sprintf("/vula/peers/%s", m.ourVK)
}

// MirrorDescriptors writes one key per interface under our own prefix.
func (m *EtcdMirror) MirrorDescriptors(descriptors map[string]string) error {
	if len(descriptors) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ops := make([]clientv3.Op, 0, len(descriptors))
	for iface, desc := range descriptors {
		key := fmt.Sprintf("%s/descriptors/%s", m.prefix(), iface)
		ops = append(ops, clientv3.OpPut(key, desc))
	}

	if _, err := m.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		return errs.Wrap(errs.CorruptState, err, "etcd mirror transaction")
	}
	m.log.Printf("mirrored %d descriptor(s) under %s", len(ops), m.prefix())
	return nil
}

// MirrorPeerRemoved deletes a removed peer's mirrored entry, keyed by its
// own vk (a peer other than us may also run this mirror against the same
// etcd cluster, each under its own prefix).
func (m *EtcdMirror) MirrorPeerRemoved(vk string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("/vula/peers/%s", vk)
	if _, err := m.client.Delete(ctx, key, clientv3.WithPrefix()); err != nil {
		return errs.Wrap(errs.CorruptState, err, "etcd delete %s", key)
	}
	m.log.Printf("removed mirrored entry for %s", vk)
	return nil
}
