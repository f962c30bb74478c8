package descriptor

import "crypto/ed25519"

// Sign computes the canonical serialization over every field but s and
// signs it with the given Ed25519 private key, populating d.S and d.VK.
// Used when we publish our own descriptor, never on receipt.
func (d *Descriptor) Sign(priv ed25519.PrivateKey) {
	d.VK = priv.Public().(ed25519.PublicKey)
	canon := canonicalBytes(d.fieldMap(false))
	d.S = ed25519.Sign(priv, canon)
}

// Verify recomputes the canonical bytes and checks the embedded signature
// against vk, independent of Parse (useful once a Descriptor has been built
// programmatically rather than parsed off the wire).
func (d *Descriptor) Verify() bool {
	canon := canonicalBytes(d.fieldMap(false))
	return ed25519.Verify(d.VK, canon, d.S)
}
