package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateProducesDistinctKeyMaterial(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Equal(a.EdSec, b.EdSec) {
		t.Fatal("expected distinct ed25519 keys across two Generate calls")
	}
	if a.WgSec == b.WgSec {
		t.Fatal("expected distinct wireguard keys across two Generate calls")
	}
	if len(a.CsidhSec) != csidhSecLen || len(a.CsidhPub) != csidhPubLen {
		t.Fatalf("unexpected csidh key lengths: sec=%d pub=%d", len(a.CsidhSec), len(a.CsidhPub))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "organize.keys")
	if err := k.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.CsidhSec, k.CsidhSec) || !bytes.Equal(loaded.CsidhPub, k.CsidhPub) {
		t.Fatal("csidh keys did not round-trip")
	}
	if !bytes.Equal(loaded.EdSec, k.EdSec) || !bytes.Equal(loaded.EdPub, k.EdPub) {
		t.Fatal("ed25519 keys did not round-trip")
	}
	if loaded.WgSec != k.WgSec || loaded.WgPub != k.WgPub {
		t.Fatal("wireguard keys did not round-trip")
	}
}

func TestRotateOnlySelectedKeys(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	origEd := append(ed25519PrivKeyCopy(k.EdSec))
	origWg := k.WgSec
	origCsidh := append([]byte(nil), k.CsidhSec...)

	if err := k.Rotate(true, false, false); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if bytes.Equal(k.CsidhSec, origCsidh) {
		t.Fatal("expected csidh key to rotate")
	}
	if !bytes.Equal(k.EdSec, origEd) {
		t.Fatal("expected ed25519 key to stay put")
	}
	if k.WgSec != origWg {
		t.Fatal("expected wireguard key to stay put")
	}
}

func TestLoadOrGenerateCreatesThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "organize.keys")
	first, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("LoadOrGenerate (create): %v", err)
	}
	second, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("LoadOrGenerate (reuse): %v", err)
	}
	if !bytes.Equal(first.EdSec, second.EdSec) {
		t.Fatal("expected LoadOrGenerate to reuse the persisted key on the second call")
	}
}

func ed25519PrivKeyCopy(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
