package descriptor

import (
	"crypto/ed25519"
	"net/netip"
	"testing"
	"time"

	"github.com/vula-mesh/vula/internal/errs"
)

func testDescriptor(t *testing.T) (*Descriptor, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	d := &Descriptor{
		C:        make([]byte, 64),
		VF:       time.Now().Unix(),
		DT:       3600,
		Port:     51820,
		Hostname: "alice.local.",
		V4A:      []netip.Addr{netip.MustParseAddr("10.0.0.1")},
	}
	d.VK = pub
	d.Sign(priv)
	return d, priv
}

func TestEncodeParseRoundTrip(t *testing.T) {
	d, _ := testDescriptor(t)

	text, err := d.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.Hostname != d.Hostname || got.VF != d.VF || got.Port != d.Port {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, d)
	}
	if len(got.V4A) != 1 || got.V4A[0] != d.V4A[0] {
		t.Fatalf("v4a mismatch: got %v, want %v", got.V4A, d.V4A)
	}
}

func TestParseBadSignature(t *testing.T) {
	d, _ := testDescriptor(t)
	text, err := d.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tampered := text[:len(text)-4] + "AAAA"
	_, err = Parse(tampered)
	if err == nil {
		t.Fatal("expected BadSignature, got nil")
	}
	if kindOf(err) != errs.BadSignature && kindOf(err) != errs.SchemaErr {
		t.Fatalf("expected BadSignature or SchemaError, got %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	d, _ := testDescriptor(t)
	d.DT = 1
	past := time.Unix(d.VF+100, 0)
	if err := d.Validate(past); kindOf(err) != errs.ExpiredDescriptor {
		t.Fatalf("expected ExpiredDescriptor, got %v", err)
	}
}

func TestValidateFutureSkew(t *testing.T) {
	d, _ := testDescriptor(t)
	d.VF = time.Now().Unix() + 10*skewSeconds
	if err := d.Validate(time.Now()); kindOf(err) != errs.SchemaErr {
		t.Fatalf("expected SchemaError for future vf, got %v", err)
	}
}

func kindOf(err error) errs.Kind {
	e, ok := err.(*errs.Error)
	if !ok {
		return ""
	}
	return e.Kind
}
