package rpcserver

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/engine"
	"github.com/vula-mesh/vula/internal/organize"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/state"
)

// newTestServer seeds accept_nonlocal=true so descriptors carrying a test
// address (there's no real current-subnet snapshot in these unit tests)
// clear organize's bogon check instead of being rejected before the
// behavior under test ever runs.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := state.New()
	if err := s.Prefs.SetBool(prefs.AcceptNonlocal, true); err != nil {
		t.Fatalf("seed accept_nonlocal: %v", err)
	}
	e := engine.New(s, nil, nil)
	org := organize.New(e)
	return New(org)
}

func newSignedDescriptor(t *testing.T, hostname string) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	d := &descriptor.Descriptor{
		C:        make([]byte, 64),
		VK:       pub,
		VF:       time.Now().Unix(),
		DT:       3600,
		Port:     51820,
		Hostname: hostname,
		V4A:      []netip.Addr{netip.MustParseAddr("10.0.0.9")},
	}
	d.Sign(priv)
	text, err := d.Encode()
	if err != nil {
		t.Fatalf("encode descriptor: %v", err)
	}
	return text
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, resultEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var env resultEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestProcessDescriptorStringAcceptsNewPeer(t *testing.T) {
	s := newTestServer(t)
	text := newSignedDescriptor(t, "bob.local.")

	rec, env := doJSON(t, s, http.MethodPost, "/process_descriptor_string", descriptorStringRequest{Text: text})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
}

func TestProcessDescriptorStringRejectsGarbage(t *testing.T) {
	s := newTestServer(t)
	rec, env := doJSON(t, s, http.MethodPost, "/process_descriptor_string", descriptorStringRequest{Text: "not a descriptor"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (engine-level REJECT, not transport error), got %d", rec.Code)
	}
	if !env.Success || env.Summary != "OK: REJECT" {
		t.Fatalf("expected a recorded REJECT action for garbage descriptor text, got %+v", env)
	}
}

func TestUserEditRejectsUnknownOp(t *testing.T) {
	s := newTestServer(t)
	rec, env := doJSON(t, s, http.MethodPost, "/user_edit", userEditRequest{Op: "FROB", Path: "prefs.pin_new_peers", Value: true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected failure for unknown op")
	}
}

func TestUserEditSetsPref(t *testing.T) {
	s := newTestServer(t)
	rec, env := doJSON(t, s, http.MethodPost, "/user_edit", userEditRequest{Op: "SET", Path: "prefs.pin_new_peers", Value: true})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/show_prefs", nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req)
	var dto prefsDTO
	if err := json.Unmarshal(rec2.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode prefs: %v", err)
	}
	if !dto.Bools["pin_new_peers"] {
		t.Fatalf("expected pin_new_peers=true, got %+v", dto.Bools)
	}
}

func TestShowPeerNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/show_peer?vk=doesnotexist", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPeerIDsDefaultsToEnabled(t *testing.T) {
	s := newTestServer(t)
	text := newSignedDescriptor(t, "carol.local.")
	_, env := doJSON(t, s, http.MethodPost, "/process_descriptor_string", descriptorStringRequest{Text: text})
	if !env.Success {
		t.Fatalf("expected accept, got %+v", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/peer_ids", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var ids []string
	if err := json.Unmarshal(rec.Body.Bytes(), &ids); err != nil {
		t.Fatalf("decode peer ids: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 enabled peer id, got %v", ids)
	}
}

func TestPeerIDsRejectsUnknownWhich(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/peer_ids?which=bogus", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthReportsPeerCount(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["peers"] != float64(0) {
		t.Fatalf("expected peers=0, got %v", health["peers"])
	}
}
