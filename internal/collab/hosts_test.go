package collab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vula-mesh/vula/internal/state"
)

func TestRenderHostsBlockOrdersByAddressThenName(t *testing.T) {
	s := state.New()
	p1 := newCollabTestPeer(t, "zeta.local.", "10.0.0.5")
	p2 := newCollabTestPeer(t, "alpha.local.", "10.0.0.1")
	s.Peers[p1.ID()] = p1
	s.Peers[p2.ID()] = p2

	block := renderHostsBlock(s)
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if lines[0] != hostsBeginMarker || lines[len(lines)-1] != hostsEndMarker {
		t.Fatalf("expected markers at both ends, got %v", lines)
	}
	if !strings.Contains(lines[1], "10.0.0.1") {
		t.Fatalf("expected lowest address first, got %q", lines[1])
	}
}

func TestReplaceManagedBlockInsertsOnceAndUpdatesInPlace(t *testing.T) {
	original := "127.0.0.1\tlocalhost\n"
	first := replaceManagedBlock(original, "# BEGIN vula\n10.0.0.1\talice\n# END vula\n")
	if !strings.Contains(first, "localhost") || !strings.Contains(first, "alice") {
		t.Fatalf("expected both original and managed content, got %q", first)
	}

	second := replaceManagedBlock(first, "# BEGIN vula\n10.0.0.2\tbob\n# END vula\n")
	if strings.Contains(second, "alice") {
		t.Fatal("expected the stale managed block to be fully replaced")
	}
	if !strings.Contains(second, "localhost") || !strings.Contains(second, "bob") {
		t.Fatalf("expected preserved prefix and new managed content, got %q", second)
	}
}

func TestSyncHostsWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	if err := os.WriteFile(path, []byte("127.0.0.1\tlocalhost\n"), 0o644); err != nil {
		t.Fatalf("seed hosts file: %v", err)
	}

	s := state.New()
	p := newCollabTestPeer(t, "alice.local.", "10.0.0.1")
	s.Peers[p.ID()] = p

	h := NewHosts(path, func() *state.State { return s })
	if _, err := h.SyncHosts(); err != nil {
		t.Fatalf("SyncHosts: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back hosts file: %v", err)
	}
	if !strings.Contains(string(contents), "localhost") {
		t.Fatal("expected original content to survive")
	}
	if !strings.Contains(string(contents), "10.0.0.1\talice.local") {
		t.Fatalf("expected managed entry for alice, got %q", contents)
	}
}
