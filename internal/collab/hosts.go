package collab

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/state"
	"github.com/vula-mesh/vula/internal/vlog"
)

const (
	hostsBeginMarker = "# BEGIN vula"
	hostsEndMarker   = "# END vula"
)

// Hosts is the hosts-file collaborator: it rewrites a managed block inside
// a hosts(5) file from the current enabled nicknames/IPs (§4.F's
// sync_hosts() trigger: "rewrite a hosts file from enabled nicknames +
// IPs"). Grounded on the atomic-temp-file-then-rename pattern already used
// by internal/state/persist.go for the state file itself.
type Hosts struct {
	path    string
	stateFn func() *state.State
	log     *vlog.Logger
}

// NewHosts targets path (typically /etc/hosts, or a test-scoped file).
func NewHosts(path string, stateFn func() *state.State) *Hosts {
	return &Hosts{path: path, stateFn: stateFn, log: vlog.New("collab/hosts")}
}

// SyncHosts implements engine.TriggerTarget.
func (h *Hosts) SyncHosts() (string, error) {
	existing, err := os.ReadFile(h.path)
	if err != nil && !os.IsNotExist(err) {
		return "", errs.Wrap(errs.CorruptState, err, "read hosts file %s", h.path)
	}

	block := renderHostsBlock(h.stateFn())
	updated := replaceManagedBlock(string(existing), block)

	if err := writeAtomic(h.path, []byte(updated), 0o644); err != nil {
		return "", errs.Wrap(errs.CorruptState, err, "write hosts file %s", h.path)
	}

	msg := fmt.Sprintf("%s: rewrote managed block", h.path)
	h.log.Printf("sync_hosts: %s", msg)
	return msg, nil
}

func renderHostsBlock(s *state.State) string {
	type line struct{ addr, name string }
	var lines []line
	for _, p := range s.Peers {
		if !p.Enabled {
			continue
		}
		names := p.EnabledNames()
		if len(names) == 0 {
			continue
		}
		for _, addr := range p.EnabledIPs() {
			for _, name := range names {
				lines = append(lines, line{addr, strings.TrimSuffix(name, ".")})
			}
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].addr != lines[j].addr {
			return lines[i].addr < lines[j].addr
		}
		return lines[i].name < lines[j].name
	})

	var b strings.Builder
	b.WriteString(hostsBeginMarker + "\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%s\t%s\n", l.addr, l.name)
	}
	b.WriteString(hostsEndMarker + "\n")
	return b.String()
}

// replaceManagedBlock splices block in place of any prior
// BEGIN/END-marked section, or appends it if none is present.
func replaceManagedBlock(existing, block string) string {
	begin := strings.Index(existing, hostsBeginMarker)
	end := strings.Index(existing, hostsEndMarker)
	if begin < 0 || end < 0 || end < begin {
		if existing != "" && !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + block
	}
	end += len(hostsEndMarker)
	for end < len(existing) && existing[end] == '\n' {
		end++
	}
	return existing[:begin] + block + existing[end:]
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vula-hosts-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
