package state

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"

	"github.com/vula-mesh/vula/internal/descriptor"
	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/peer"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/sysstate"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
	"gopkg.in/yaml.v3"
)

// fileV is the on-disk schema: a top-level map {version, peers, prefs,
// system_state}, matching §6's persisted state file format. All byte
// fields are base64-unpadded.
type fileV struct {
	Version  int                  `yaml:"version"`
	Peers    map[string]peerV     `yaml:"peers"`
	Prefs    prefsV               `yaml:"prefs"`
	System   systemStateV         `yaml:"system_state"`
}

type peerV struct {
	Descriptor    descriptorV     `yaml:"descriptor"`
	Petname       string          `yaml:"petname"`
	Nicknames     map[string]bool `yaml:"nicknames"`
	NicknameOrder []string        `yaml:"nickname_order"`
	IPv4Addrs     map[string]bool `yaml:"ipv4addrs"`
	IPv4Order     []string        `yaml:"ipv4_order"`
	IPv6Addrs     map[string]bool `yaml:"ipv6addrs"`
	IPv6Order     []string        `yaml:"ipv6_order"`
	UseAsGateway  bool            `yaml:"use_as_gateway"`
	Pinned        bool            `yaml:"pinned"`
	Enabled       bool            `yaml:"enabled"`
	Verified      bool            `yaml:"verified"`
}

type descriptorV struct {
	PK       string   `yaml:"pk"`
	C        string   `yaml:"c"`
	VK       string   `yaml:"vk"`
	S        string   `yaml:"s"`
	VF       int64    `yaml:"vf"`
	DT       int64    `yaml:"dt"`
	Port     uint16   `yaml:"port"`
	Hostname string   `yaml:"hostname"`
	V4A      []string `yaml:"v4a"`
	V6A      []string `yaml:"v6a"`
	R        []string `yaml:"r,omitempty"`
	E        bool     `yaml:"e"`
}

type prefsV struct {
	Bools      map[string]bool     `yaml:"bools"`
	Lists      map[string][]string `yaml:"lists"`
	ExpireTime int                 `yaml:"expire_time"`
	PrimaryIP  string              `yaml:"primary_ip,omitempty"`
}

type systemStateV struct {
	CurrentSubnets    map[string][]string `yaml:"current_subnets"`
	CurrentInterfaces map[string][]string `yaml:"current_interfaces"`
	OurWGPK           string              `yaml:"our_wg_pk"`
	Gateways          []string            `yaml:"gateways"`
	HasV6             bool                `yaml:"has_v6"`
}

func b64(b []byte) string { return base64.RawStdEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.RawStdEncoding.DecodeString(s) }

func toFile(s *State) (*fileV, error) {
	f := &fileV{
		Version: s.SchemaVer,
		Peers:   make(map[string]peerV, len(s.Peers)),
		Prefs: prefsV{
			Bools:      map[string]bool{},
			Lists:      map[string][]string{},
			ExpireTime: s.Prefs.ExpireTime,
		},
		System: systemStateV{
			CurrentSubnets:    map[string][]string{},
			CurrentInterfaces: map[string][]string{},
			OurWGPK:           b64(s.System.OurWGPK[:]),
			HasV6:             s.System.HasV6,
		},
	}
	if s.Prefs.PrimaryIP.IsValid() {
		f.Prefs.PrimaryIP = s.Prefs.PrimaryIP.String()
	}
	for k, v := range s.Prefs.Bools {
		f.Prefs.Bools[string(k)] = v
	}
	for k, v := range s.Prefs.Lists {
		f.Prefs.Lists[string(k)] = v
	}

	for vk, p := range s.Peers {
		d := p.Descriptor
		f.Peers[vk] = peerV{
			Descriptor: descriptorV{
				PK:       b64(d.PK[:]),
				C:        b64(d.C),
				VK:       b64(d.VK),
				S:        b64(d.S),
				VF:       d.VF,
				DT:       d.DT,
				Port:     d.Port,
				Hostname: d.Hostname,
				V4A:      addrStrings(d.V4A),
				V6A:      addrStrings(d.V6A),
				R:        prefixStrings(d.R),
				E:        d.E,
			},
			Petname:       p.Petname,
			Nicknames:     p.Nicknames,
			NicknameOrder: p.NicknameOrder,
			IPv4Addrs:     p.IPv4Addrs,
			IPv4Order:     p.IPv4Order,
			IPv6Addrs:     p.IPv6Addrs,
			IPv6Order:     p.IPv6Order,
			UseAsGateway: p.UseAsGateway,
			Pinned:       p.Pinned,
			Enabled:      p.Enabled,
			Verified:     p.Verified,
		}
	}

	for cidr, addrs := range s.System.CurrentSubnets {
		f.System.CurrentSubnets[cidr.String()] = addrStrings(addrs)
	}
	for iface, addrs := range s.System.CurrentInterfaces {
		f.System.CurrentInterfaces[iface] = addrStrings(addrs)
	}
	f.System.Gateways = addrStrings(s.System.Gateways)

	return f, nil
}

func fromFile(f *fileV) (*State, error) {
	s := &State{
		Peers:     make(map[string]*peer.Peer, len(f.Peers)),
		Prefs:     prefs.New(),
		System:    sysstate.Empty(),
		SchemaVer: f.Version,
	}
	s.Prefs.Bools = map[prefs.Bool]bool{}
	for k, v := range f.Prefs.Bools {
		s.Prefs.Bools[prefsBoolKeyToNative(k)] = v
	}
	for k, v := range f.Prefs.Lists {
		s.Prefs.Lists[prefsListKeyToNative(k)] = v
	}
	s.Prefs.ExpireTime = f.Prefs.ExpireTime
	if f.Prefs.PrimaryIP != "" {
		addr, err := netip.ParseAddr(f.Prefs.PrimaryIP)
		if err != nil {
			return nil, errs.Wrap(errs.CorruptState, err, "prefs.primary_ip")
		}
		s.Prefs.PrimaryIP = addr
	}

	wgpk, err := unb64(f.System.OurWGPK)
	if err != nil || len(wgpk) != len(wgtypes.Key{}) {
		return nil, errs.New(errs.CorruptState, "system_state.our_wg_pk is malformed")
	}
	copy(s.System.OurWGPK[:], wgpk)
	s.System.HasV6 = f.System.HasV6
	s.System.Gateways, err = parseAddrs(f.System.Gateways)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "system_state.gateways")
	}
	for cidr, addrs := range f.System.CurrentSubnets {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, errs.Wrap(errs.CorruptState, err, "system_state.current_subnets key")
		}
		parsed, err := parseAddrs(addrs)
		if err != nil {
			return nil, errs.Wrap(errs.CorruptState, err, "system_state.current_subnets value")
		}
		s.System.CurrentSubnets[prefix] = parsed
	}
	for iface, addrs := range f.System.CurrentInterfaces {
		parsed, err := parseAddrs(addrs)
		if err != nil {
			return nil, errs.Wrap(errs.CorruptState, err, "system_state.current_interfaces")
		}
		s.System.CurrentInterfaces[iface] = parsed
	}

	for vk, pv := range f.Peers {
		p, err := peerFromV(pv)
		if err != nil {
			return nil, errs.Wrap(errs.CorruptState, err, "peers.%s", vk)
		}
		s.Peers[vk] = p
	}

	return s, nil
}

func peerFromV(pv peerV) (*peer.Peer, error) {
	dv := pv.Descriptor
	pk, err := unb64(dv.PK)
	if err != nil || len(pk) != len(wgtypes.Key{}) {
		return nil, fmt.Errorf("descriptor.pk malformed")
	}
	c, err := unb64(dv.C)
	if err != nil {
		return nil, fmt.Errorf("descriptor.c malformed")
	}
	vk, err := unb64(dv.VK)
	if err != nil || len(vk) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("descriptor.vk malformed")
	}
	sig, err := unb64(dv.S)
	if err != nil {
		return nil, fmt.Errorf("descriptor.s malformed")
	}
	v4a, err := parseAddrs(dv.V4A)
	if err != nil {
		return nil, fmt.Errorf("descriptor.v4a: %w", err)
	}
	v6a, err := parseAddrs(dv.V6A)
	if err != nil {
		return nil, fmt.Errorf("descriptor.v6a: %w", err)
	}
	r, err := parsePrefixes(dv.R)
	if err != nil {
		return nil, fmt.Errorf("descriptor.r: %w", err)
	}

	d := &descriptor.Descriptor{
		C:        c,
		VK:       vk,
		S:        sig,
		VF:       dv.VF,
		DT:       dv.DT,
		Port:     dv.Port,
		Hostname: dv.Hostname,
		V4A:      v4a,
		V6A:      v6a,
		R:        r,
		E:        dv.E,
	}
	copy(d.PK[:], pk)

	p := &peer.Peer{
		Descriptor:    d,
		Petname:       pv.Petname,
		Nicknames:     pv.Nicknames,
		NicknameOrder: fallbackOrder(pv.NicknameOrder, pv.Nicknames),
		IPv4Addrs:     pv.IPv4Addrs,
		IPv4Order:     fallbackOrder(pv.IPv4Order, pv.IPv4Addrs),
		IPv6Addrs:     pv.IPv6Addrs,
		IPv6Order:     fallbackOrder(pv.IPv6Order, pv.IPv6Addrs),
		UseAsGateway:  pv.UseAsGateway,
		Pinned:        pv.Pinned,
		Enabled:       pv.Enabled,
		Verified:      pv.Verified,
	}
	return p, nil
}

// fallbackOrder returns the persisted insertion order, or (for state files
// written before order tracking existed) a sorted fallback so every key in
// the map is still represented.
func fallbackOrder(order []string, m map[string]bool) []string {
	if len(order) == len(m) {
		return order
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func prefixStrings(prefixes []netip.Prefix) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}

func parseAddrs(in []string) ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(in))
	for _, s := range in {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parsePrefixes(in []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(in))
	for _, s := range in {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// prefsBoolKeyToNative and prefsListKeyToNative convert a YAML map key to
// the prefs package's Bool/List string types; the underlying
// representation is the same string either way.
func prefsBoolKeyToNative(k string) prefs.Bool { return prefs.Bool(k) }
func prefsListKeyToNative(k string) prefs.List { return prefs.List(k) }

// Load reads the persisted state file at path, validating it against the
// aggregate schema. A read/parse/validate failure is CorruptState, fatal
// at startup per §7.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "reading state file %s", path)
	}
	var f fileV
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "parsing state file %s", path)
	}
	s, err := fromFile(&f)
	if err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "decoding state file %s", path)
	}
	if _, err := Validate(s); err != nil {
		return nil, errs.Wrap(errs.CorruptState, err, "validating state file %s", path)
	}
	return s, nil
}

// Dump writes State to path atomically (write-temp-then-rename, §5), after
// every successful commit.
func Dump(path string, s *State) error {
	f, err := toFile(s)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vula-state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp state file into place: %w", err)
	}
	return nil
}
