package descriptor

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/vula-mesh/vula/internal/errs"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// field keys, matching spec.md §3/§4.A exactly.
const (
	keyPK       = "pk"
	keyC        = "c"
	keyVK       = "vk"
	keyS        = "s"
	keyVF       = "vf"
	keyDT       = "dt"
	keyPort     = "port"
	keyHostname = "hostname"
	keyV4A      = "v4a"
	keyV6A      = "v6a"
	keyR        = "r"
	keyE        = "e"
)

var allKeys = []string{keyPK, keyC, keyVK, keyS, keyVF, keyDT, keyPort, keyHostname, keyV4A, keyV6A, keyR, keyE}

func b64enc(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func b64dec(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(s)
}

// fieldMap renders every descriptor field (including s, if present) into a
// key/value map of ASCII strings, the representation both the textual
// encoding and the signing canonicalization build upon.
func (d *Descriptor) fieldMap(includeSig bool) map[string]string {
	m := map[string]string{
		keyPK:       b64enc(d.PK[:]),
		keyC:        b64enc(d.C),
		keyVK:       b64enc(d.VK),
		keyVF:       strconv.FormatInt(d.VF, 10),
		keyDT:       strconv.FormatInt(d.DT, 10),
		keyPort:     strconv.Itoa(int(d.Port)),
		keyHostname: d.Hostname,
		keyV4A:      joinAddrs(d.V4A),
		keyV6A:      joinAddrs(d.V6A),
		keyE:        strconv.FormatBool(d.E),
	}
	if len(d.R) > 0 {
		m[keyR] = joinPrefixes(d.R)
	}
	if includeSig {
		m[keyS] = b64enc(d.S)
	}
	return m
}

func joinAddrs(addrs []netip.Addr) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

func joinPrefixes(prefixes []netip.Prefix) string {
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// canonicalBytes builds the exact byte string Ed25519 signs and verifies:
// fields sorted lexicographically by key, excluding "s", joined with ";".
func canonicalBytes(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == keyS {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return []byte(b.String())
}

// Encode renders the descriptor as its textual "key=value;key=value" form,
// suitable for chunking into a TXT record set (§4.A). The signature must
// already be populated (see Sign).
func (d *Descriptor) Encode() (string, error) {
	if len(d.S) == 0 {
		return "", errs.New(errs.BadSignature, "descriptor has no signature")
	}
	fields := d.fieldMap(true)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String(), nil
}

// Parse reverses Encode and then verifies the signature, returning
// BadSignature or SchemaError on failure; freshness is not checked here
// (Validate returns ExpiredDescriptor). Unknown keys
// are ignored (§4.A parse policy).
func Parse(text string) (*Descriptor, error) {
	fields := map[string]string{}
	for _, kv := range strings.Split(text, ";") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, errs.New(errs.SchemaErr, "malformed field %q", kv)
		}
		fields[parts[0]] = parts[1]
	}

	d, err := fromFields(fields)
	if err != nil {
		return nil, err
	}

	sig, ok := fields[keyS]
	if !ok {
		return nil, errs.New(errs.BadSignature, "missing signature field")
	}
	s, err := b64dec(sig)
	if err != nil {
		return nil, errs.Wrap(errs.BadSignature, err, "invalid signature encoding")
	}
	d.S = s

	canon := canonicalBytes(d.fieldMap(false))
	if !ed25519.Verify(ed25519.PublicKey(d.VK), canon, d.S) {
		return nil, errs.New(errs.BadSignature, "signature does not verify against vk")
	}
	return d, nil
}

func fromFields(fields map[string]string) (*Descriptor, error) {
	d := &Descriptor{}

	pkb, err := b64dec(fields[keyPK])
	if err != nil || len(pkb) != len(wgtypes.Key{}) {
		return nil, errs.New(errs.SchemaErr, "invalid pk field")
	}
	copy(d.PK[:], pkb)

	c, err := b64dec(fields[keyC])
	if err != nil {
		return nil, errs.New(errs.SchemaErr, "invalid c field")
	}
	d.C = c

	vk, err := b64dec(fields[keyVK])
	if err != nil || len(vk) != ed25519.PublicKeySize {
		return nil, errs.New(errs.SchemaErr, "invalid vk field")
	}
	d.VK = vk

	vf, err := strconv.ParseInt(fields[keyVF], 10, 64)
	if err != nil {
		return nil, errs.New(errs.SchemaErr, "invalid vf field")
	}
	d.VF = vf

	dt, err := strconv.ParseInt(fields[keyDT], 10, 64)
	if err != nil {
		return nil, errs.New(errs.SchemaErr, "invalid dt field")
	}
	d.DT = dt

	port, err := strconv.Atoi(fields[keyPort])
	if err != nil || port < 1 || port > 65535 {
		return nil, errs.New(errs.SchemaErr, "invalid port field")
	}
	d.Port = uint16(port)

	d.Hostname = fields[keyHostname]
	if len(d.Hostname) == 0 || len(d.Hostname) > 63 {
		return nil, errs.New(errs.SchemaErr, "hostname out of bounds")
	}

	d.V4A, err = parseAddrList(fields[keyV4A])
	if err != nil {
		return nil, errs.Wrap(errs.SchemaErr, err, "invalid v4a field")
	}
	d.V6A, err = parseAddrList(fields[keyV6A])
	if err != nil {
		return nil, errs.Wrap(errs.SchemaErr, err, "invalid v6a field")
	}
	if len(d.V4A) == 0 && len(d.V6A) == 0 {
		return nil, errs.New(errs.SchemaErr, "descriptor has no addresses")
	}

	if rv, ok := fields[keyR]; ok && rv != "" {
		d.R, err = parsePrefixList(rv)
		if err != nil {
			return nil, errs.Wrap(errs.SchemaErr, err, "invalid r field")
		}
	}

	e, err := strconv.ParseBool(fields[keyE])
	if err != nil {
		return nil, errs.New(errs.SchemaErr, "invalid e field")
	}
	d.E = e

	return d, nil
}

func parseAddrList(s string) ([]netip.Addr, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]netip.Addr, 0, len(parts))
	for _, p := range parts {
		a, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("address %q: %w", p, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func parsePrefixList(s string) ([]netip.Prefix, error) {
	parts := strings.Split(s, ",")
	out := make([]netip.Prefix, 0, len(parts))
	for _, p := range parts {
		pfx, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", p, err)
		}
		out = append(out, pfx)
	}
	return out, nil
}
