package descriptor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/vula-mesh/vula/internal/errs"
)

// Label is the DNS-SD service this descriptor is published under (§6).
const Label = "_opabinia._udp.local."

// recordMax is the conventional per-string budget used by ZeroConf/Avahi
// TXT records; chunking targets this so a single announcement always fits
// one multicast packet.
const recordMax = 255

// TXT renders the descriptor into a dns.TXT resource record whose Txt
// strings are the chunked "key=value" pairs of §4.A, one pair per string.
func (d *Descriptor) TXT(owner string) (*dns.TXT, error) {
	if len(d.S) == 0 {
		return nil, errs.New(errs.BadSignature, "descriptor has no signature")
	}
	fields := d.fieldMap(true)
	chunked, err := Chunk(fields, recordMax)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(chunked))
	for k := range chunked {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txt := make([]string, len(keys))
	for i, k := range keys {
		txt[i] = fmt.Sprintf("%s=%s", k, chunked[k])
	}

	return &dns.TXT{
		Hdr: dns.RR_Header{
			Name:   owner,
			Rrtype: dns.TypeTXT,
			Class:  dns.ClassINET,
		},
		Txt: txt,
	}, nil
}

// FromTXT reassembles a chunked descriptor from a dns.TXT record's strings
// and verifies it, mirroring Parse but starting from wire TXT strings
// instead of a single concatenated text form.
func FromTXT(rr *dns.TXT) (*Descriptor, error) {
	raw := map[string]string{}
	for _, entry := range rr.Txt {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, errs.New(errs.SchemaErr, "malformed TXT entry %q", entry)
		}
		raw[parts[0]] = parts[1]
	}
	fields := Unchunk(raw)

	var b strings.Builder
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return Parse(b.String())
}

// skewSeconds bounds how far into the future a descriptor's vf may claim to
// be relative to the validator's clock.
const skewSeconds = 300

// Validate checks the freshness and hostname invariants of §3/§4.A that
// Parse/FromTXT cannot check on their own (they need "now"): vf not too far
// in the future, descriptor not expired, hostname syntactically a DNS name.
func (d *Descriptor) Validate(now time.Time) error {
	if d.VF > now.Unix()+skewSeconds {
		return errs.New(errs.SchemaErr, "vf %d is too far in the future", d.VF)
	}
	if d.Expired(now) {
		return errs.New(errs.ExpiredDescriptor, "descriptor for vk=%s expired at vf+dt=%d", d.VKBase64(), d.VF+d.DT)
	}
	if !dns.IsDomainName(d.Hostname) {
		return errs.New(errs.SchemaErr, "hostname %q is not a valid DNS name", d.Hostname)
	}
	return nil
}
