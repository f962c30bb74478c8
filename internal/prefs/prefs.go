// Package prefs implements the validated user-preferences model: booleans,
// set-semantic ordered string lists, integers, and the optional primary_ip,
// all behind a closed field schema (§3/§4.C). Values are read directly;
// writes always go through the engine's write ops (see internal/engine).
package prefs

import (
	"net/netip"

	"github.com/vula-mesh/vula/internal/errs"
)

// Bool is the set of boolean preference keys.
type Bool string

const (
	PinNewPeers        Bool = "pin_new_peers"
	AcceptNonlocal      Bool = "accept_nonlocal"
	AutoRepair          Bool = "auto_repair"
	EphemeralMode       Bool = "ephemeral_mode"
	AcceptDefaultRoute  Bool = "accept_default_route"
	RecordEvents        Bool = "record_events"
	OverwriteUnpinned   Bool = "overwrite_unpinned"
	EnableIPv4          Bool = "enable_ipv4"
	EnableIPv6          Bool = "enable_ipv6"
)

// List is the set of ordered-string-list preference keys.
type List string

const (
	SubnetsAllowed     List = "subnets_allowed"
	SubnetsForbidden   List = "subnets_forbidden"
	IfacePrefixAllowed List = "iface_prefix_allowed"
	LocalDomains       List = "local_domains"
)

var boolFields = map[Bool]bool{
	PinNewPeers: true, AcceptNonlocal: true, AutoRepair: true, EphemeralMode: true,
	AcceptDefaultRoute: true, RecordEvents: true, OverwriteUnpinned: true,
	EnableIPv4: true, EnableIPv6: true,
}

var listFields = map[List]bool{
	SubnetsAllowed: true, SubnetsForbidden: true, IfacePrefixAllowed: true, LocalDomains: true,
}

// Prefs holds the current preference values. New returns the default
// state: enable_ipv4/enable_ipv6 true, every other bool false, every list
// empty, ExpireTime 0, PrimaryIP unset.
type Prefs struct {
	Bools map[Bool]bool
	Lists map[List][]string
	ExpireTime int
	PrimaryIP  netip.Addr // zero Addr means unset
}

// New returns Prefs with maps initialized and enable_ipv4/enable_ipv6
// defaulted true, matching the teacher's principle of a usable interface
// out of the box rather than an all-false default.
func New() *Prefs {
	return &Prefs{
		Bools: map[Bool]bool{EnableIPv4: true, EnableIPv6: true},
		Lists: map[List][]string{},
	}
}

// IsBoolKey reports whether field names a known boolean preference,
// letting callers outside this package (USER_EDIT's path dispatcher)
// distinguish a bool path from a list path without duplicating the
// schema.
func IsBoolKey(field string) bool {
	return boolFields[Bool(field)]
}

// IsListKey reports whether field names a known list preference.
func IsListKey(field string) bool {
	return listFields[List(field)]
}

// GetBool reads a boolean field. Unknown keys raise SchemaError.
func (p *Prefs) GetBool(key Bool) (bool, error) {
	if !boolFields[key] {
		return false, errs.New(errs.SchemaErr, "unknown boolean preference %q", key)
	}
	return p.Bools[key], nil
}

// GetList reads a list field in insertion order. Unknown keys raise
// SchemaError.
func (p *Prefs) GetList(key List) ([]string, error) {
	if !listFields[key] {
		return nil, errs.New(errs.SchemaErr, "unknown list preference %q", key)
	}
	return append([]string(nil), p.Lists[key]...), nil
}

// SetBool validates then overwrites a boolean field.
func (p *Prefs) SetBool(key Bool, value bool) error {
	if !boolFields[key] {
		return errs.New(errs.SchemaErr, "unknown boolean preference %q", key)
	}
	p.Bools[key] = value
	return nil
}

// SetList replaces a list field outright (the SET op of §4.F).
func (p *Prefs) SetList(key List, values []string) error {
	if !listFields[key] {
		return errs.New(errs.SchemaErr, "unknown list preference %q", key)
	}
	p.Lists[key] = append([]string(nil), values...)
	return nil
}

// AddListValue appends value if not already present (idempotent ADD,
// set-semantic ordered by insertion per §4.C).
func (p *Prefs) AddListValue(key List, value string) error {
	if !listFields[key] {
		return errs.New(errs.SchemaErr, "unknown list preference %q", key)
	}
	for _, v := range p.Lists[key] {
		if v == value {
			return nil
		}
	}
	p.Lists[key] = append(p.Lists[key], value)
	return nil
}

// RemoveListValue removes value if present; absent value is a no-op that
// still produces a WriteOp at the engine layer (idempotent REMOVE).
func (p *Prefs) RemoveListValue(key List, value string) error {
	if !listFields[key] {
		return errs.New(errs.SchemaErr, "unknown list preference %q", key)
	}
	out := p.Lists[key][:0:0]
	for _, v := range p.Lists[key] {
		if v != value {
			out = append(out, v)
		}
	}
	p.Lists[key] = out
	return nil
}

// Clone deep-copies Prefs for the engine's per-event tentative state.
func (p *Prefs) Clone() *Prefs {
	c := &Prefs{
		Bools:      make(map[Bool]bool, len(p.Bools)),
		Lists:      make(map[List][]string, len(p.Lists)),
		ExpireTime: p.ExpireTime,
		PrimaryIP:  p.PrimaryIP,
	}
	for k, v := range p.Bools {
		c.Bools[k] = v
	}
	for k, v := range p.Lists {
		c.Lists[k] = append([]string(nil), v...)
	}
	return c
}
