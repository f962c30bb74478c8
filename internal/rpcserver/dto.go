package rpcserver

import (
	"net/netip"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/vula-mesh/vula/internal/errs"
	"github.com/vula-mesh/vula/internal/prefs"
	"github.com/vula-mesh/vula/internal/sysstate"
)

func parseWGKey(s string) (wgtypes.Key, error) {
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return wgtypes.Key{}, errs.Wrap(errs.SchemaErr, err, "invalid wireguard key")
	}
	return k, nil
}

// systemStateRequest is the JSON shape of new_system_state's body: a
// platform-specific collaborator (netlink watcher, wg show parser, etc.)
// collects the live network picture and hands it to the daemon across
// this boundary, mirroring internal/state/persist.go's fileV pattern of
// a plain-string DTO around netip types that don't marshal to JSON on
// their own.
type systemStateRequest struct {
	CurrentSubnets    map[string][]string `json:"current_subnets"`
	CurrentInterfaces map[string][]string `json:"current_interfaces"`
	OurWGPK           string              `json:"our_wg_pk"`
	Gateways          []string            `json:"gateways"`
	HasV6             bool                `json:"has_v6"`
}

func (r systemStateRequest) toSystemState() (sysstate.SystemState, error) {
	out := sysstate.Empty()
	out.HasV6 = r.HasV6

	for prefixStr, addrStrs := range r.CurrentSubnets {
		prefix, err := netip.ParsePrefix(prefixStr)
		if err != nil {
			return sysstate.SystemState{}, errs.Wrap(errs.SchemaErr, err, "invalid subnet %q", prefixStr)
		}
		addrs, err := parseAddrList(addrStrs)
		if err != nil {
			return sysstate.SystemState{}, err
		}
		out.CurrentSubnets[prefix] = addrs
	}

	for iface, addrStrs := range r.CurrentInterfaces {
		addrs, err := parseAddrList(addrStrs)
		if err != nil {
			return sysstate.SystemState{}, err
		}
		out.CurrentInterfaces[iface] = addrs
	}

	for _, g := range r.Gateways {
		addr, err := netip.ParseAddr(g)
		if err != nil {
			return sysstate.SystemState{}, errs.Wrap(errs.SchemaErr, err, "invalid gateway %q", g)
		}
		out.Gateways = append(out.Gateways, addr)
	}

	if r.OurWGPK != "" {
		pk, err := parseWGKey(r.OurWGPK)
		if err != nil {
			return sysstate.SystemState{}, err
		}
		out.OurWGPK = pk
	}

	return out, nil
}

func parseAddrList(raw []string) ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(raw))
	for _, s := range raw {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, errs.Wrap(errs.SchemaErr, err, "invalid address %q", s)
		}
		out = append(out, a)
	}
	return out, nil
}

type prefsDTO struct {
	Bools map[string]bool     `json:"bools"`
	Lists map[string][]string `json:"lists"`
}

func prefsToDTO(p *prefs.Prefs) prefsDTO {
	dto := prefsDTO{Bools: map[string]bool{}, Lists: map[string][]string{}}
	for _, key := range []prefs.Bool{
		prefs.PinNewPeers, prefs.AcceptNonlocal, prefs.AutoRepair, prefs.EphemeralMode,
		prefs.AcceptDefaultRoute, prefs.RecordEvents, prefs.OverwriteUnpinned,
		prefs.EnableIPv4, prefs.EnableIPv6,
	} {
		v, _ := p.GetBool(key)
		dto.Bools[string(key)] = v
	}
	for _, key := range []prefs.List{
		prefs.SubnetsAllowed, prefs.SubnetsForbidden, prefs.IfacePrefixAllowed, prefs.LocalDomains,
	} {
		v, _ := p.GetList(key)
		dto.Lists[string(key)] = v
	}
	return dto
}
