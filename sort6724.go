package aresdriver

import (
	"net"
	"net/netip"
	"slices"
)

// This file adapts the RFC 6724 destination-address sort — the same
// algorithm Go's own net package runs internally for DNS results — to the
// ResolvedAddress sequence a HostnameRequest accumulates. Rules 3, 4 and 7
// (deprecated/home addresses, native-vs-encapsulated transport) need state
// this driver has no way to observe and are left unimplemented, matching
// the upstream implementation this was adapted from.

type scope uint8

const (
	scopeInterfaceLocal scope = 0x1
	scopeLinkLocal      scope = 0x2
	scopeSiteLocal      scope = 0x5
	scopeGlobal         scope = 0xe
)

func classifyScope(ip netip.Addr) scope {
	if ip.IsLoopback() || ip.IsInterfaceLocalMulticast() {
		return scopeInterfaceLocal
	}
	ipv6 := ip.Is6() && !ip.Is4In6()
	as16 := ip.As16()
	if ipv6 && ip.IsMulticast() {
		return scope(as16[1] & 0xf)
	}
	if ip.IsLinkLocalUnicast() || (ipv6 && ip.IsMulticast() && as16[1]&0xf == 0x2) {
		return scopeLinkLocal
	}
	// Site-local addresses, RFC 3513 §2.5.6 (deprecated by RFC 3879).
	if ipv6 && as16[0] == 0xfe && as16[1]&0xc0 == 0xc0 {
		return scopeSiteLocal
	}
	return scopeGlobal
}

type policyTableEntry struct {
	prefix     netip.Prefix
	precedence uint8
	label      uint8
}

// rfc6724policyTable is RFC 6724 §2.1, ordered from largest prefix mask to
// smallest so the first match in classifyPolicy is the longest match.
var rfc6724policyTable = []policyTableEntry{
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}), 128), 50, 0},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}), 96), 35, 4},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{}), 96), 1, 3},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0x20, 0x01}), 32), 5, 5}, // Teredo
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0x20, 0x02}), 16), 30, 2}, // 6to4
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0x3f, 0xfe}), 16), 1, 12},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0xfe, 0xc0}), 10), 1, 11},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{0xfc}), 7), 3, 13},
	{netip.PrefixFrom(netip.AddrFrom16([16]byte{}), 0), 40, 1},
}

func classifyPolicy(ip netip.Addr) policyTableEntry {
	if ip.Is4() {
		ip = netip.AddrFrom16(ip.As16())
	}
	for _, ent := range rfc6724policyTable {
		if ent.prefix.Contains(ip) {
			return ent
		}
	}
	return policyTableEntry{}
}

type ipAttr struct {
	scope      scope
	precedence uint8
	label      uint8
}

func ipAttrOf(ip netip.Addr) ipAttr {
	if !ip.IsValid() {
		return ipAttr{}
	}
	m := classifyPolicy(ip)
	return ipAttr{scope: classifyScope(ip), precedence: m.precedence, label: m.label}
}

// srcAddrFor discovers the local address the kernel would route through to
// reach dst by UDP-connecting to it; no packet is sent. It is a package var
// so tests can fake routing decisions without real sockets.
var srcAddrFor = func(dst net.IP) netip.Addr {
	c, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: dst, Port: 53})
	if err != nil {
		return netip.Addr{}
	}
	defer c.Close()
	local, ok := c.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}
	}
	addr, _ := netip.AddrFromSlice(local.IP)
	return addr
}

func commonPrefixLen(a netip.Addr, b net.IP) (cpl int) {
	if b4 := b.To4(); b4 != nil {
		b = b4
	}
	aSlice := a.AsSlice()
	if len(aSlice) != len(b) {
		return 0
	}
	if len(aSlice) > 8 {
		aSlice = aSlice[:8]
		b = b[:8]
	}
	for len(aSlice) > 0 {
		if aSlice[0] == b[0] {
			cpl += 8
			aSlice = aSlice[1:]
			b = b[1:]
			continue
		}
		bits := 8
		ab, bb := aSlice[0], b[0]
		for {
			ab >>= 1
			bb >>= 1
			bits--
			if ab == bb {
				cpl += bits
				return
			}
		}
	}
	return
}

type rfc6724Record struct {
	addr     ResolvedAddress
	addrAttr ipAttr
	src      netip.Addr
	srcAttr  ipAttr
}

// compareByRFC6724 implements RFC 6724 §6 rules 1, 2, 5, 6, 8, 9, 10.
func compareByRFC6724(a, b rfc6724Record) int {
	const preferA, preferB = -1, 1

	if !a.src.IsValid() && !b.src.IsValid() {
		return 0
	}
	if !b.src.IsValid() {
		return preferA
	}
	if !a.src.IsValid() {
		return preferB
	}

	// Rule 2: prefer matching scope.
	if a.addrAttr.scope == a.srcAttr.scope && b.addrAttr.scope != b.srcAttr.scope {
		return preferA
	}
	if a.addrAttr.scope != a.srcAttr.scope && b.addrAttr.scope == b.srcAttr.scope {
		return preferB
	}

	// Rule 5: prefer matching label.
	if a.srcAttr.label == a.addrAttr.label && b.srcAttr.label != b.addrAttr.label {
		return preferA
	}
	if a.srcAttr.label != a.addrAttr.label && b.srcAttr.label == b.addrAttr.label {
		return preferB
	}

	// Rule 6: prefer higher precedence.
	if a.addrAttr.precedence > b.addrAttr.precedence {
		return preferA
	}
	if a.addrAttr.precedence < b.addrAttr.precedence {
		return preferB
	}

	// Rule 8: prefer smaller scope.
	if a.addrAttr.scope < b.addrAttr.scope {
		return preferA
	}
	if a.addrAttr.scope > b.addrAttr.scope {
		return preferB
	}

	// Rule 9: longest matching prefix, IPv6 only (matches upstream: applying
	// it to IPv4 causes more harm than good).
	if a.addr.IP.To4() == nil && b.addr.IP.To4() == nil {
		ca := commonPrefixLen(a.src, a.addr.IP)
		cb := commonPrefixLen(b.src, b.addr.IP)
		if ca > cb {
			return preferA
		}
		if ca < cb {
			return preferB
		}
	}

	// Rule 10: stable, leave order unchanged.
	return 0
}

// sortByRFC6724 returns a new slice, addrs sorted by RFC 6724 destination
// address preference. The sort is stable so equal-ranked addresses keep the
// stub's original relative order (spec.md §4.4: "stable for equal keys").
func sortByRFC6724(addrs []ResolvedAddress) []ResolvedAddress {
	if len(addrs) < 2 {
		out := make([]ResolvedAddress, len(addrs))
		copy(out, addrs)
		return out
	}
	records := make([]rfc6724Record, len(addrs))
	for i, a := range addrs {
		dstAttrIP, _ := netip.AddrFromSlice(a.IP)
		src := srcAddrFor(a.IP)
		records[i] = rfc6724Record{
			addr:     a,
			addrAttr: ipAttrOf(dstAttrIP),
			src:      src,
			srcAttr:  ipAttrOf(src),
		}
	}
	slices.SortStableFunc(records, compareByRFC6724)
	out := make([]ResolvedAddress, len(records))
	for i, r := range records {
		out[i] = r.addr
	}
	return out
}
