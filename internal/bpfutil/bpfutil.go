// Package bpfutil provides shared utilities for eBPF probe modules:
// address formatting and peer classification that every network-facing
// probe needs but that doesn't belong in the wire schema itself.
package bpfutil

import (
	"fmt"
	"net"
)

// FormatIPv4 converts a uint32 IPv4 address (network byte order, as the
// kernel delivers it) to dotted-decimal string.
func FormatIPv4(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(ip), byte(ip>>8), byte(ip>>16), byte(ip>>24))
}

// PeerClass classifies a destination address relative to the host's own
// interface addresses (spec §9 Open Question, decided: classified in
// userspace, not in the bytecode).
type PeerClass string

const (
	PeerSameHost   PeerClass = "same_host"
	PeerSameSubnet PeerClass = "same_subnet"
	PeerExternal   PeerClass = "external"
)

// ClassifyPeer compares daddr (a plain IPv4 or an IPv4-mapped IPv6 address)
// against the host's local addresses and private-range tables to decide how
// "close" the traffic's peer is.
func ClassifyPeer(daddr net.IP, localAddrs []net.IP) PeerClass {
	for _, local := range localAddrs {
		if local.Equal(daddr) {
			return PeerSameHost
		}
	}
	if isPrivate(daddr) {
		return PeerSameSubnet
	}
	return PeerExternal
}

// isPrivate reports whether ip falls in an RFC1918 or loopback range.
func isPrivate(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	private := []struct {
		net  net.IP
		mask net.IPMask
	}{
		{net.IPv4(10, 0, 0, 0), net.CIDRMask(8, 32)},
		{net.IPv4(172, 16, 0, 0), net.CIDRMask(12, 32)},
		{net.IPv4(192, 168, 0, 0), net.CIDRMask(16, 32)},
		{net.IPv4(127, 0, 0, 0), net.CIDRMask(8, 32)},
	}
	for _, p := range private {
		if p.net.Mask(p.mask).Equal(ip4.Mask(p.mask)) {
			return true
		}
	}
	return false
}

// LocalAddrs enumerates this host's IPv4 interface addresses, loopback
// included, used by ClassifyPeer to recognize same-host traffic.
func LocalAddrs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("enumerating interface addresses: %w", err)
	}
	var out []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			out = append(out, v4)
		}
	}
	return out, nil
}
