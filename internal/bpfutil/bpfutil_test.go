package bpfutil

import (
	"net"
	"testing"
)

func TestFormatIPv4(t *testing.T) {
	tests := []struct {
		ip       uint32
		expected string
	}{
		{0x0100007F, "127.0.0.1"},
		{0x08080808, "8.8.8.8"},
		{0x00000000, "0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatIPv4(tt.ip); got != tt.expected {
				t.Errorf("FormatIPv4(%d) = %q, want %q", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestClassifyPeerSameHost(t *testing.T) {
	local := []net.IP{net.ParseIP("10.0.0.5").To4()}
	class := ClassifyPeer(net.ParseIP("10.0.0.5"), local)
	if class != PeerSameHost {
		t.Errorf("ClassifyPeer() = %q, want %q", class, PeerSameHost)
	}
}

func TestClassifyPeerSameHostMapped(t *testing.T) {
	local := []net.IP{net.ParseIP("10.0.0.5").To4()}
	class := ClassifyPeer(net.ParseIP("::ffff:10.0.0.5"), local)
	if class != PeerSameHost {
		t.Errorf("ClassifyPeer() with a mapped address = %q, want %q", class, PeerSameHost)
	}
}

func TestClassifyPeerSameSubnet(t *testing.T) {
	local := []net.IP{net.ParseIP("10.0.0.5").To4()}
	class := ClassifyPeer(net.ParseIP("10.0.0.99"), local)
	if class != PeerSameSubnet {
		t.Errorf("ClassifyPeer() = %q, want %q", class, PeerSameSubnet)
	}
}

func TestClassifyPeerExternal(t *testing.T) {
	local := []net.IP{net.ParseIP("10.0.0.5").To4()}
	class := ClassifyPeer(net.ParseIP("8.8.8.8"), local)
	if class != PeerExternal {
		t.Errorf("ClassifyPeer() = %q, want %q", class, PeerExternal)
	}
}

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivate(net.ParseIP(tt.ip)); got != tt.private {
				t.Errorf("isPrivate(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}
