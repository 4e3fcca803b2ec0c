package utils

import (
	"log/slog"
	"net"
	"strings"
)

// tunnelInterfaceHints are interface name fragments used by VPNs and
// virtual adapters (OpenVPN, WireGuard, PPP, Cloudflare WARP).
var tunnelInterfaceHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether the host looks like it sits behind a VPN
// or carrier-grade NAT, where direct media paths usually fail and TURN
// should be used.
func ShouldForceRelay() bool {
	iface, reason := relayHint()
	if reason == "" {
		return false
	}
	slog.Debug("relay hint", "interface", iface, "reason", reason)
	return true
}

// relayHint returns the interface that triggered the relay decision and why.
func relayHint() (string, string) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", ""
	}

	// 100.64.0.0/10 is shared address space (RFC 6598): Tailscale, WARP, CGNAT.
	_, cgnatBlock, _ := net.ParseCIDR("100.64.0.0/10")

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.Name)
		for _, hint := range tunnelInterfaceHints {
			if strings.Contains(name, hint) {
				return iface.Name, "tunnel interface"
			}
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ip := addrIP(addr); ip != nil && cgnatBlock.Contains(ip) {
				return iface.Name, "shared address space"
			}
		}
	}

	return "", ""
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
