package device

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// virtualNameSubstrings are interface-name fragments that mark a
// virtual/tunnel adapter to exclude from discovery (spec §4.2).
var virtualNameSubstrings = []string{
	"virtualbox",
	"vmware",
	"hyper-v",
	"docker",
	"wsl",
	"vethernet",
}

// IsVirtualInterfaceName reports whether name looks like a
// virtual/tunnel adapter that discovery should ignore.
func IsVirtualInterfaceName(name string) bool {
	lower := strings.ToLower(name)
	for _, sub := range virtualNameSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// IsExcludedIP reports whether ip is loopback, link-local (APIPA,
// 169.254/16), or in the 198.18/15 benchmarking range — all excluded
// from broadcast-set computation and local-IP reporting (spec §4.2, §6).
func IsExcludedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	v4 := ip.To4()
	if v4 == nil {
		return true // discovery is IPv4-only (spec §4.2)
	}
	if v4[0] == 198 && (v4[1] == 18 || v4[1] == 19) {
		return true
	}
	return false
}

// classifyPrivate reports whether ip falls in one of the RFC-1918
// ranges discovery cares about (spec §4.2).
func classifyPrivate(v4 net.IP) bool {
	switch {
	case v4[0] == 192 && v4[1] == 168:
		return true
	case v4[0] == 10:
		return true
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
		return true
	default:
		return false
	}
}

// LimitedBroadcast is the fallback broadcast address used when no
// RFC-1918 interface is found (spec §4.2).
var LimitedBroadcast = net.IPv4(255, 255, 255, 255)

// BroadcastAddrs enumerates active IPv4 interfaces and returns the
// /24 directed-broadcast address for each RFC-1918 address found,
// skipping loopback, link-local, and named/ranged virtual adapters.
// If none are found, it returns the limited broadcast address as a
// single-element fallback (spec §4.2).
func BroadcastAddrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "device: list interfaces")
	}

	var out []net.IP
	seen := map[string]bool{}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if IsVirtualInterfaceName(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil {
				continue
			}
			if IsExcludedIP(v4) {
				continue
			}
			if !classifyPrivate(v4) {
				continue
			}

			bcast := net.IPv4(v4[0], v4[1], v4[2], 255)
			key := bcast.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, bcast)
		}
	}

	if len(out) == 0 {
		out = append(out, LimitedBroadcast)
	}
	return out, nil
}

// SelectLocalIP chooses the IPv4 address to report as this host's own
// (spec §6): prefer 192.168.x.x, then first 10.x.x.x or 172.16-31.x.x,
// else the OS default route's source address. Loopback, APIPA,
// 198.18/15, and named virtual adapters are excluded throughout.
func SelectLocalIP() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "device: list interfaces")
	}

	var (
		preferred192 net.IP
		fallbackPriv net.IP
	)

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if IsVirtualInterfaceName(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil || IsExcludedIP(v4) {
				continue
			}
			if !classifyPrivate(v4) {
				continue
			}

			if v4[0] == 192 && v4[1] == 168 {
				if preferred192 == nil {
					preferred192 = append(net.IP(nil), v4...)
				}
				continue
			}
			if fallbackPriv == nil {
				fallbackPriv = append(net.IP(nil), v4...)
			}
		}
	}

	if preferred192 != nil {
		return preferred192, nil
	}
	if fallbackPriv != nil {
		return fallbackPriv, nil
	}

	return defaultRouteSource()
}

// defaultRouteSource asks the OS which local address it would use to
// reach the internet, without sending any traffic (connected UDP
// sockets don't transmit until Write is called).
func defaultRouteSource() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return nil, errors.Wrap(err, "device: resolve default route source")
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, errors.New("device: unexpected local address type")
	}
	return addr.IP, nil
}
