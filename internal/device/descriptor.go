// Package device derives the local device descriptor and classifies
// network interfaces/addresses for discovery (spec §3, §4.2, §6).
package device

import (
	"os"
	"strings"
)

// DefaultKind is the opaque device-kind tag used when none is
// configured (spec §3).
const DefaultKind = "DESKTOP"

// Descriptor identifies a ShareFlow peer: (id, name, ip, kind).
// Invariant: ID is unique per host within a discovery window (spec §3).
type Descriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
	Kind string `json:"type"`
}

// DeriveID computes the stable device id from a hostname: lowercased,
// spaces replaced with dashes, prefixed "device-" (spec §3).
func DeriveID(hostname string) string {
	lower := strings.ToLower(strings.TrimSpace(hostname))
	dashed := strings.ReplaceAll(lower, " ", "-")
	return "device-" + dashed
}

// LocalDescriptor builds the Descriptor for the current host: hostname
// derived id/name, the OS's local IP chosen per SelectLocalIP, and the
// given kind tag (DefaultKind if empty).
func LocalDescriptor(kind string) (Descriptor, error) {
	if kind == "" {
		kind = DefaultKind
	}

	hostname, err := os.Hostname()
	if err != nil {
		return Descriptor{}, err
	}

	ip, err := SelectLocalIP()
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		ID:   DeriveID(hostname),
		Name: hostname,
		IP:   ip.String(),
		Kind: kind,
	}, nil
}
