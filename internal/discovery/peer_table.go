// Package discovery implements periodic UDP broadcast announce/listen
// and peer table maintenance (spec §4.2).
package discovery

import (
	"sync"
	"time"

	"github.com/shareflow/shareflow/internal/device"
)

// StaleAfter is how long a peer-table entry survives without a fresh
// announce before it is eligible for pruning (spec §3).
const StaleAfter = 10 * time.Second

// entry pairs a descriptor with the instant it was last refreshed.
type entry struct {
	descriptor device.Descriptor
	lastSeen   time.Time
}

// PeerTable maps device id to (descriptor, last-seen). The coordinator
// exclusively mutates it; any reader takes the short lock (spec §3,
// §5).
type PeerTable struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewPeerTable returns an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{entries: make(map[string]entry)}
}

// Upsert inserts or refreshes the entry for d, stamping it with now.
func (t *PeerTable) Upsert(d device.Descriptor, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[d.ID] = entry{descriptor: d, lastSeen: now}
}

// Get returns the descriptor for id, if present.
func (t *PeerTable) Get(id string) (device.Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e.descriptor, ok
}

// FindByIP returns the descriptor whose last-announced IP matches ip,
// used to resolve an inbound TCP connection's remote address back to a
// device descriptor (spec §4.3).
func (t *PeerTable) FindByIP(ip string) (device.Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.descriptor.IP == ip {
			return e.descriptor, true
		}
	}
	return device.Descriptor{}, false
}

// Prune removes entries whose last-seen instant is older than
// StaleAfter relative to now. Returns the number removed.
func (t *PeerTable) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, e := range t.entries {
		if now.Sub(e.lastSeen) > StaleAfter {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Snapshot prunes stale entries relative to now and returns the
// remaining descriptors (spec §3: pruning happens on demand, when the
// UI requests a list).
func (t *PeerTable) Snapshot(now time.Time) []device.Descriptor {
	t.Prune(now)

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]device.Descriptor, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.descriptor)
	}
	return out
}

// Len reports the current entry count without pruning.
func (t *PeerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
