package capture

import (
	"sync"
	"time"
)

// Long-press synthesis parameters (spec §4.4): a key held past
// longPressThreshold without being released emits one synthetic
// EventLongPress, checked on a fixed tick rather than a per-key timer
// so the cost stays flat regardless of how many keys are down.
const (
	longPressTick      = 100 * time.Millisecond
	longPressThreshold = 500 * time.Millisecond
)

// pressTracker records when each key went down so the long-press
// ticker can find keys that crossed the threshold, and makes sure each
// key only fires once per press.
type pressTracker struct {
	mu      sync.Mutex
	pressed map[uint16]time.Time
	fired   map[uint16]bool
}

func newPressTracker() *pressTracker {
	return &pressTracker{
		pressed: make(map[uint16]time.Time),
		fired:   make(map[uint16]bool),
	}
}

func (p *pressTracker) down(code uint16, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed[code] = at
	delete(p.fired, code)
}

func (p *pressTracker) up(code uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pressed, code)
	delete(p.fired, code)
}

// due returns the keys that have been held past longPressThreshold and
// have not yet fired their long-press event, marking them fired.
func (p *pressTracker) due(now time.Time) []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []uint16
	for code, at := range p.pressed {
		if p.fired[code] {
			continue
		}
		if now.Sub(at) >= longPressThreshold {
			p.fired[code] = true
			out = append(out, code)
		}
	}
	return out
}

func (p *pressTracker) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed = make(map[uint16]time.Time)
	p.fired = make(map[uint16]bool)
}
