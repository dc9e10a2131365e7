package capture

import "sync"

// modifierState tracks which of Ctrl/Alt are currently held, keyed by
// evdev keycode, so the escape hatch (Ctrl+Alt+Q, spec §4.4) can be
// recognized independent of which side of the keyboard was pressed.
type modifierState struct {
	mu   sync.Mutex
	ctrl map[uint16]bool
	alt  map[uint16]bool
}

func newModifierState() *modifierState {
	return &modifierState{
		ctrl: make(map[uint16]bool, 2),
		alt:  make(map[uint16]bool, 2),
	}
}

func (m *modifierState) update(code uint16, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch code {
	case evdevLeftCtrl, evdevRightCtrl:
		m.ctrl[code] = down
	case evdevLeftAlt, evdevRightAlt:
		m.alt[code] = down
	}
}

func (m *modifierState) ctrlAndAltHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return anyTrue(m.ctrl) && anyTrue(m.alt)
}

func anyTrue(m map[uint16]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}
