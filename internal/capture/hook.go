package capture

import (
	"sync"
	"time"

	"github.com/bendahl/uinput"
	"github.com/rs/zerolog"
)

// sinkBufferSize is generous enough to absorb a burst of mouse motion
// between dispatch-loop ticks without the reader threads ever blocking
// on a full channel (spec §4.4, §9: the OS callback path must not
// block).
const sinkBufferSize = 4096

// Hook is ShareFlow's global keyboard/pointer capture. While running it
// exclusively grabs every evdev input node, so the mouse trap is
// inherent: the desktop compositor sees no motion or key events at all
// until Stop is called, and Linux relative-axis reports are already
// pure deltas so no cursor re-pinning is needed to get clean dx/dy
// (spec §4.4's degraded-mode allowance: "implementations without the
// ability to reposition the cursor MAY instead ... accept the
// degradation near screen edges" — evdev needs neither the
// repositioning nor the degradation).
type Hook struct {
	logger zerolog.Logger

	mu        sync.Mutex
	running   bool
	devices   []*openedDevice
	sink      chan rawEvent
	stop      chan struct{}
	wg        sync.WaitGroup
	passKbd   uinput.Keyboard
	mods      *modifierState
	presses   *pressTracker
	events    chan Event
	exitHatch chan struct{}
}

// New creates a Hook. Call Start to begin capturing.
func New(logger zerolog.Logger) *Hook {
	return &Hook{
		logger:    logger.With().Str("component", "capture.hook").Logger(),
		mods:      newModifierState(),
		presses:   newPressTracker(),
		events:    make(chan Event, sinkBufferSize),
		exitHatch: make(chan struct{}, 1),
	}
}

// Events delivers captured input, drained by the coordinator (spec
// §4.4, §4.7).
func (h *Hook) Events() <-chan Event { return h.events }

// ExitRequested fires once when the Ctrl+Alt+Q escape hatch is pressed
// (spec §4.4: "a fixed key combination ... MUST always exit capture
// mode, even mid-drag or mid-keystroke, to avoid a stuck session").
func (h *Hook) ExitRequested() <-chan struct{} { return h.exitHatch }

// Start grabs every evdev input node and begins forwarding decoded
// events. Calling Start while already running is a no-op.
func (h *Hook) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	devices, err := discoverDevices()
	if err != nil {
		return err
	}

	passKbd, err := uinput.CreateKeyboard("/dev/uinput", []byte("shareflow-passthrough"))
	if err != nil {
		for _, d := range devices {
			d.release()
		}
		return err
	}

	h.devices = devices
	h.passKbd = passKbd
	h.sink = make(chan rawEvent, sinkBufferSize)
	h.stop = make(chan struct{})
	h.mods = newModifierState()
	h.presses.reset()
	h.running = true

	for _, d := range devices {
		h.wg.Add(1)
		go func(dev *openedDevice) {
			defer h.wg.Done()
			readDevice(dev, h.sink)
		}(d)
	}

	h.wg.Add(1)
	go h.dispatchLoop()

	h.wg.Add(1)
	go h.longPressLoop()

	h.logger.Info().Int("devices", len(devices)).Msg("capture started")
	return nil
}

// Stop releases every grabbed device and stops forwarding events.
// Calling Stop while not running is a no-op.
func (h *Hook) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	devices := h.devices
	passKbd := h.passKbd
	close(h.stop)
	h.mu.Unlock()

	for _, d := range devices {
		d.release()
	}
	if passKbd != nil {
		passKbd.Close()
	}
	h.wg.Wait()
	h.logger.Info().Msg("capture stopped")
}

func (h *Hook) dispatchLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case ev := <-h.sink:
			h.handle(ev)
		}
	}
}

func (h *Hook) handle(ev rawEvent) {
	now := time.Now()

	switch ev.evType {
	case evKey:
		h.handleKey(ev, now)
	case evRel:
		h.handleRel(ev)
	}
}

func (h *Hook) handleKey(ev rawEvent, now time.Time) {
	down := ev.value == keyDown
	if ev.value != keyUp && ev.value != keyDown {
		return // repeat
	}

	// Mouse buttons arrive as EV_KEY with BTN_LEFT, BTN_RIGHT and
	// BTN_MIDDLE (0x110-0x112), which map in order to 0=left, 1=right,
	// 2=middle.
	if ev.code >= 0x110 && ev.code <= 0x112 {
		evType := EventMouseUp
		if down {
			evType = EventMouseDown
		}
		h.emit(Event{Type: evType, Button: uint8(ev.code - 0x110), Timestamp: now.UnixMilli()})
		return
	}

	h.mods.update(ev.code, down)

	if int(ev.code) == evdevQ && down && h.mods.ctrlAndAltHeld() {
		h.passthroughEscape()
		select {
		case h.exitHatch <- struct{}{}:
		default:
		}
		return
	}

	if down {
		h.presses.down(ev.code, now)
	} else {
		h.presses.up(ev.code)
	}

	code, name := infoForEvdev(int(ev.code))
	evType := EventKeyUp
	if down {
		evType = EventKeyDown
	}
	h.emit(Event{Type: evType, KeyCode: code, KeyName: name, Timestamp: now.UnixMilli()})
}

func (h *Hook) handleRel(ev rawEvent) {
	now := time.Now()
	switch ev.code {
	case relX:
		h.emit(Event{Type: EventMouseMove, DX: ev.value, DY: 0, Timestamp: now.UnixMilli()})
	case relY:
		h.emit(Event{Type: EventMouseMove, DX: 0, DY: ev.value, Timestamp: now.UnixMilli()})
	case relWhl:
		h.emit(Event{Type: EventWheel, DY: ev.value, Timestamp: now.UnixMilli()})
	}
}

func (h *Hook) longPressLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(longPressTick)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			for _, code := range h.presses.due(now) {
				wireCode, name := infoForEvdev(int(code))
				h.emit(Event{Type: EventLongPress, KeyCode: wireCode, KeyName: name, Timestamp: now.UnixMilli()})
			}
		}
	}
}

// emit delivers an event to the consumer, dropping it if the consumer
// has stalled rather than blocking the dispatch loop (same
// drop-under-pressure posture as the device read threads).
func (h *Hook) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn().Str("type", string(ev.Type)).Msg("event dropped, consumer not keeping up")
	}
}

// passthroughEscape re-injects the Q keystroke via a dedicated virtual
// keyboard. The exclusive grab on the real keyboard swallows every
// event including the escape combination itself, so without this the
// local OS would never see Q go down and back up, leaving it stuck
// from the window manager's perspective (spec §4.4).
func (h *Hook) passthroughEscape() {
	if h.passKbd == nil {
		return
	}
	if err := h.passKbd.KeyDown(evdevQ); err != nil {
		h.logger.Warn().Err(err).Msg("escape hatch passthrough keydown failed")
	}
	if err := h.passKbd.KeyUp(evdevQ); err != nil {
		h.logger.Warn().Err(err).Msg("escape hatch passthrough keyup failed")
	}
}
