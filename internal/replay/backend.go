// Package replay injects decoded wire input back into the OS input
// subsystem (spec §4.5). Replay is stateless: each call maps directly
// to one underlying injection call, with no memory of prior events.
package replay

import (
	"github.com/bendahl/uinput"
	"github.com/pkg/errors"
)

// Button codes match the capture side: 0=left, 1=right, 2=middle
// (spec §4.4, §9 open question (a)).
const (
	ButtonLeft   uint8 = 0
	ButtonRight  uint8 = 1
	ButtonMiddle uint8 = 2
)

// Backend is the OS-level injection surface replay drives. It exists
// so the coordinator and dispatcher can be tested without a real
// uinput device.
type Backend interface {
	MouseMove(dx, dy int32) error
	MouseButton(button uint8, down bool) error
	KeyEvent(code uint32, down bool) error
	Close() error
}

// UinputBackend injects input via github.com/bendahl/uinput virtual
// keyboard and mouse devices, adapted from
// helixml-helix/api/pkg/desktop/uinput.go's VirtualInput.
type UinputBackend struct {
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
}

// NewUinputBackend creates virtual keyboard and mouse devices at
// devicePath (typically "/dev/uinput"). Requires device access
// (spec §7: capture/replay failure, usually privilege-related).
func NewUinputBackend(devicePath string) (*UinputBackend, error) {
	keyboard, err := uinput.CreateKeyboard(devicePath, []byte("shareflow-keyboard"))
	if err != nil {
		return nil, errors.Wrap(err, "replay: create virtual keyboard")
	}

	mouse, err := uinput.CreateMouse(devicePath, []byte("shareflow-mouse"))
	if err != nil {
		keyboard.Close()
		return nil, errors.Wrap(err, "replay: create virtual mouse")
	}

	return &UinputBackend{keyboard: keyboard, mouse: mouse}, nil
}

// MouseMove injects a relative pointer motion (spec §4.5).
func (b *UinputBackend) MouseMove(dx, dy int32) error {
	return b.mouse.Move(dx, dy)
}

// MouseButton injects a button state change (spec §4.5).
func (b *UinputBackend) MouseButton(button uint8, down bool) error {
	if down {
		switch button {
		case ButtonLeft:
			return b.mouse.LeftPress()
		case ButtonRight:
			return b.mouse.RightPress()
		case ButtonMiddle:
			return b.mouse.MiddlePress()
		default:
			return nil
		}
	}
	switch button {
	case ButtonLeft:
		return b.mouse.LeftRelease()
	case ButtonRight:
		return b.mouse.RightRelease()
	case ButtonMiddle:
		return b.mouse.MiddleRelease()
	default:
		return nil
	}
}

// KeyEvent maps code to an evdev keycode and injects the state change.
// Unknown codes are silently ignored (spec §4.5, §8).
func (b *UinputBackend) KeyEvent(code uint32, down bool) error {
	evdevCode, ok := EvdevForCode(code)
	if !ok {
		return nil
	}
	if down {
		return b.keyboard.KeyDown(evdevCode)
	}
	return b.keyboard.KeyUp(evdevCode)
}

// Close releases the virtual devices.
func (b *UinputBackend) Close() error {
	kErr := b.keyboard.Close()
	mErr := b.mouse.Close()
	if kErr != nil {
		return kErr
	}
	return mErr
}
