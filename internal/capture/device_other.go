//go:build !linux

package capture

import "github.com/pkg/errors"

// discoverDevices has no implementation outside Linux; ShareFlow's
// capture side targets the evdev interface exclusively (spec §9: "the
// exact hook installation mechanism is host-OS-specific").
func discoverDevices() ([]*openedDevice, error) {
	return nil, errors.New("capture: unsupported platform, evdev hook requires linux")
}

type openedDevice struct{}

func (d *openedDevice) release() {}

func readDevice(dev *openedDevice, sink chan<- rawEvent) {}

type rawEvent struct {
	evType uint16
	code   uint16
	value  int32
}
