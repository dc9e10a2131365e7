//go:build linux

package capture

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Linux evdev event types and codes this package cares about. The full
// table is much larger; ShareFlow only needs keys, relative motion and
// the wheel (spec §4.4).
const (
	evKey   = 0x01
	evRel   = 0x02
	relX    = 0x00
	relY    = 0x01
	relWhl  = 0x08
	keyUp   = 0
	keyDown = 1
	// keyRepeat (2) is ignored; repeats don't change capture state.
)

// eviocgrab is _IOW('E', 0x90, int) on a 64-bit kernel ABI, used to take
// exclusive control of a device node so events stop reaching the
// desktop compositor while captured (spec §4.4's mouse trap). Adapted
// from dantte-lp-gobfd's raw-ioctl idiom in rawsock_linux.go.
const eviocgrab = 0x40044590

// rawEvent is the decoded form of Linux's struct input_event on a
// 64-bit ABI: two 8-byte timestamp fields, a 2-byte type, a 2-byte
// code, and a 4-byte value (24 bytes total).
type rawEvent struct {
	evType uint16
	code   uint16
	value  int32
}

const rawEventSize = 24

func readRawEvent(r io.Reader, buf []byte) (rawEvent, error) {
	if _, err := io.ReadFull(r, buf[:rawEventSize]); err != nil {
		return rawEvent{}, err
	}
	return rawEvent{
		evType: binary.LittleEndian.Uint16(buf[16:18]),
		code:   binary.LittleEndian.Uint16(buf[18:20]),
		value:  int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

// openedDevice is one grabbed /dev/input/eventN node.
type openedDevice struct {
	path string
	file *os.File
}

// discoverDevices opens every /dev/input/eventN node and exclusively
// grabs it. Nodes that cannot be opened (permissions, already grabbed
// elsewhere) are skipped rather than failing the whole hook, since a
// desktop typically exposes several event nodes and only some of them
// are the real keyboard/mouse.
func discoverDevices() ([]*openedDevice, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, errors.Wrap(err, "capture: glob /dev/input")
	}

	var devices []*openedDevice
	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_RDWR, 0)
		if err != nil {
			continue
		}
		if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, 1); err != nil {
			f.Close()
			continue
		}
		devices = append(devices, &openedDevice{path: p, file: f})
	}

	if len(devices) == 0 {
		return nil, errors.New("capture: no /dev/input event nodes could be grabbed")
	}
	return devices, nil
}

func (d *openedDevice) release() {
	unix.IoctlSetInt(int(d.file.Fd()), eviocgrab, 0)
	d.file.Close()
}

// readDevice blocks reading raw events from dev and forwards decoded
// ones to sink until dev is closed. It locks its goroutine to an OS
// thread: the blocking read syscall then parks that thread rather than
// the Go scheduler's shared pool, mirroring the dedicated-OS-thread
// posture a native global hook uses (spec §4.4, §9).
func readDevice(dev *openedDevice, sink chan<- rawEvent) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	buf := make([]byte, rawEventSize)
	for {
		ev, err := readRawEvent(dev.file, buf)
		if err != nil {
			return
		}
		if ev.evType != evKey && ev.evType != evRel {
			continue
		}
		select {
		case sink <- ev:
		default:
			// Sink is a generously buffered channel drained promptly by
			// the hook's dispatch loop; a full sink means the consumer
			// has stalled. Drop rather than block the read thread, since
			// blocking here would stall every other grabbed device too.
		}
	}
}
