//go:build linux

package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressTrackerFiresOnceAfterThreshold(t *testing.T) {
	pt := newPressTracker()
	start := time.Now()
	pt.down(30, start)

	assert.Empty(t, pt.due(start.Add(100*time.Millisecond)))

	due := pt.due(start.Add(longPressThreshold + time.Millisecond))
	require.Len(t, due, 1)
	assert.EqualValues(t, 30, due[0])

	// Held key does not fire a second time on the next tick.
	assert.Empty(t, pt.due(start.Add(longPressThreshold + longPressTick)))
}

func TestPressTrackerResetsOnRelease(t *testing.T) {
	pt := newPressTracker()
	start := time.Now()
	pt.down(30, start)
	pt.up(30)

	assert.Empty(t, pt.due(start.Add(longPressThreshold+time.Millisecond)))
}

func TestModifierStateRequiresBothCtrlAndAlt(t *testing.T) {
	m := newModifierState()
	assert.False(t, m.ctrlAndAltHeld())

	m.update(evdevLeftCtrl, true)
	assert.False(t, m.ctrlAndAltHeld())

	m.update(evdevRightAlt, true)
	assert.True(t, m.ctrlAndAltHeld())

	m.update(evdevLeftCtrl, false)
	assert.False(t, m.ctrlAndAltHeld())
}

func TestInfoForEvdevKnownAndUnknown(t *testing.T) {
	code, name := infoForEvdev(16)
	assert.EqualValues(t, 81, code)
	assert.Equal(t, "Q", name)

	code, name = infoForEvdev(9999)
	assert.Zero(t, code)
	assert.Equal(t, "Unknown", name)
}

func TestReadRawEventDecodesLittleEndianFields(t *testing.T) {
	buf := make([]byte, rawEventSize)
	// type=EV_KEY(1), code=30 (A), value=1 (down), at offsets 16,18,20.
	buf[16] = 1
	buf[18], buf[19] = 30, 0
	buf[20] = 1

	ev, err := readRawEvent(sliceReader{buf}, make([]byte, rawEventSize))
	require.NoError(t, err)
	assert.EqualValues(t, evKey, ev.evType)
	assert.EqualValues(t, 30, ev.code)
	assert.EqualValues(t, 1, ev.value)
}

type sliceReader struct{ data []byte }

func (r sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	return n, nil
}
