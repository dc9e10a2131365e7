package replay

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	moves   []([2]int32)
	clicks  []bool
	keys    []uint32
	keyDown []bool
	closed  bool
}

func (f *fakeBackend) MouseMove(dx, dy int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, [2]int32{dx, dy})
	return nil
}

func (f *fakeBackend) MouseButton(button uint8, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, down)
	return nil
}

func (f *fakeBackend) KeyEvent(code uint32, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, code)
	f.keyDown = append(f.keyDown, down)
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestDispatcherMoveInlineOrder(t *testing.T) {
	fb := &fakeBackend{}
	d := NewDispatcher(fb, zerolog.Nop())
	defer d.Stop()

	for i := int32(0); i < 50; i++ {
		d.Move(i, -i)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.Len(t, fb.moves, 50)
	for i, m := range fb.moves {
		assert.Equal(t, int32(i), m[0])
		assert.Equal(t, -int32(i), m[1])
	}
}

func TestDispatcherClickAndKeyDelivered(t *testing.T) {
	fb := &fakeBackend{}
	d := NewDispatcher(fb, zerolog.Nop())

	d.Click(ButtonLeft, true)
	d.Click(ButtonLeft, false)
	d.Key(65, true)
	d.Stop()

	assert.Equal(t, []bool{true, false}, fb.clicks)
	assert.Equal(t, []uint32{65}, fb.keys)
	assert.Equal(t, []bool{true}, fb.keyDown)
}

func TestEvdevForCodeUnknown(t *testing.T) {
	_, ok := EvdevForCode(0xDEAD)
	assert.False(t, ok)
}

func TestEvdevForCodeKnownCoverage(t *testing.T) {
	known := []uint32{
		8, 9, 10, 13, 27, 32, // control/whitespace
		48, 57, // digit range ends
		65, 90, // uppercase range ends
		97, 122, // lowercase range ends
		0x1001, 0x1008, // modifier group ends
	}
	for _, code := range known {
		_, ok := EvdevForCode(code)
		assert.True(t, ok, "code %d should map", code)
	}
}
