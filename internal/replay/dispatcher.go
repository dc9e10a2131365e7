package replay

import (
	"sync"

	"github.com/rs/zerolog"
)

// workers is the size of the blocking-call worker pool clicks and keys
// are dispatched to (spec §4.5, §5, §9).
const workers = 4

// job is a single click or key injection queued to the worker pool.
type job func()

// Dispatcher routes decoded input to a Backend. Motion is inlined on
// the calling goroutine because a relative-move syscall is fast and
// its serial order relative to other motions matters more than
// parallelism; clicks and keys are offloaded to a blocking worker pool
// so a slow OS injection call cannot head-of-line block the network
// reader (spec §4.5, §5, §9).
type Dispatcher struct {
	backend Backend
	logger  zerolog.Logger

	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher starts the worker pool backed by backend.
func NewDispatcher(backend Backend, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		backend: backend,
		logger:  logger.With().Str("component", "replay.dispatcher").Logger(),
		jobs:    make(chan job, 256),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		j()
	}
}

// Move injects a pointer delta inline, preserving motion-vs-motion
// ordering (spec §4.5, §5). Zero-delta moves are the sender's concern
// to suppress (spec §4.7); Move injects whatever it is given.
func (d *Dispatcher) Move(dx, dy int32) {
	if err := d.backend.MouseMove(dx, dy); err != nil {
		d.logger.Warn().Err(err).Msg("mouse move injection failed")
	}
}

// Click submits a button state change to the worker pool (spec §4.5).
func (d *Dispatcher) Click(button uint8, down bool) {
	d.jobs <- func() {
		if err := d.backend.MouseButton(button, down); err != nil {
			d.logger.Warn().Err(err).Uint8("button", button).Bool("down", down).Msg("mouse click injection failed")
		}
	}
}

// Key submits a key state change to the worker pool (spec §4.5).
func (d *Dispatcher) Key(code uint32, down bool) {
	d.jobs <- func() {
		if err := d.backend.KeyEvent(code, down); err != nil {
			d.logger.Warn().Err(err).Uint32("code", code).Bool("down", down).Msg("key injection failed")
		}
	}
}

// Stop drains queued jobs and waits for workers to exit. It does not
// close the underlying Backend; the caller owns that lifetime.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}
