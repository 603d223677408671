package timers

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "TMR"
	saveVersion = 1
)

func (t *timer) writeState(body *savestate.Writer) {
	body.Value(t.counter)
	body.Value(t.target)
	body.Value(t.syncEnable)
	body.Value(uint32(t.syncMode))
	body.Value(t.resetAtTgt)
	body.Value(t.irqOnTarget)
	body.Value(t.irqOnMax)
	body.Value(t.irqRepeat)
	body.Value(t.irqToggle)
	body.Value(uint32(t.clockSrc))
	body.Value(t.noIRQ)
	body.Value(t.reachedTarget)
	body.Value(t.reachedMax)
	body.Value(t.irqLine)
	body.Value(t.firedOnce)
	body.Value(t.paused)
	body.Value(t.inBlank)
	body.Value(int32(t.dotFrac))
}

func (t *timer) readState(body *savestate.Reader) {
	var syncMode32, clockSrc32 uint32
	var dotFrac32 int32
	body.Value(&t.counter)
	body.Value(&t.target)
	body.Value(&t.syncEnable)
	body.Value(&syncMode32)
	body.Value(&t.resetAtTgt)
	body.Value(&t.irqOnTarget)
	body.Value(&t.irqOnMax)
	body.Value(&t.irqRepeat)
	body.Value(&t.irqToggle)
	body.Value(&clockSrc32)
	body.Value(&t.noIRQ)
	body.Value(&t.reachedTarget)
	body.Value(&t.reachedMax)
	body.Value(&t.irqLine)
	body.Value(&t.firedOnce)
	body.Value(&t.paused)
	body.Value(&t.inBlank)
	body.Value(&dotFrac32)
	t.syncMode = syncMode(syncMode32)
	t.clockSrc = clockSource(clockSrc32)
	t.dotFrac = int(dotFrac32)
}

// SaveState writes all three counters plus the shared dot-clock
// fractional accumulators.
func (ts *Timers) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		for i := range ts.t {
			ts.t[i].writeState(body)
		}
		body.Value(ts.gpuDotFrac)
		body.Value(ts.sysDiv8Rem)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (ts *Timers) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		for i := range ts.t {
			ts.t[i].readState(body)
		}
		body.Value(&ts.gpuDotFrac)
		body.Value(&ts.sysDiv8Rem)
		return body.Err()
	})
}
