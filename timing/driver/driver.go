// Package driver runs memory traces through the scheduler as an Akita
// ticking component.
//
// The component dispatches the program in order, advances the scheduler one
// cycle per tick, and applies retired accesses to a backing storage so that
// traces have observable data effects.
package driver

import (
	"encoding/binary"

	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/oosim/insts"
	"github.com/sarchlab/oosim/timing/lsu"
	"github.com/sarchlab/oosim/timing/sched"
)

// Statistics holds data-movement counters for the driver.
type Statistics struct {
	// BytesLoaded is the number of bytes read from storage by retired
	// loads.
	BytesLoaded uint64
	// BytesStored is the number of bytes written to storage by retired
	// stores.
	BytesStored uint64
}

// Comp drives a memory trace through the scheduler, one cycle per tick.
type Comp struct {
	*sim.TickingComponent

	scheduler *sched.Scheduler
	storage   *mem.Storage

	program       []*insts.Instruction
	nextDispatch  int
	dispatchWidth int

	stats Statistics
}

// Builder constructs driver components.
type Builder struct {
	engine        sim.Engine
	freq          sim.Freq
	scheduler     *sched.Scheduler
	storage       *mem.Storage
	dispatchWidth int
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:          1 * sim.GHz,
		dispatchWidth: 4,
	}
}

// WithEngine sets the event engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the tick frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithScheduler sets the memory scheduler to drive.
func (b Builder) WithScheduler(scheduler *sched.Scheduler) Builder {
	b.scheduler = scheduler
	return b
}

// WithStorage sets the backing storage retired accesses are applied to.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithDispatchWidth bounds how many instructions are dispatched per cycle.
func (b Builder) WithDispatchWidth(width int) Builder {
	b.dispatchWidth = width
	return b
}

// Build creates the driver component.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		scheduler:     b.scheduler,
		storage:       b.storage,
		dispatchWidth: b.dispatchWidth,
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	return c
}

// SetProgram installs the trace to simulate.
func (c *Comp) SetProgram(program []*insts.Instruction) {
	c.program = program
	c.nextDispatch = 0
}

// Tick advances the model by one cycle. It returns false once the whole
// program has retired, which lets the ticking machinery go idle.
func (c *Comp) Tick() bool {
	if c.nextDispatch >= len(c.program) && c.scheduler.Done() {
		return false
	}

	for i := 0; i < c.dispatchWidth && c.nextDispatch < len(c.program); i++ {
		inst := c.program[c.nextDispatch]
		if c.scheduler.Dispatch(inst) != lsu.StatusAvailable {
			break
		}
		c.nextDispatch++
	}

	c.scheduler.Cycle()

	for _, retired := range c.scheduler.DrainRetired() {
		c.applyAccess(retired)
	}

	return true
}

// applyAccess replays a retired access against the backing storage. Stores
// write a marker derived from the instruction's program position so trace
// authors can inspect write ordering; loads read the bytes back.
func (c *Comp) applyAccess(retired sched.RetiredAccess) {
	if c.storage == nil || retired.MA == nil {
		return
	}

	var marker [8]byte
	binary.LittleEndian.PutUint64(marker[:], uint64(retired.Inst.SourceIndex))

	for _, r := range retired.MA.Ranges() {
		if r.IsStore {
			data := make([]byte, r.Size)
			for i := range data {
				data[i] = marker[i%len(marker)]
			}
			if err := c.storage.Write(r.Addr, data); err != nil {
				continue
			}
			c.stats.BytesStored += uint64(r.Size)
		} else {
			if _, err := c.storage.Read(r.Addr, uint64(r.Size)); err != nil {
				continue
			}
			c.stats.BytesLoaded += uint64(r.Size)
		}
	}
}

// Scheduler returns the driven scheduler.
func (c *Comp) Scheduler() *sched.Scheduler {
	return c.scheduler
}

// Stats returns the driver's data-movement counters.
func (c *Comp) Stats() Statistics {
	return c.stats
}
