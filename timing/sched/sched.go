// Package sched provides a memory instruction scheduler for the timing
// model.
//
// The scheduler dispatches instructions in program order into the load/store
// unit, issues them out of order as their memory groups become ready,
// completes them after their execution latency, and retires them in program
// order, releasing queue resources.
package sched

import (
	"github.com/sarchlab/oosim/insts"
	"github.com/sarchlab/oosim/timing/latency"
	"github.com/sarchlab/oosim/timing/lsu"
)

// Statistics holds scheduler performance counters.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Dispatched is the number of instructions accepted by the unit.
	Dispatched uint64
	// DispatchStalls is the number of rejected dispatch attempts.
	DispatchStalls uint64
	// Issued is the number of instructions that started executing.
	Issued uint64
	// Executed is the number of instructions that finished executing.
	Executed uint64
	// Retired is the number of instructions retired.
	Retired uint64
}

// IPC returns retired instructions per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Retired) / float64(s.Cycles)
}

// RetiredAccess pairs a retired instruction with its memory-access metadata,
// if any. The driver applies these to the backing storage.
type RetiredAccess struct {
	Inst *insts.Instruction
	MA   *lsu.MemoryAccess
}

type entry struct {
	inst     *insts.Instruction
	issued   bool
	executed bool
}

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithIssueWidth bounds how many instructions may issue per cycle.
// Zero (the default) means unbounded.
func WithIssueWidth(width int) Option {
	return func(s *Scheduler) {
		s.issueWidth = width
	}
}

// Scheduler drives memory instructions through the load/store unit cycle by
// cycle.
type Scheduler struct {
	unit       *lsu.Unit
	latencies  *latency.Table
	issueWidth int

	entries    []*entry
	retireHead int

	retired []RetiredAccess
	stats   Statistics
}

// New creates a scheduler on top of the given load/store unit.
func New(unit *lsu.Unit, latencies *latency.Table, opts ...Option) *Scheduler {
	s := &Scheduler{
		unit:      unit,
		latencies: latencies,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch offers one instruction to the load/store unit. On success the
// instruction is stamped with its group token and begins tracking; on a
// queue-full verdict the caller must retry in a later cycle.
func (s *Scheduler) Dispatch(inst *insts.Instruction) lsu.Status {
	status := s.unit.IsAvailable(inst)
	if status != lsu.StatusAvailable {
		s.stats.DispatchStalls++
		return status
	}

	inst.LSQToken = s.unit.Dispatch(inst)
	inst.CyclesLeft = s.latencies.GetLatency(inst)
	s.entries = append(s.entries, &entry{inst: inst})
	s.stats.Dispatched++
	return lsu.StatusAvailable
}

// Cycle advances the model by one cycle: in-flight instructions make
// progress, ready instructions issue, and completed instructions retire in
// program order. An instruction issued this cycle starts counting down on
// the next one.
func (s *Scheduler) Cycle() {
	s.stats.Cycles++
	s.unit.CycleEvent()

	// Complete in-flight instructions.
	for _, e := range s.entries[s.retireHead:] {
		if !e.issued || e.executed {
			continue
		}
		e.inst.CyclesLeft--
		if e.inst.CyclesLeft > 0 {
			continue
		}
		e.executed = true
		s.unit.OnInstructionExecuted(e.inst)
		s.stats.Executed++
	}

	// Issue instructions whose group is ready, oldest first.
	issued := 0
	for _, e := range s.entries[s.retireHead:] {
		if s.issueWidth != 0 && issued >= s.issueWidth {
			break
		}
		if e.issued || !s.unit.IsReady(e.inst) {
			continue
		}
		e.issued = true
		s.unit.OnInstructionIssued(e.inst)
		issued++
		s.stats.Issued++
	}

	// Retire in program order.
	for s.retireHead < len(s.entries) && s.entries[s.retireHead].executed {
		inst := s.entries[s.retireHead].inst
		s.retired = append(s.retired, RetiredAccess{
			Inst: inst,
			MA:   s.unit.MemoryAccessMD(inst),
		})
		s.unit.OnInstructionRetired(inst)
		s.retireHead++
		s.stats.Retired++
	}
}

// Done returns true when every dispatched instruction has retired.
func (s *Scheduler) Done() bool {
	return s.retireHead == len(s.entries)
}

// DrainRetired returns the accesses retired since the last call.
func (s *Scheduler) DrainRetired() []RetiredAccess {
	retired := s.retired
	s.retired = nil
	return retired
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Statistics {
	return s.stats
}

// Unit returns the underlying load/store unit.
func (s *Scheduler) Unit() *lsu.Unit {
	return s.unit
}
