package lsu

import (
	"log"

	"github.com/sarchlab/oosim/insts"
)

// CriticalDependency records the longest-latency predecessor instruction
// observed by a group at issue time.
type CriticalDependency struct {
	// SourceIndex identifies the predecessor instruction.
	SourceIndex int
	// Cycles is the number of cycles the predecessor still needed when it
	// was last observed. Decremented by CycleEvent while the group waits.
	Cycles uint64
}

// MemoryGroup is a node in the memory dependency graph. It represents one or
// more memory instructions dispatched together that share the same in-flight
// ordering constraints.
//
// A group moves through four states:
//
//	waiting/pending -> ready (all predecessors executed)
//	               -> executing (every remaining instruction issued)
//	               -> executed (every instruction finished)
//
// Successors are split by edge kind. An ordering edge is released as soon as
// this group starts executing; a data edge is released only when this group
// has fully executed.
type MemoryGroup struct {
	numPredecessors          uint32
	numExecutingPredecessors uint32
	numExecutedPredecessors  uint32

	numInstructions uint32
	numExecuting    uint32
	numExecuted     uint32

	orderSucc []*MemoryGroup
	dataSucc  []*MemoryGroup

	criticalPredecessor CriticalDependency
	criticalInst        *insts.Instruction

	memAccesses []*MemoryAccess
}

// NumPredecessors returns the number of incoming dependency edges.
func (g *MemoryGroup) NumPredecessors() uint32 { return g.numPredecessors }

// NumExecutingPredecessors returns the number of predecessors that have
// started but not finished executing.
func (g *MemoryGroup) NumExecutingPredecessors() uint32 {
	return g.numExecutingPredecessors
}

// NumExecutedPredecessors returns the number of predecessors that have fully
// executed.
func (g *MemoryGroup) NumExecutedPredecessors() uint32 {
	return g.numExecutedPredecessors
}

// NumSuccessors returns the number of outgoing dependency edges.
func (g *MemoryGroup) NumSuccessors() int {
	return len(g.orderSucc) + len(g.dataSucc)
}

// NumInstructions returns the number of instructions in the group.
func (g *MemoryGroup) NumInstructions() uint32 { return g.numInstructions }

// NumExecuting returns the number of instructions that have issued but not
// finished.
func (g *MemoryGroup) NumExecuting() uint32 { return g.numExecuting }

// NumExecuted returns the number of instructions that have finished.
func (g *MemoryGroup) NumExecuted() uint32 { return g.numExecuted }

// CriticalPredecessor returns the longest-latency dependency observed at
// issue time.
func (g *MemoryGroup) CriticalPredecessor() CriticalDependency {
	return g.criticalPredecessor
}

// IsWaiting returns true if the group still has predecessors that have not
// started executing.
func (g *MemoryGroup) IsWaiting() bool {
	return g.numPredecessors != 0 &&
		g.numExecutedPredecessors+g.numExecutingPredecessors < g.numPredecessors
}

// IsPending returns true if every predecessor has at least started executing
// but not all have finished.
func (g *MemoryGroup) IsPending() bool {
	return g.numExecutingPredecessors != 0 &&
		g.numExecutedPredecessors+g.numExecutingPredecessors == g.numPredecessors
}

// IsReady returns true if every predecessor has executed.
func (g *MemoryGroup) IsReady() bool {
	return g.numExecutedPredecessors == g.numPredecessors
}

// IsExecuting returns true if every instruction that has not yet finished is
// currently in flight, and at least one is.
func (g *MemoryGroup) IsExecuting() bool {
	return g.numExecuting != 0 &&
		g.numExecuting == g.numInstructions-g.numExecuted
}

// IsExecuted returns true if every instruction in the group has finished.
func (g *MemoryGroup) IsExecuted() bool {
	return g.numInstructions == g.numExecuted
}

// AddInstruction adds one instruction to the group. The caller guarantees the
// group is still accumulating, which implies no successor has been wired yet.
func (g *MemoryGroup) AddInstruction() {
	if g.NumSuccessors() != 0 {
		log.Panicf("lsu: cannot add instructions to a group with successors")
	}
	g.numInstructions++
}

// AddMemAccess appends the access to the group's bundle. A nil access is
// ignored, which happens for instructions with no registered metadata.
func (g *MemoryGroup) AddMemAccess(ma *MemoryAccess) {
	if ma == nil {
		return
	}
	g.memAccesses = append(g.memAccesses, ma)
}

// IsMemAccessAlias reports whether any access bundled in the group overlaps
// the incoming access.
func (g *MemoryGroup) IsMemAccessAlias(ma *MemoryAccess) bool {
	for _, groupMA := range g.memAccesses {
		if groupMA.Overlaps(ma) {
			return true
		}
	}
	return false
}

// AddSuccessor wires a dependency edge from g to succ. The edge makes g a
// predecessor of succ. Data edges are released when g has fully executed;
// ordering edges are released as soon as g starts executing, so an ordering
// edge from a group that is already executing is not recorded at all.
func (g *MemoryGroup) AddSuccessor(succ *MemoryGroup, isDataDependent bool) {
	if !isDataDependent && g.IsExecuting() {
		return
	}

	succ.numPredecessors++
	if g.IsExecuted() {
		log.Panicf("lsu: adding a successor to an executed group")
	}
	if g.IsExecuting() {
		succ.OnGroupIssued(g.criticalInst, isDataDependent)
	}

	if isDataDependent {
		g.dataSucc = append(g.dataSucc, succ)
	} else {
		g.orderSucc = append(g.orderSucc, succ)
	}
}

// OnGroupIssued records that a predecessor group started executing. When the
// edge is data dependent, the critical-dependency info is refreshed from the
// predecessor's slowest in-flight instruction.
func (g *MemoryGroup) OnGroupIssued(critical *insts.Instruction, updateCriticalDep bool) {
	if g.IsReady() {
		log.Panicf("lsu: group-issued event on a ready group")
	}
	g.numExecutingPredecessors++

	if !updateCriticalDep || critical == nil {
		return
	}
	if g.criticalPredecessor.Cycles < critical.CyclesLeft {
		g.criticalPredecessor.SourceIndex = critical.SourceIndex
		g.criticalPredecessor.Cycles = critical.CyclesLeft
	}
}

// OnGroupExecuted records that a predecessor group finished executing.
func (g *MemoryGroup) OnGroupExecuted() {
	if g.IsReady() {
		log.Panicf("lsu: group-executed event on a ready group")
	}
	g.numExecutingPredecessors--
	g.numExecutedPredecessors++
}

// OnInstructionIssued records that one of the group's instructions started
// executing. When the whole group transitions to executing, ordering
// successors are released immediately and data successors observe the issue.
func (g *MemoryGroup) OnInstructionIssued(inst *insts.Instruction) {
	if g.IsExecuting() {
		log.Panicf("lsu: instruction issued into a fully executing group")
	}
	g.numExecuting++

	if g.criticalInst == nil || g.criticalInst.CyclesLeft < inst.CyclesLeft {
		g.criticalInst = inst
	}

	if !g.IsExecuting() {
		return
	}

	for _, succ := range g.orderSucc {
		succ.OnGroupIssued(g.criticalInst, false)
		succ.OnGroupExecuted()
	}
	for _, succ := range g.dataSucc {
		succ.OnGroupIssued(g.criticalInst, true)
	}
}

// OnInstructionExecuted records that one of the group's instructions
// finished. When the last instruction finishes, data successors are released.
func (g *MemoryGroup) OnInstructionExecuted(inst *insts.Instruction) {
	if !g.IsReady() || g.IsExecuted() {
		log.Panicf("lsu: instruction-executed event in an invalid group state")
	}
	g.numExecuting--
	g.numExecuted++

	if g.criticalInst != nil && g.criticalInst.SourceIndex == inst.SourceIndex {
		g.criticalInst = nil
	}

	if !g.IsExecuted() {
		return
	}

	for _, succ := range g.dataSucc {
		succ.OnGroupExecuted()
	}
}

// CycleEvent advances the group's deferred counters by one cycle.
func (g *MemoryGroup) CycleEvent() {
	if g.IsWaiting() && g.criticalPredecessor.Cycles != 0 {
		g.criticalPredecessor.Cycles--
	}
}
