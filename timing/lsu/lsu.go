// Package lsu models the load/store unit of an out-of-order core.
//
// The unit tracks in-flight memory instructions through two bounded queues
// (the load queue and the store queue) and a dependency graph of memory
// groups. Dispatch assigns every memory instruction to a group and wires the
// ordering edges that decide when the instruction may issue relative to older
// loads, stores, and barriers. When precise address metadata is available,
// provably disjoint accesses are downgraded to ordering-only edges; a load
// that is disjoint from the current store gets no edge from it at all.
package lsu

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/sarchlab/oosim/insts"
	"github.com/sarchlab/oosim/metadata"
	"github.com/sarchlab/oosim/timing/model"
)

// Status is the availability verdict for a memory instruction.
type Status int

const (
	// StatusAvailable means the instruction can be dispatched.
	StatusAvailable Status = iota
	// StatusLoadQueueFull means the load queue has no free slot.
	StatusLoadQueueFull
	// StatusStoreQueueFull means the store queue has no free slot.
	StatusStoreQueueFull
)

// String returns a short description of the verdict.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusLoadQueueFull:
		return "load queue full"
	case StatusStoreQueueFull:
		return "store queue full"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// UnitBase owns the bookkeeping shared by load/store unit policies: the
// group table, the queue counters, the metadata lookup, and the alias
// policy. Group IDs grow monotonically from 1 and are never reused; ID 0 is
// the "no group" sentinel.
type UnitBase struct {
	lqSize int
	sqSize int
	usedLQ int
	usedSQ int

	assumeNoAlias bool
	nextGroupID   uint32
	groups        map[uint32]*MemoryGroup
	registry      *metadata.Registry
}

// NewUnitBase creates the shared bookkeeping. Queue sizes of zero are
// resolved through the scheduling model's extra processor info when present;
// a size that remains zero means the queue is unbounded. The registry may be
// nil, in which case every instruction is treated as having no address
// metadata and the assumeNoAlias flag decides aliasing.
func NewUnitBase(
	sm *model.SchedModel,
	lqSize, sqSize int,
	assumeNoAlias bool,
	registry *metadata.Registry,
) *UnitBase {
	u := &UnitBase{
		lqSize:        lqSize,
		sqSize:        sqSize,
		assumeNoAlias: assumeNoAlias,
		nextGroupID:   1,
		groups:        make(map[uint32]*MemoryGroup),
		registry:      registry,
	}

	if sm != nil && sm.HasExtraProcessorInfo() {
		epi := sm.ExtraInfo
		if u.lqSize == 0 && epi.LoadQueueID != 0 {
			u.lqSize = max(0, sm.ProcResource(epi.LoadQueueID).BufferSize)
		}
		if u.sqSize == 0 && epi.StoreQueueID != 0 {
			u.sqSize = max(0, sm.ProcResource(epi.StoreQueueID).BufferSize)
		}
	}

	return u
}

// LoadQueueSize returns the load queue capacity; zero means unbounded.
func (u *UnitBase) LoadQueueSize() int { return u.lqSize }

// StoreQueueSize returns the store queue capacity; zero means unbounded.
func (u *UnitBase) StoreQueueSize() int { return u.sqSize }

// UsedLQEntries returns the number of occupied load queue slots.
func (u *UnitBase) UsedLQEntries() int { return u.usedLQ }

// UsedSQEntries returns the number of occupied store queue slots.
func (u *UnitBase) UsedSQEntries() int { return u.usedSQ }

// AssumeNoAlias returns the fallback alias policy used when an instruction
// carries no address metadata.
func (u *UnitBase) AssumeNoAlias() bool { return u.assumeNoAlias }

func (u *UnitBase) acquireLQSlot() { u.usedLQ++ }
func (u *UnitBase) acquireSQSlot() { u.usedSQ++ }

func (u *UnitBase) releaseLQSlot() {
	if u.usedLQ == 0 {
		log.Panicf("lsu: load queue slot released twice")
	}
	u.usedLQ--
}

func (u *UnitBase) releaseSQSlot() {
	if u.usedSQ == 0 {
		log.Panicf("lsu: store queue slot released twice")
	}
	u.usedSQ--
}

// IsLQFull returns true if the load queue is bounded and full.
func (u *UnitBase) IsLQFull() bool {
	return u.lqSize != 0 && u.usedLQ == u.lqSize
}

// IsSQFull returns true if the store queue is bounded and full.
func (u *UnitBase) IsSQFull() bool {
	return u.sqSize != 0 && u.usedSQ == u.sqSize
}

// CreateMemoryGroup allocates a fresh, empty group and returns its ID.
func (u *UnitBase) CreateMemoryGroup() uint32 {
	gid := u.nextGroupID
	u.nextGroupID++
	u.groups[gid] = &MemoryGroup{}
	return gid
}

// Group returns the live group with the given ID. Looking up a dead or
// never-allocated ID is a caller bug.
func (u *UnitBase) Group(gid uint32) *MemoryGroup {
	g, ok := u.groups[gid]
	if !ok {
		log.Panicf("lsu: group %d is not live", gid)
	}
	return g
}

// IsValidGroupID returns true if the ID names a live group.
func (u *UnitBase) IsValidGroupID(gid uint32) bool {
	_, ok := u.groups[gid]
	return gid != 0 && ok
}

// MemoryAccessMD returns the memory-access metadata registered for the
// instruction, or nil if the unit has no registry or the instruction carries
// no token.
func (u *UnitBase) MemoryAccessMD(inst *insts.Instruction) *MemoryAccess {
	if u.registry == nil || !inst.HasMetadataToken {
		return nil
	}
	value, ok := u.registry.Get(metadata.CategoryLSUMemAccess, inst.MetadataToken)
	if !ok {
		return nil
	}
	return value.(*MemoryAccess)
}

// NoAlias reports whether the given group provably does not alias the
// access. The interval test is authoritative only when both sides carry
// metadata; otherwise the assumeNoAlias policy decides. A group with no
// bundled accesses (a barrier dispatched without metadata) therefore falls
// back to the policy flag as well.
func (u *UnitBase) NoAlias(gid uint32, ma *MemoryAccess) bool {
	if ma != nil {
		g := u.Group(gid)
		if len(g.memAccesses) != 0 {
			return !g.IsMemAccessAlias(ma)
		}
	}
	return u.assumeNoAlias
}

// isStore resolves the effective store-ness of an instruction. Metadata may
// reclassify an otherwise-opaque instruction as a store.
func isStore(desc insts.Desc, ma *MemoryAccess) bool {
	return desc.MayStore || (ma != nil && ma.IsStore)
}

// IsReady returns true if the instruction's group has all predecessors
// executed.
func (u *UnitBase) IsReady(inst *insts.Instruction) bool {
	return u.Group(inst.LSQToken).IsReady()
}

// IsPending returns true if the instruction's group is only waiting on
// predecessors that already started executing.
func (u *UnitBase) IsPending(inst *insts.Instruction) bool {
	return u.Group(inst.LSQToken).IsPending()
}

// IsWaiting returns true if the instruction's group has predecessors that
// have not started executing.
func (u *UnitBase) IsWaiting(inst *insts.Instruction) bool {
	return u.Group(inst.LSQToken).IsWaiting()
}

// HasDependentUsers returns true if younger groups depend on the
// instruction's group.
func (u *UnitBase) HasDependentUsers(inst *insts.Instruction) bool {
	return u.Group(inst.LSQToken).NumSuccessors() != 0
}

// CriticalPredecessor returns the longest-latency dependency of the
// instruction's group.
func (u *UnitBase) CriticalPredecessor(inst *insts.Instruction) CriticalDependency {
	return u.Group(inst.LSQToken).CriticalPredecessor()
}

// CycleEvent advances every live group by one cycle.
func (u *UnitBase) CycleEvent() {
	for _, g := range u.groups {
		g.CycleEvent()
	}
}

// OnInstructionIssued notifies the instruction's group that the instruction
// started executing.
func (u *UnitBase) OnInstructionIssued(inst *insts.Instruction) {
	u.Group(inst.LSQToken).OnInstructionIssued(inst)
}

// OnInstructionExecuted notifies the instruction's group that the
// instruction finished, removing the group once fully executed.
func (u *UnitBase) OnInstructionExecuted(inst *insts.Instruction) {
	gid := inst.LSQToken
	g, ok := u.groups[gid]
	if !ok {
		log.Panicf("lsu: instruction %d was not dispatched to the load/store unit",
			inst.SourceIndex)
	}
	g.OnInstructionExecuted(inst)
	if g.IsExecuted() {
		delete(u.groups, gid)
	}
}

// OnInstructionRetired releases the queue slots held by the instruction.
func (u *UnitBase) OnInstructionRetired(inst *insts.Instruction) {
	ma := u.MemoryAccessMD(inst)
	isALoad := inst.Desc.MayLoad
	isAStore := isStore(inst.Desc, ma)
	if !isALoad && !isAStore {
		log.Panicf("lsu: retiring non-memory instruction %d", inst.SourceIndex)
	}

	if isALoad {
		u.releaseLQSlot()
	}
	if isAStore {
		u.releaseSQSlot()
	}
}

// Dump formats the queue occupancy and every live group for diagnostics.
func (u *UnitBase) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[LSUnit] LQ_Size = %d\n", u.lqSize)
	fmt.Fprintf(&sb, "[LSUnit] SQ_Size = %d\n", u.sqSize)
	fmt.Fprintf(&sb, "[LSUnit] UsedLQEntries = %d\n", u.usedLQ)
	fmt.Fprintf(&sb, "[LSUnit] UsedSQEntries = %d\n", u.usedSQ)

	gids := make([]uint32, 0, len(u.groups))
	for gid := range u.groups {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })

	for _, gid := range gids {
		g := u.groups[gid]
		fmt.Fprintf(&sb,
			"[LSUnit] Group (%d): [ #Preds = %d, #GIssued = %d, #GExecuted = %d, #Inst = %d, #IIssued = %d, #IExecuted = %d ]\n",
			gid, g.NumPredecessors(), g.NumExecutingPredecessors(),
			g.NumExecutedPredecessors(), g.NumInstructions(),
			g.NumExecuting(), g.NumExecuted())
	}
	return sb.String()
}
