package lsu

import (
	"log"

	"github.com/sarchlab/oosim/insts"
	"github.com/sarchlab/oosim/metadata"
	"github.com/sarchlab/oosim/timing/model"
)

// Unit is the default load/store unit policy. It layers the dispatch rules
// on top of UnitBase, tracking the most recently dispatched group of each
// kind through four pointers:
//
//	currentLoad         most recent group holding loads
//	currentStore        most recent group holding a store
//	currentLoadBarrier  most recent group holding a load barrier
//	currentStoreBarrier most recent group holding a store barrier
//
// Each pointer is either zero or a live group ID, and pointers of the same
// kind only ever move forward.
type Unit struct {
	UnitBase

	currentLoadGroupID         uint32
	currentStoreGroupID        uint32
	currentLoadBarrierGroupID  uint32
	currentStoreBarrierGroupID uint32
}

// NewUnit creates a load/store unit. See NewUnitBase for the parameter
// semantics.
func NewUnit(
	sm *model.SchedModel,
	lqSize, sqSize int,
	assumeNoAlias bool,
	registry *metadata.Registry,
) *Unit {
	return &Unit{
		UnitBase: *NewUnitBase(sm, lqSize, sqSize, assumeNoAlias, registry),
	}
}

// IsAvailable checks whether the instruction can be dispatched this cycle.
// The scheduler must not call Dispatch for an instruction that is not
// available.
func (u *Unit) IsAvailable(inst *insts.Instruction) Status {
	ma := u.MemoryAccessMD(inst)
	if inst.Desc.MayLoad && u.IsLQFull() {
		return StatusLoadQueueFull
	}
	if isStore(inst.Desc, ma) && u.IsSQFull() {
		return StatusStoreQueueFull
	}
	return StatusAvailable
}

// Dispatch assigns the instruction to a memory group, acquiring queue slots
// and wiring the dependency edges that order it against older in-flight
// memory operations. It returns the group ID, which the scheduler stamps
// onto the instruction as its LSQ token.
func (u *Unit) Dispatch(inst *insts.Instruction) uint32 {
	desc := inst.Desc
	ma := u.MemoryAccessMD(inst)
	if !desc.MayLoad && !desc.MayStore {
		log.Panicf("lsu: dispatching non-memory instruction %d", inst.SourceIndex)
	}

	if desc.MayLoad {
		u.acquireLQSlot()
	}
	if isStore(desc, ma) {
		u.acquireSQSlot()
	}

	if isStore(desc, ma) {
		return u.dispatchStore(inst, ma)
	}
	return u.dispatchLoad(inst, ma)
}

// dispatchStore always starts a new group: stores never share a group.
func (u *Unit) dispatchStore(inst *insts.Instruction, ma *MemoryAccess) uint32 {
	newGID := u.CreateMemoryGroup()
	newGroup := u.Group(newGID)
	newGroup.AddInstruction()
	newGroup.AddMemAccess(ma)

	// A store may not pass a previous load or load barrier.
	loadDominator := max(u.currentLoadGroupID, u.currentLoadBarrierGroupID)
	if loadDominator != 0 {
		dom := u.Group(loadDominator)
		dom.AddSuccessor(newGroup, !u.NoAlias(loadDominator, ma))
	}

	// A store may not pass a previous store barrier.
	if u.currentStoreBarrierGroupID != 0 {
		barrier := u.Group(u.currentStoreBarrierGroupID)
		barrier.AddSuccessor(newGroup, true)
	}

	// A store may not pass a previous store.
	if u.currentStoreGroupID != 0 &&
		u.currentStoreGroupID != u.currentStoreBarrierGroupID {
		store := u.Group(u.currentStoreGroupID)
		store.AddSuccessor(newGroup, !u.NoAlias(u.currentStoreGroupID, ma))
	}

	u.currentStoreGroupID = newGID
	if inst.IsStoreBarrier {
		u.currentStoreBarrierGroupID = newGID
	}

	if inst.Desc.MayLoad {
		u.currentLoadGroupID = newGID
		if inst.IsLoadBarrier {
			u.currentLoadBarrierGroupID = newGID
		}
	}

	return newGID
}

func (u *Unit) dispatchLoad(inst *insts.Instruction, ma *MemoryAccess) uint32 {
	loadDominator := max(u.currentLoadGroupID, u.currentLoadBarrierGroupID)

	// A new load group is created in any of the following situations:
	// 1) This load is a barrier; a barrier always gets its own group.
	// 2) There is no load in flight.
	// 3) The current load head is itself a barrier; this load depends on it.
	// 4) A store was dispatched after every live load. Loads and stores
	//    never share a group, even when the addresses are disjoint.
	// 5) The current load group already started executing, so this load
	//    cannot join it.
	shouldCreateNewGroup := inst.IsLoadBarrier ||
		loadDominator == 0 ||
		u.currentLoadBarrierGroupID == loadDominator ||
		loadDominator <= u.currentStoreGroupID ||
		u.Group(loadDominator).IsExecuting()

	if !shouldCreateNewGroup {
		// A load may pass a previous load.
		group := u.Group(u.currentLoadGroupID)
		group.AddInstruction()
		group.AddMemAccess(ma)
		return u.currentLoadGroupID
	}

	newGID := u.CreateMemoryGroup()
	newGroup := u.Group(newGID)
	newGroup.AddInstruction()
	newGroup.AddMemAccess(ma)

	// A load may not pass a previous store unless the addresses are known
	// to be disjoint.
	if u.currentStoreGroupID != 0 && !u.NoAlias(u.currentStoreGroupID, ma) {
		store := u.Group(u.currentStoreGroupID)
		store.AddSuccessor(newGroup, true)
	}

	if inst.IsLoadBarrier {
		// A load barrier may not pass a previous load or load barrier.
		if loadDominator != 0 {
			dom := u.Group(loadDominator)
			dom.AddSuccessor(newGroup, true)
		}
	} else {
		// A younger load may not pass an older load barrier.
		if u.currentLoadBarrierGroupID != 0 {
			barrier := u.Group(u.currentLoadBarrierGroupID)
			barrier.AddSuccessor(newGroup, true)
		}
	}

	u.currentLoadGroupID = newGID
	if inst.IsLoadBarrier {
		u.currentLoadBarrierGroupID = newGID
	}
	return newGID
}

// OnInstructionExecuted forwards to the base bookkeeping, then clears any
// current pointer that still names the instruction's group if the group was
// removed. The next dispatch of that kind starts a fresh chain.
func (u *Unit) OnInstructionExecuted(inst *insts.Instruction) {
	if !inst.IsMemOp() {
		return
	}

	u.UnitBase.OnInstructionExecuted(inst)
	gid := inst.LSQToken
	if !u.IsValidGroupID(gid) {
		if gid == u.currentLoadGroupID {
			u.currentLoadGroupID = 0
		}
		if gid == u.currentStoreGroupID {
			u.currentStoreGroupID = 0
		}
		if gid == u.currentLoadBarrierGroupID {
			u.currentLoadBarrierGroupID = 0
		}
		if gid == u.currentStoreBarrierGroupID {
			u.currentStoreBarrierGroupID = 0
		}
	}
}

// CurrentLoadGroupID returns the live group holding the most recent loads,
// or zero.
func (u *Unit) CurrentLoadGroupID() uint32 { return u.currentLoadGroupID }

// CurrentStoreGroupID returns the live group holding the most recent store,
// or zero.
func (u *Unit) CurrentStoreGroupID() uint32 { return u.currentStoreGroupID }

// CurrentLoadBarrierGroupID returns the live group holding the most recent
// load barrier, or zero.
func (u *Unit) CurrentLoadBarrierGroupID() uint32 {
	return u.currentLoadBarrierGroupID
}

// CurrentStoreBarrierGroupID returns the live group holding the most recent
// store barrier, or zero.
func (u *Unit) CurrentStoreBarrierGroupID() uint32 {
	return u.currentStoreBarrierGroupID
}
