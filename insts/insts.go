// Package insts defines the instruction descriptors consumed by the timing
// model.
//
// The memory subsystem does not decode machine code. It only needs to know,
// for each dynamic instruction, whether it may read or write memory, whether
// it acts as an ordering barrier, and where to find the optional memory-access
// metadata registered for it.
package insts

// Desc holds the static properties of an instruction.
type Desc struct {
	// MayLoad is true if the instruction may read memory.
	MayLoad bool
	// MayStore is true if the instruction may write memory.
	MayStore bool
}

// Instruction is one dynamic instruction in flight.
type Instruction struct {
	// Desc describes the static properties of the instruction.
	Desc Desc

	// IsLoadBarrier is true if this instruction may not pass older loads
	// and younger loads may not pass it.
	IsLoadBarrier bool
	// IsStoreBarrier is the store-side equivalent of IsLoadBarrier.
	IsStoreBarrier bool

	// SourceIndex is the position of the instruction in program order.
	SourceIndex int

	// MetadataToken selects the instruction's entries in the metadata
	// registry. It is only meaningful when HasMetadataToken is true.
	MetadataToken    uint32
	HasMetadataToken bool

	// LSQToken is the memory-group ID stamped onto the instruction by the
	// scheduler when the load/store unit dispatches it. Zero means the
	// instruction has not been dispatched.
	LSQToken uint32

	// CyclesLeft is the number of cycles before the instruction finishes
	// executing. It is maintained by the scheduler while the instruction
	// is in flight.
	CyclesLeft uint64
}

// IsMemOp returns true if the instruction touches memory.
func (i *Instruction) IsMemOp() bool {
	return i.Desc.MayLoad || i.Desc.MayStore
}

// SetMetadataToken attaches a metadata token to the instruction.
func (i *Instruction) SetMetadataToken(token uint32) {
	i.MetadataToken = token
	i.HasMetadataToken = true
}
