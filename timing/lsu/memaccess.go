package lsu

import "fmt"

// Range is one byte range touched by an instruction.
type Range struct {
	// IsStore is true if this range is written.
	IsStore bool
	// Addr is the start address of the range.
	Addr uint64
	// Size is the size of the range in bytes.
	Size uint32
}

// bundledAccesses holds the sub-accesses of a compound instruction together
// with the smallest interval covering all of them.
type bundledAccesses struct {
	extendedAddr uint64
	extendedSize uint64
	accesses     []Range
}

// MemoryAccess describes the memory touched by one instruction.
//
// Most instructions touch a single byte range. Compound instructions (for
// example, load/store-pair or push-multiple style operations) bundle several
// sub-accesses; the bundle keeps the covering interval for coarse alias
// pruning while retaining the individual ranges for the precise test.
type MemoryAccess struct {
	// IsStore is true if the access writes memory.
	IsStore bool
	// Addr is the start address of the first access.
	Addr uint64
	// Size is the size in bytes of the first access.
	Size uint32

	bundle *bundledAccesses
}

// NewMemoryAccess creates a memory access for a single byte range.
func NewMemoryAccess(isStore bool, addr uint64, size uint32) *MemoryAccess {
	return &MemoryAccess{IsStore: isStore, Addr: addr, Size: size}
}

// ExtendedStart returns the start of the covering interval.
func (ma *MemoryAccess) ExtendedStart() uint64 {
	if ma.bundle != nil {
		return ma.bundle.extendedAddr
	}
	return ma.Addr
}

// ExtendedEnd returns the end (exclusive) of the covering interval.
func (ma *MemoryAccess) ExtendedEnd() uint64 {
	if ma.bundle != nil {
		return ma.bundle.extendedAddr + ma.bundle.extendedSize
	}
	return ma.Addr + uint64(ma.Size)
}

// Append adds a sub-access to the bundle and widens the covering interval.
// The first call materializes the bundle, seeding it with the original
// access.
func (ma *MemoryAccess) Append(isStore bool, addr uint64, size uint32) {
	if ma.bundle == nil {
		ma.bundle = &bundledAccesses{
			extendedAddr: ma.Addr,
			extendedSize: uint64(ma.Size),
			accesses: []Range{
				{IsStore: ma.IsStore, Addr: ma.Addr, Size: ma.Size},
			},
		}
	}
	b := ma.bundle

	if addr < b.extendedAddr {
		b.extendedSize += b.extendedAddr - addr
		b.extendedAddr = addr
	}
	end := addr + uint64(size)
	if end > b.extendedAddr+b.extendedSize {
		b.extendedSize = end - b.extendedAddr
	}

	b.accesses = append(b.accesses, Range{IsStore: isStore, Addr: addr, Size: size})
}

// Ranges returns the individual byte ranges of the access.
func (ma *MemoryAccess) Ranges() []Range {
	if ma.bundle != nil {
		return ma.bundle.accesses
	}
	return []Range{{IsStore: ma.IsStore, Addr: ma.Addr, Size: ma.Size}}
}

// Overlaps reports whether any sub-access of ma overlaps any sub-access of
// other. Two ranges [a1,e1) and [a2,e2) overlap iff a1 < e2 and a2 < e1.
func (ma *MemoryAccess) Overlaps(other *MemoryAccess) bool {
	// Coarse pruning on the covering intervals.
	if ma.ExtendedEnd() <= other.ExtendedStart() ||
		other.ExtendedEnd() <= ma.ExtendedStart() {
		return false
	}

	for _, a := range ma.Ranges() {
		aEnd := a.Addr + uint64(a.Size)
		for _, b := range other.Ranges() {
			bEnd := b.Addr + uint64(b.Size)
			if a.Addr < bEnd && b.Addr < aEnd {
				return true
			}
		}
	}
	return false
}

// String formats the access for diagnostics.
func (ma *MemoryAccess) String() string {
	return fmt.Sprintf("[ %#016x - %#016x ], IsStore: %t",
		ma.Addr, ma.Addr+uint64(ma.Size), ma.IsStore)
}
