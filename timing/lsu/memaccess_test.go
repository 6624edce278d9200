package lsu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oosim/timing/lsu"
)

var _ = Describe("MemoryAccess", func() {
	Describe("single access", func() {
		It("should cover exactly its own range", func() {
			ma := lsu.NewMemoryAccess(false, 0x100, 8)

			Expect(ma.ExtendedStart()).To(Equal(uint64(0x100)))
			Expect(ma.ExtendedEnd()).To(Equal(uint64(0x108)))
			Expect(ma.Ranges()).To(HaveLen(1))
		})
	})

	Describe("Append", func() {
		It("should seed the bundle with the original access", func() {
			ma := lsu.NewMemoryAccess(true, 0x100, 8)
			ma.Append(true, 0x108, 8)

			ranges := ma.Ranges()
			Expect(ranges).To(HaveLen(2))
			Expect(ranges[0].Addr).To(Equal(uint64(0x100)))
			Expect(ranges[1].Addr).To(Equal(uint64(0x108)))
		})

		It("should widen the covering interval to the right", func() {
			ma := lsu.NewMemoryAccess(false, 0x100, 8)
			ma.Append(false, 0x200, 16)

			Expect(ma.ExtendedStart()).To(Equal(uint64(0x100)))
			Expect(ma.ExtendedEnd()).To(Equal(uint64(0x210)))
		})

		It("should widen the covering interval to the left", func() {
			ma := lsu.NewMemoryAccess(false, 0x100, 8)
			ma.Append(false, 0x40, 4)

			Expect(ma.ExtendedStart()).To(Equal(uint64(0x40)))
			Expect(ma.ExtendedEnd()).To(Equal(uint64(0x108)))
		})

		It("should keep the covering interval over every sub-access", func() {
			ma := lsu.NewMemoryAccess(false, 0x100, 8)
			ma.Append(false, 0x40, 4)
			ma.Append(false, 0x300, 8)

			for _, r := range ma.Ranges() {
				Expect(ma.ExtendedStart()).To(BeNumerically("<=", r.Addr))
				Expect(ma.ExtendedEnd()).To(
					BeNumerically(">=", r.Addr+uint64(r.Size)))
			}
		})
	})

	Describe("Overlaps", func() {
		It("should detect identical ranges", func() {
			a := lsu.NewMemoryAccess(true, 0x0, 8)
			b := lsu.NewMemoryAccess(false, 0x0, 8)

			Expect(a.Overlaps(b)).To(BeTrue())
		})

		It("should detect partial overlap", func() {
			a := lsu.NewMemoryAccess(true, 0x0, 8)
			b := lsu.NewMemoryAccess(false, 0x4, 8)

			Expect(a.Overlaps(b)).To(BeTrue())
		})

		It("should treat adjacent ranges as disjoint", func() {
			a := lsu.NewMemoryAccess(true, 0x0, 8)
			b := lsu.NewMemoryAccess(false, 0x8, 8)

			Expect(a.Overlaps(b)).To(BeFalse())
		})

		It("should not report overlap for a gap inside the covering interval", func() {
			// Sub-accesses at [0x0,0x8) and [0x20,0x28); the covering
			// interval spans the gap but the ranges do not.
			a := lsu.NewMemoryAccess(false, 0x0, 8)
			a.Append(false, 0x20, 8)
			b := lsu.NewMemoryAccess(true, 0x10, 8)

			Expect(a.Overlaps(b)).To(BeFalse())
			Expect(b.Overlaps(a)).To(BeFalse())
		})

		It("should detect overlap on any sub-access pair", func() {
			a := lsu.NewMemoryAccess(false, 0x0, 8)
			a.Append(false, 0x20, 8)
			b := lsu.NewMemoryAccess(true, 0x24, 2)

			Expect(a.Overlaps(b)).To(BeTrue())
		})
	})
})
