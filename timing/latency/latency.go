// Package latency provides execution-latency lookups for memory operations.
package latency

import (
	"github.com/sarchlab/oosim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with a custom configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the instruction.
// Stores win over loads for combined operations: the latency models the time
// until the operation leaves the execution pipe, and a store retires into
// the store queue without waiting for data.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch {
	case inst.IsLoadBarrier || inst.IsStoreBarrier:
		return t.config.BarrierLatency
	case inst.Desc.MayStore:
		return t.config.StoreLatency
	case inst.Desc.MayLoad:
		return t.config.LoadLatency
	default:
		return t.config.BarrierLatency
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
