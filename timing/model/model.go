// Package model describes the processor scheduling model consumed by the
// timing units.
//
// The model lists the buffered processor resources and, through the extra
// processor info, identifies which resources back the load and store queues.
// Units that are constructed with zero queue sizes resolve the defaults here.
package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProcResourceDesc describes one buffered processor resource.
type ProcResourceDesc struct {
	// Name identifies the resource, e.g. "LoadQueue".
	Name string `json:"name"`
	// BufferSize is the number of slots in the resource. Zero means the
	// resource imposes no bound.
	BufferSize int `json:"buffer_size"`
}

// ExtraProcessorInfo carries optional references into ProcResources.
// A queue ID of zero means the model does not describe that queue.
type ExtraProcessorInfo struct {
	// LoadQueueID is the index of the load queue resource.
	LoadQueueID int `json:"load_queue_id"`
	// StoreQueueID is the index of the store queue resource.
	StoreQueueID int `json:"store_queue_id"`
}

// SchedModel is the processor scheduling model.
//
// ProcResources is indexed by resource ID. Index zero is reserved as the
// invalid resource so that a zero queue ID can mean "absent".
type SchedModel struct {
	// Name identifies the modeled processor.
	Name string `json:"name"`
	// ProcResources lists the buffered resources. Entry 0 is reserved.
	ProcResources []ProcResourceDesc `json:"proc_resources"`
	// ExtraInfo points the memory units at their backing resources.
	ExtraInfo *ExtraProcessorInfo `json:"extra_info,omitempty"`
}

// DefaultSchedModel returns a scheduling model with load/store queue
// capacities in the range of recent big out-of-order cores.
func DefaultSchedModel() *SchedModel {
	return &SchedModel{
		Name: "generic-ooo",
		ProcResources: []ProcResourceDesc{
			{Name: "InvalidUnit", BufferSize: 0},
			{Name: "LoadQueue", BufferSize: 128},
			{Name: "StoreQueue", BufferSize: 64},
		},
		ExtraInfo: &ExtraProcessorInfo{
			LoadQueueID:  1,
			StoreQueueID: 2,
		},
	}
}

// HasExtraProcessorInfo returns true if the model carries extra info.
func (m *SchedModel) HasExtraProcessorInfo() bool {
	return m.ExtraInfo != nil
}

// ProcResource returns the resource descriptor with the given ID.
func (m *SchedModel) ProcResource(id int) *ProcResourceDesc {
	return &m.ProcResources[id]
}

// Validate checks the model for internal consistency.
func (m *SchedModel) Validate() error {
	if m.ExtraInfo == nil {
		return nil
	}
	if id := m.ExtraInfo.LoadQueueID; id < 0 || id >= len(m.ProcResources) {
		return fmt.Errorf("load_queue_id %d is out of range", id)
	}
	if id := m.ExtraInfo.StoreQueueID; id < 0 || id >= len(m.ProcResources) {
		return fmt.Errorf("store_queue_id %d is out of range", id)
	}
	return nil
}

// LoadSchedModel reads a scheduling model from a JSON file.
func LoadSchedModel(path string) (*SchedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduling model file: %w", err)
	}

	m := &SchedModel{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse scheduling model: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveSchedModel writes a scheduling model to a JSON file.
func SaveSchedModel(m *SchedModel, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize scheduling model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scheduling model file: %w", err)
	}
	return nil
}
