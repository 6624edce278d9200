package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds execution latencies for the memory operations the
// scheduler drives through the load/store unit.
type TimingConfig struct {
	// LoadLatency is the latency for load operations assuming an L1 hit.
	// Default: 4 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency for store operations (fire-and-forget
	// into the store queue). Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// BarrierLatency is the latency for standalone barrier operations.
	// Default: 1 cycle.
	BarrierLatency uint64 `json:"barrier_latency"`
}

// DefaultTimingConfig returns a TimingConfig with defaults in the range of
// recent big out-of-order cores.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		LoadLatency:    4,
		StoreLatency:   1,
		BarrierLatency: 1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.BarrierLatency == 0 {
		return fmt.Errorf("barrier_latency must be > 0")
	}
	return nil
}
