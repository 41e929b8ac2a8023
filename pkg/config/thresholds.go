package config

import (
	"fmt"
	"sync/atomic"
)

// Thresholds are the three confidence gates §4.4/§4.5 apply: the
// dispatcher's own promotion gate (Detection), and the Coordinator's
// DETECTION-phase dismissal gate and ANALYSIS-phase investigate gate.
// The dispatcher and Coordinator gates are numerically identical by
// default but independently tunable — the spec's Open Question pins
// the Coordinator to recompute rather than trust the dispatcher, which
// only matters if an operator diverges them.
type Thresholds struct {
	Detection   float64 `yaml:"detection" json:"detection"`
	Dismiss     float64 `yaml:"dismiss" json:"dismiss"`
	Investigate float64 `yaml:"investigate" json:"investigate"`
}

// DefaultThresholds matches the constants pkg/dispatcher and
// pkg/coordinator fall back to when no ThresholdStore is wired.
func DefaultThresholds() Thresholds {
	return Thresholds{Detection: 0.3, Dismiss: 0.30, Investigate: 0.60}
}

// Validate bounds every gate to [0, 1], per spec §6's
// "/config/thresholds ... Bounded 0..1".
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"detection": t.Detection, "dismiss": t.Dismiss, "investigate": t.Investigate} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: threshold %s=%v out of bounds [0,1]", name, v)
		}
	}
	return nil
}

// ThresholdStore is a lock-free, mutation-safe holder for the live
// threshold set, shared between the API's /config/thresholds handler
// (writer) and the dispatcher/coordinator (readers on every decision).
type ThresholdStore struct {
	v atomic.Pointer[Thresholds]
}

// NewThresholdStore builds a store seeded with initial.
func NewThresholdStore(initial Thresholds) *ThresholdStore {
	s := &ThresholdStore{}
	s.v.Store(&initial)
	return s
}

// Get returns the current threshold set.
func (s *ThresholdStore) Get() Thresholds {
	return *s.v.Load()
}

// Set validates and atomically swaps in a new threshold set.
func (s *ThresholdStore) Set(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.v.Store(&t)
	return nil
}
