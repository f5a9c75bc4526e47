package model

import (
	"sync/atomic"
)

// ControlModel tracks whether monitoring is switched on. The zero value is off and usable.
// Tk callbacks and loop completion handling may race, so the flag is atomic.
type ControlModel struct{ enabled atomic.Bool }

// Enabled reports whether monitoring is on.
func (m *ControlModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the flag and reports whether it changed.
func (m *ControlModel) SetEnabled(b bool) bool {
	if m == nil {
		return false
	}
	return m.enabled.Swap(b) != b
}
