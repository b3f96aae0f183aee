package manager

import (
	"fmt"
	"math"

	"hmgr.lopezb.com/internal/histo"
)

// NumVariables returns the size N of the variable universe.
func (m *Manager) NumVariables() int { return len(m.names) }

// SetVariableNames assigns display names and units to variables 0, 1, ...
// in order. Entries beyond the universe are ignored; units may be shorter
// than names.
func (m *Manager) SetVariableNames(names, units []string) {
	for i := 0; i < len(names) && i < len(m.names); i++ {
		m.names[i] = names[i]
	}
	for i := 0; i < len(units) && i < len(m.units); i++ {
		m.units[i] = units[i]
	}
}

// SetVariable assigns the display name and unit of one variable.
func (m *Manager) SetVariable(i int, name, unit string) error {
	if !m.validVar(i) {
		return fmt.Errorf("%w: variable %d", ErrVariableOutOfRange, i)
	}
	m.names[i] = name
	m.units[i] = unit
	return nil
}

// Variable returns the display name and unit of variable i.
func (m *Manager) Variable(i int) (name, unit string) {
	if !m.validVar(i) {
		return "", ""
	}
	return m.names[i], m.units[i]
}

// VariableIndex returns the index of the first variable with the given
// name, or histo.NoVariable.
func (m *Manager) VariableIndex(name string) int {
	for i, n := range m.names {
		if n == name {
			return i
		}
	}
	return histo.NoVariable
}

// IsUsed reports whether any declared histogram binds variable i.
func (m *Manager) IsUsed(i int) bool {
	return m.validVar(i) && m.used[i]
}

// UsedVariables returns the indices of all used variables in ascending
// order.
func (m *Manager) UsedVariables() []int {
	var vars []int
	for i, u := range m.used {
		if u {
			vars = append(vars, i)
		}
	}
	return vars
}

// NewValues returns a values array for FillClass with every variable marked
// as not computed.
func (m *Manager) NewValues() []float64 {
	values := make([]float64, len(m.names))
	ResetValues(values)
	return values
}

// ResetValues marks every entry of values as not computed, ready for the
// next event.
func ResetValues(values []float64) {
	nan := math.NaN()
	for i := range values {
		values[i] = nan
	}
}

func (m *Manager) validVar(i int) bool {
	return i >= 0 && i < len(m.names)
}

func (m *Manager) markUsed(vars ...int) {
	for _, v := range vars {
		if m.validVar(v) {
			m.used[v] = true
		}
	}
}
