package manager

import (
	"math"

	"hmgr.lopezb.com/internal/histo"
)

// FillClass fills every histogram of the named class from values, which is
// indexed by variable and must hold at least NumVariables() entries.
//
// A variable is available when it is bound by some declaration and its
// value is not NaN; NaN marks a variable that was not computed for this
// event (see NewValues and ResetValues). A histogram whose weight, axis or
// averaged variable is unavailable is skipped for this call only. An unknown
// class is a silent no-op, since many classes are only filled for some
// event types.
func (m *Manager) FillClass(className string, values []float64) {
	//
	// DESIGN
	// ------
	//
	// The pass is O(histograms x rank) and does not allocate: coordinates
	// are gathered into a fixed array sized by the largest supported rank,
	// and every dispatch decision is read from the histogram itself (kind,
	// per-axis variable, weight and value variable). That is what lets a
	// manager fill classes it loaded from a store without ever having run
	// the declarations.
	//
	m.fillCalls++

	list := m.classes()
	if list == nil {
		return
	}
	class, ok := list.Get(className)
	if !ok {
		return
	}
	if len(values) < len(m.names) {
		m.logger.Warn("values array shorter than the variable universe, skipping fill",
			"class", className, "len", len(values), "variables", len(m.names))
		return
	}

	var coords [histo.MaxRank]float64
	for _, h := range class.hists.Items() {
		if m.fill(h, values, coords[:h.Rank()]) {
			class.fills++
		} else {
			class.skipped++
		}
	}
}

// fill feeds one histogram and reports whether it was filled.
func (m *Manager) fill(h *histo.Hist, values, x []float64) bool {
	w := 1.0
	if wv := h.WeightVar(); wv != histo.NoVariable {
		if !m.available(wv, values) {
			return false
		}
		w = values[wv]
	}

	for i := range x {
		v := h.Axis(i).Var
		if !m.available(v, values) {
			return false
		}
		x[i] = values[v]
	}

	if h.Kind().IsProfile() {
		vv := h.ValueVar()
		if !m.available(vv, values) {
			return false
		}
		return h.FillValue(x, values[vv], w) == nil
	}
	return h.Fill(x, w) == nil
}

func (m *Manager) available(v int, values []float64) bool {
	return m.validVar(v) && m.used[v] && !math.IsNaN(values[v])
}
