package histo

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrInvalidAxis is returned when an axis is declared with an unusable binning.
var ErrInvalidAxis = errors.New("histo: invalid axis binning")

// Axis describes the binning of one histogram dimension together with the
// variable it is bound to.
//
// Bins are numbered the way the fill engine addresses them: bin 0 collects
// underflow, bins 1..NBins() are the in-range bins and bin NBins()+1 collects
// overflow. Every bin is half-open, [low, up), so a value sitting exactly on
// an inner edge belongs to the upper bin and a value equal to Max() overflows.
type Axis struct {
	// Var is the index of the variable this axis reads during fills, or
	// NoVariable when the axis is not bound.
	Var int

	// Title is the display title (e.g. "p_T (GeV/c)").
	Title string

	edges  []float64
	fixed  bool
	width  float64
	labels []string
}

// NewFixedAxis creates an axis of nbins equal-width bins spanning [min, max).
// An axis never has more bins than a histogram has cells.
func NewFixedAxis(nbins int, min, max float64) (*Axis, error) {
	if nbins < 1 || nbins > MaxCells-2 || !isFinite(min) || !isFinite(max) || !(min < max) {
		return nil, ErrInvalidAxis
	}

	edges := make([]float64, nbins+1)
	width := (max - min) / float64(nbins)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}
	// Pin the last edge so rounding never shrinks the range.
	edges[nbins] = max

	return &Axis{Var: NoVariable, edges: edges, fixed: true, width: width}, nil
}

// NewVariableAxis creates an axis from explicit bin edges. The edges must be
// finite and strictly increasing; at least two are needed for one bin. The
// slice is copied.
func NewVariableAxis(edges []float64) (*Axis, error) {
	if len(edges) < 2 || len(edges) > MaxCells-1 {
		return nil, ErrInvalidAxis
	}
	for i, e := range edges {
		if !isFinite(e) {
			return nil, ErrInvalidAxis
		}
		if i > 0 && !(edges[i-1] < e) {
			return nil, ErrInvalidAxis
		}
	}

	cp := make([]float64, len(edges))
	copy(cp, edges)

	return &Axis{Var: NoVariable, edges: cp}, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// NBins returns the number of in-range bins.
func (a *Axis) NBins() int {
	return len(a.edges) - 1
}

// Min returns the lower edge of the first bin.
func (a *Axis) Min() float64 {
	return a.edges[0]
}

// Max returns the upper edge of the last bin.
func (a *Axis) Max() float64 {
	return a.edges[len(a.edges)-1]
}

// IsFixed reports whether the axis was built with equal-width bins.
func (a *Axis) IsFixed() bool {
	return a.fixed
}

// Edges returns a copy of the bin edges.
func (a *Axis) Edges() []float64 {
	cp := make([]float64, len(a.edges))
	copy(cp, a.edges)
	return cp
}

// FindBin returns the bin holding x, including the underflow (0) and
// overflow (NBins()+1) bins. NaN is routed to overflow.
func (a *Axis) FindBin(x float64) int {
	n := a.NBins()
	switch {
	case math.IsNaN(x):
		return n + 1
	case x < a.edges[0]:
		return 0
	case x >= a.edges[n]:
		return n + 1
	}

	if a.fixed {
		bin := 1 + int((x-a.edges[0])/a.width)
		// Floating point can push a value just below an edge into the
		// next bin (or past the last one); correct against the stored edges.
		if bin > n {
			bin = n
		}
		if x < a.edges[bin-1] {
			bin--
		} else if bin < n && x >= a.edges[bin] {
			bin++
		}
		return bin
	}

	// First edge strictly greater than x; with edges[0] <= x < edges[n]
	// this index is the 1-based bin number.
	return sort.Search(len(a.edges), func(i int) bool { return a.edges[i] > x })
}

// BinLowEdge returns the lower edge of an in-range bin. The underflow bin
// reports -Inf.
func (a *Axis) BinLowEdge(bin int) float64 {
	switch {
	case bin <= 0:
		return math.Inf(-1)
	case bin > a.NBins():
		return a.Max()
	}
	return a.edges[bin-1]
}

// BinUpEdge returns the upper edge of an in-range bin. The overflow bin
// reports +Inf.
func (a *Axis) BinUpEdge(bin int) float64 {
	switch {
	case bin <= 0:
		return a.Min()
	case bin > a.NBins():
		return math.Inf(1)
	}
	return a.edges[bin]
}

// BinCenter returns the midpoint of an in-range bin.
func (a *Axis) BinCenter(bin int) float64 {
	return 0.5 * (a.BinLowEdge(bin) + a.BinUpEdge(bin))
}

// SetBinLabel attaches a text label to an in-range bin. Out-of-range bins are
// ignored.
func (a *Axis) SetBinLabel(bin int, label string) {
	if bin < 1 || bin > a.NBins() {
		return
	}
	if a.labels == nil {
		if label == "" {
			return
		}
		a.labels = make([]string, a.NBins())
	}
	a.labels[bin-1] = label
}

// BinLabel returns the label of a bin, or "" when none is set.
func (a *Axis) BinLabel(bin int) string {
	if a.labels == nil || bin < 1 || bin > a.NBins() {
		return ""
	}
	return a.labels[bin-1]
}

// HasLabels reports whether any bin carries a label.
func (a *Axis) HasLabels() bool {
	for _, l := range a.labels {
		if l != "" {
			return true
		}
	}
	return false
}

// SetBinLabels applies a semicolon-separated list of labels to bins 1, 2, ...
// in order. Labels beyond the last bin are dropped and empty fields leave the
// corresponding bin unlabeled.
func (a *Axis) SetBinLabels(labels string) {
	if labels == "" {
		return
	}
	for i, l := range strings.Split(labels, ";") {
		if i >= a.NBins() {
			break
		}
		a.SetBinLabel(i+1, strings.TrimSpace(l))
	}
}

// Clone returns a deep copy of the axis.
func (a *Axis) Clone() *Axis {
	cp := *a
	cp.edges = a.Edges()
	if a.labels != nil {
		cp.labels = make([]string, len(a.labels))
		copy(cp.labels, a.labels)
	}
	return &cp
}

// sameBinning reports whether two axes have identical edges.
func (a *Axis) sameBinning(b *Axis) bool {
	if len(a.edges) != len(b.edges) {
		return false
	}
	for i := range a.edges {
		if a.edges[i] != b.edges[i] {
			return false
		}
	}
	return true
}
