// Package histo implements the histogram containers filled by the manager:
// equal- and variable-width axes bound to variables, dense N-dimensional
// storage for counts and profiles, and the self-describing binary format
// used to persist them.
//
// Storage Layout
// ==============
//
// Every histogram, whatever its Kind, stores its cells in flat slices that
// include the underflow and overflow bin of each axis. A histogram with axes
// of n0, n1, ... in-range bins owns
//
//	cells = (n0+2) * (n1+2) * ...
//
// cells laid out row-major with axis 0 varying fastest, so the global index
// of the per-axis bins (b0, b1, ...) is
//
//	b0 + (n0+2) * (b1 + (n1+2) * (b2 + ...))
//
// Each cell keeps the sum of weights and the sum of squared weights. Profiles
// additionally keep the weighted sum of the value variable and of its
// square, from which the running mean and its error are derived on demand.
//
// Fills never allocate: coordinates are passed in a caller-owned slice and
// all storage is sized at construction.
package histo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrRank is returned when the number of axes does not fit the kind.
	ErrRank = errors.New("histo: axis count does not match histogram kind")

	// ErrWrongKind is returned when a fill does not match the histogram
	// kind (a value fill on counts, or a plain fill on a profile).
	ErrWrongKind = errors.New("histo: fill does not match histogram kind")

	// ErrTooManyCells is returned when the axes of a histogram would need
	// more than MaxCells storage cells.
	ErrTooManyCells = errors.New("histo: histogram exceeds the cell limit")

	// ErrUniverse is returned when a histogram refers to a variable universe
	// larger than MaxUniverse, which its integer tag cannot represent.
	ErrUniverse = errors.New("histo: variable universe too large")
)

// MaxCells bounds the storage cells of one histogram, under- and overflow
// included.
const MaxCells = 1 << 24

// Hist is a dense histogram or profile over one or more axes.
type Hist struct {
	name       string
	title      string
	kind       Kind
	axes       []*Axis
	strides    []int
	weightVar  int
	valueVar   int
	valueTitle string
	universe   int

	entries int64
	sumw    []float64
	sumw2   []float64
	sumwv   []float64 // profiles only
	sumwv2  []float64 // profiles only
}

// New creates an empty histogram. The number of axes must match the kind:
// one for OneD/OneDProfile, two for TwoD/TwoDProfile, three for
// ThreeD/ThreeDProfile and 1..MaxRank for NDim. The histogram takes
// ownership of the axes.
func New(name, title string, kind Kind, axes ...*Axis) (*Hist, error) {
	rank := len(axes)
	switch {
	case kind == NDim:
		if rank < 1 || rank > MaxRank {
			return nil, fmt.Errorf("%w: %s with %d axes", ErrRank, kind, rank)
		}
	case kind.fixedRank() == 0:
		return nil, fmt.Errorf("%w: %s", ErrRank, kind)
	case kind.fixedRank() != rank:
		return nil, fmt.Errorf("%w: %s with %d axes", ErrRank, kind, rank)
	}
	for _, a := range axes {
		if a == nil {
			return nil, ErrInvalidAxis
		}
	}

	h := &Hist{
		name:      name,
		title:     title,
		kind:      kind,
		axes:      axes,
		strides:   make([]int, rank),
		weightVar: NoVariable,
		valueVar:  NoVariable,
	}

	cells := 1
	for i, a := range axes {
		h.strides[i] = cells
		n := a.NBins() + 2
		if cells > MaxCells/n {
			return nil, fmt.Errorf("%w: %s over %d axes", ErrTooManyCells, kind, rank)
		}
		cells *= n
	}

	h.sumw = make([]float64, cells)
	h.sumw2 = make([]float64, cells)
	if kind.IsProfile() {
		h.sumwv = make([]float64, cells)
		h.sumwv2 = make([]float64, cells)
	}

	return h, nil
}

// Name returns the histogram name, unique within its class.
func (h *Hist) Name() string { return h.name }

// Title returns the display title.
func (h *Hist) Title() string { return h.title }

// Kind returns the histogram shape.
func (h *Hist) Kind() Kind { return h.kind }

// Rank returns the number of binning axes.
func (h *Hist) Rank() int { return len(h.axes) }

// Axis returns the i-th binning axis.
func (h *Hist) Axis(i int) *Axis { return h.axes[i] }

// WeightVar returns the variable used as fill weight, or NoVariable.
func (h *Hist) WeightVar() int { return h.weightVar }

// SetWeightVar binds the fill weight to a variable.
func (h *Hist) SetWeightVar(v int) { h.weightVar = v }

// ValueVar returns the variable averaged by a profile, or NoVariable.
func (h *Hist) ValueVar() int { return h.valueVar }

// SetValueVar binds the averaged variable of a profile. It is ignored for
// non-profile kinds.
func (h *Hist) SetValueVar(v int) {
	if h.kind.IsProfile() {
		h.valueVar = v
	}
}

// ValueTitle returns the display title of a profile's averaged quantity.
func (h *Hist) ValueTitle() string { return h.valueTitle }

// SetValueTitle sets the display title of a profile's averaged quantity.
func (h *Hist) SetValueTitle(title string) { h.valueTitle = title }

// Universe returns the size of the variable universe the bindings refer to.
// When never set it is derived from the largest bound variable.
func (h *Hist) Universe() int {
	n := h.universe
	for _, v := range h.boundVars() {
		if v+1 > n {
			n = v + 1
		}
	}
	return n
}

// SetUniverse records the size of the variable universe.
func (h *Hist) SetUniverse(n int) { h.universe = n }

func (h *Hist) boundVars() []int {
	vars := make([]int, 0, len(h.axes)+2)
	for _, a := range h.axes {
		vars = append(vars, a.Var)
	}
	return append(vars, h.weightVar, h.valueVar)
}

// UID returns the legacy integer tag encoding the histogram's dispatch
// identity.
func (h *Hist) UID() uint64 {
	return EncodeUID(h.kind, len(h.axes), h.weightVar, h.valueVar, h.Universe())
}

// Cells returns the number of storage cells, under- and overflow included.
func (h *Hist) Cells() int { return len(h.sumw) }

// AllocatedBins returns the number of bins counted against the memory
// budget: the storage cells of the histogram.
func (h *Hist) AllocatedBins() int { return len(h.sumw) }

// Entries returns the number of fills.
func (h *Hist) Entries() int64 { return h.entries }

// FindBin returns the global bin of a point. x must hold Rank() coordinates.
func (h *Hist) FindBin(x []float64) int {
	bin := 0
	for i, a := range h.axes {
		bin += a.FindBin(x[i]) * h.strides[i]
	}
	return bin
}

// GlobalBin converts per-axis bin numbers (0 = underflow) into a global bin.
func (h *Hist) GlobalBin(bins ...int) int {
	global := 0
	for i, a := range h.axes {
		b := bins[i]
		if b < 0 {
			b = 0
		}
		if b > a.NBins()+1 {
			b = a.NBins() + 1
		}
		global += b * h.strides[i]
	}
	return global
}

// AxisBins converts a global bin back into per-axis bin numbers, writing
// them into dst (which must hold Rank() elements).
func (h *Hist) AxisBins(global int, dst []int) {
	for i := len(h.axes) - 1; i >= 0; i-- {
		dst[i] = global / h.strides[i]
		global %= h.strides[i]
	}
}

// Fill adds weight w at point x. It fails with ErrWrongKind on a profile.
func (h *Hist) Fill(x []float64, w float64) error {
	if h.sumwv != nil {
		return ErrWrongKind
	}
	bin := h.FindBin(x)
	h.sumw[bin] += w
	h.sumw2[bin] += w * w
	h.entries++
	return nil
}

// FillValue accumulates value v with weight w at point x of a profile. It
// fails with ErrWrongKind on a non-profile histogram.
func (h *Hist) FillValue(x []float64, v, w float64) error {
	if h.sumwv == nil {
		return ErrWrongKind
	}
	bin := h.FindBin(x)
	h.sumw[bin] += w
	h.sumw2[bin] += w * w
	h.sumwv[bin] += w * v
	h.sumwv2[bin] += w * v * v
	h.entries++
	return nil
}

// BinSumW returns the sum of weights in a global bin. For profiles this is
// the number of (weighted) entries of the bin.
func (h *Hist) BinSumW(bin int) float64 { return h.sumw[bin] }

// BinSumW2 returns the sum of squared weights in a global bin.
func (h *Hist) BinSumW2(bin int) float64 { return h.sumw2[bin] }

// BinContent returns the content of a global bin: the sum of weights for
// counts, the weighted mean of the value variable for profiles.
func (h *Hist) BinContent(bin int) float64 {
	if h.sumwv == nil {
		return h.sumw[bin]
	}
	if h.sumw[bin] == 0 {
		return 0
	}
	return h.sumwv[bin] / h.sumw[bin]
}

// BinError returns the statistical error of a global bin: the square root
// of the sum of squared weights for counts, the error on the mean for
// profiles.
func (h *Hist) BinError(bin int) float64 {
	if h.sumwv == nil {
		return math.Sqrt(h.sumw2[bin])
	}

	sumw := h.sumw[bin]
	if sumw == 0 || h.sumw2[bin] == 0 {
		return 0
	}

	mean := h.sumwv[bin] / sumw
	variance := h.sumwv2[bin]/sumw - mean*mean
	if variance < 0 {
		variance = 0
	}
	neff := sumw * sumw / h.sumw2[bin]

	return math.Sqrt(variance / neff)
}

// At returns the content of the bin holding the given point.
func (h *Hist) At(x ...float64) float64 {
	return h.BinContent(h.FindBin(x))
}

// Integral returns the sum of weights over all in-range bins.
func (h *Hist) Integral() float64 {
	var sum float64
	bins := make([]int, len(h.axes))
	for g := range h.sumw {
		h.AxisBins(g, bins)
		if h.inRange(bins) {
			sum += h.sumw[g]
		}
	}
	return sum
}

func (h *Hist) inRange(bins []int) bool {
	for i, b := range bins {
		if b < 1 || b > h.axes[i].NBins() {
			return false
		}
	}
	return true
}

// Reset clears all contents, keeping binning and bindings.
func (h *Hist) Reset() {
	h.entries = 0
	clear(h.sumw)
	clear(h.sumw2)
	clear(h.sumwv)
	clear(h.sumwv2)
}

// Add merges the contents of another histogram with identical kind and
// binning into h.
func (h *Hist) Add(other *Hist) error {
	if other.kind != h.kind || len(other.axes) != len(h.axes) {
		return ErrWrongKind
	}
	for i, a := range h.axes {
		if !a.sameBinning(other.axes[i]) {
			return ErrInvalidAxis
		}
	}

	for i := range h.sumw {
		h.sumw[i] += other.sumw[i]
		h.sumw2[i] += other.sumw2[i]
	}
	for i := range h.sumwv {
		h.sumwv[i] += other.sumwv[i]
		h.sumwv2[i] += other.sumwv2[i]
	}
	h.entries += other.entries

	return nil
}
