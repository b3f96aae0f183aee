package histo

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"go-hep.org/x/hep/hbook"
)

func mustFixed(t *testing.T, nbins int, min, max float64) *Axis {
	t.Helper()
	a, err := NewFixedAxis(nbins, min, max)
	if err != nil {
		t.Fatalf("NewFixedAxis(%d, %v, %v): %v", nbins, min, max, err)
	}
	return a
}

func TestNew_RankChecks(t *testing.T) {
	x := mustFixed(t, 2, 0, 1)
	y := mustFixed(t, 2, 0, 1)
	wide := mustFixed(t, 1<<12, 0, 1)

	tests := []struct {
		name string
		kind Kind
		axes []*Axis
		want error
	}{
		{"1D with one axis", OneD, []*Axis{x}, nil},
		{"1D with two axes", OneD, []*Axis{x, y}, ErrRank},
		{"2D profile with one axis", TwoDProfile, []*Axis{x}, ErrRank},
		{"ND with no axes", NDim, nil, ErrRank},
		{"invalid kind", KindInvalid, []*Axis{x}, ErrRank},
		{"nil axis", OneD, []*Axis{nil}, ErrInvalidAxis},
		{"over the cell limit", ThreeD, []*Axis{wide, wide, wide}, ErrTooManyCells},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("h", "", tt.kind, tt.axes...)
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCells(t *testing.T) {
	h, err := New("h", "", ThreeD, mustFixed(t, 2, 0, 1), mustFixed(t, 3, 0, 1), mustFixed(t, 4, 0, 1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got, want := h.Cells(), 4*5*6; got != want {
		t.Errorf("Cells: got %d, want %d", got, want)
	}

	// Axis 0 varies fastest.
	if got := h.GlobalBin(1, 0, 0); got != 1 {
		t.Errorf("GlobalBin(1,0,0): got %d, want 1", got)
	}
	if got := h.GlobalBin(0, 1, 0); got != 4 {
		t.Errorf("GlobalBin(0,1,0): got %d, want 4", got)
	}
	if got := h.GlobalBin(0, 0, 1); got != 20 {
		t.Errorf("GlobalBin(0,0,1): got %d, want 20", got)
	}

	bins := make([]int, 3)
	h.AxisBins(h.GlobalBin(2, 3, 4), bins)
	if bins[0] != 2 || bins[1] != 3 || bins[2] != 4 {
		t.Errorf("AxisBins: got %v, want [2 3 4]", bins)
	}
}

// TestFill1D_MatchesReference fills the same random sample into a OneD
// histogram and into an hbook.H1D and compares every in-range bin.
func TestFill1D_MatchesReference(t *testing.T) {
	h, _ := New("pt", "", OneD, mustFixed(t, 50, 0, 50))
	ref := hbook.NewH1D(50, 0, 50)

	rng := rand.New(rand.NewPCG(1, 2))
	x := make([]float64, 1)
	for range 10000 {
		x[0] = rng.ExpFloat64() * 8
		w := 0.5 + rng.Float64()
		if err := h.Fill(x, w); err != nil {
			t.Fatalf("Fill failed: %v", err)
		}
		ref.Fill(x[0], w)
	}

	if ref.Len() != h.Axis(0).NBins() {
		t.Fatalf("reference has %d bins, histogram has %d", ref.Len(), h.Axis(0).NBins())
	}
	for i := 0; i < ref.Len(); i++ {
		_, want := ref.XY(i)
		got := h.BinContent(h.GlobalBin(i + 1))
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("bin %d: got %v, want %v", i+1, got, want)
		}
	}
	if h.Entries() != 10000 {
		t.Errorf("Entries: got %d, want 10000", h.Entries())
	}
}

func TestFill1D_VariableMatchesReference(t *testing.T) {
	edges := []float64{0, 0.5, 1, 2, 4, 8, 16}
	a, _ := NewVariableAxis(edges)
	h, _ := New("pt", "", OneD, a)
	ref := hbook.NewH1DFromEdges(edges)

	rng := rand.New(rand.NewPCG(3, 4))
	x := make([]float64, 1)
	for range 5000 {
		x[0] = rng.Float64() * 16
		_ = h.Fill(x, 1)
		ref.Fill(x[0], 1)
	}

	for i := 0; i < ref.Len(); i++ {
		_, want := ref.XY(i)
		if got := h.BinContent(h.GlobalBin(i + 1)); got != want {
			t.Errorf("bin %d: got %v, want %v", i+1, got, want)
		}
	}
}

func TestFill2D_MatchesReference(t *testing.T) {
	h, _ := New("eta_phi", "", TwoD, mustFixed(t, 20, -1, 1), mustFixed(t, 10, 0, 2*math.Pi))
	ref := hbook.NewH2D(20, -1, 1, 10, 0, 2*math.Pi)

	rng := rand.New(rand.NewPCG(5, 6))
	x := make([]float64, 2)
	for range 20000 {
		x[0] = rng.NormFloat64() * 0.6
		x[1] = rng.Float64() * 2 * math.Pi
		_ = h.Fill(x, 1)
		ref.Fill(x[0], x[1], 1)
	}

	grid := ref.GridXYZ()
	for i := 0; i < 20; i++ {
		for j := 0; j < 10; j++ {
			want := grid.Z(i, j)
			got := h.BinContent(h.GlobalBin(i+1, j+1))
			if got != want {
				t.Errorf("bin (%d,%d): got %v, want %v", i+1, j+1, got, want)
			}
		}
	}
}

func TestFill_OutflowsAndNaN(t *testing.T) {
	h, _ := New("h", "", OneD, mustFixed(t, 10, 0, 1))
	x := make([]float64, 1)

	for _, v := range []float64{-5, 1, 2, math.NaN()} {
		x[0] = v
		_ = h.Fill(x, 1)
	}

	if got := h.BinSumW(0); got != 1 {
		t.Errorf("underflow: got %v, want 1", got)
	}
	if got := h.BinSumW(11); got != 3 {
		t.Errorf("overflow: got %v, want 3", got)
	}
	if got := h.Integral(); got != 0 {
		t.Errorf("Integral: got %v, want 0", got)
	}
}

func TestFill_WrongKind(t *testing.T) {
	p, _ := New("p", "", OneDProfile, mustFixed(t, 10, 0, 1))
	h, _ := New("h", "", OneD, mustFixed(t, 10, 0, 1))

	if err := p.Fill([]float64{0.5}, 1); !errors.Is(err, ErrWrongKind) {
		t.Errorf("Fill on profile: got %v, want ErrWrongKind", err)
	}
	if err := h.FillValue([]float64{0.5}, 1, 1); !errors.Is(err, ErrWrongKind) {
		t.Errorf("FillValue on counts: got %v, want ErrWrongKind", err)
	}
}

// TestProfile_ConstantValue fills a value of 5 with weight 3 ten times into
// the same bin: the mean must be 5 and the summed weight 30.
func TestProfile_ConstantValue(t *testing.T) {
	p, _ := New("p", "", OneDProfile, mustFixed(t, 10, 0, 10))

	for range 10 {
		if err := p.FillValue([]float64{2.5}, 5, 3); err != nil {
			t.Fatalf("FillValue failed: %v", err)
		}
	}

	bin := p.FindBin([]float64{2.5})
	if got := p.BinContent(bin); got != 5 {
		t.Errorf("mean: got %v, want 5", got)
	}
	if got := p.BinSumW(bin); got != 30 {
		t.Errorf("sumw: got %v, want 30", got)
	}
	if got := p.BinError(bin); got != 0 {
		t.Errorf("error of constant profile: got %v, want 0", got)
	}
	if got := p.At(7.5); got != 0 {
		t.Errorf("empty bin mean: got %v, want 0", got)
	}
}

func TestProfile_MeanAndError(t *testing.T) {
	p, _ := New("p", "", TwoDProfile, mustFixed(t, 2, 0, 2), mustFixed(t, 2, 0, 2))
	x := []float64{0.5, 1.5}

	values := []float64{1, 2, 3, 4}
	for _, v := range values {
		_ = p.FillValue(x, v, 1)
	}

	bin := p.FindBin(x)
	if got := p.BinContent(bin); got != 2.5 {
		t.Errorf("mean: got %v, want 2.5", got)
	}

	// Population variance 1.25 over 4 unit-weight entries.
	want := math.Sqrt(1.25 / 4)
	if got := p.BinError(bin); math.Abs(got-want) > 1e-12 {
		t.Errorf("error: got %v, want %v", got, want)
	}
}

func TestNDim_EdgesAndOverflow(t *testing.T) {
	axes := make([]*Axis, 4)
	for i := range axes {
		axes[i] = mustFixed(t, 5, 0, 5)
	}
	h, err := New("nd", "", NDim, axes...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got, want := h.Cells(), 7*7*7*7; got != want {
		t.Errorf("Cells: got %d, want %d", got, want)
	}

	_ = h.Fill([]float64{0, 1, 2, 3}, 1)
	_ = h.Fill([]float64{0, 1, 2, 5}, 1)

	if got := h.BinSumW(h.GlobalBin(1, 2, 3, 4)); got != 1 {
		t.Errorf("lower-edge fill: got %v, want 1", got)
	}
	if got := h.BinSumW(h.GlobalBin(1, 2, 3, 6)); got != 1 {
		t.Errorf("upper-edge fill should overflow axis 3: got %v, want 1", got)
	}
	if got := h.Integral(); got != 1 {
		t.Errorf("Integral: got %v, want 1", got)
	}
}

func TestResetAndAdd(t *testing.T) {
	a, _ := New("a", "", OneD, mustFixed(t, 4, 0, 4))
	b, _ := New("b", "", OneD, mustFixed(t, 4, 0, 4))
	c, _ := New("c", "", OneD, mustFixed(t, 5, 0, 4))

	_ = a.Fill([]float64{1.5}, 2)
	_ = b.Fill([]float64{1.5}, 3)

	if err := a.Add(b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := a.At(1.5); got != 5 {
		t.Errorf("after Add: got %v, want 5", got)
	}
	if a.Entries() != 2 {
		t.Errorf("Entries after Add: got %d, want 2", a.Entries())
	}
	if err := a.Add(c); !errors.Is(err, ErrInvalidAxis) {
		t.Errorf("Add with other binning: got %v, want ErrInvalidAxis", err)
	}

	a.Reset()
	if a.At(1.5) != 0 || a.Entries() != 0 {
		t.Error("Reset left contents behind")
	}
}

func TestUniverseAndUID(t *testing.T) {
	x := mustFixed(t, 2, 0, 1)
	x.Var = 0
	y := mustFixed(t, 2, 0, 1)
	y.Var = 1
	z := mustFixed(t, 2, 0, 1)
	z.Var = 2

	p, _ := New("p3", "", ThreeDProfile, x, y, z)
	p.SetValueVar(3)
	p.SetWeightVar(0)

	if got := p.Universe(); got != 4 {
		t.Errorf("derived universe: got %d, want 4", got)
	}
	p.SetUniverse(9)

	tag := DecodeUID(p.UID(), p.Universe())
	if tag.Kind(3) != ThreeDProfile || tag.T != 3 || tag.Weight != 0 {
		t.Errorf("decoded tag: got %+v", tag)
	}

	h, _ := New("h", "", OneD, mustFixed(t, 2, 0, 1))
	h.SetValueVar(3)
	if h.ValueVar() != NoVariable {
		t.Error("SetValueVar should be ignored for non-profiles")
	}
}
