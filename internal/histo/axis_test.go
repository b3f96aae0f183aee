package histo

import (
	"errors"
	"math"
	"testing"
)

func TestNewFixedAxis(t *testing.T) {
	a, err := NewFixedAxis(50, 0, 50)
	if err != nil {
		t.Fatalf("NewFixedAxis failed: %v", err)
	}

	if a.NBins() != 50 {
		t.Errorf("NBins: got %d, want 50", a.NBins())
	}
	if a.Min() != 0 || a.Max() != 50 {
		t.Errorf("Range: got [%v, %v), want [0, 50)", a.Min(), a.Max())
	}
	if !a.IsFixed() {
		t.Error("IsFixed returned false for fixed-width axis")
	}
	if a.Var != NoVariable {
		t.Errorf("Var: got %d, want NoVariable", a.Var)
	}
}

func TestNewAxis_Errors(t *testing.T) {
	tests := []struct {
		name string
		make func() (*Axis, error)
	}{
		{"zero bins", func() (*Axis, error) { return NewFixedAxis(0, 0, 1) }},
		{"inverted range", func() (*Axis, error) { return NewFixedAxis(10, 1, 0) }},
		{"empty range", func() (*Axis, error) { return NewFixedAxis(10, 1, 1) }},
		{"infinite edge", func() (*Axis, error) { return NewFixedAxis(10, 0, math.Inf(1)) }},
		{"NaN edge", func() (*Axis, error) { return NewFixedAxis(10, math.NaN(), 1) }},
		{"single edge", func() (*Axis, error) { return NewVariableAxis([]float64{1}) }},
		{"unsorted edges", func() (*Axis, error) { return NewVariableAxis([]float64{0, 2, 1}) }},
		{"repeated edge", func() (*Axis, error) { return NewVariableAxis([]float64{0, 1, 1, 2}) }},
		{"too many bins", func() (*Axis, error) { return NewFixedAxis(MaxCells, 0, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.make()
			if !errors.Is(err, ErrInvalidAxis) {
				t.Errorf("got error %v, want ErrInvalidAxis", err)
			}
		})
	}
}

func TestFindBin_Fixed(t *testing.T) {
	a, _ := NewFixedAxis(4, 0, 1)

	tests := []struct {
		x    float64
		want int
	}{
		{-0.1, 0},
		{0, 1},
		{0.1, 1},
		{0.25, 2},
		{0.5, 3},
		{0.75, 4},
		{0.999, 4},
		{1, 5},
		{3, 5},
		{math.NaN(), 5},
		{math.Inf(-1), 0},
		{math.Inf(1), 5},
	}

	for _, tt := range tests {
		if got := a.FindBin(tt.x); got != tt.want {
			t.Errorf("FindBin(%v): got %d, want %d", tt.x, got, tt.want)
		}
	}
}

// TestFindBin_FixedEdges checks that every stored edge maps to the bin it
// opens, even where (x-min)/width rounds the other way.
func TestFindBin_FixedEdges(t *testing.T) {
	a, _ := NewFixedAxis(10, -1, 1)
	edges := a.Edges()

	for i := 0; i < len(edges)-1; i++ {
		if got := a.FindBin(edges[i]); got != i+1 {
			t.Errorf("FindBin(edge %d = %v): got %d, want %d", i, edges[i], got, i+1)
		}
		below := math.Nextafter(edges[i+1], math.Inf(-1))
		if got := a.FindBin(below); got != i+1 {
			t.Errorf("FindBin(just below edge %d = %v): got %d, want %d", i+1, below, got, i+1)
		}
	}
}

func TestFindBin_Variable(t *testing.T) {
	a, err := NewVariableAxis([]float64{0, 1, 2, 5, 10})
	if err != nil {
		t.Fatalf("NewVariableAxis failed: %v", err)
	}
	if a.IsFixed() {
		t.Error("IsFixed returned true for variable-width axis")
	}

	tests := []struct {
		x    float64
		want int
	}{
		{-1, 0},
		{0, 1},
		{0.5, 1},
		{1, 2},
		{2, 3},
		{4.99, 3},
		{5, 4},
		{9.99, 4},
		{10, 5},
		{11, 5},
	}

	for _, tt := range tests {
		if got := a.FindBin(tt.x); got != tt.want {
			t.Errorf("FindBin(%v): got %d, want %d", tt.x, got, tt.want)
		}
	}
}

func TestBinEdges(t *testing.T) {
	a, _ := NewVariableAxis([]float64{0, 1, 3})

	if got := a.BinLowEdge(2); got != 1 {
		t.Errorf("BinLowEdge(2): got %v, want 1", got)
	}
	if got := a.BinUpEdge(2); got != 3 {
		t.Errorf("BinUpEdge(2): got %v, want 3", got)
	}
	if got := a.BinCenter(2); got != 2 {
		t.Errorf("BinCenter(2): got %v, want 2", got)
	}
	if !math.IsInf(a.BinLowEdge(0), -1) {
		t.Error("underflow low edge should be -Inf")
	}
	if !math.IsInf(a.BinUpEdge(3), 1) {
		t.Error("overflow up edge should be +Inf")
	}
}

func TestSetBinLabels(t *testing.T) {
	a, _ := NewFixedAxis(3, 0, 3)
	a.SetBinLabels("central;;peripheral;extra")

	want := []string{"central", "", "peripheral"}
	for i, w := range want {
		if got := a.BinLabel(i + 1); got != w {
			t.Errorf("BinLabel(%d): got %q, want %q", i+1, got, w)
		}
	}
	if got := a.BinLabel(4); got != "" {
		t.Errorf("label beyond last bin: got %q, want empty", got)
	}
	if !a.HasLabels() {
		t.Error("HasLabels returned false")
	}

	b, _ := NewFixedAxis(3, 0, 3)
	b.SetBinLabels("")
	if b.HasLabels() {
		t.Error("empty label list should leave the axis unlabeled")
	}
}

func TestAxisClone(t *testing.T) {
	a, _ := NewFixedAxis(2, 0, 2)
	a.Var = 3
	a.SetBinLabel(1, "first")

	c := a.Clone()
	c.SetBinLabel(1, "changed")
	c.Var = 4

	if a.BinLabel(1) != "first" || a.Var != 3 {
		t.Error("Clone shares state with the original axis")
	}
	if !a.sameBinning(c) {
		t.Error("Clone changed the binning")
	}
}
