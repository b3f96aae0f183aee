package histo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func filledProfile3D(t *testing.T) *Hist {
	t.Helper()

	x := mustFixed(t, 4, 0, 4)
	x.Var, x.Title = 0, "x"
	x.SetBinLabels("a;b;;d")
	y, _ := NewVariableAxis([]float64{-1, 0, 0.5, 3})
	y.Var, y.Title = 1, "y"
	z := mustFixed(t, 2, 0, 1)
	z.Var = 2

	p, err := New("p3", "3D profile", ThreeDProfile, x, y, z)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p.SetValueVar(0)
	p.SetWeightVar(4)
	p.SetUniverse(6)
	p.SetValueTitle("<x>")

	_ = p.FillValue([]float64{1.5, 0.2, 0.3}, 7, 2)
	_ = p.FillValue([]float64{1.5, 0.2, 0.3}, 9, 1)
	_ = p.FillValue([]float64{10, -4, 0.3}, 1, 1)
	return p
}

func TestCodecRoundTrip(t *testing.T) {
	nd := make([]*Axis, 5)
	for i := range nd {
		nd[i] = mustFixed(t, 3, 0, 3)
		nd[i].Var = i
	}
	h, _ := New("nd", "five dims", NDim, nd...)
	h.SetWeightVar(0)
	_ = h.Fill([]float64{0, 1, 2, 3, -1}, 2.5)

	c, _ := New("counts", "", OneD, mustFixed(t, 10, 0, 1))
	_ = c.Fill([]float64{0.45}, 1)

	// 100*(7001*7000)+1 does not fit a uint32 tag.
	wx, wy, wz := mustFixed(t, 2, 0, 1), mustFixed(t, 2, 0, 1), mustFixed(t, 2, 0, 1)
	wx.Var, wy.Var, wz.Var = 0, 1, 2
	wide, _ := New("wide", "", ThreeDProfile, wx, wy, wz)
	wide.SetValueVar(6999)
	wide.SetUniverse(7000)
	_ = wide.FillValue([]float64{0.5, 0.5, 0.5}, 4, 1)

	tests := []struct {
		name string
		h    *Hist
	}{
		{"3D profile", filledProfile3D(t)},
		{"N-dim weighted", h},
		{"plain 1D", c},
		{"3D profile over 7000 variables", wide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.h.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}
			if !HasValidMagic(data) {
				t.Fatal("encoded data lacks the magic")
			}

			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}

			if got.Name() != tt.h.Name() || got.Title() != tt.h.Title() {
				t.Errorf("identity: got %q/%q", got.Name(), got.Title())
			}
			if got.Kind() != tt.h.Kind() || got.UID() != tt.h.UID() {
				t.Errorf("kind/uid: got %s/%d, want %s/%d", got.Kind(), got.UID(), tt.h.Kind(), tt.h.UID())
			}
			if got.WeightVar() != tt.h.WeightVar() || got.ValueVar() != tt.h.ValueVar() {
				t.Errorf("bindings: got W=%d V=%d", got.WeightVar(), got.ValueVar())
			}
			if got.Entries() != tt.h.Entries() {
				t.Errorf("Entries: got %d, want %d", got.Entries(), tt.h.Entries())
			}
			for g := 0; g < tt.h.Cells(); g++ {
				if got.BinContent(g) != tt.h.BinContent(g) || got.BinError(g) != tt.h.BinError(g) {
					t.Fatalf("cell %d differs", g)
				}
			}

			again, _ := got.MarshalBinary()
			if !bytes.Equal(data, again) {
				t.Error("re-encoding the decoded histogram changed the bytes")
			}
		})
	}
}

func TestCodecPreservesAxes(t *testing.T) {
	p := filledProfile3D(t)
	data, _ := p.MarshalBinary()

	var got Hist
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}

	x, y := got.Axis(0), got.Axis(1)
	if !x.IsFixed() || y.IsFixed() {
		t.Error("fixed/variable flag not preserved")
	}
	if x.BinLabel(1) != "a" || x.BinLabel(3) != "" || x.BinLabel(4) != "d" {
		t.Errorf("labels: got %q %q %q", x.BinLabel(1), x.BinLabel(3), x.BinLabel(4))
	}
	if x.Title != "x" || y.Var != 1 {
		t.Errorf("axis binding: got title %q var %d", x.Title, y.Var)
	}
	if got.ValueTitle() != "<x>" {
		t.Errorf("ValueTitle: got %q", got.ValueTitle())
	}
	if got.Universe() != 6 {
		t.Errorf("Universe: got %d, want 6", got.Universe())
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	valid, _ := filledProfile3D(t).MarshalBinary()

	badMagic := bytes.Clone(valid)
	badMagic[0] ^= 0xFF

	badCells := bytes.Clone(valid)
	// The cell count sits right before the four float arrays.
	off := len(badCells) - 4 - 4*8*(6*5*4)
	binary.LittleEndian.PutUint32(badCells[off:], 7)

	badRank := bytes.Clone(valid)
	badRank[16] = 0

	badUniverse := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(badUniverse[12:], MaxUniverse+1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidData},
		{"short header", valid[:HeaderSize-1], ErrInvalidData},
		{"wrong magic", badMagic, ErrInvalidMagic},
		{"truncated body", valid[:len(valid)-3], ErrInvalidData},
		{"cell count mismatch", badCells, ErrInvalidData},
		{"zero rank", badRank, ErrInvalidData},
		{"universe too large", badUniverse, ErrInvalidData},
		{"trailing bytes", append(bytes.Clone(valid), 0), ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMarshal_UniverseTooLarge(t *testing.T) {
	h, _ := New("h", "", OneD, mustFixed(t, 2, 0, 1))
	h.SetUniverse(MaxUniverse + 1)

	if _, err := h.MarshalBinary(); !errors.Is(err, ErrUniverse) {
		t.Errorf("got error %v, want ErrUniverse", err)
	}
}
