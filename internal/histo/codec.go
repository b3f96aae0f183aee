package histo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Binary Format
// =============
//
// A histogram is persisted as one self-describing byte slice:
//
//	+-------+-----+----------+------+-------+---------+---------+
//	| Magic | UID | Universe | Rank | Flags | ValueVar| Entries |
//	+-------+-----+----------+------+-------+---------+---------+
//	  4B      8B    4B         1B     1B      4B        8B
//
// followed by the name, the title and the value title (each a uint32 length
// and raw bytes), one block per axis and finally the cell arrays.
//
// Axis block:
//
//	+-----+-------+-------+--------------------+-------+--------+--------+
//	| Var | Fixed | NBins | Min,Max | Edges... | Title | NLabel | Labels |
//	+-----+-------+-------+--------------------+-------+--------+--------+
//	  4B    1B      4B      16B or (NBins+1)*8B   str     4B       (4B bin + str)*
//
// Cells: a uint32 cell count followed by sumw and sumw2 (and, for profiles,
// sumwv and sumwv2) as little-endian float64 arrays. Nothing follows the
// last array.
//
// The UID is the only place the kind, weight variable and 4th profile
// variable are recorded; a decoder recovers them with DecodeUID using the
// stored universe size. Axis bindings travel with their axis.

const (
	// Magic identifies histogram data: "HST1" in Little Endian.
	Magic = 0x31545348

	// HeaderSize is 4 (Magic) + 8 (UID) + 4 (Universe) + 1 (Rank) +
	// 1 (Flags) + 4 (ValueVar) + 8 (Entries) bytes.
	HeaderSize = 30
)

var (
	// ErrInvalidData is returned when the data is truncated or inconsistent.
	ErrInvalidData = errors.New("histo: invalid histogram data")

	// ErrInvalidMagic is returned when the magic bytes don't match.
	ErrInvalidMagic = errors.New("histo: invalid magic identifier")
)

// HasValidMagic checks if data starts with the histogram magic bytes.
func HasValidMagic(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(data[0:4]) == Magic
}

// MarshalBinary encodes the histogram in the HST1 format. It fails with
// ErrUniverse when the universe is too large for the integer tag.
func (h *Hist) MarshalBinary() ([]byte, error) {
	universe := h.Universe()
	if universe > MaxUniverse {
		return nil, fmt.Errorf("%w: %q refers to %d variables", ErrUniverse, h.name, universe)
	}

	size := HeaderSize + 64 + len(h.sumw)*16 + len(h.sumwv)*16
	for _, a := range h.axes {
		size += 32 + len(a.edges)*8 + len(a.Title)
	}
	buf := make([]byte, 0, size)

	le := binary.LittleEndian
	buf = le.AppendUint32(buf, Magic)
	buf = le.AppendUint64(buf, h.UID())
	buf = le.AppendUint32(buf, uint32(universe))
	buf = append(buf, byte(len(h.axes)), 0)
	buf = le.AppendUint32(buf, uint32(int32(h.valueVar)))
	buf = le.AppendUint64(buf, uint64(h.entries))

	buf = appendString(buf, h.name)
	buf = appendString(buf, h.title)
	buf = appendString(buf, h.valueTitle)

	for _, a := range h.axes {
		buf = le.AppendUint32(buf, uint32(int32(a.Var)))
		if a.fixed {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = le.AppendUint32(buf, uint32(a.NBins()))
		if a.fixed {
			buf = appendFloat(buf, a.Min())
			buf = appendFloat(buf, a.Max())
		} else {
			for _, e := range a.edges {
				buf = appendFloat(buf, e)
			}
		}
		buf = appendString(buf, a.Title)

		var labeled uint32
		for _, l := range a.labels {
			if l != "" {
				labeled++
			}
		}
		buf = le.AppendUint32(buf, labeled)
		for i, l := range a.labels {
			if l == "" {
				continue
			}
			buf = le.AppendUint32(buf, uint32(i+1))
			buf = appendString(buf, l)
		}
	}

	buf = le.AppendUint32(buf, uint32(len(h.sumw)))
	for _, arr := range [][]float64{h.sumw, h.sumw2, h.sumwv, h.sumwv2} {
		for _, v := range arr {
			buf = appendFloat(buf, v)
		}
	}

	return buf, nil
}

// Unmarshal decodes a histogram from HST1 data.
func Unmarshal(data []byte) (*Hist, error) {
	//
	// DESIGN
	// ------
	//
	// The decoder never trusts the stored sizes: every read goes through a
	// bounds-checked cursor that latches the first error, and the cell count
	// recorded in the data must agree with the count implied by the decoded
	// axes before any array is read. The dispatch identity is rebuilt from
	// the UID alone, exactly as a process that never ran the declarations
	// would have to.
	//

	if len(data) < HeaderSize {
		return nil, ErrInvalidData
	}
	if !HasValidMagic(data) {
		return nil, ErrInvalidMagic
	}

	r := &reader{data: data, off: 4}
	uid := r.uint64()
	universe := int(r.uint32())
	rank := int(r.byte())
	_ = r.byte() // flags, reserved
	valueVar := int(int32(r.uint32()))
	entries := int64(r.uint64())

	name := r.string()
	title := r.string()
	valueTitle := r.string()

	if rank < 1 || rank > MaxRank || universe > MaxUniverse {
		return nil, ErrInvalidData
	}

	axes := make([]*Axis, rank)
	for i := range axes {
		v := int(int32(r.uint32()))
		fixed := r.byte() == 1
		nbins := int(r.uint32())
		if r.err != nil || nbins < 1 || nbins > len(data) {
			return nil, ErrInvalidData
		}

		var (
			a   *Axis
			err error
		)
		if fixed {
			min, max := r.float(), r.float()
			a, err = NewFixedAxis(nbins, min, max)
		} else {
			edges := make([]float64, nbins+1)
			for j := range edges {
				edges[j] = r.float()
			}
			a, err = NewVariableAxis(edges)
		}
		if r.err != nil || err != nil {
			return nil, ErrInvalidData
		}

		a.Var = v
		a.Title = r.string()
		nlabels := int(r.uint32())
		for j := 0; j < nlabels && r.err == nil; j++ {
			bin := int(r.uint32())
			a.SetBinLabel(bin, r.string())
		}
		axes[i] = a
	}
	if r.err != nil {
		return nil, ErrInvalidData
	}

	tag := DecodeUID(uid, universe)
	kind := tag.Kind(rank)
	if kind == KindInvalid || (tag.NDim > 0 && tag.NDim != rank) {
		return nil, ErrInvalidData
	}

	// Refuse to allocate more cells than the remaining bytes could describe.
	cells := 1
	for _, a := range axes {
		cells *= a.NBins() + 2
		if cells*16 > len(data)-r.off {
			return nil, ErrInvalidData
		}
	}

	h, err := New(name, title, kind, axes...)
	if err != nil {
		return nil, ErrInvalidData
	}
	h.universe = universe
	h.weightVar = tag.Weight
	h.valueTitle = valueTitle
	if kind == ThreeDProfile {
		if valueVar != tag.T {
			return nil, ErrInvalidData
		}
	}
	h.SetValueVar(valueVar)
	h.entries = entries

	if int(r.uint32()) != len(h.sumw) {
		return nil, ErrInvalidData
	}
	for _, arr := range [][]float64{h.sumw, h.sumw2, h.sumwv, h.sumwv2} {
		for i := range arr {
			arr[i] = r.float()
		}
	}
	if r.err != nil || r.off != len(data) {
		return nil, ErrInvalidData
	}

	return h, nil
}

// UnmarshalBinary replaces the receiver with the histogram decoded from data.
func (h *Hist) UnmarshalBinary(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*h = *decoded
	return nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendFloat(buf []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
}

// reader is a bounds-checked little-endian cursor. The first failed read
// latches err and every later read returns zero values.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = ErrInvalidData
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) float() float64 {
	return math.Float64frombits(r.uint64())
}

func (r *reader) string() string {
	n := int(r.uint32())
	b := r.next(n)
	if b == nil {
		return ""
	}
	return string(b)
}
