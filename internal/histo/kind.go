package histo

import "fmt"

const (
	// NoVariable marks an axis, weight or value role that is not bound to
	// any variable.
	NoVariable = -1

	// MaxRank is the largest number of binning axes an N-dimensional
	// histogram may have. It also sizes the coordinate buffer used by fills.
	MaxRank = 20

	// MaxUniverse is the largest variable universe whose bindings fit the
	// integer tag: 100*(MaxUniverse+1)^2 stays well inside a uint64.
	MaxUniverse = 1 << 24
)

// Kind identifies the shape of a histogram and therefore how a fill pass
// has to feed it.
type Kind uint8

// Histogram kinds. The fixed shapes bin one to three axes, a profile
// averages a value variable over its axes and NDim bins 1..MaxRank axes.
const (
	KindInvalid Kind = iota
	OneD
	OneDProfile
	TwoD
	TwoDProfile
	ThreeD
	ThreeDProfile
	NDim
)

// IsProfile reports whether the histogram stores a per-bin running mean of a
// value variable instead of counts.
func (k Kind) IsProfile() bool {
	return k == OneDProfile || k == TwoDProfile || k == ThreeDProfile
}

// fixedRank returns the number of binning axes of the fixed shapes, or 0
// for NDim and invalid kinds.
func (k Kind) fixedRank() int {
	switch k {
	case OneD, OneDProfile:
		return 1
	case TwoD, TwoDProfile:
		return 2
	case ThreeD, ThreeDProfile:
		return 3
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case OneD:
		return "H1D"
	case OneDProfile:
		return "P1D"
	case TwoD:
		return "H2D"
	case TwoDProfile:
		return "P2D"
	case ThreeD:
		return "H3D"
	case ThreeDProfile:
		return "P3D"
	case NDim:
		return "HND"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Tag is the fill-dispatch identity decoded from a legacy integer tag.
type Tag struct {
	Profile bool
	NDim    int // rank of an N-dimensional histogram, 0 for the fixed shapes
	Weight  int // NoVariable when absent
	T       int // NoVariable when absent
}

// Kind resolves the histogram kind from the tag and the number of binning
// axes of the histogram carrying it.
func (t Tag) Kind(rank int) Kind {
	if t.NDim > 0 {
		return NDim
	}
	switch rank {
	case 1:
		if t.Profile {
			return OneDProfile
		}
		return OneD
	case 2:
		if t.Profile {
			return TwoDProfile
		}
		return TwoD
	case 3:
		if t.Profile {
			return ThreeDProfile
		}
		return ThreeD
	}
	return KindInvalid
}

// EncodeUID packs a histogram's dispatch identity into the legacy integer
// tag used by persisted stores.
//
// Layout, in decimal digits:
//
//	uid = 100*hi + lo
//
//	lo  = isProfile              (fixed shapes, 0 or 1)
//	lo  = 10 + rank              (N-dimensional)
//	hi  = (W+1) + (nvars+1)*(T+1)
//
// An absent W or T is NoVariable and contributes 0, so index 0 stays
// distinguishable from "not bound". T is only meaningful for ThreeDProfile.
// The tag is exact for nvars up to MaxUniverse.
func EncodeUID(kind Kind, rank, weight, t, nvars int) uint64 {
	if kind == NDim {
		return uint64(100*(weight+1) + 10 + rank)
	}

	lo := 0
	if kind.IsProfile() {
		lo = 1
	}
	if kind != ThreeDProfile {
		t = NoVariable
	}
	hi := uint64(weight+1) + uint64(nvars+1)*uint64(t+1)

	return 100*hi + uint64(lo)
}

// DecodeUID is the inverse of EncodeUID for a universe of nvars variables.
func DecodeUID(uid uint64, nvars int) Tag {
	tag := Tag{Weight: NoVariable, T: NoVariable}

	lo := int(uid % 100)
	if lo > 10 {
		tag.NDim = lo - 10
	} else {
		tag.Profile = uid%10 == 1
	}

	hi := uid / 100
	if hi > 0 {
		base := uint64(nvars + 1)
		tag.Weight = int(hi%base) - 1
		tag.T = int(hi/base) - 1
	}

	return tag
}
