package manager

import (
	"fmt"

	"hmgr.lopezb.com/internal/histo"
)

// AxisSpec declares one axis: the variable it reads and its binning. With
// Edges set the bins are variable-width and NBins/Min/Max are ignored.
// Labels is a semicolon-separated list applied to bins 1, 2, ... in order.
type AxisSpec struct {
	Var    int
	NBins  int
	Min    float64
	Max    float64
	Edges  []float64
	Labels string
}

// Fixed returns an axis of nbins equal-width bins over [min, max) bound to
// variable v.
func Fixed(v, nbins int, min, max float64) AxisSpec {
	return AxisSpec{Var: v, NBins: nbins, Min: min, Max: max}
}

// Variable returns an axis with explicit bin edges bound to variable v.
func Variable(v int, edges ...float64) AxisSpec {
	return AxisSpec{Var: v, Edges: edges}
}

// Value returns the spec of a profile's averaged variable, which has no
// binning of its own.
func Value(v int) *AxisSpec {
	return &AxisSpec{Var: v}
}

func (a AxisSpec) build() (*histo.Axis, error) {
	var (
		axis *histo.Axis
		err  error
	)
	if a.Edges != nil {
		axis, err = histo.NewVariableAxis(a.Edges)
	} else {
		axis, err = histo.NewFixedAxis(a.NBins, a.Min, a.Max)
	}
	if err != nil {
		return nil, err
	}
	axis.Var = a.Var
	axis.SetBinLabels(a.Labels)
	return axis, nil
}

// HistSpec declares a 1-, 2- or 3-dimensional histogram or profile.
//
// The dimension is 1 plus one for each of Y and Z that is set. Plain
// histograms bin every declared axis. Profiles average their last declared
// variable over the others:
//
//	X, Y      + Profile      OneDProfile:   <Y> vs X
//	X, Y, Z   + Profile      TwoDProfile:   <Z> vs X, Y
//	X, Y, Z, T + Profile     ThreeDProfile: <T> vs X, Y, Z
//
// The binning of an averaged Y or Z is ignored. T only applies to the
// three-axis profile. T and W are variable indices, so 0 binds variable 0;
// use NewHistSpec to start from both unset.
type HistSpec struct {
	Class   string
	Name    string
	Title   string
	Profile bool
	X       AxisSpec
	Y       *AxisSpec
	Z       *AxisSpec
	T       int
	W       int
}

// NewHistSpec returns a one-axis declaration with no T or weight variable.
func NewHistSpec(class, name, title string, x AxisSpec) HistSpec {
	return HistSpec{
		Class: class,
		Name:  name,
		Title: title,
		X:     x,
		T:     histo.NoVariable,
		W:     histo.NoVariable,
	}
}

// NDimSpec declares an N-dimensional histogram. Every axis is bound to its
// own variable. W is a variable index, so a literal must set it to
// histo.NoVariable for an unweighted histogram; NewNDimSpec does that.
type NDimSpec struct {
	Class string
	Name  string
	Title string
	Axes  []AxisSpec
	W     int
}

// NewNDimSpec returns an unweighted N-dimensional declaration.
func NewNDimSpec(class, name, title string, axes ...AxisSpec) NDimSpec {
	return NDimSpec{
		Class: class,
		Name:  name,
		Title: title,
		Axes:  axes,
		W:     histo.NoVariable,
	}
}

// AddHistClass creates an empty class. A duplicate name is rejected and the
// existing class kept.
func (m *Manager) AddHistClass(name string) error {
	if !m.live.Add(name, newClass(name)) {
		m.logger.Warn("histogram class already exists, keeping the existing one", "class", name)
		return fmt.Errorf("%w: %q", ErrDuplicateClass, name)
	}
	m.logger.Debug("histogram class declared", "class", name)
	return nil
}

// AddHistogram declares a fixed- or variable-width histogram or profile of
// up to three axes. On any failure nothing is declared, a warning is logged
// and the error wraps one of the package sentinels.
func (m *Manager) AddHistogram(spec HistSpec) (*histo.Hist, error) {
	class, err := m.declarationTarget(spec.Class, spec.Name)
	if err != nil {
		return nil, err
	}

	if spec.Z != nil && spec.Y == nil {
		return nil, m.reject(spec.Class, spec.Name, fmt.Errorf("%w: Z axis without Y axis", ErrInvalidSpec))
	}

	dim := 1
	if spec.Y != nil {
		dim++
	}
	if spec.Z != nil {
		dim++
	}

	var (
		kind     histo.Kind
		binning  = []AxisSpec{spec.X}
		valueVar = histo.NoVariable
	)
	switch {
	case !spec.Profile:
		kind = [...]histo.Kind{histo.OneD, histo.TwoD, histo.ThreeD}[dim-1]
		if spec.Y != nil {
			binning = append(binning, *spec.Y)
		}
		if spec.Z != nil {
			binning = append(binning, *spec.Z)
		}
	case dim == 1:
		return nil, m.reject(spec.Class, spec.Name, fmt.Errorf("%w: a profile needs an averaged variable", ErrInvalidSpec))
	case dim == 2:
		kind, valueVar = histo.OneDProfile, spec.Y.Var
	case spec.T != histo.NoVariable:
		kind, valueVar = histo.ThreeDProfile, spec.T
		binning = append(binning, *spec.Y, *spec.Z)
	default:
		kind, valueVar = histo.TwoDProfile, spec.Z.Var
		binning = append(binning, *spec.Y)
	}

	if spec.T != histo.NoVariable && kind != histo.ThreeDProfile {
		m.logger.Warn("T variable only applies to three-axis profiles, ignoring it",
			"class", spec.Class, "histogram", spec.Name, "kind", kind)
	}

	strict := axisVars(binning)
	if kind.IsProfile() {
		strict = append(strict, valueVar)
	}
	if err := m.checkVars(strict, spec.W); err != nil {
		return nil, m.reject(spec.Class, spec.Name, err)
	}

	return m.declare(class, spec.Name, spec.Title, kind, binning, spec.W, valueVar)
}

// AddHistogramND declares an N-dimensional histogram with fixed- or
// variable-width axes.
func (m *Manager) AddHistogramND(spec NDimSpec) (*histo.Hist, error) {
	class, err := m.declarationTarget(spec.Class, spec.Name)
	if err != nil {
		return nil, err
	}

	if len(spec.Axes) < 1 || len(spec.Axes) > histo.MaxRank {
		return nil, m.reject(spec.Class, spec.Name,
			fmt.Errorf("%w: %d axes, want 1 to %d", ErrInvalidSpec, len(spec.Axes), histo.MaxRank))
	}

	if err := m.checkVars(axisVars(spec.Axes), spec.W); err != nil {
		return nil, m.reject(spec.Class, spec.Name, err)
	}

	return m.declare(class, spec.Name, spec.Title, histo.NDim, spec.Axes, spec.W, histo.NoVariable)
}

// CreateHistogram builds a standalone N-dimensional histogram from explicit
// per-axis edges. It is not registered in any class and binds no variables.
func (m *Manager) CreateHistogram(name, title string, edges [][]float64) (*histo.Hist, error) {
	axes := make([]AxisSpec, len(edges))
	for i, e := range edges {
		axes[i] = Variable(histo.NoVariable, e...)
	}
	return m.CreateHistogramFromAxes(name, title, axes)
}

// CreateHistogramFromAxes builds a standalone N-dimensional histogram. Axis
// variables are recorded on the axes but not marked used.
func (m *Manager) CreateHistogramFromAxes(name, title string, specs []AxisSpec) (*histo.Hist, error) {
	if len(specs) < 1 || len(specs) > histo.MaxRank {
		return nil, fmt.Errorf("%w: %d axes, want 1 to %d", ErrInvalidSpec, len(specs), histo.MaxRank)
	}

	fields := parseTitle(title)
	axes := make([]*histo.Axis, len(specs))
	for i, s := range specs {
		a, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("%w: axis %d: %w", ErrInvalidSpec, i, err)
		}
		a.Title = fields.at(i + 1)
		axes[i] = a
	}

	return histo.New(name, fields.at(0), histo.NDim, axes...)
}

// declarationTarget resolves the live class a histogram is declared into
// and checks the name is free.
func (m *Manager) declarationTarget(className, name string) (*Class, error) {
	class, ok := m.live.Get(className)
	if !ok {
		return nil, m.reject(className, name, fmt.Errorf("%w: %q", ErrClassNotFound, className))
	}
	if class.Histogram(name) != nil {
		return nil, m.reject(className, name, fmt.Errorf("%w: %q in class %q", ErrDuplicateHistogram, name, className))
	}
	return class, nil
}

// checkVars verifies that every required variable lies in the universe and
// that every optional one is either NoVariable or in the universe.
func (m *Manager) checkVars(required []int, optional ...int) error {
	for _, v := range required {
		if !m.validVar(v) {
			return fmt.Errorf("%w: variable %d, universe has %d", ErrVariableOutOfRange, v, len(m.names))
		}
	}
	for _, v := range optional {
		if v != histo.NoVariable && !m.validVar(v) {
			return fmt.Errorf("%w: variable %d, universe has %d", ErrVariableOutOfRange, v, len(m.names))
		}
	}
	return nil
}

func axisVars(specs []AxisSpec) []int {
	vars := make([]int, len(specs))
	for i, s := range specs {
		vars[i] = s.Var
	}
	return vars
}

func (m *Manager) reject(class, name string, err error) error {
	m.logger.Warn("histogram declaration rejected", "class", class, "histogram", name, "error", err)
	return err
}

// declare builds the histogram, registers it and marks its variables used.
func (m *Manager) declare(class *Class, name, title string, kind histo.Kind, specs []AxisSpec, weight, value int) (*histo.Hist, error) {
	if len(m.names) > histo.MaxUniverse {
		return nil, m.reject(class.name, name, fmt.Errorf("%w: %w", ErrInvalidSpec, histo.ErrUniverse))
	}

	fields := parseTitle(title)

	axes := make([]*histo.Axis, len(specs))
	for i, s := range specs {
		a, err := s.build()
		if err != nil {
			return nil, m.reject(class.name, name, fmt.Errorf("%w: axis %d: %w", ErrInvalidSpec, i, err))
		}
		a.Title = m.axisTitle(fields, i+1, s.Var)
		axes[i] = a
	}

	h, err := histo.New(name, fields.at(0), kind, axes...)
	if err != nil {
		return nil, m.reject(class.name, name, fmt.Errorf("%w: %w", ErrInvalidSpec, err))
	}
	h.SetUniverse(len(m.names))
	h.SetWeightVar(weight)
	if kind.IsProfile() {
		h.SetValueVar(value)
		h.SetValueTitle(m.valueTitle(fields, len(axes)+1, value))
	}

	class.hists.Add(name, h)
	for _, a := range axes {
		m.markUsed(a.Var)
	}
	m.markUsed(weight, value)
	m.allocated(h)

	m.logger.Debug("histogram declared",
		"class", class.name, "histogram", name, "kind", kind, "bins", h.AllocatedBins())

	return h, nil
}
