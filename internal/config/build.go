package config

import (
	"fmt"
	"log/slog"

	"hmgr.lopezb.com/internal/manager"
)

// Build creates a manager over the declared variables and applies every
// class and histogram declaration in file order. The first rejected
// declaration aborts the build.
func (c *Config) Build(logger *slog.Logger) (*manager.Manager, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	m := manager.New(c.Name, len(c.Variables), logger)
	for i, v := range c.Variables {
		if err := m.SetVariable(i, v.Name, v.Unit); err != nil {
			return nil, err
		}
	}

	for _, cl := range c.Classes {
		if err := m.AddHistClass(cl.Name); err != nil {
			return nil, err
		}
		for _, h := range cl.Histograms {
			if err := c.declare(m, cl.Name, h); err != nil {
				return nil, fmt.Errorf("declare %s/%s: %w", cl.Name, h.Name, err)
			}
		}
	}
	return m, nil
}

func (c *Config) declare(m *manager.Manager, class string, h Histogram) error {
	if len(h.Axes) > 0 {
		axes := make([]manager.AxisSpec, len(h.Axes))
		for i, a := range h.Axes {
			axes[i] = c.axisSpec(a)
		}
		spec := manager.NewNDimSpec(class, h.Name, h.Title, axes...)
		spec.W = c.varIndex(h.Weight)
		_, err := m.AddHistogramND(spec)
		return err
	}

	spec := manager.NewHistSpec(class, h.Name, h.Title, c.axisSpec(*h.X))
	spec.Profile = h.Profile
	spec.T = c.varIndex(h.T)
	spec.W = c.varIndex(h.Weight)
	if h.Y != nil {
		y := c.axisSpec(*h.Y)
		spec.Y = &y
	}
	if h.Z != nil {
		z := c.axisSpec(*h.Z)
		spec.Z = &z
	}

	_, err := m.AddHistogram(spec)
	return err
}

func (c *Config) axisSpec(a Axis) manager.AxisSpec {
	return manager.AxisSpec{
		Var:    c.varIndex(a.Var),
		NBins:  a.Bins,
		Min:    a.Min,
		Max:    a.Max,
		Edges:  a.Edges,
		Labels: a.Labels,
	}
}
