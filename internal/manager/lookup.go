package manager

import (
	"fmt"
	"io"
	"strings"

	"hmgr.lopezb.com/internal/histo"
)

// lookupList returns the classes of the active mode, warning when there are
// none to look into.
func (m *Manager) lookupList() *hashList[*Class] {
	list := m.classes()
	if list == nil {
		m.logger.Warn("no histogram classes available: open a store or declare a class first")
	}
	return list
}

// Class returns the named class of the active mode, or nil.
func (m *Manager) Class(name string) *Class {
	list := m.lookupList()
	if list == nil {
		return nil
	}
	c, ok := list.Get(name)
	if !ok {
		m.logger.Warn("histogram class not found", "class", name, "mode", m.mode())
		return nil
	}
	return c
}

// HistogramList returns the histograms of the named class in declaration
// order, or nil.
func (m *Manager) HistogramList(class string) []*histo.Hist {
	c := m.Class(class)
	if c == nil {
		return nil
	}
	return c.Histograms()
}

// Histogram returns one histogram, or nil.
func (m *Manager) Histogram(class, name string) *histo.Hist {
	c := m.Class(class)
	if c == nil {
		return nil
	}
	h := c.Histogram(name)
	if h == nil {
		m.logger.Warn("histogram not found", "class", class, "histogram", name, "mode", m.mode())
	}
	return h
}

// Classes returns the class names of the active mode in declaration order.
func (m *Manager) Classes() []string {
	list := m.classes()
	if list == nil {
		return nil
	}
	return list.Names()
}

// OutputList returns the live classes in declaration order, ready to be
// handed to an output writer.
func (m *Manager) OutputList() []*Class {
	items := m.live.Items()
	cp := make([]*Class, len(items))
	copy(cp, items)
	return cp
}

// Print writes a summary of the active classes and their histograms.
func (m *Manager) Print(w io.Writer) error {
	var b strings.Builder

	s := m.Stats()
	fmt.Fprintf(&b, "histogram manager %q: %s, %d classes, %d histograms, %d bins allocated\n",
		m.name, m.mode(), s.Classes, s.Histograms, s.BinsAllocated)

	if list := m.classes(); list != nil {
		for _, c := range list.Items() {
			fmt.Fprintf(&b, "  class %s (%d histograms)\n", c.name, c.Len())
			for _, h := range c.hists.Items() {
				fmt.Fprintf(&b, "    %s: %s", h.Name(), h.Kind())
				if t := h.Title(); t != "" {
					fmt.Fprintf(&b, " %q", t)
				}
				b.WriteByte('\n')
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
