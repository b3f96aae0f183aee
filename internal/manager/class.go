package manager

import "hmgr.lopezb.com/internal/histo"

// Class is a named group of histograms filled together from one values
// array. Histogram names are unique within a class.
type Class struct {
	name    string
	hists   *hashList[*histo.Hist]
	fills   int64
	skipped int64
}

func newClass(name string) *Class {
	return &Class{name: name, hists: newHashList[*histo.Hist]()}
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Len returns the number of histograms in the class.
func (c *Class) Len() int { return c.hists.Len() }

// Histograms returns the histograms in declaration order.
func (c *Class) Histograms() []*histo.Hist {
	items := c.hists.Items()
	cp := make([]*histo.Hist, len(items))
	copy(cp, items)
	return cp
}

// Histogram returns the named histogram, or nil.
func (c *Class) Histogram(name string) *histo.Hist {
	h, _ := c.hists.Get(name)
	return h
}

// Fills returns how many histogram fills the class received.
func (c *Class) Fills() int64 { return c.fills }

// Skipped returns how many histogram fills were skipped because a needed
// variable was unavailable.
func (c *Class) Skipped() int64 { return c.skipped }
