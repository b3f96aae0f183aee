package manager

import (
	"fmt"

	"hmgr.lopezb.com/internal/histo"
	"hmgr.lopezb.com/internal/store"
)

// WriteOutput writes the active classes to st as one directory named after
// the manager, one group per class and one HST1 object per histogram,
// giving the namespace manager/class/histogram.
func (m *Manager) WriteOutput(st store.Writer) error {
	if st == nil {
		return ErrNoStore
	}
	m.logger.Info("writing output", "directory", m.name)

	dir := store.Directory{Name: m.name}
	if list := m.classes(); list != nil {
		for _, c := range list.Items() {
			g := store.Group{Name: c.name}
			for _, h := range c.hists.Items() {
				data, err := h.MarshalBinary()
				if err != nil {
					return fmt.Errorf("encode %s/%s: %w", c.name, h.Name(), err)
				}
				g.Objects = append(g.Objects, store.Object{Name: h.Name(), Data: data})
			}
			dir.Groups = append(dir.Groups, g)
		}
	}

	if err := st.WriteDirectory(dir); err != nil {
		m.logger.Error("writing output failed", "directory", m.name, "error", err)
		return fmt.Errorf("write output %q: %w", m.name, err)
	}

	m.logger.Info("writing output done", "directory", m.name, "classes", len(dir.Groups))
	return nil
}

// InitFile opens the store at path for reading and loads directory top (the
// first directory when top is empty) into persisted mode. On failure the
// manager is left unchanged. Opening the store that is already open is a
// no-op. A manager without a name takes the name of the loaded directory.
func (m *Manager) InitFile(path, top string) error {
	if m.closer != nil && m.storePath == path && (top == "" || top == m.storeTop) {
		return nil
	}

	st, err := store.OpenPath(path, false, m.logger)
	if err != nil {
		m.logger.Warn("cannot open histogram store", "path", path, "error", err)
		return err
	}

	if err := m.load(st, top); err != nil {
		_ = st.Close()
		return err
	}
	m.closer = st
	m.storePath = path

	return nil
}

// InitStore loads directory top (the first directory when top is empty) of
// an already opened store into persisted mode. The caller keeps ownership
// of st.
func (m *Manager) InitStore(st store.Reader, top string) error {
	return m.load(st, top)
}

func (m *Manager) load(st store.Reader, top string) error {
	if top == "" {
		names, err := st.Directories()
		if err != nil {
			m.logger.Warn("cannot list histogram store", "error", err)
			return err
		}
		if len(names) == 0 {
			m.logger.Warn("histogram store is empty")
			return fmt.Errorf("%w: store has no directories", store.ErrNotFound)
		}
		top = names[0]
	}

	dir, err := st.ReadDirectory(top)
	if err != nil {
		m.logger.Warn("cannot read histogram directory", "directory", top, "error", err)
		return err
	}

	classes := newHashList[*Class]()
	var hists []*histo.Hist
	for _, g := range dir.Groups {
		c := newClass(g.Name)
		for _, o := range g.Objects {
			h, err := histo.Unmarshal(o.Data)
			if err != nil {
				m.logger.Warn("corrupt histogram in store", "directory", top, "class", g.Name, "histogram", o.Name, "error", err)
				return fmt.Errorf("decode %s/%s/%s: %w", top, g.Name, o.Name, err)
			}
			c.hists.Add(o.Name, h)
			hists = append(hists, h)
		}
		classes.Add(g.Name, c)
	}

	if err := m.CloseFile(); err != nil {
		m.logger.Warn("closing previous store failed", "path", m.storePath, "error", err)
	}
	m.persisted = classes
	m.storeTop = top
	if m.name == "" {
		m.name = top
	}
	for _, h := range hists {
		m.adopt(h)
	}

	m.logger.Info("histogram store opened", "directory", top, "classes", classes.Len(), "histograms", len(hists))
	return nil
}

// adopt grows the universe to cover a loaded histogram and marks its
// variables used, so fills dispatch on it exactly as on a declared one.
func (m *Manager) adopt(h *histo.Hist) {
	if n := h.Universe(); n > len(m.names) {
		grow := n - len(m.names)
		m.names = append(m.names, make([]string, grow)...)
		m.units = append(m.units, make([]string, grow)...)
		m.used = append(m.used, make([]bool, grow)...)
	}

	for i := 0; i < h.Rank(); i++ {
		m.markUsed(h.Axis(i).Var)
	}
	m.markUsed(h.WeightVar(), h.ValueVar())
}

// CloseFile drops the persisted classes and closes the store if the
// manager opened it.
func (m *Manager) CloseFile() error {
	var err error
	if m.closer != nil {
		err = m.closer.Close()
	}
	m.persisted = nil
	m.closer = nil
	m.storePath = ""
	m.storeTop = ""
	return err
}
