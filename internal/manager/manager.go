// Package manager implements the histogram manager: named classes of
// histograms declared over a fixed universe of indexed variables and filled
// generically, one class at a time, from a flat array of variable values.
//
// Dispatch Without Side Tables
// ============================
//
// A histogram carries everything a fill needs: its Kind, the variable bound
// to each axis, the weight variable and, for profiles, the averaged value
// variable. The same metadata is recoverable from persisted data alone (the
// legacy integer tag plus per-axis bindings), so a manager that only opened
// a store, and never ran the declarations, fills and enumerates histograms
// exactly like the one that declared them.
//
// Modes
// =====
//
// A manager is in one of three modes:
//
//   - empty: nothing declared and no store opened; lookups log a warning.
//   - live: at least one class was declared in this process.
//   - persisted: classes were loaded from a store with InitFile/InitStore.
//
// Live classes take precedence when both exist.
//
// A Manager is not safe for concurrent use. It is built and filled from a
// single event loop.
package manager

import (
	"errors"
	"io"
	"log/slog"

	"hmgr.lopezb.com/internal/histo"
)

var (
	// ErrClassNotFound is returned when a class name is unknown.
	ErrClassNotFound = errors.New("manager: class not found")

	// ErrDuplicateClass is returned when declaring an existing class.
	ErrDuplicateClass = errors.New("manager: class already exists")

	// ErrDuplicateHistogram is returned when a histogram name is already
	// taken within its class.
	ErrDuplicateHistogram = errors.New("manager: histogram already exists")

	// ErrVariableOutOfRange is returned for a variable index outside the
	// universe.
	ErrVariableOutOfRange = errors.New("manager: variable index out of range")

	// ErrInvalidSpec is returned for a declaration with unusable binning or
	// an inconsistent axis set.
	ErrInvalidSpec = errors.New("manager: invalid histogram declaration")

	// ErrNoStore is returned when an operation needs a store and none was
	// given.
	ErrNoStore = errors.New("manager: no store")
)

type mode int

const (
	modeEmpty mode = iota
	modeLive
	modePersisted
)

func (m mode) String() string {
	switch m {
	case modeLive:
		return "live"
	case modePersisted:
		return "persisted"
	}
	return "empty"
}

// Manager owns the variable universe and the histogram classes.
type Manager struct {
	name   string
	logger *slog.Logger

	names []string
	units []string
	used  []bool

	live      *hashList[*Class]
	persisted *hashList[*Class]

	closer    io.Closer // set when the manager opened the store itself
	storePath string
	storeTop  string

	binsAllocated int64
	fillCalls     int64
}

// Stats is a snapshot of the manager counters.
type Stats struct {
	Classes       int
	Histograms    int
	BinsAllocated int64
	FillCalls     int64
	Fills         int64
	Skipped       int64
}

// New creates a manager over a universe of nvars variables. The name is
// used as the top-level directory when writing output. A nil logger uses
// slog.Default().
func New(name string, nvars int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if nvars < 0 {
		nvars = 0
	}

	return &Manager{
		name:   name,
		logger: logger,
		names:  make([]string, nvars),
		units:  make([]string, nvars),
		used:   make([]bool, nvars),
		live:   newHashList[*Class](),
	}
}

// Name returns the manager name.
func (m *Manager) Name() string { return m.name }

// SetName renames the manager, and with it the directory WriteOutput
// creates.
func (m *Manager) SetName(name string) { m.name = name }

func (m *Manager) mode() mode {
	switch {
	case m.live.Len() > 0:
		return modeLive
	case m.persisted != nil:
		return modePersisted
	}
	return modeEmpty
}

// classes returns the class list of the current mode, or nil when empty.
func (m *Manager) classes() *hashList[*Class] {
	switch m.mode() {
	case modeLive:
		return m.live
	case modePersisted:
		return m.persisted
	}
	return nil
}

// Stats returns the current counters. Class and histogram counts refer to
// the active mode.
func (m *Manager) Stats() Stats {
	s := Stats{BinsAllocated: m.binsAllocated, FillCalls: m.fillCalls}
	if list := m.classes(); list != nil {
		s.Classes = list.Len()
		for _, c := range list.Items() {
			s.Histograms += c.Len()
			s.Fills += c.fills
			s.Skipped += c.skipped
		}
	}
	return s
}

// Close releases the manager: persisted classes are dropped and an open
// store is closed.
func (m *Manager) Close() error {
	return m.CloseFile()
}

func (m *Manager) allocated(h *histo.Hist) {
	m.binsAllocated += int64(h.AllocatedBins())
}
