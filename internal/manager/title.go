package manager

import "strings"

// titleFields splits a declaration title of the form
//
//	"title;x-axis;y-axis;z-axis;value"
//
// Fields are positional: an empty field means "derive from the variable".
type titleFields []string

func parseTitle(title string) titleFields {
	return strings.Split(title, ";")
}

// at returns field i, or "" when absent.
func (f titleFields) at(i int) string {
	if i < len(f) {
		return strings.TrimSpace(f[i])
	}
	return ""
}

// varTitle renders a variable as "name (unit)", or "name" without unit.
func (m *Manager) varTitle(v int) string {
	name, unit := m.Variable(v)
	if unit == "" {
		return name
	}
	return name + " (" + unit + ")"
}

// axisTitle returns field i verbatim, or the title of variable v.
func (m *Manager) axisTitle(f titleFields, i, v int) string {
	if t := f.at(i); t != "" {
		return t
	}
	return m.varTitle(v)
}

// valueTitle returns field i verbatim, or the averaged variable rendered as
// "<name> (unit)".
func (m *Manager) valueTitle(f titleFields, i, v int) string {
	if t := f.at(i); t != "" {
		return t
	}
	name, unit := m.Variable(v)
	if unit == "" {
		return "<" + name + ">"
	}
	return "<" + name + "> (" + unit + ")"
}
