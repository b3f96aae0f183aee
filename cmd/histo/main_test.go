package main

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmgr.lopezb.com/internal/manager"
)

const declYAML = `
name: analysis
variables:
  - {name: pt, unit: GeV/c}
  - {name: eta}
classes:
  - name: Event
    histograms:
      - {name: pt, x: {var: pt, bins: 10, min: 0, max: 10}}
  - name: Track
    histograms:
      - {name: eta, x: {var: eta, bins: 4, min: -1, max: 1}}
`

const eventsCSV = `pt,eta,junk,class
1.5,0.2,x,Event;Track
2.5,,y,Event; Track
,0.7,z,Track
`

func writeInputs(t *testing.T) (dir, decl, events string) {
	t.Helper()
	dir = t.TempDir()
	decl = filepath.Join(dir, "decl.yaml")
	events = filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(decl, []byte(declYAML), 0o644))
	require.NoError(t, os.WriteFile(events, []byte(eventsCSV), 0o644))
	return dir, decl, events
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func testManager(t *testing.T) *manager.Manager {
	t.Helper()
	m := manager.New("analysis", 3, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.SetVariableNames([]string{"pt", "eta", "phi"}, nil)
	return m
}

func TestEventReader(t *testing.T) {
	m := testManager(t)
	er, err := newEventReader(strings.NewReader("phi, pt ,other,class\n1,2,3,A;B\n,5,6,\n"), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, er.ignored)

	values := m.NewValues()
	classes, err := er.next(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, classes)
	assert.Equal(t, 2.0, values[0])
	assert.True(t, math.IsNaN(values[1]), "eta has no column")
	assert.Equal(t, 1.0, values[2])

	classes, err = er.next(values)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.NotNil(t, classes, "an empty class cell fills no class")
	assert.True(t, math.IsNaN(values[2]), "empty cell resets the variable")
	assert.Equal(t, 5.0, values[0])

	_, err = er.next(values)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventReader_NoClassColumn(t *testing.T) {
	m := testManager(t)
	er, err := newEventReader(strings.NewReader("pt\n3\n"), m)
	require.NoError(t, err)

	classes, err := er.next(m.NewValues())
	require.NoError(t, err)
	assert.Nil(t, classes)
}

func TestEventReader_Errors(t *testing.T) {
	m := testManager(t)

	_, err := newEventReader(strings.NewReader(""), m)
	assert.ErrorContains(t, err, "no header")

	er, err := newEventReader(strings.NewReader("pt,eta\n1,abc\n"), m)
	require.NoError(t, err)
	_, err = er.next(m.NewValues())
	assert.ErrorContains(t, err, "line 2, column 3")

	er, err = newEventReader(strings.NewReader("pt,eta\n1\n"), m)
	require.NoError(t, err)
	_, err = er.next(m.NewValues())
	assert.Error(t, err, "short row")
}

func TestFillAndLs_File(t *testing.T) {
	dir, decl, events := writeInputs(t)
	out := filepath.Join(dir, "out.hms")
	metrics := filepath.Join(dir, "histo.prom")

	stdout, stderr, err := run(t, "fill",
		"--config", decl, "--events", events, "--out", out,
		"--metrics-file", metrics, "--print")
	require.NoError(t, err)
	assert.Contains(t, stdout, `histogram manager "analysis": live, 2 classes, 2 histograms, 18 bins allocated`)
	assert.Contains(t, stderr, "junk")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `histo_fills_total{class="Event"} 2`)
	assert.Contains(t, string(prom), `histo_fills_skipped_total{class="Track"} 1`)
	assert.Contains(t, string(prom), "histo_fill_calls_total 5")

	stdout, _, err = run(t, "ls", "--store", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, `histogram manager "analysis": persisted, 2 classes, 2 histograms`)
	assert.Contains(t, stdout, "Event/pt: 2 entries, integral 2\n")
	assert.Contains(t, stdout, "Track/eta: 2 entries, integral 2\n")
}

func TestFillAndLs_Badger(t *testing.T) {
	dir, decl, events := writeInputs(t)
	out := filepath.Join(dir, "out.db")

	_, _, err := run(t, "fill", "--config", decl, "--events", events, "--out", out, "--backend", "badger")
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	stdout, _, err := run(t, "ls", "--store", out, "--top", "analysis")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Event/pt: 2 entries, integral 2\n")
}

func TestFill_Errors(t *testing.T) {
	dir, decl, events := writeInputs(t)
	out := filepath.Join(dir, "out.hms")

	_, _, err := run(t, "fill", "--config", decl, "--events", events, "--out", out, "--backend", "tape")
	assert.ErrorContains(t, err, "unknown backend")

	_, _, err = run(t, "fill", "--config", decl, "--events", filepath.Join(dir, "none.csv"), "--out", out)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = run(t, "fill", "--config", decl, "--out", out)
	assert.ErrorContains(t, err, "events")

	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "no store written on failure")

	_, _, err = run(t, "ls", "--store", out)
	assert.Error(t, err)
}
