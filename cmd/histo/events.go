package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hmgr.lopezb.com/internal/histo"
	"hmgr.lopezb.com/internal/manager"
)

// classColumn names the optional column listing the classes of a row.
const classColumn = "class"

// eventReader decodes rows of an event table into values arrays.
type eventReader struct {
	r       *csv.Reader
	columns []int // column -> variable index, NoVariable when ignored
	class   int   // column of the class list, -1 when absent
	ignored []string
}

func newEventReader(r io.Reader, m *manager.Manager) (*eventReader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("event table has no header")
		}
		return nil, fmt.Errorf("read event header: %w", err)
	}

	er := &eventReader{r: cr, columns: make([]int, len(header)), class: -1}
	for i, name := range header {
		name = strings.TrimSpace(name)
		er.columns[i] = histo.NoVariable
		switch {
		case name == classColumn:
			er.class = i
		case m.VariableIndex(name) != histo.NoVariable:
			er.columns[i] = m.VariableIndex(name)
		default:
			er.ignored = append(er.ignored, name)
		}
	}
	return er, nil
}

// next fills values from the next row and returns its class list, nil when
// the table has no class column. It returns io.EOF after the last row.
func (er *eventReader) next(values []float64) ([]string, error) {
	record, err := er.r.Read()
	if err != nil {
		return nil, err
	}

	manager.ResetValues(values)
	for i, cell := range record {
		v := er.columns[i]
		if v == histo.NoVariable {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		x, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			line, col := er.r.FieldPos(i)
			return nil, fmt.Errorf("line %d, column %d: %w", line, col, err)
		}
		values[v] = x
	}

	if er.class < 0 {
		return nil, nil
	}
	var classes []string
	for _, c := range strings.Split(record[er.class], ";") {
		if c = strings.TrimSpace(c); c != "" {
			classes = append(classes, c)
		}
	}
	if classes == nil {
		classes = []string{}
	}
	return classes, nil
}
