// Package dataset holds raw tabular records as read from disk.
//
// A Frame is column oriented and keeps every cell as its original string
// together with a missing flag; type decisions (numeric vs categorical) are
// made later by the preprocessing package.
package dataset

import (
	"strconv"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// DefaultNAValues are the cell values treated as missing, matching the
// defaults of common dataframe readers.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Column is one named column of raw cells.
type Column struct {
	Name    string
	Values  []string
	Missing []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// MissingCount returns how many cells are missing.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// IsNumeric reports whether every present cell parses as a float. A column
// with no present cells is not numeric.
func (c *Column) IsNumeric() bool {
	present := 0
	for i, v := range c.Values {
		if c.Missing[i] {
			continue
		}
		present++
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return present > 0
}

// HasNumericCells reports whether at least one present cell parses as a
// float. Together with IsNumeric it detects mixed columns.
func (c *Column) HasNumericCells() bool {
	for i, v := range c.Values {
		if c.Missing[i] {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return true
		}
	}
	return false
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	Source  string
	columns []*Column
	index   map[string]int
}

// NewFrame builds a frame from a header and row-major records. Cells listed
// in naValues are marked missing.
func NewFrame(source string, header []string, records [][]string, naValues []string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errors.NewDataLoadError(source, "empty header", nil)
	}

	na := make(map[string]struct{}, len(naValues))
	for _, v := range naValues {
		na[v] = struct{}{}
	}

	f := &Frame{Source: source, index: make(map[string]int, len(header))}
	for j, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(j)
		}
		if _, dup := f.index[name]; dup {
			return nil, errors.NewDataLoadError(source, "duplicate column "+strconv.Quote(name), nil)
		}
		f.index[name] = j
		f.columns = append(f.columns, &Column{
			Name:    name,
			Values:  make([]string, len(records)),
			Missing: make([]bool, len(records)),
		})
	}

	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, errors.NewDataLoadError(source,
				"record "+strconv.Itoa(i+1)+" has "+strconv.Itoa(len(rec))+" fields, header has "+strconv.Itoa(len(header)), nil)
		}
		for j, cell := range rec {
			col := f.columns[j]
			col.Values[i] = cell
			if _, missing := na[cell]; missing {
				col.Missing[i] = true
			}
		}
	}
	return f, nil
}

// NumRows returns the number of records.
func (f *Frame) NumRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// Names returns the column names in file order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in file order.
func (f *Frame) Columns() []*Column { return f.columns }

// Column looks up a column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Drop returns a frame without the named columns and the names that were
// actually present. The receiver is not modified.
func (f *Frame) Drop(names ...string) (*Frame, []string) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}

	out := &Frame{Source: f.Source, index: make(map[string]int)}
	var dropped []string
	for _, c := range f.columns {
		if skip[c.Name] {
			dropped = append(dropped, c.Name)
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out, dropped
}

// Filter returns a frame containing only the rows for which keep is true.
// Cells are copied, so the result is independent of the receiver.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.NumRows(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}

	out := &Frame{Source: f.Source, index: make(map[string]int, len(f.columns))}
	for j, c := range f.columns {
		nc := &Column{Name: c.Name, Values: make([]string, len(rows)), Missing: make([]bool, len(rows))}
		for k, r := range rows {
			nc.Values[k] = c.Values[r]
			nc.Missing[k] = c.Missing[r]
		}
		out.index[c.Name] = j
		out.columns = append(out.columns, nc)
	}
	return out
}
