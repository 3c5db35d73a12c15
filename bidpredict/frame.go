package bidpredict

import "fmt"

// Frame is an ordered, append-only collection of equally sized columns.
// Downstream scaling identifies columns by position, so sub-transforms may
// append new columns but must never reorder or overwrite existing ones;
// SetNumeric and SetText enforce that by refusing to replace a column.
type Frame struct {
	rows  int
	order []string
	nums  map[string][]float64
	texts map[string][]string
}

// NewFrame creates an empty frame with a fixed row count.
func NewFrame(rows int) *Frame {
	return &Frame{
		rows:  rows,
		nums:  make(map[string][]float64),
		texts: make(map[string][]string),
	}
}

// Rows returns the row count shared by every column.
func (f *Frame) Rows() int { return f.rows }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a column of either kind exists.
func (f *Frame) Has(name string) bool {
	_, n := f.nums[name]
	_, t := f.texts[name]
	return n || t
}

// SetNumeric appends a numeric column. Appending over an existing name is a
// no-op so that re-running a sub-transform cannot alter earlier output.
func (f *Frame) SetNumeric(name string, values []float64) error {
	if f.Has(name) {
		return nil
	}
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	col := make([]float64, len(values))
	copy(col, values)
	f.nums[name] = col
	f.order = append(f.order, name)
	return nil
}

// SetText appends a text column with the same no-overwrite rule.
func (f *Frame) SetText(name string, values []string) error {
	if f.Has(name) {
		return nil
	}
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	col := make([]string, len(values))
	copy(col, values)
	f.texts[name] = col
	f.order = append(f.order, name)
	return nil
}

// Numeric returns a numeric column by name.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	col, ok := f.nums[name]
	return col, ok
}

// Text returns a text column by name.
func (f *Frame) Text(name string) ([]string, bool) {
	col, ok := f.texts[name]
	return col, ok
}

// NumericColumns returns the names of numeric columns in insertion order.
func (f *Frame) NumericColumns() []string {
	out := make([]string, 0, len(f.nums))
	for _, name := range f.order {
		if _, ok := f.nums[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Matrix extracts the named numeric columns as row vectors, preserving the
// requested order. The caller is asking for the frozen layout a scaler or
// model was fitted against, so a missing column is feature-set drift and
// surfaces as a FeatureShapeMismatchError.
func (f *Frame) Matrix(columns []string) ([][]float64, error) {
	present := 0
	for _, name := range columns {
		if _, ok := f.nums[name]; ok {
			present++
		}
	}
	for _, name := range columns {
		if _, ok := f.nums[name]; !ok {
			return nil, &FeatureShapeMismatchError{Want: len(columns), Got: present, Column: name}
		}
	}
	out := make([][]float64, f.rows)
	for i := range out {
		row := make([]float64, len(columns))
		for j, name := range columns {
			row[j] = f.nums[name][i]
		}
		out[i] = row
	}
	return out, nil
}
