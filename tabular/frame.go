package tabular

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the element type of a Column.
type Kind string

// Column kinds. Int widens to Float for arithmetic; everything renders to String.
const (
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindString Kind = "string"
	KindBool   Kind = "bool"
)

// Column is a single named, typed column. Exactly one of the value slices
// is populated, chosen by Kind. Null marks cells with no value; a nil Null
// slice means the column has no nulls.
type Column struct {
	Name   string    `json:"name"`
	Kind   Kind      `json:"kind"`
	Floats []float64 `json:"floats,omitempty"`
	Ints   []int64   `json:"ints,omitempty"`
	Strs   []string  `json:"strings,omitempty"`
	Bools  []bool    `json:"bools,omitempty"`
	Null   []bool    `json:"null,omitempty"`
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindFloat:
		return len(c.Floats)
	case KindInt:
		return len(c.Ints)
	case KindString:
		return len(c.Strs)
	case KindBool:
		return len(c.Bools)
	}
	return 0
}

// IsNull reports whether cell i holds no value.
func (c *Column) IsNull(i int) bool {
	return c.Null != nil && i < len(c.Null) && c.Null[i]
}

// SetNull marks cell i as holding no value, allocating the mask on demand.
func (c *Column) SetNull(i int) {
	if c.Null == nil {
		c.Null = make([]bool, c.Len())
	}
	c.Null[i] = true
}

// At returns the value of cell i as a Go value (float64, int64, string or
// bool), or nil when the cell is null.
func (c *Column) At(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind {
	case KindFloat:
		return c.Floats[i]
	case KindInt:
		return c.Ints[i]
	case KindString:
		return c.Strs[i]
	case KindBool:
		return c.Bools[i]
	}
	return nil
}

// AsFloat returns cell i widened to float64. The second result is false
// for nulls and for non-numeric kinds.
func (c *Column) AsFloat(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.Kind {
	case KindFloat:
		return c.Floats[i], true
	case KindInt:
		return float64(c.Ints[i]), true
	}
	return 0, false
}

// CellString renders cell i for display. Nulls render as "null".
func (c *Column) CellString(i int) string {
	if c.IsNull(i) {
		return "null"
	}
	switch c.Kind {
	case KindFloat:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(c.Ints[i], 10)
	case KindString:
		return c.Strs[i]
	case KindBool:
		if c.Bools[i] {
			return "True"
		}
		return "False"
	}
	return ""
}

// IsNumeric reports whether the column participates in numeric statistics.
func (c *Column) IsNumeric() bool {
	return c.Kind == KindFloat || c.Kind == KindInt
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Ints != nil {
		out.Ints = append([]int64(nil), c.Ints...)
	}
	if c.Strs != nil {
		out.Strs = append([]string(nil), c.Strs...)
	}
	if c.Bools != nil {
		out.Bools = append([]bool(nil), c.Bools...)
	}
	if c.Null != nil {
		out.Null = append([]bool(nil), c.Null...)
	}
	return out
}

// slice returns a copy of the column restricted to the given row indices.
func (c *Column) slice(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindFloat:
		out.Floats = make([]float64, len(idx))
		for j, i := range idx {
			out.Floats[j] = c.Floats[i]
		}
	case KindInt:
		out.Ints = make([]int64, len(idx))
		for j, i := range idx {
			out.Ints[j] = c.Ints[i]
		}
	case KindString:
		out.Strs = make([]string, len(idx))
		for j, i := range idx {
			out.Strs[j] = c.Strs[i]
		}
	case KindBool:
		out.Bools = make([]bool, len(idx))
		for j, i := range idx {
			out.Bools[j] = c.Bools[i]
		}
	}
	if c.Null != nil {
		out.Null = make([]bool, len(idx))
		for j, i := range idx {
			out.Null[j] = c.Null[i]
		}
	}
	return out
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	cols   []*Column
	byName map[string]int
}

// NewFrame builds a frame from columns, rejecting duplicate names and
// mismatched lengths.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{byName: make(map[string]int, len(cols))}
	for _, col := range cols {
		if col.Name == "" {
			return nil, fmt.Errorf("column with empty name")
		}
		if _, dup := f.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column: %s", col.Name)
		}
		if len(f.cols) > 0 && col.Len() != f.cols[0].Len() {
			return nil, fmt.Errorf("column %s has %d rows, want %d", col.Name, col.Len(), f.cols[0].Len())
		}
		f.byName[col.Name] = len(f.cols)
		f.cols = append(f.cols, col)
	}
	return f, nil
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCols returns the column count.
func (f *Frame) NumCols() int {
	return len(f.cols)
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column with the given name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// ColumnAt returns the column at position i.
func (f *Frame) ColumnAt(i int) *Column {
	return f.cols[i]
}

// SetColumn replaces the column with the same name, or appends a new one.
// New columns must match the frame's row count unless the frame is empty.
func (f *Frame) SetColumn(col *Column) error {
	if col.Name == "" {
		return fmt.Errorf("column with empty name")
	}
	if len(f.cols) > 0 && col.Len() != f.NumRows() {
		return fmt.Errorf("column %s has %d rows, want %d", col.Name, col.Len(), f.NumRows())
	}
	if i, ok := f.byName[col.Name]; ok {
		f.cols[i] = col
		return nil
	}
	if f.byName == nil {
		f.byName = make(map[string]int)
	}
	f.byName[col.Name] = len(f.cols)
	f.cols = append(f.cols, col)
	return nil
}

// DropColumn removes the named column if present.
func (f *Frame) DropColumn(name string) {
	i, ok := f.byName[name]
	if !ok {
		return
	}
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	delete(f.byName, name)
	for j := i; j < len(f.cols); j++ {
		f.byName[f.cols[j].Name] = j
	}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.Clone()
	}
	out, _ := NewFrame(cols...)
	return out
}

// Fingerprint returns a hex sha256 over the frame's canonical JSON
// encoding. Two frames with identical schema and cells share a
// fingerprint, so it witnesses that an execution left a frame untouched.
func (f *Frame) Fingerprint() string {
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type frameJSON struct {
	Columns []*Column `json:"columns"`
}

// MarshalJSON encodes the frame as an ordered column list.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameJSON{Columns: f.cols})
}

// UnmarshalJSON decodes a column list and rebuilds the name index.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw frameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rebuilt, err := NewFrame(raw.Columns...)
	if err != nil {
		return err
	}
	*f = *rebuilt
	return nil
}
