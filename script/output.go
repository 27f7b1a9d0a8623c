package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.starlark.net/starlark"

	"github.com/tablab/databox/tabular"
)

// ValueKind tags the shape of a snippet's result.
type ValueKind string

// Result value kinds. Tabular and rows values cross the process boundary
// already rendered to text; scalars keep their typed payload so the
// caller controls final formatting.
const (
	KindTabular ValueKind = "tabular"
	KindRows    ValueKind = "rows"
	KindScalar  ValueKind = "scalar"
	KindText    ValueKind = "text"
	KindAbsent  ValueKind = "absent"
)

// Scalar payload types.
const (
	ScalarInt   = "int"
	ScalarFloat = "float"
	ScalarBool  = "bool"
)

// TruncationMarker is appended whenever rendered output hits the cap.
const TruncationMarker = "\n...[TRUNCATED]"

// DefaultOutputLimit caps rendered output, in characters.
const DefaultOutputLimit = 100_000

// Value is the tagged result of a successful execution.
type Value struct {
	Kind       ValueKind `json:"kind"`
	Text       string    `json:"text,omitempty"`
	ScalarType string    `json:"scalar_type,omitempty"`
	IntVal     int64     `json:"int,omitempty"`
	FloatVal   float64   `json:"float,omitempty"`
	BoolVal    bool      `json:"bool,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
}

// AbsentValue is the result of a snippet that produced nothing.
func AbsentValue() Value {
	return Value{Kind: KindAbsent}
}

// FromStarlark classifies the value a snippet left in `result` and
// renders structured shapes to text within the output limit.
func FromStarlark(v starlark.Value, limit int) Value {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return AbsentValue()
	case *frameValue:
		text, truncated := renderFrameText(x.frame, limit)
		return Value{Kind: KindTabular, Text: text, Truncated: truncated}
	case *seriesValue:
		text, truncated := renderSeriesText(x.col, limit)
		return Value{Kind: KindRows, Text: text, Truncated: truncated}
	case *starlark.List:
		text, truncated := renderSequenceText(x, limit)
		return Value{Kind: KindRows, Text: text, Truncated: truncated}
	case starlark.Tuple:
		text, truncated := renderSequenceText(x, limit)
		return Value{Kind: KindRows, Text: text, Truncated: truncated}
	case starlark.Bool:
		return Value{Kind: KindScalar, ScalarType: ScalarBool, BoolVal: bool(x)}
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return Value{Kind: KindScalar, ScalarType: ScalarInt, IntVal: i}
		}
		text, truncated := Truncate(x.String(), limit)
		return Value{Kind: KindText, Text: text, Truncated: truncated}
	case starlark.Float:
		f := float64(x)
		// NaN and infinities cannot ride JSON; ship their names instead.
		if math.IsNaN(f) {
			return Value{Kind: KindText, Text: "nan"}
		}
		if math.IsInf(f, 1) {
			return Value{Kind: KindText, Text: "inf"}
		}
		if math.IsInf(f, -1) {
			return Value{Kind: KindText, Text: "-inf"}
		}
		return Value{Kind: KindScalar, ScalarType: ScalarFloat, FloatVal: f}
	case starlark.String:
		text, truncated := Truncate(string(x), limit)
		return Value{Kind: KindText, Text: text, Truncated: truncated}
	}
	text, truncated := Truncate(v.String(), limit)
	return Value{Kind: KindText, Text: text, Truncated: truncated}
}

// newTableWriter returns the shared rendering style. Header cells keep
// their original case so column names in replies match the dataset.
func newTableWriter() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	return t
}

func renderFrameText(f *tabular.Frame, limit int) (string, bool) {
	t := newTableWriter()

	header := make(table.Row, f.NumCols())
	for i, name := range f.Columns() {
		header[i] = name
	}
	t.AppendHeader(header)

	for i := 0; i < f.NumRows(); i++ {
		row := make(table.Row, f.NumCols())
		for j := 0; j < f.NumCols(); j++ {
			row[j] = f.ColumnAt(j).CellString(i)
		}
		t.AppendRow(row)
	}

	rendered := fmt.Sprintf("%s\n(%d rows)", t.Render(), f.NumRows())
	return Truncate(rendered, limit)
}

func renderSeriesText(c *tabular.Column, limit int) (string, bool) {
	t := newTableWriter()
	t.AppendHeader(table.Row{c.Name})
	for i := 0; i < c.Len(); i++ {
		t.AppendRow(table.Row{c.CellString(i)})
	}
	rendered := fmt.Sprintf("%s\n(%d values)", t.Render(), c.Len())
	return Truncate(rendered, limit)
}

func renderSequenceText(seq starlark.Iterable, limit int) (string, bool) {
	var lines []string
	iter := seq.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		lines = append(lines, elementText(elem))
	}
	return Truncate(strings.Join(lines, "\n"), limit)
}

// elementText renders one sequence element: strings stay raw, everything
// else uses its repr.
func elementText(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return v.String()
}

// Truncate enforces the output cap, appending the truncation marker when
// it bites. The limit counts characters, not bytes.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + TruncationMarker, true
}
