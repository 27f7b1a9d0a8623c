package script

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/tablab/databox/tabular"
)

// frameValue exposes a tabular.Frame to Starlark as the `dataset` value.
// Subscripts read and write columns; analysis methods return fresh frames
// so snippets compose without mutating what they started from.
type frameValue struct {
	frame  *tabular.Frame
	frozen bool
}

func newFrameValue(f *tabular.Frame) *frameValue {
	return &frameValue{frame: f}
}

func (f *frameValue) String() string {
	return fmt.Sprintf("<frame %d rows x %d cols>", f.frame.NumRows(), f.frame.NumCols())
}

func (f *frameValue) Type() string          { return "frame" }
func (f *frameValue) Freeze()               { f.frozen = true }
func (f *frameValue) Truth() starlark.Bool  { return f.frame.NumRows() > 0 }
func (f *frameValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }

// Get implements dataset["col"].
func (f *frameValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("column key must be a string, got %s", k.Type())
	}
	col, ok := f.frame.Column(name)
	if !ok {
		return nil, false, fmt.Errorf("unknown column: %s", name)
	}
	return &seriesValue{col: col}, true, nil
}

// SetKey implements dataset["col"] = value for series, sequences and
// scalar broadcasts.
func (f *frameValue) SetKey(k, v starlark.Value) error {
	if f.frozen {
		return fmt.Errorf("cannot assign to column of frozen frame")
	}
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("column key must be a string, got %s", k.Type())
	}

	col, err := columnFromValue(name, v, f.frame.NumRows(), f.frame.NumCols() == 0)
	if err != nil {
		return err
	}
	return f.frame.SetColumn(col)
}

func (f *frameValue) AttrNames() []string {
	return []string{
		"columns", "describe", "filter", "group_mean", "head",
		"select", "shape", "sort_by",
	}
}

func (f *frameValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := f.frame.Columns()
		elems := make([]starlark.Value, len(names))
		for i, n := range names {
			elems[i] = starlark.String(n)
		}
		return starlark.NewList(elems), nil
	case "shape":
		return starlark.Tuple{
			starlark.MakeInt(f.frame.NumRows()),
			starlark.MakeInt(f.frame.NumCols()),
		}, nil
	case "head":
		return f.method(name, f.head), nil
	case "select":
		return f.method(name, f.selectCols), nil
	case "filter":
		return f.method(name, f.filter), nil
	case "sort_by":
		return f.method(name, f.sortBy), nil
	case "group_mean":
		return f.method(name, f.groupMean), nil
	case "describe":
		return f.method(name, f.describe), nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("frame has no .%s field or method", name))
}

type methodImpl func(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (f *frameValue) method(name string, impl methodImpl) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return impl(thread, args, kwargs)
	})
}

func (f *frameValue) head(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs("head", args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return newFrameValue(f.frame.Head(n)), nil
}

func (f *frameValue) selectCols(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("select: unexpected keyword arguments")
	}
	var names []string
	for _, arg := range args {
		switch v := arg.(type) {
		case starlark.String:
			names = append(names, string(v))
		case *starlark.List, starlark.Tuple:
			iter := v.(starlark.Iterable).Iterate()
			defer iter.Done()
			var elem starlark.Value
			for iter.Next(&elem) {
				s, ok := starlark.AsString(elem)
				if !ok {
					return nil, fmt.Errorf("select: got %s, want string", elem.Type())
				}
				names = append(names, s)
			}
		default:
			return nil, fmt.Errorf("select: got %s, want string or list of strings", arg.Type())
		}
	}
	sub, err := f.frame.Select(names)
	if err != nil {
		return nil, err
	}
	return newFrameValue(sub), nil
}

func (f *frameValue) filter(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	if err := starlark.UnpackPositionalArgs("filter", args, kwargs, 1, &cond); err != nil {
		return nil, err
	}

	switch c := cond.(type) {
	case *seriesValue:
		if c.col.Kind != tabular.KindBool {
			return nil, fmt.Errorf("filter: mask series must be bool, got %s", c.col.Kind)
		}
		mask := make([]bool, c.col.Len())
		for i := range mask {
			mask[i] = !c.col.IsNull(i) && c.col.Bools[i]
		}
		sub, err := f.frame.Filter(mask)
		if err != nil {
			return nil, err
		}
		return newFrameValue(sub), nil
	case starlark.Callable:
		// Row predicate: the callable sees each row as a dict.
		mask := make([]bool, f.frame.NumRows())
		for i := range mask {
			row := starlark.NewDict(f.frame.NumCols())
			for j := 0; j < f.frame.NumCols(); j++ {
				col := f.frame.ColumnAt(j)
				if err := row.SetKey(starlark.String(col.Name), cellValue(col, i)); err != nil {
					return nil, err
				}
			}
			keep, err := starlark.Call(thread, c, starlark.Tuple{row}, nil)
			if err != nil {
				return nil, err
			}
			mask[i] = bool(keep.Truth())
		}
		sub, err := f.frame.Filter(mask)
		if err != nil {
			return nil, err
		}
		return newFrameValue(sub), nil
	}
	return nil, fmt.Errorf("filter: got %s, want bool series or function", cond.Type())
}

func (f *frameValue) sortBy(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	desc := false
	if err := starlark.UnpackArgs("sort_by", args, kwargs, "col", &col, "desc?", &desc); err != nil {
		return nil, err
	}
	sorted, err := f.frame.SortBy(col, desc)
	if err != nil {
		return nil, err
	}
	return newFrameValue(sorted), nil
}

func (f *frameValue) groupMean(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by, target string
	if err := starlark.UnpackArgs("group_mean", args, kwargs, "by", &by, "target", &target); err != nil {
		return nil, err
	}
	grouped, err := f.frame.GroupMean(by, target)
	if err != nil {
		return nil, err
	}
	return newFrameValue(grouped), nil
}

func (f *frameValue) describe(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs("describe", args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(f.frame.Describe()), nil
}

// seriesValue exposes one column to Starlark: indexing, iteration,
// aggregate methods, element-wise arithmetic and comparison methods.
type seriesValue struct {
	col    *tabular.Column
	frozen bool
}

func (s *seriesValue) String() string {
	return fmt.Sprintf("<series %s len=%d>", s.col.Name, s.col.Len())
}

func (s *seriesValue) Type() string          { return "series" }
func (s *seriesValue) Freeze()               { s.frozen = true }
func (s *seriesValue) Truth() starlark.Bool  { return s.col.Len() > 0 }
func (s *seriesValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *seriesValue) Len() int              { return s.col.Len() }

func (s *seriesValue) Index(i int) starlark.Value {
	return cellValue(s.col, i)
}

func (s *seriesValue) Iterate() starlark.Iterator {
	return &seriesIterator{col: s.col}
}

type seriesIterator struct {
	col *tabular.Column
	i   int
}

func (it *seriesIterator) Next(p *starlark.Value) bool {
	if it.i >= it.col.Len() {
		return false
	}
	*p = cellValue(it.col, it.i)
	it.i++
	return true
}

func (it *seriesIterator) Done() {}

func (s *seriesValue) AttrNames() []string {
	return []string{
		"count", "eq", "ge", "gt", "le", "lt", "max", "mean", "median",
		"min", "name", "ne", "nulls", "std", "sum", "unique", "value_counts",
	}
}

func (s *seriesValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(s.col.Name), nil
	case "mean", "sum", "min", "max", "std", "median":
		return s.aggregate(name), nil
	case "count":
		return s.simple(name, func() (starlark.Value, error) {
			return starlark.MakeInt(s.col.Count()), nil
		}), nil
	case "nulls":
		return s.simple(name, func() (starlark.Value, error) {
			return starlark.MakeInt(s.col.NullCount()), nil
		}), nil
	case "unique":
		return s.simple(name, func() (starlark.Value, error) {
			vals := s.col.UniqueValues()
			elems := make([]starlark.Value, len(vals))
			for i, v := range vals {
				elems[i] = goScalar(v)
			}
			return starlark.NewList(elems), nil
		}), nil
	case "value_counts":
		return s.simple(name, func() (starlark.Value, error) {
			return newFrameValue(s.col.ValueCounts()), nil
		}), nil
	case "lt", "le", "gt", "ge", "eq", "ne":
		return s.comparison(name), nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("series has no .%s field or method", name))
}

func (s *seriesValue) simple(name string, impl func() (starlark.Value, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
			return nil, err
		}
		return impl()
	})
}

func (s *seriesValue) aggregate(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
			return nil, err
		}
		var v float64
		var err error
		switch name {
		case "mean":
			v, err = s.col.Mean()
		case "sum":
			v, err = s.col.Sum()
		case "min":
			v, err = s.col.Min()
		case "max":
			v, err = s.col.Max()
		case "std":
			v, err = s.col.Std()
		case "median":
			v, err = s.col.Median()
		}
		if err != nil {
			return nil, err
		}
		return starlark.Float(v), nil
	})
}

// comparison returns an element-wise comparison method (lt/le/gt/ge/eq/ne)
// producing a bool series usable as a filter mask.
func (s *seriesValue) comparison(op string) *starlark.Builtin {
	return starlark.NewBuiltin(op, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var other starlark.Value
		if err := starlark.UnpackPositionalArgs(op, args, kwargs, 1, &other); err != nil {
			return nil, err
		}
		return s.compare(op, other)
	})
}

func (s *seriesValue) compare(op string, other starlark.Value) (starlark.Value, error) {
	n := s.col.Len()
	out := &tabular.Column{Name: s.col.Name, Kind: tabular.KindBool, Bools: make([]bool, n)}

	rhs, err := comparandAt(other, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := 0; i < n; i++ {
		left := s.col.At(i)
		right := rhs(i)
		if left == nil || right == nil {
			out.SetNull(i)
			continue
		}
		cmp, ok := compareCells(left, right)
		if !ok {
			return nil, fmt.Errorf("%s: cannot compare %s with %s", op, s.col.Kind, typeName(right))
		}
		switch op {
		case "lt":
			out.Bools[i] = cmp < 0
		case "le":
			out.Bools[i] = cmp <= 0
		case "gt":
			out.Bools[i] = cmp > 0
		case "ge":
			out.Bools[i] = cmp >= 0
		case "eq":
			out.Bools[i] = cmp == 0
		case "ne":
			out.Bools[i] = cmp != 0
		}
	}
	return &seriesValue{col: out}, nil
}

// comparandAt adapts the right-hand side of a comparison to a per-row
// accessor: another series must match length, a scalar broadcasts.
func comparandAt(v starlark.Value, n int) (func(int) any, error) {
	if other, ok := v.(*seriesValue); ok {
		if other.col.Len() != n {
			return nil, fmt.Errorf("series length mismatch: %d vs %d", n, other.col.Len())
		}
		return func(i int) any { return other.col.At(i) }, nil
	}
	scalar, err := scalarOf(v)
	if err != nil {
		return nil, err
	}
	return func(int) any { return scalar }, nil
}

// compareCells orders two cells of compatible types. Numeric kinds widen
// to float; strings compare lexically; bools order false < true.
func compareCells(a, b any) (int, bool) {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		switch {
		case !ab && bb:
			return -1, true
		case ab && !bb:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Binary implements element-wise arithmetic: series against series of the
// same length, or series against a numeric scalar (either side). String
// series support + for concatenation. Unsupported pairings defer to the
// interpreter's standard unknown-binary-op fault.
func (s *seriesValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH:
	default:
		return nil, nil
	}

	if s.col.Kind == tabular.KindString {
		return s.stringConcat(op, y, side)
	}
	if !s.col.IsNumeric() {
		return nil, nil
	}

	n := s.col.Len()
	rhs, err := numericOperandAt(y, n)
	if err != nil {
		if _, ok := y.(*seriesValue); ok {
			return nil, err
		}
		// Not a numeric operand: fall back to the standard error.
		return nil, nil
	}

	resultInt := s.col.Kind == tabular.KindInt && rhs.isInt && op != syntax.SLASH
	out := &tabular.Column{Name: s.col.Name}
	if resultInt {
		out.Kind = tabular.KindInt
		out.Ints = make([]int64, n)
	} else {
		out.Kind = tabular.KindFloat
		out.Floats = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		left, okL := s.col.AsFloat(i)
		right, okR := rhs.at(i)
		if !okL || !okR {
			out.SetNull(i)
			continue
		}
		a, b := left, right
		if side == starlark.Right {
			a, b = right, left
		}
		var v float64
		switch op {
		case syntax.PLUS:
			v = a + b
		case syntax.MINUS:
			v = a - b
		case syntax.STAR:
			v = a * b
		case syntax.SLASH:
			if b == 0 {
				return nil, fmt.Errorf("series division by zero")
			}
			v = a / b
		}
		if resultInt {
			out.Ints[i] = int64(v)
		} else {
			out.Floats[i] = v
		}
	}
	return &seriesValue{col: out}, nil
}

func (s *seriesValue) stringConcat(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.PLUS {
		return nil, nil
	}
	n := s.col.Len()
	var at func(int) (string, bool)
	switch other := y.(type) {
	case *seriesValue:
		if other.col.Kind != tabular.KindString || other.col.Len() != n {
			return nil, nil
		}
		at = func(i int) (string, bool) {
			if other.col.IsNull(i) {
				return "", false
			}
			return other.col.Strs[i], true
		}
	case starlark.String:
		at = func(int) (string, bool) { return string(other), true }
	default:
		return nil, nil
	}

	out := &tabular.Column{Name: s.col.Name, Kind: tabular.KindString, Strs: make([]string, n)}
	for i := 0; i < n; i++ {
		if s.col.IsNull(i) {
			out.SetNull(i)
			continue
		}
		r, ok := at(i)
		if !ok {
			out.SetNull(i)
			continue
		}
		if side == starlark.Right {
			out.Strs[i] = r + s.col.Strs[i]
		} else {
			out.Strs[i] = s.col.Strs[i] + r
		}
	}
	return &seriesValue{col: out}, nil
}

type numericOperand struct {
	at    func(int) (float64, bool)
	isInt bool
}

func numericOperandAt(v starlark.Value, n int) (numericOperand, error) {
	switch other := v.(type) {
	case *seriesValue:
		if !other.col.IsNumeric() {
			return numericOperand{}, fmt.Errorf("series is not numeric")
		}
		if other.col.Len() != n {
			return numericOperand{}, fmt.Errorf("series length mismatch: %d vs %d", n, other.col.Len())
		}
		return numericOperand{
			at:    other.col.AsFloat,
			isInt: other.col.Kind == tabular.KindInt,
		}, nil
	case starlark.Int:
		i, ok := other.Int64()
		if !ok {
			return numericOperand{}, fmt.Errorf("integer too large")
		}
		f := float64(i)
		return numericOperand{at: func(int) (float64, bool) { return f, true }, isInt: true}, nil
	case starlark.Float:
		f := float64(other)
		return numericOperand{at: func(int) (float64, bool) { return f, true }}, nil
	case starlark.Bool:
		f := 0.0
		if other {
			f = 1
		}
		return numericOperand{at: func(int) (float64, bool) { return f, true }, isInt: true}, nil
	}
	return numericOperand{}, fmt.Errorf("not a numeric operand")
}

// cellValue converts one cell to a Starlark value; nulls become None.
func cellValue(c *tabular.Column, i int) starlark.Value {
	return goScalar(c.At(i))
}

// goScalar converts a Go cell value (float64/int64/string/bool/nil) to
// its Starlark counterpart.
func goScalar(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case float64:
		return starlark.Float(x)
	case int64:
		return starlark.MakeInt64(x)
	case string:
		return starlark.String(x)
	case bool:
		return starlark.Bool(x)
	}
	return starlark.None
}

// scalarOf converts a Starlark scalar to a Go cell value.
func scalarOf(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	}
	return nil, fmt.Errorf("got %s, want a scalar", v.Type())
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case float64:
		return "float"
	case int64:
		return "int"
	case string:
		return "string"
	case bool:
		return "bool"
	}
	return fmt.Sprintf("%T", v)
}

// columnFromValue builds a column from the right-hand side of a
// dataset["name"] = ... assignment.
func columnFromValue(name string, v starlark.Value, rows int, emptyFrame bool) (*tabular.Column, error) {
	if series, ok := v.(*seriesValue); ok {
		if !emptyFrame && series.col.Len() != rows {
			return nil, fmt.Errorf("cannot assign %d values to frame with %d rows", series.col.Len(), rows)
		}
		col := series.col.Clone()
		col.Name = name
		return col, nil
	}

	if seq, ok := v.(starlark.Sequence); ok {
		var cells []any
		iter := seq.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			cell, err := scalarOf(elem)
			if err != nil {
				return nil, fmt.Errorf("cannot assign %s to column %s", elem.Type(), name)
			}
			cells = append(cells, cell)
		}
		if !emptyFrame && len(cells) != rows {
			return nil, fmt.Errorf("cannot assign %d values to frame with %d rows", len(cells), rows)
		}
		return buildColumn(name, cells)
	}

	// Scalar broadcast over every row.
	cell, err := scalarOf(v)
	if err != nil {
		return nil, fmt.Errorf("cannot assign %s to column %s", v.Type(), name)
	}
	if emptyFrame {
		return buildColumn(name, []any{cell})
	}
	cells := make([]any, rows)
	for i := range cells {
		cells[i] = cell
	}
	return buildColumn(name, cells)
}

// buildColumn infers the narrowest column kind that fits every cell.
// Ints widen to float when mixed; nil cells become nulls of any kind.
func buildColumn(name string, cells []any) (*tabular.Column, error) {
	sawInt, sawFloat, sawString, sawBool := false, false, false, false
	for _, c := range cells {
		switch c.(type) {
		case nil:
		case int64:
			sawInt = true
		case float64:
			sawFloat = true
		case string:
			sawString = true
		case bool:
			sawBool = true
		}
	}

	var kind tabular.Kind
	switch {
	case sawString && !sawInt && !sawFloat && !sawBool:
		kind = tabular.KindString
	case sawBool && !sawInt && !sawFloat && !sawString:
		kind = tabular.KindBool
	case (sawInt || sawFloat) && !sawString && !sawBool:
		kind = tabular.KindFloat
		if !sawFloat {
			kind = tabular.KindInt
		}
	case !sawInt && !sawFloat && !sawString && !sawBool:
		kind = tabular.KindString // all nulls
	default:
		return nil, fmt.Errorf("mixed value types in column %s", name)
	}

	col := &tabular.Column{Name: name, Kind: kind}
	switch kind {
	case tabular.KindInt:
		col.Ints = make([]int64, len(cells))
	case tabular.KindFloat:
		col.Floats = make([]float64, len(cells))
	case tabular.KindBool:
		col.Bools = make([]bool, len(cells))
	default:
		col.Strs = make([]string, len(cells))
	}
	for i, c := range cells {
		if c == nil {
			col.SetNull(i)
			continue
		}
		switch kind {
		case tabular.KindInt:
			col.Ints[i] = c.(int64)
		case tabular.KindFloat:
			f, _ := toFloat(c)
			col.Floats[i] = f
		case tabular.KindBool:
			col.Bools[i] = c.(bool)
		default:
			col.Strs[i] = c.(string)
		}
	}
	return col, nil
}

var (
	_ starlark.Value     = (*frameValue)(nil)
	_ starlark.Mapping   = (*frameValue)(nil)
	_ starlark.HasSetKey = (*frameValue)(nil)
	_ starlark.HasAttrs  = (*frameValue)(nil)

	_ starlark.Value     = (*seriesValue)(nil)
	_ starlark.HasAttrs  = (*seriesValue)(nil)
	_ starlark.HasBinary = (*seriesValue)(nil)
	_ starlark.Indexable = (*seriesValue)(nil)
	_ starlark.Iterable  = (*seriesValue)(nil)
)
