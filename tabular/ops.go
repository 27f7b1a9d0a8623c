package tabular

import (
	"fmt"
	"math"
	"sort"
)

// Head returns a copy of the first n rows. n larger than the frame is
// clamped; negative n means zero rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > f.NumRows() {
		n = f.NumRows()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.take(idx)
}

// Select returns a copy holding only the named columns, in the given order.
func (f *Frame) Select(names []string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		col, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", name)
		}
		cols = append(cols, col.Clone())
	}
	return NewFrame(cols...)
}

// Filter returns a copy holding the rows where mask is true.
func (f *Frame) Filter(mask []bool) (*Frame, error) {
	if len(mask) != f.NumRows() {
		return nil, fmt.Errorf("filter mask has %d entries, want %d", len(mask), f.NumRows())
	}
	var idx []int
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return f.take(idx), nil
}

// SortBy returns a copy sorted by the named column. Nulls sort last in
// either direction.
func (f *Frame) SortBy(name string, desc bool) (*Frame, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column: %s", name)
	}
	idx := make([]int, f.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		na, nb := col.IsNull(ia), col.IsNull(ib)
		if na || nb {
			return !na && nb
		}
		if desc {
			return col.cellLess(ib, ia)
		}
		return col.cellLess(ia, ib)
	})
	return f.take(idx), nil
}

func (c *Column) cellLess(a, b int) bool {
	switch c.Kind {
	case KindFloat:
		return c.Floats[a] < c.Floats[b]
	case KindInt:
		return c.Ints[a] < c.Ints[b]
	case KindString:
		return c.Strs[a] < c.Strs[b]
	case KindBool:
		return !c.Bools[a] && c.Bools[b]
	}
	return false
}

// GroupMean groups rows by one column and averages another over each
// group. The result has one row per group key, sorted by key.
func (f *Frame) GroupMean(by, target string) (*Frame, error) {
	keyCol, ok := f.Column(by)
	if !ok {
		return nil, fmt.Errorf("unknown column: %s", by)
	}
	valCol, ok := f.Column(target)
	if !ok {
		return nil, fmt.Errorf("unknown column: %s", target)
	}
	if !valCol.IsNumeric() {
		return nil, fmt.Errorf("column %s is not numeric", target)
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var keys []string
	for i := 0; i < f.NumRows(); i++ {
		v, ok := valCol.AsFloat(i)
		if !ok {
			continue
		}
		k := keyCol.CellString(i)
		if _, seen := counts[k]; !seen {
			keys = append(keys, k)
		}
		sums[k] += v
		counts[k]++
	}
	sort.Strings(keys)

	out := &Column{Name: by, Kind: KindString, Strs: keys}
	means := &Column{Name: target, Kind: KindFloat, Floats: make([]float64, len(keys))}
	for i, k := range keys {
		means.Floats[i] = sums[k] / float64(counts[k])
	}
	return NewFrame(out, means)
}

func (f *Frame) take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.slice(idx)
	}
	out, _ := NewFrame(cols...)
	return out
}

// Count returns the number of non-null cells.
func (c *Column) Count() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if !c.IsNull(i) {
			n++
		}
	}
	return n
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	return c.Len() - c.Count()
}

// Sum returns the sum of the non-null values of a numeric column. An
// all-null column sums to zero.
func (c *Column) Sum() (float64, error) {
	if !c.IsNumeric() {
		return 0, fmt.Errorf("column %s is not numeric", c.Name)
	}
	total := 0.0
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.AsFloat(i); ok {
			total += v
		}
	}
	return total, nil
}

// Mean returns the arithmetic mean of the non-null values.
func (c *Column) Mean() (float64, error) {
	if !c.IsNumeric() {
		return 0, fmt.Errorf("column %s is not numeric", c.Name)
	}
	n := c.Count()
	if n == 0 {
		return 0, fmt.Errorf("column %s has no values", c.Name)
	}
	total, _ := c.Sum()
	return total / float64(n), nil
}

// Std returns the sample standard deviation of the non-null values.
func (c *Column) Std() (float64, error) {
	mean, err := c.Mean()
	if err != nil {
		return 0, err
	}
	n := c.Count()
	if n < 2 {
		return 0, fmt.Errorf("column %s needs at least two values", c.Name)
	}
	sumSq := 0.0
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.AsFloat(i); ok {
			d := v - mean
			sumSq += d * d
		}
	}
	return math.Sqrt(sumSq / float64(n-1)), nil
}

// Min returns the smallest non-null value of a numeric column.
func (c *Column) Min() (float64, error) {
	return c.extreme(true)
}

// Max returns the largest non-null value of a numeric column.
func (c *Column) Max() (float64, error) {
	return c.extreme(false)
}

func (c *Column) extreme(min bool) (float64, error) {
	if !c.IsNumeric() {
		return 0, fmt.Errorf("column %s is not numeric", c.Name)
	}
	best := math.NaN()
	for i := 0; i < c.Len(); i++ {
		v, ok := c.AsFloat(i)
		if !ok {
			continue
		}
		if math.IsNaN(best) || (min && v < best) || (!min && v > best) {
			best = v
		}
	}
	if math.IsNaN(best) {
		return 0, fmt.Errorf("column %s has no values", c.Name)
	}
	return best, nil
}

// Median returns the middle non-null value, averaging the two middle
// values for even counts.
func (c *Column) Median() (float64, error) {
	return c.Quantile(0.5)
}

// Quantile returns the q-quantile (0 ≤ q ≤ 1) of the non-null values,
// linearly interpolated between closest ranks.
func (c *Column) Quantile(q float64) (float64, error) {
	if !c.IsNumeric() {
		return 0, fmt.Errorf("column %s is not numeric", c.Name)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile %v out of range [0, 1]", q)
	}
	var vals []float64
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.AsFloat(i); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("column %s has no values", c.Name)
	}
	sort.Float64s(vals)
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo], nil
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac, nil
}

// UniqueValues returns the distinct non-null values in first-appearance
// order.
func (c *Column) UniqueValues() []any {
	seen := make(map[string]struct{})
	var out []any
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		key := c.CellString(i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c.At(i))
	}
	return out
}

// ValueCounts returns a two-column frame (value, count) of the distinct
// non-null values, most frequent first, ties broken by value.
func (c *Column) ValueCounts() *Frame {
	counts := make(map[string]int64)
	var order []string
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		key := c.CellString(i)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	sort.SliceStable(order, func(a, b int) bool {
		if counts[order[a]] != counts[order[b]] {
			return counts[order[a]] > counts[order[b]]
		}
		return order[a] < order[b]
	})
	vals := &Column{Name: "value", Kind: KindString, Strs: order}
	nums := &Column{Name: "count", Kind: KindInt, Ints: make([]int64, len(order))}
	for i, k := range order {
		nums.Ints[i] = counts[k]
	}
	out, _ := NewFrame(vals, nums)
	return out
}
