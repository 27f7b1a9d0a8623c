package script

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// chartsModule provides declarative chart builders. Each builder returns
// a spec dict; charts.encode turns a spec into the base64 JSON payload
// the visualization tool emits.
func chartsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "charts",
		Members: starlark.StringDict{
			"bar":    starlark.NewBuiltin("charts.bar", chartBar),
			"line":   starlark.NewBuiltin("charts.line", chartLine),
			"hist":   starlark.NewBuiltin("charts.hist", chartHist),
			"encode": starlark.NewBuiltin("charts.encode", chartEncode),
		},
	}
}

func chartBar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var labels, values starlark.Value
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"labels", &labels, "values", &values, "title?", &title); err != nil {
		return nil, err
	}
	return chartDict(map[string]starlark.Value{
		"type":   starlark.String("bar"),
		"labels": toList(labels),
		"values": toList(values),
		"title":  starlark.String(title),
	})
}

func chartLine(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"x", &x, "y", &y, "title?", &title); err != nil {
		return nil, err
	}
	return chartDict(map[string]starlark.Value{
		"type":  starlark.String("line"),
		"x":     toList(x),
		"y":     toList(y),
		"title": starlark.String(title),
	})
}

func chartHist(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Value
	bins := 10
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"values", &values, "bins?", &bins, "title?", &title); err != nil {
		return nil, err
	}
	if bins < 1 {
		return nil, fmt.Errorf("charts.hist: bins must be positive, got %d", bins)
	}
	vals, err := floatsOf(b.Name(), values)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("charts.hist: empty sequence")
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	counts := make([]int, bins)
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	edges := starlark.NewList(nil)
	for i := 0; i <= bins; i++ {
		if err := edges.Append(starlark.Float(lo + float64(i)*width)); err != nil {
			return nil, err
		}
	}
	countList := starlark.NewList(nil)
	for _, c := range counts {
		if err := countList.Append(starlark.MakeInt(c)); err != nil {
			return nil, err
		}
	}
	return chartDict(map[string]starlark.Value{
		"type":   starlark.String("hist"),
		"edges":  edges,
		"counts": countList,
		"title":  starlark.String(title),
	})
}

// chartEncode serializes a chart spec (or any JSON-shaped value) to
// base64 JSON, the payload format of the visualization tool.
func chartEncode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var spec starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &spec); err != nil {
		return nil, err
	}
	plain, err := toGo(spec)
	if err != nil {
		return nil, fmt.Errorf("charts.encode: %w", err)
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("charts.encode: %w", err)
	}
	return starlark.String(base64.StdEncoding.EncodeToString(data)), nil
}

func chartDict(fields map[string]starlark.Value) (starlark.Value, error) {
	keys := []string{"type", "labels", "values", "x", "y", "edges", "counts", "title"}
	d := starlark.NewDict(len(fields))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if err := d.SetKey(starlark.String(k), v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// toList copies any iterable (series included) into a list; scalars
// become single-element lists.
func toList(v starlark.Value) *starlark.List {
	out := starlark.NewList(nil)
	if iterable, ok := v.(starlark.Iterable); ok {
		iter := iterable.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			_ = out.Append(elem)
		}
		return out
	}
	_ = out.Append(v)
	return out
}

// toGo lowers a Starlark value to plain Go data for JSON encoding.
func toGo(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return x.String(), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cannot encode %v", f)
		}
		return f, nil
	case starlark.String:
		return string(x), nil
	case *seriesValue:
		out := make([]any, x.col.Len())
		for i := range out {
			out[i] = x.col.At(i)
		}
		return out, nil
	case *frameValue:
		out := make(map[string]any, x.frame.NumCols())
		for _, name := range x.frame.Columns() {
			col, _ := x.frame.Column(name)
			cells := make([]any, col.Len())
			for i := range cells {
				cells[i] = col.At(i)
			}
			out[name] = cells
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			val, err := toGo(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case starlark.Iterable:
		var out []any
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			val, err := toGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot encode %s", v.Type())
}
