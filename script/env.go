package script

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/tablab/databox/tabular"
	"github.com/tablab/databox/validate"
)

// helperModules returns the namespaces behind the import allow-list. They
// are predeclared for convenience and also served by the load() hook, so
// both `stats.mean(...)` and `load("stats.star", "stats")` work.
func helperModules() starlark.StringDict {
	return starlark.StringDict{
		"math":   starlarkmath.Module,
		"json":   starlarkjson.Module,
		"stats":  statsModule(),
		"base64": base64Module(),
		"charts": chartsModule(),
	}
}

// predeclared builds the execution namespace: the dataset, the helper
// modules, and failing stubs shadowing every deny-listed builtin. The
// stubs back up the static validator; a snippet that somehow reaches one
// gets a policy error instead of the real builtin.
func predeclared(frame *tabular.Frame, modules starlark.StringDict) starlark.StringDict {
	pre := make(starlark.StringDict, len(modules)+len(validate.BlockedCalls)+1)
	for name, mod := range modules {
		pre[name] = mod
	}
	pre[validate.DatasetName] = newFrameValue(frame)
	for name := range validate.BlockedCalls {
		pre[name] = blockedBuiltin(name)
	}
	return pre
}

func blockedBuiltin(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("call to %q is blocked by sandbox policy", name)
	})
}

// loadHook re-checks each load() against the import allow-list at run
// time and serves the bundled helper modules. Nothing is ever read from
// disk.
func loadHook(modules starlark.StringDict) func(*starlark.Thread, string) (starlark.StringDict, error) {
	return func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
		root := validate.ImportRoot(module)
		if !validate.AllowedImportRoots[root] {
			return nil, fmt.Errorf("import of %q is blocked by sandbox policy", root)
		}
		mod, ok := modules[root]
		if !ok {
			return nil, fmt.Errorf("module %q is not available", root)
		}
		return starlark.StringDict{root: mod}, nil
	}
}

// statsModule provides the numeric helpers snippets get under `stats`.
// Series arguments skip nulls; plain sequences must be all numeric.
func statsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "stats",
		Members: starlark.StringDict{
			"mean":     statBuiltin("stats.mean", statMean),
			"median":   statBuiltin("stats.median", statMedian),
			"stdev":    statBuiltin("stats.stdev", statStdev),
			"variance": statBuiltin("stats.variance", statVariance),
			"quantile": starlark.NewBuiltin("stats.quantile", statQuantile),
		},
	}
}

func statBuiltin(name string, impl func([]float64) (float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var seq starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &seq); err != nil {
			return nil, err
		}
		vals, err := floatsOf(b.Name(), seq)
		if err != nil {
			return nil, err
		}
		v, err := impl(vals)
		if err != nil {
			return nil, err
		}
		return starlark.Float(v), nil
	})
}

func statMean(vals []float64) (float64, error) {
	if len(vals) == 0 {
		return 0, fmt.Errorf("stats.mean: empty sequence")
	}
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals)), nil
}

func statMedian(vals []float64) (float64, error) {
	return quantileOf(vals, 0.5, "stats.median")
}

func statVariance(vals []float64) (float64, error) {
	if len(vals) < 2 {
		return 0, fmt.Errorf("stats.variance: need at least two values")
	}
	mean, _ := statMean(vals)
	sumSq := 0.0
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(vals)-1), nil
}

func statStdev(vals []float64) (float64, error) {
	v, err := statVariance(vals)
	if err != nil {
		return 0, fmt.Errorf("stats.stdev: need at least two values")
	}
	return math.Sqrt(v), nil
}

func statQuantile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seq starlark.Value
	var q float64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &seq, &q); err != nil {
		return nil, err
	}
	vals, err := floatsOf(b.Name(), seq)
	if err != nil {
		return nil, err
	}
	v, err := quantileOf(vals, q, b.Name())
	if err != nil {
		return nil, err
	}
	return starlark.Float(v), nil
}

func quantileOf(vals []float64, q float64, name string) (float64, error) {
	if len(vals) == 0 {
		return 0, fmt.Errorf("%s: empty sequence", name)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("%s: quantile %v out of range [0, 1]", name, q)
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac, nil
}

// floatsOf collects the numeric values of a series (nulls skipped) or a
// plain sequence (every element must be numeric).
func floatsOf(name string, v starlark.Value) ([]float64, error) {
	if series, ok := v.(*seriesValue); ok {
		if !series.col.IsNumeric() {
			return nil, fmt.Errorf("%s: column %s is not numeric", name, series.col.Name)
		}
		var vals []float64
		for i := 0; i < series.col.Len(); i++ {
			if f, ok := series.col.AsFloat(i); ok {
				vals = append(vals, f)
			}
		}
		return vals, nil
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a sequence of numbers", name, v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()
	var vals []float64
	var elem starlark.Value
	for iter.Next(&elem) {
		f, ok := starlark.AsFloat(elem)
		if !ok {
			return nil, fmt.Errorf("%s: got %s, want number", name, elem.Type())
		}
		vals = append(vals, f)
	}
	return vals, nil
}

// base64Module provides the minimal encoding helpers charts need.
func base64Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "base64",
		Members: starlark.StringDict{
			"encode": starlark.NewBuiltin("base64.encode", base64Encode),
			"decode": starlark.NewBuiltin("base64.decode", base64Decode),
		},
	}
}

func base64Encode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

func base64Decode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64.decode: invalid base64 input")
	}
	return starlark.String(decoded), nil
}
