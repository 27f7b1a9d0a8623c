package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SchemaText renders a compact human-readable schema: shape, then one
// line per column with kind, null count and up to five sample values.
func (f *Frame) SchemaText() string {
	var b strings.Builder
	b.WriteString("Dataset Schema:\n")
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n\n", f.NumRows(), f.NumCols())

	for _, c := range f.cols {
		samples := c.UniqueValues()
		if len(samples) > 5 {
			samples = samples[:5]
		}
		parts := make([]string, len(samples))
		for i := range samples {
			parts[i] = fmt.Sprintf("%v", samples[i])
		}
		nullInfo := ""
		if n := c.NullCount(); n > 0 {
			nullInfo = fmt.Sprintf(", %d nulls", n)
		}
		fmt.Fprintf(&b, "- %s (%s%s): %s\n", c.Name, c.Kind, nullInfo, strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// describeStats are the rows of the Describe table, in pandas order.
var describeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe renders summary statistics for the numeric columns: count,
// mean, sample std, min, quartiles and max.
func (f *Frame) Describe() string {
	var numeric []*Column
	for _, c := range f.cols {
		if c.IsNumeric() {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) == 0 {
		return "No numeric columns."
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	// Column names must render verbatim, not uppercased, so snippets can
	// copy them into dataset["..."] lookups.
	t.Style().Format.Header = text.FormatDefault
	header := table.Row{"stat"}
	for _, c := range numeric {
		header = append(header, c.Name)
	}
	t.AppendHeader(header)

	for _, stat := range describeStats {
		row := table.Row{stat}
		for _, c := range numeric {
			row = append(row, describeCell(c, stat))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func describeCell(c *Column, stat string) string {
	if stat == "count" {
		return strconv.Itoa(c.Count())
	}
	var v float64
	var err error
	switch stat {
	case "mean":
		v, err = c.Mean()
	case "std":
		v, err = c.Std()
	case "min":
		v, err = c.Min()
	case "25%":
		v, err = c.Quantile(0.25)
	case "50%":
		v, err = c.Quantile(0.5)
	case "75%":
		v, err = c.Quantile(0.75)
	case "max":
		v, err = c.Max()
	}
	if err != nil {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
