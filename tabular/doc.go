// Package tabular provides the in-memory columnar dataset model.
//
// The tabular package defines the Frame and Column types that analysis
// snippets operate on, the CSV loader with type inference and feature
// engineering, and the schema/statistics renderers used by the dataset
// inspection tools. Frames serialize cleanly to JSON so they can cross
// the worker process boundary; nulls are tracked in a mask rather than
// as NaN sentinels.
//
// Usage:
//
//	frame, err := tabular.Load("data/titanic.csv", tabular.LoadOptions{
//	    EngineerFeatures: true,
//	    DropColumns:      []string{"Cabin", "Ticket"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(frame.SchemaText())
package tabular
