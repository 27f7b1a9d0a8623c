// Package validate provides static safety analysis for analysis snippets.
//
// The validate package parses a snippet into a Starlark AST and checks it
// against the sandbox policy without executing anything: module loads must
// come from the allow-list, deny-listed calls and underscore attributes
// are rejected outright, interpreter-internal names cannot be referenced,
// and every dataset column mentioned by string literal must exist in the
// known column set or be created by the snippet itself. All violations
// are collected in one pass; validation never stops at the first finding.
//
// Usage:
//
//	cols := validate.NewColumnSet(frame.Columns()...)
//	res := validate.Check(snippet, cols)
//	if !res.Valid {
//	    for _, v := range res.Violations {
//	        fmt.Println(v.Kind, v.Message)
//	    }
//	}
package validate
