// Package script provides the Starlark execution environment snippets
// run in.
//
// The script package wraps the tabular frame as Starlark values, builds
// the predeclared namespace (dataset, allowed helper modules, failing
// stubs for deny-listed builtins), guards load() with the same import
// allow-list the static validator enforces, runs the snippet, classifies
// the value left in the `result` global, renders structured values to
// text and classifies faults as retryable or not. It executes in-process
// and carries no isolation of its own: the sandbox package provides the
// process boundary, memory ceiling and external timeout around it.
package script
