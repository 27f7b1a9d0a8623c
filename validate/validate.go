package validate

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/syntax"
)

// DatasetName is the predeclared variable snippets use to reach the frame.
const DatasetName = "dataset"

// AllowedImportRoots is the load() allow-list: the first path segment of a
// loaded module (".star" stripped) must be one of these.
var AllowedImportRoots = map[string]bool{
	"math":   true,
	"stats":  true,
	"json":   true,
	"base64": true,
	"charts": true,
}

// BlockedCalls are callables rejected statically and shadowed by failing
// stubs at run time: dynamic execution, file access, reflective namespace
// access and interactive hooks.
var BlockedCalls = map[string]bool{
	"exec":       true,
	"eval":       true,
	"compile":    true,
	"open":       true,
	"getattr":    true,
	"setattr":    true,
	"delattr":    true,
	"globals":    true,
	"locals":     true,
	"dir":        true,
	"input":      true,
	"breakpoint": true,
}

// blockedNamespaces are interpreter-internal names that snippets may not
// reference at all, not even without calling them.
var blockedNamespaces = map[string]bool{
	"__builtins__": true,
	"__import__":   true,
	"__loader__":   true,
	"__spec__":     true,
}

// Kind labels a class of violation.
type Kind string

// Violation kinds.
const (
	KindEmptySnippet     Kind = "empty-snippet"
	KindSyntaxError      Kind = "syntax-error"
	KindBlockedImport    Kind = "blocked-import"
	KindBlockedCall      Kind = "blocked-call"
	KindBlockedAttribute Kind = "blocked-attribute"
	KindBlockedNamespace Kind = "blocked-namespace"
	KindUnknownColumn    Kind = "unknown-column"
)

// Violation is a single validation finding.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result is the outcome of validating one snippet. Sanitized carries the
// snippet verbatim when it is valid and is empty otherwise, so downstream
// code can only ever execute text that passed validation.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
	Sanitized  string      `json:"sanitized"`
}

// ColumnSet is the set of dataset column names a snippet may reference.
type ColumnSet map[string]struct{}

// NewColumnSet builds a ColumnSet from column names.
func NewColumnSet(names ...string) ColumnSet {
	s := make(ColumnSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is a known column.
func (s ColumnSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the column names in sorted order.
func (s ColumnSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileOptions returns the dialect both the validator and the executor
// parse with: while loops, top-level control flow, global reassignment
// and recursion are all enabled, so the snippet surface is a full
// programming language. Timeouts, not the grammar, bound runaway code.
func FileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// ImportRoot extracts the root module of a load() path: the first path
// segment, with any ".star" suffix stripped.
func ImportRoot(module string) string {
	m := strings.TrimPrefix(module, "./")
	if i := strings.IndexByte(m, '/'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSuffix(m, ".star")
}

// Check validates a snippet against the sandbox policy and the known
// columns. It never executes the snippet and it accumulates every
// violation rather than stopping at the first.
func Check(snippet string, columns ColumnSet) Result {
	if strings.TrimSpace(snippet) == "" {
		return invalid(Violation{KindEmptySnippet, "snippet is empty"})
	}

	file, err := FileOptions().Parse("snippet.star", snippet, 0)
	if err != nil {
		return invalid(Violation{KindSyntaxError, fmt.Sprintf("syntax error: %v", err)})
	}

	transient := collectTransientColumns(file)

	var violations []Violation
	syntax.Walk(file, func(n syntax.Node) bool {
		if n == nil {
			return true
		}
		switch node := n.(type) {
		case *syntax.LoadStmt:
			if module, ok := stringLiteral(node.Module); ok {
				if root := ImportRoot(module); !AllowedImportRoots[root] {
					violations = append(violations, Violation{
						KindBlockedImport,
						fmt.Sprintf("import of %q is not allowed", root),
					})
				}
			}
		case *syntax.CallExpr:
			if ident, ok := node.Fn.(*syntax.Ident); ok && BlockedCalls[ident.Name] {
				violations = append(violations, Violation{
					KindBlockedCall,
					fmt.Sprintf("call to %q is not allowed", ident.Name),
				})
			}
		case *syntax.DotExpr:
			if strings.HasPrefix(node.Name.Name, "_") {
				violations = append(violations, Violation{
					KindBlockedAttribute,
					fmt.Sprintf("access to underscore attribute %q is not allowed", node.Name.Name),
				})
			}
		case *syntax.Ident:
			if blockedNamespaces[node.Name] {
				violations = append(violations, Violation{
					KindBlockedNamespace,
					fmt.Sprintf("reference to %q is not allowed", node.Name),
				})
			}
		case *syntax.IndexExpr:
			if key, ok := datasetLiteralKey(node); ok {
				if !columns.Has(key) && !transient[key] {
					violations = append(violations, Violation{
						KindUnknownColumn,
						fmt.Sprintf("unknown column %q", key),
					})
				}
			}
		}
		return true
	})

	if len(violations) > 0 {
		return invalid(violations...)
	}
	return Result{Valid: true, Sanitized: snippet}
}

func invalid(violations ...Violation) Result {
	return Result{Valid: false, Violations: violations}
}

// collectTransientColumns finds every column the snippet itself creates
// via a plain `dataset["name"] = ...` assignment, anywhere in the text.
// The set is position-insensitive: a snippet may read a column it only
// creates further down.
func collectTransientColumns(file *syntax.File) map[string]bool {
	transient := make(map[string]bool)
	syntax.Walk(file, func(n syntax.Node) bool {
		if n == nil {
			return true
		}
		assign, ok := n.(*syntax.AssignStmt)
		if !ok || assign.Op != syntax.EQ {
			return true
		}
		index, ok := assign.LHS.(*syntax.IndexExpr)
		if !ok {
			return true
		}
		if key, ok := datasetLiteralKey(index); ok {
			transient[key] = true
		}
		return true
	})
	return transient
}

// datasetLiteralKey matches `dataset["<literal>"]` and returns the key.
func datasetLiteralKey(index *syntax.IndexExpr) (string, bool) {
	ident, ok := index.X.(*syntax.Ident)
	if !ok || ident.Name != DatasetName {
		return "", false
	}
	return stringLiteral(index.Y)
}

func stringLiteral(e syntax.Expr) (string, bool) {
	lit, ok := e.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}
