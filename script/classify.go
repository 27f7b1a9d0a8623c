package script

import (
	"errors"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// nonRetryablePatterns mark faults that resubmitting the identical
// snippet cannot fix: policy blocks, resource exhaustion, structural
// errors.
var nonRetryablePatterns = []string{
	"blocked by sandbox policy",
	"Starlark computation cancelled",
	"too many steps",
	"called recursively",
	"undefined:",
}

// retryablePatterns mark data-shaped faults where a revised snippet
// plausibly succeeds: bad keys, bad attributes, bad indices, type
// mismatches, zero division and malformed arguments.
var retryablePatterns = []string{
	"unknown column",
	"not in dict",
	"out of range",
	"unknown binary op",
	" not implemented",
	"division by zero",
	"modulo by zero",
	"field or method",
	"not iterable",
	"unhashable",
	"not numeric",
	"has no values",
	"has no len",
	", want ",
	"invalid call",
	"cannot assign",
	"cannot compare",
	"length mismatch",
	"empty sequence",
	"mixed value types",
	"invalid base64",
	"must be",
	"at least two values",
}

// Classify maps an execution error to a retryable flag and a clean,
// stack-free message. Typed errors are checked first; everything
// unrecognized is non-retryable.
func Classify(err error) (retryable bool, message string) {
	if err == nil {
		return false, ""
	}
	message = err.Error()

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		message = evalErr.Msg
	}

	// Unresolvable names and late syntax errors are structural: the same
	// text fails the same way every time.
	var resolveList resolve.ErrorList
	var resolveErr resolve.Error
	var syntaxErr syntax.Error
	if errors.As(err, &resolveList) || errors.As(err, &resolveErr) || errors.As(err, &syntaxErr) {
		return false, message
	}

	var noAttr starlark.NoSuchAttrError
	if errors.As(err, &noAttr) {
		return true, message
	}

	for _, p := range nonRetryablePatterns {
		if strings.Contains(message, p) {
			return false, message
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(message, p) {
			return true, message
		}
	}
	return false, message
}
