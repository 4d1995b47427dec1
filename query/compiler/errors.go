package compiler

import "errors"

// Sentinel errors surfaced by Compile. All wrap one of these two so callers
// can distinguish a rejected input from an internal bug (spec.md §7:
// QuerySyntax vs QuerySemantic).
var (
	// ErrSyntax marks a QuerySyntax failure — reserved for a parser error
	// surfaced through Compile; this package never rejects on syntax
	// itself since it receives an already-parsed AST (spec.md §1).
	ErrSyntax = errors.New("query: syntax error")

	// ErrSemantic marks a QuerySemantic failure: type mismatch, unknown
	// property, unsupported operator for type, bad or out-of-range argument
	// reference, two-constants comparison, pre-1900 date,
	// negative-mixed-sign timestamp, base64 decode failure (spec.md §7).
	// A NULL constant compared against a link column is not rejected.
	ErrSemantic = errors.New("query: semantic error")
)
