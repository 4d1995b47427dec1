package predast

import "github.com/antlr4-go/antlr/v4"

// ParseTree is the minimal ANTLR parse-tree surface this package depends on.
// The grammar that produces it is out of scope for this module (spec.md
// §1/§9): only the AST shape the compiler consumes is specified here.
type ParseTree = antlr.ParseTree

// Builder is implemented by a generated ANTLR visitor that lowers a parsed
// predicate expression into this package's Node tree. A concrete grammar's
// generated BaseVisitor would embed antlr.ParseTreeVisitor and return a
// Node from each Visit* method it overrides; Result returns the root once
// the walk completes.
type Builder interface {
	antlr.ParseTreeVisitor
	Result() Node
}

// Build drives b over tree and returns the predicate AST it produced. It is
// the single seam between the external grammar and the query compiler.
func Build(tree ParseTree, b Builder) Node {
	tree.Accept(b)
	return b.Result()
}
