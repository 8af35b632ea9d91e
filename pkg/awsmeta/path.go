package awsmeta

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// PathExpr is a compiled path expression used by waiter acceptors and the
// pagination engine to pull values out of decoded outputs. Expressions use
// expr-lang syntax evaluated against the output document, e.g.
// "Table.TableStatus" or "map(Reservations, .State)".
type PathExpr struct {
	source  string
	program *vm.Program
}

// CompilePath compiles a path expression. Unknown names resolve to nil at
// evaluation time rather than failing compilation, since output documents
// are schemaless.
func CompilePath(source string) (*PathExpr, error) {
	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling path expression %q: %w", source, err)
	}

	return &PathExpr{source: source, program: program}, nil
}

// String returns the original expression source.
func (p *PathExpr) String() string {
	return p.source
}

// Search evaluates the expression against an output document. A path that
// does not resolve yields nil, not an error; evaluation errors (e.g. indexing
// a scalar) also yield nil since a non-resolving path is simply "no match"
// for every caller in this package.
func (p *PathExpr) Search(doc map[string]interface{}) interface{} {
	if doc == nil {
		doc = map[string]interface{}{}
	}

	value, err := expr.Run(p.program, doc)
	if err != nil {
		return nil
	}

	return value
}

// searchPath is a one-shot extraction with an uncompiled expression, backing
// Result.Search.
func searchPath(source string, doc map[string]interface{}) (interface{}, error) {
	compiled, err := CompilePath(source)
	if err != nil {
		return nil, err
	}

	return compiled.Search(doc), nil
}

// pathValueEmpty reports whether an extracted value terminates pagination:
// nil, empty string, or an empty collection.
func pathValueEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}

// pathValueEqual compares an extracted value with an acceptor's expected
// literal. JSON numbers decode as float64, so numeric comparison is done in
// float space.
func pathValueEqual(value, expected interface{}) bool {
	if value == nil || expected == nil {
		return value == expected
	}

	if lhs, ok := toFloat(value); ok {
		if rhs, ok := toFloat(expected); ok {
			return lhs == rhs
		}

		return false
	}

	switch lhs := value.(type) {
	case string:
		rhs, ok := expected.(string)

		return ok && lhs == rhs
	case bool:
		rhs, ok := expected.(bool)

		return ok && lhs == rhs
	default:
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", expected)
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
