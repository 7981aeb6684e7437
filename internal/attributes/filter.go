package attributes

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mrzor/alloc-tracer/internal/chunk"
)

// Filter is a boolean expression over chunk fields.
type Filter struct {
	program *vm.Program
	rawExpr string
}

// NewFilter compiles exprStr. An empty expression matches every chunk.
func NewFilter(exprStr string) (*Filter, error) {
	if exprStr == "" {
		return &Filter{}, nil
	}

	program, err := expr.Compile(exprStr, expr.Env(typeEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter expression: %w", err)
	}

	return &Filter{
		program: program,
		rawExpr: exprStr,
	}, nil
}

// Match reports whether c satisfies the filter. Runtime errors count as no match.
func (f *Filter) Match(c chunk.Chunk) bool {
	if f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, chunkEnv(c))
	if err != nil {
		return false
	}
	matched, _ := out.(bool)
	return matched
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.rawExpr
}
