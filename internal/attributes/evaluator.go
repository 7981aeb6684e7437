package attributes

import (
	"fmt"
	"log"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mrzor/alloc-tracer/internal/chunk"
	"github.com/mrzor/alloc-tracer/internal/config"
)

// typeEnv declares the variables available to expressions, for type checking.
var typeEnv = map[string]interface{}{
	"address":    0,
	"size":       0,
	"end":        0,
	"label":      "",
	"state":      "",
	"solid":      false,
	"start_line": 0,
	"lines":      0,
}

// chunkEnv builds the evaluation environment for c.
func chunkEnv(c chunk.Chunk) map[string]interface{} {
	//nolint:gosec // Addresses above 2^63 wrap; expressions are a display aid
	return map[string]interface{}{
		"address":    int(c.Address),
		"size":       int(c.Size),
		"end":        int(c.End()),
		"label":      c.Label,
		"state":      c.State.String(),
		"solid":      c.Solid(),
		"start_line": int(c.Lines.Start),
		"lines":      int(c.Lines.Count),
	}
}

// Evaluator handles compilation and evaluation of custom attribute expressions.
type Evaluator struct {
	customAttrs   []config.CustomAttribute
	compiledExprs []*vm.Program
}

// NewEvaluator creates a new attribute evaluator.
// It pre-compiles all custom attribute expressions for efficiency.
func NewEvaluator(customAttrs []config.CustomAttribute) (*Evaluator, error) {
	compiledExprs := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(typeEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiledExprs[i] = program
	}

	return &Evaluator{
		customAttrs:   customAttrs,
		compiledExprs: compiledExprs,
	}, nil
}

// EvaluateCustomAttributes evaluates custom attribute expressions against a chunk.
// Expressions that fail at runtime are logged and skipped.
func (e *Evaluator) EvaluateCustomAttributes(c chunk.Chunk) []attribute.KeyValue {
	if len(e.customAttrs) == 0 {
		return nil
	}

	env := chunkEnv(c)

	var attrs []attribute.KeyValue
	for i, customAttr := range e.customAttrs {
		output, err := expr.Run(e.compiledExprs[i], env)
		if err != nil {
			log.Printf("Warning: failed to evaluate expression for attribute %q: %v", customAttr.Name, err)
			continue
		}

		// Maps expand into one attribute per key, with dot notation
		outputValue := reflect.ValueOf(output)
		if outputValue.Kind() == reflect.Map {
			for _, key := range outputValue.MapKeys() {
				attrName := customAttr.Name + "." + sanitizeAttributeName(fmt.Sprintf("%v", key.Interface()))
				value := outputValue.MapIndex(key).Interface()
				attrs = append(attrs, attribute.String(attrName, fmt.Sprint(value)))
			}
			continue
		}

		attrs = append(attrs, toKeyValue(customAttr.Name, output))
	}

	return attrs
}

// toKeyValue keeps booleans and integers typed; everything else becomes a string.
func toKeyValue(name string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case bool:
		return attribute.Bool(name, val)
	case int:
		return attribute.Int(name, val)
	case int64:
		return attribute.Int64(name, val)
	case float64:
		return attribute.Float64(name, val)
	default:
		return attribute.String(name, fmt.Sprint(v))
	}
}

// sanitizeAttributeName replaces non-alphanumeric characters with underscores.
// This ensures attribute names are safe for OpenTelemetry.
func sanitizeAttributeName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result[i] = c
		} else {
			result[i] = '_'
		}
	}
	return string(result)
}
