package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Vars is the view of a tracking record a completion rule sees.
type Vars struct {
	DatastripID   string
	ProductFamily string
	TileCount     int
	Tiles         []string
	Provisional   bool
	AgeSeconds    int64
}

func (v Vars) activation() map[string]interface{} {
	tiles := v.Tiles
	if tiles == nil {
		tiles = []string{}
	}
	return map[string]interface{}{
		"datastrip_id":   v.DatastripID,
		"product_family": v.ProductFamily,
		"tile_count":     int64(v.TileCount),
		"tiles":          tiles,
		"provisional":    v.Provisional,
		"age_seconds":    v.AgeSeconds,
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("datastrip_id", cel.StringType),
		cel.Variable("product_family", cel.StringType),
		cel.Variable("tile_count", cel.IntType),
		cel.Variable("tiles", cel.ListType(cel.StringType)),
		cel.Variable("provisional", cel.BoolType),
		cel.Variable("age_seconds", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateRuleExpression compiles expression against the record variables
// and checks that it yields a bool.
func (e *Evaluator) ValidateRuleExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// Rule is a compiled boolean expression, safe for concurrent use.
type Rule struct {
	expression string
	program    cel.Program
}

func (e *Evaluator) CompileRule(expression string) (*Rule, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Rule{expression: expression, program: program}, nil
}

func (r *Rule) Expression() string {
	return r.expression
}

func (r *Rule) Evaluate(ctx context.Context, vars Vars) (bool, error) {
	result, _, err := r.program.ContextEval(ctx, vars.activation())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// EvaluateValue evaluates any expression against vars, for operator tooling.
func (e *Evaluator) EvaluateValue(ctx context.Context, expression string, vars Vars) (interface{}, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, vars.activation())
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	return result.Value(), nil
}
