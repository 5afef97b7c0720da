package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateRuleExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{"bool expression", `!provisional`, false},
		{"non-bool expression", `tile_count`, true},
		{"type mismatch", `tile_count == "3"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateRuleExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	vars := Vars{
		DatastripID:   "DS",
		ProductFamily: "S2_L1C_DS",
		TileCount:     2,
		Tiles:         []string{"TL_1", "TL_2_T31TCJ_N05.00"},
		Provisional:   false,
		AgeSeconds:    900,
	}

	tests := []struct {
		name string
		expr string
		vars Vars
		want bool
	}{
		{"default rule complete", DefaultCompletionExpression, vars, true},
		{"default rule provisional", DefaultCompletionExpression, Vars{TileCount: 2, Provisional: true}, false},
		{"default rule no tiles", DefaultCompletionExpression, Vars{}, false},
		{"fixed count", CompletionExpressionExamples["fixed_tile_count"], vars, false},
		{"settled", CompletionExpressionExamples["settled"], vars, true},
		{"specific tile", CompletionExpressionExamples["specific_tile"], vars, true},
		{"family", CompletionExpressionExamples["l1c_only"], vars, true},
		{"nil tiles", `size(tiles) == 0`, Vars{}, true},
		{"datastrip id", `datastrip_id.startsWith("D")`, vars, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := eval.CompileRule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, rule.Expression())

			got, err := rule.Evaluate(context.Background(), tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRule_Rejects(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.CompileRule(`tile_count + 1`)
	assert.Error(t, err)

	_, err = eval.CompileRule(`tile_count >`)
	assert.Error(t, err)
}

func TestExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range CompletionExpressionExamples {
		t.Run(name, func(t *testing.T) {
			_, err := eval.CompileRule(expr)
			assert.NoError(t, err)
		})
	}
}

func TestEvaluateValue(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	got, err := eval.EvaluateValue(context.Background(), `tile_count * 2`, Vars{TileCount: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got)

	got, err = eval.EvaluateValue(context.Background(), `datastrip_id + "_X"`, Vars{DatastripID: "DS"})
	require.NoError(t, err)
	assert.Equal(t, "DS_X", got)
}
