package output

import (
	"context"
	"fmt"
	"time"

	"groundseg/internal/tracking"
	"groundseg/pkg/cel"
	"groundseg/pkg/models"
)

// CompletionEvaluator decides whether a tracked datastrip has all it needs.
// The store only records arrivals; the rule lives here so it can change
// without touching stored records.
type CompletionEvaluator struct {
	rule *cel.Rule
	now  func() time.Time
}

func NewCompletionEvaluator(expression string) (*CompletionEvaluator, error) {
	if expression == "" {
		expression = cel.DefaultCompletionExpression
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	rule, err := evaluator.CompileRule(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid completion expression: %w", err)
	}

	return &CompletionEvaluator{rule: rule, now: time.Now}, nil
}

func (c *CompletionEvaluator) Expression() string {
	return c.rule.Expression()
}

func (c *CompletionEvaluator) Complete(ctx context.Context, record *tracking.Record, family models.ProductFamily) (bool, error) {
	age := c.now().Sub(record.CreatedAt)
	if age < 0 {
		age = 0
	}

	return c.rule.Evaluate(ctx, cel.Vars{
		DatastripID:   record.DatastripID,
		ProductFamily: string(family),
		TileCount:     record.TileCount(),
		Tiles:         record.TileIDs(),
		Provisional:   record.Provisional,
		AgeSeconds:    int64(age / time.Second),
	})
}
