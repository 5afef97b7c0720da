package cel

const DefaultCompletionExpression = `!provisional && tile_count > 0`

var CompletionExpressionExamples = map[string]string{
	"descriptor_and_one_tile": DefaultCompletionExpression,
	"fixed_tile_count":        `!provisional && tile_count >= 12`,
	"settled":                 `!provisional && tile_count > 0 && age_seconds > 600`,
	"specific_tile":           `!provisional && tiles.exists(t, t.endsWith("_T31TCJ_N05.00"))`,
	"l1c_only":                `product_family == "S2_L1C_DS" && !provisional`,
	"descriptor_only":         `!provisional`,
}
