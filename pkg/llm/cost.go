package llm

import (
	"strings"

	"sceneforge/pkg/model"
)

// pricing is USD per million tokens (input, output).
type pricing struct {
	in  float64
	out float64
}

var modelPricing = map[string]pricing{
	"gpt-4o":                {in: 2.50, out: 10.00},
	"gpt-4o-mini":           {in: 0.15, out: 0.60},
	"gpt-4.1-mini":          {in: 0.40, out: 1.60},
	"deepseek-chat":         {in: 0.27, out: 1.10},
	"deepseek-reasoner":     {in: 0.55, out: 2.19},
	"gemini-2.0-flash":      {in: 0.10, out: 0.40},
	"gemini-2.5-flash-lite": {in: 0.10, out: 0.40},
}

// EstimateCost returns the estimated USD cost of a generation run, or 0 for
// models without a known price.
func EstimateCost(modelName string, u model.TokenUsage) float64 {
	p, ok := modelPricing[strings.ToLower(modelName)]
	if !ok {
		return 0
	}
	return float64(u.Prompt)/1e6*p.in + float64(u.Completion)/1e6*p.out
}
