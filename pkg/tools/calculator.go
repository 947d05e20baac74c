package tools

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	agent "github.com/Protocol-Lattice/toolloop"
	"github.com/Protocol-Lattice/toolloop/pkg/toolcall"
)

// CalculatorTool evaluates basic arithmetic expressions in the form "a op b".
type CalculatorTool struct{}

func (c *CalculatorTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "calculator",
		Description: "Evaluates simple math expressions such as '2 + 2' or '5 * 3'.",
		Signature:   "calculator(expression: str) -> float",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Expression in the form '<number> <operator> <number>'.",
				},
			},
			"required": []any{"expression"},
		},
		Examples: []string{`@calculator("21 / 3")`},
	}
}

func (c *CalculatorTool) Invoke(_ context.Context, req agent.ToolRequest) (any, error) {
	args, err := toolcall.ParseArguments(req.Arguments)
	if err != nil {
		return nil, err
	}
	expression, err := args.String("expression", 0)
	if err != nil {
		return nil, err
	}
	return Calculate(expression)
}

// Calculate evaluates "<number> <op> <number>".
func Calculate(expression string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(expression))
	if len(fields) != 3 {
		return 0, errors.New("expected format '<number> <op> <number>'")
	}

	left, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid left operand")
	}
	right, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid right operand")
	}

	switch fields[1] {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*", "x", "X":
		return left * right, nil
	case "/":
		if math.Abs(right) < 1e-12 {
			return 0, errors.New("division by zero")
		}
		return left / right, nil
	case "%":
		if math.Abs(right) < 1e-12 {
			return 0, errors.New("division by zero")
		}
		return math.Mod(left, right), nil
	case "^", "**":
		return math.Pow(left, right), nil
	}
	return 0, errors.Errorf("unsupported operator %q", fields[1])
}
