package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/suPer8Hu/guruji-chat/internal/history"
)

type ToolCall = history.ToolCall

// Tool is a built-in function an agent may run before the model answers.
type Tool struct {
	Name        string         `json:"tool_name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`

	Run func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

var ErrUnknownTool = errors.New("assistant: unknown tool")

func builtinTools(now func() time.Time) []Tool {
	return []Tool{
		{
			Name:        "calculator",
			Description: "Performs a basic arithmetic calculation.",
			Schema: objectSchema(map[string]any{
				"a":  map[string]any{"type": "number", "description": "The first number."},
				"b":  map[string]any{"type": "number", "description": "The second number."},
				"op": map[string]any{"type": "string", "enum": []string{"add", "subtract", "multiply", "divide"}},
			}, "a", "b", "op"),
			Run: calculator,
		},
		{
			Name:        "web_search",
			Description: "Performs a web search and returns a summary.",
			Schema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "The search query."},
			}, "query"),
			Run: webSearch,
		},
		{
			Name:        "current_time",
			Description: "Returns the current date and time.",
			Schema:      objectSchema(map[string]any{}),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				return "The current time is " + now().Format(time.RFC3339), nil
			},
		},
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func calculator(ctx context.Context, args map[string]any) (string, error) {
	a, okA := args["a"].(float64)
	b, okB := args["b"].(float64)
	op, _ := args["op"].(string)
	if !okA || !okB {
		return "", errors.New("calculator: a and b must be numbers")
	}

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return "Error: Division by zero.", nil
		}
		result = a / b
	default:
		return "", fmt.Errorf("calculator: unknown operation %q", op)
	}
	return "The result is " + strconv.FormatFloat(result, 'f', -1, 64), nil
}

// webSearch has no search backend behind it; it returns a fixed summary
// naming the query.
func webSearch(ctx context.Context, args map[string]any) (string, error) {
	q, _ := args["query"].(string)
	if q == "" {
		return "", errors.New("web_search: query is required")
	}
	return fmt.Sprintf("Search results for %q: the topic is complex, with many perspectives. "+
		"Key findings suggest a correlation but no definitive causation.", q), nil
}
