package assistant

import (
	"regexp"
	"strconv"
	"strings"
)

// Agent is a persona with its own system prompt and, optionally, a tool
// it runs when the message calls for it.
type Agent struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
}

const (
	AgentMathWhiz      = "MathWhiz"
	AgentWebResearcher = "WebResearcher"
	AgentGeneralist    = "Generalist"
)

var agents = []Agent{
	{
		Name:         AgentMathWhiz,
		Description:  "Solves arithmetic with the calculator tool.",
		SystemPrompt: "You are MathWhiz, a precise math assistant. When a calculator result is given, state it plainly.",
	},
	{
		Name:         AgentWebResearcher,
		Description:  "Answers research questions from web search results.",
		SystemPrompt: "You are WebResearcher. Summarize the search results you are given and say when they are inconclusive.",
	},
	{
		Name:         AgentGeneralist,
		Description:  "General conversation; can tell the current time.",
		SystemPrompt: "You are a helpful, concise general assistant.",
	},
}

// Agents lists the available agents.
func Agents() []Agent {
	return append([]Agent(nil), agents...)
}

var (
	exprRe   = regexp.MustCompile(`(\d+\.?\d*)\s*([+\-*/])\s*(\d+\.?\d*)`)
	timeRe   = regexp.MustCompile(`(?i)\btime\b`)
	searchRe = regexp.MustCompile(`(?i)\b(search|look up|google|news)\b`)
)

// SelectAgent honors an explicitly requested agent name; otherwise it
// routes arithmetic to MathWhiz, search requests to WebResearcher and the
// rest to Generalist.
func SelectAgent(message, requested string) Agent {
	if requested = strings.TrimSpace(requested); requested != "" {
		for _, a := range agents {
			if strings.EqualFold(a.Name, requested) {
				return a
			}
		}
	}
	switch {
	case exprRe.MatchString(message):
		return agents[0]
	case searchRe.MatchString(message):
		return agents[1]
	default:
		return agents[2]
	}
}

var opNames = map[string]string{"+": "add", "-": "subtract", "*": "multiply", "/": "divide"}

// planTool picks the tool the agent runs for message, if any.
func planTool(agent Agent, message string) (string, map[string]any, bool) {
	switch agent.Name {
	case AgentMathWhiz:
		m := exprRe.FindStringSubmatch(message)
		if m == nil {
			return "", nil, false
		}
		a, errA := strconv.ParseFloat(m[1], 64)
		b, errB := strconv.ParseFloat(m[3], 64)
		if errA != nil || errB != nil {
			return "", nil, false
		}
		return "calculator", map[string]any{"a": a, "b": b, "op": opNames[m[2]]}, true
	case AgentWebResearcher:
		return "web_search", map[string]any{"query": message}, true
	case AgentGeneralist:
		if timeRe.MatchString(message) {
			return "current_time", map[string]any{}, true
		}
	}
	return "", nil, false
}
