package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/agent"
)

const systemPromptTemplate = `You operate a real web browser through a fixed tool catalog.
Respond with EXACTLY ONE JSON object and nothing else:
{"tool": "<tool name>", "args": {"<key>": "<value>"}, "rationale": "<one sentence>"}
or, when the task is complete:
{"conclude": true, "rationale": "<one sentence>"}

Rules:
- Use ONLY the tools listed below. Argument values are always strings.
- After each call you receive the tool's exact status string; reason only from those strings.
- If a status says a human is needed (CAPTCHA, 2FA, sign-in wall), call human_gate.
- Never attempt to complete an irreversible transaction. Stop guards are final.

Tools:
%s`

// Gemini plans the next tool call by asking a Gemini model.
type Gemini struct {
	client  LLMClient
	catalog string
	logger  *zap.Logger
}

// NewGemini builds the planner. catalog is the rendered tool listing
// (tools.Registry.Describe).
func NewGemini(client LLMClient, catalog string, logger *zap.Logger) *Gemini {
	return &Gemini{client: client, catalog: catalog, logger: logger.Named("planner")}
}

// NextCall renders the history as observation lines, asks the model and
// parses its JSON decision.
func (g *Gemini) NextCall(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
	system := fmt.Sprintf(systemPromptTemplate, g.catalog)

	var user strings.Builder
	fmt.Fprintf(&user, "Task: %s\n\n", task)
	if len(history) == 0 {
		user.WriteString("No steps taken yet.\n")
	} else {
		user.WriteString("Steps so far:\n")
		for _, step := range history {
			fmt.Fprintf(&user, "%d. %s(%s) -> %s\n", step.Index+1, step.Tool, renderArgs(step.Args), step.Status)
		}
	}
	user.WriteString("\nNext call:")

	raw, err := g.client.GenerateResponse(ctx, system, user.String())
	if err != nil {
		return agent.ToolCall{}, err
	}

	call, err := ExtractToolCall(raw)
	if err != nil {
		g.logger.Warn("Unparseable planner response.", zap.String("raw", raw), zap.Error(err))
		return agent.ToolCall{}, err
	}
	return call, nil
}

func renderArgs(args map[string]string) string {
	if len(args) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(args))
	for k, v := range args {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(pairs, ", ")
}

// ExtractToolCall parses a model response into a ToolCall. Responses are
// expected to be bare JSON but fenced blocks and surrounding prose are
// tolerated: the first balanced object in the text wins.
func ExtractToolCall(raw string) (agent.ToolCall, error) {
	candidate := strings.TrimSpace(raw)

	if idx := strings.Index(candidate, "```"); idx >= 0 {
		rest := candidate[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			candidate = rest[:end]
		} else {
			candidate = rest
		}
		candidate = strings.TrimSpace(candidate)
	}

	start := strings.Index(candidate, "{")
	if start < 0 {
		return agent.ToolCall{}, fmt.Errorf("no JSON object in planner response")
	}
	object, ok := balancedObject(candidate[start:])
	if !ok {
		return agent.ToolCall{}, fmt.Errorf("unbalanced JSON object in planner response")
	}

	var call agent.ToolCall
	if err := json.Unmarshal([]byte(object), &call); err != nil {
		return agent.ToolCall{}, fmt.Errorf("failed to decode tool call: %w", err)
	}
	if !call.Conclude && call.Tool == "" {
		return agent.ToolCall{}, fmt.Errorf("planner response names no tool")
	}
	return call, nil
}

// balancedObject returns the prefix of s that forms one complete JSON
// object, tracking strings and escapes.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
