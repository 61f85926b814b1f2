package planner

import (
	"context"
	"fmt"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/agent"
)

// Scripted replays a fixed sequence of tool calls. Used by demos and by
// tests that need a deterministic planner.
type Scripted struct {
	calls []agent.ToolCall
	next  int
}

// NewScripted builds a scripted planner over the given call sequence.
func NewScripted(calls ...agent.ToolCall) *Scripted {
	return &Scripted{calls: calls}
}

// NextCall returns the next scripted call. Running past the end of the
// script is an error: a script that neither concluded nor hit its success
// predicate is a bug in the script.
func (s *Scripted) NextCall(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
	if s.next >= len(s.calls) {
		return agent.ToolCall{}, fmt.Errorf("script exhausted after %d calls", len(s.calls))
	}
	call := s.calls[s.next]
	s.next++
	return call, nil
}
