// Package agent runs the bounded orchestration loop: a planner proposes
// tool calls, the registry executes them, and the returned status strings
// become the planner's only observations. The loop enforces the step
// budget and the terminal statuses; it never retries on its own.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/api/schemas"
)

// ToolCall is one planner decision.
type ToolCall struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args,omitempty"`
	// Conclude declares the task finished without running another tool.
	Conclude  bool   `json:"conclude,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// Planner proposes the next tool call given the task and the full history.
// Planners are opaque to the engine; only ToolCalls and status strings
// cross this boundary.
type Planner interface {
	NextCall(ctx context.Context, task string, history []schemas.AgentStep) (ToolCall, error)
}

// ToolExecutor is the slice of the tool registry the loop needs.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]string) (string, error)
}

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeSuccess: the success predicate fired on a returned status.
	OutcomeSuccess Outcome = "success"
	// OutcomeConcluded: the planner declared the task finished.
	OutcomeConcluded Outcome = "concluded"
	// OutcomeBudgetExhausted: the step budget ran out first.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	// OutcomeTerminated: a stop guard tripped or the session ended.
	OutcomeTerminated Outcome = "terminated"
)

// Config bounds one run.
type Config struct {
	// MaxSteps is the hard step budget. The loop never exceeds it.
	MaxSteps int
	// Success inspects each returned status; the first hit ends the run.
	// Nil means only Conclude or the budget can end it successfully.
	Success func(status string) bool
	// TerminalStatuses end the run as OutcomeTerminated when returned
	// verbatim by any tool (guard trips, session termination).
	TerminalStatuses []string
}

// Result is the record of a finished run.
type Result struct {
	RunID   string
	Outcome Outcome
	Steps   []schemas.AgentStep
}

// Statuses flattens the history into observation lines for recording.
func (r Result) Statuses() []string {
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, fmt.Sprintf("%s -> %s", s.Tool, s.Status))
	}
	return out
}

// Loop sequences planner decisions against the tool registry. It is
// single-threaded by design: there is exactly one live page and no two
// actions may ever race on it.
type Loop struct {
	planner Planner
	exec    ToolExecutor
	cfg     Config
	logger  *zap.Logger
}

// NewLoop builds a loop. MaxSteps must be positive.
func NewLoop(planner Planner, exec ToolExecutor, cfg Config, logger *zap.Logger) (*Loop, error) {
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("step budget must be positive, got %d", cfg.MaxSteps)
	}
	return &Loop{planner: planner, exec: exec, cfg: cfg, logger: logger.Named("loop")}, nil
}

// Run drives the task to completion or to the step budget. Planner and
// execution errors are hard failures: the partial result is returned with
// the error so the caller can still record the history.
func (l *Loop) Run(ctx context.Context, task string) (Result, error) {
	result := Result{RunID: uuid.NewString()}
	l.logger.Info("Run starting.",
		zap.String("run_id", result.RunID),
		zap.String("task", task),
		zap.Int("max_steps", l.cfg.MaxSteps))

	for step := 0; step < l.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		call, err := l.planner.NextCall(ctx, task, result.Steps)
		if err != nil {
			return result, fmt.Errorf("planner failed at step %d: %w", step, err)
		}
		if call.Conclude {
			l.logger.Info("Planner concluded the task.",
				zap.Int("step", step), zap.String("rationale", call.Rationale))
			result.Outcome = OutcomeConcluded
			return result, nil
		}

		status, err := l.exec.Execute(ctx, call.Tool, call.Args)
		if err != nil {
			return result, fmt.Errorf("tool %q failed at step %d: %w", call.Tool, step, err)
		}

		result.Steps = append(result.Steps, schemas.AgentStep{
			Index:  step,
			Tool:   call.Tool,
			Args:   call.Args,
			Status: status,
			At:     time.Now(),
		})
		l.logger.Info("Step finished.",
			zap.Int("step", step), zap.String("tool", call.Tool), zap.String("status", status))

		for _, terminal := range l.cfg.TerminalStatuses {
			if status == terminal {
				result.Outcome = OutcomeTerminated
				return result, nil
			}
		}
		if l.cfg.Success != nil && l.cfg.Success(status) {
			result.Outcome = OutcomeSuccess
			return result, nil
		}
	}

	l.logger.Warn("Step budget exhausted.", zap.String("run_id", result.RunID))
	result.Outcome = OutcomeBudgetExhausted
	return result, nil
}
