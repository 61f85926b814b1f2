package agent_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/act"
	"github.com/xm4dn355x/webpilot/internal/agent"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/detect"
	"github.com/xm4dn355x/webpilot/internal/gate"
	"github.com/xm4dn355x/webpilot/internal/guard"
	"github.com/xm4dn355x/webpilot/internal/ledger"
	"github.com/xm4dn355x/webpilot/internal/planner"
	"github.com/xm4dn355x/webpilot/internal/tools"
)

// plannerFunc adapts a function to the Planner interface.
type plannerFunc func(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error)

func (f plannerFunc) NextCall(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
	return f(ctx, task, history)
}

// executorFunc adapts a function to the ToolExecutor interface.
type executorFunc func(ctx context.Context, name string, args map[string]string) (string, error)

func (f executorFunc) Execute(ctx context.Context, name string, args map[string]string) (string, error) {
	return f(ctx, name, args)
}

func alwaysCall(name string) plannerFunc {
	return func(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
		return agent.ToolCall{Tool: name}, nil
	}
}

func TestNewLoopRejectsNonPositiveBudget(t *testing.T) {
	_, err := agent.NewLoop(alwaysCall("x"), nil, agent.Config{MaxSteps: 0}, zap.NewNop())
	assert.Error(t, err)
	_, err = agent.NewLoop(alwaysCall("x"), nil, agent.Config{MaxSteps: -3}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoopHaltsExactlyAtBudget(t *testing.T) {
	calls := 0
	exec := executorFunc(func(ctx context.Context, name string, args map[string]string) (string, error) {
		calls++
		return "URL: about:blank", nil
	})
	loop, err := agent.NewLoop(alwaysCall("current_url"), exec, agent.Config{MaxSteps: 5}, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "spin")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeBudgetExhausted, result.Outcome)
	assert.Equal(t, 5, calls, "the budget is a hard ceiling")
	assert.Len(t, result.Steps, 5)
	assert.NotEmpty(t, result.RunID)
}

func TestLoopStopsOnSuccessPredicate(t *testing.T) {
	statuses := []string{"dashboard=False", "dashboard=False", "dashboard=True"}
	step := 0
	exec := executorFunc(func(ctx context.Context, name string, args map[string]string) (string, error) {
		s := statuses[step]
		step++
		return s, nil
	})
	cfg := agent.Config{
		MaxSteps: 10,
		Success:  func(status string) bool { return status == "dashboard=True" },
	}
	loop, err := agent.NewLoop(alwaysCall("bank_is_dashboard"), exec, cfg, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "reach the dashboard")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeSuccess, result.Outcome)
	assert.Len(t, result.Steps, 3)
}

func TestLoopStopsOnTerminalStatus(t *testing.T) {
	exec := executorFunc(func(ctx context.Context, name string, args map[string]string) (string, error) {
		return "STOPPED_ON_CHECKOUT_SPC", nil
	})
	cfg := agent.Config{
		MaxSteps: 10,
		// The terminal status outranks the success predicate even when
		// both would match the same observation.
		Success:          func(string) bool { return true },
		TerminalStatuses: []string{"STOPPED_ON_CHECKOUT_SPC", tools.TerminatedStatus},
	}
	loop, err := agent.NewLoop(alwaysCall("shop_stop_if_checkout"), exec, cfg, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "buy")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeTerminated, result.Outcome)
	assert.Len(t, result.Steps, 1)
}

func TestLoopConclude(t *testing.T) {
	p := plannerFunc(func(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
		return agent.ToolCall{Conclude: true, Rationale: "nothing to do"}, nil
	})
	loop, err := agent.NewLoop(p, nil, agent.Config{MaxSteps: 3}, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "noop")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeConcluded, result.Outcome)
	assert.Empty(t, result.Steps)
}

func TestLoopPlannerErrorIsHardFailure(t *testing.T) {
	boom := errors.New("model unreachable")
	p := plannerFunc(func(ctx context.Context, task string, history []schemas.AgentStep) (agent.ToolCall, error) {
		if len(history) == 0 {
			return agent.ToolCall{Tool: "t"}, nil
		}
		return agent.ToolCall{}, boom
	})
	exec := executorFunc(func(ctx context.Context, name string, args map[string]string) (string, error) {
		return "ok", nil
	})
	loop, err := agent.NewLoop(p, exec, agent.Config{MaxSteps: 5}, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "t")
	require.ErrorIs(t, err, boom)
	assert.Len(t, result.Steps, 1, "partial history survives the failure")
}

func TestLoopToolErrorIsHardFailure(t *testing.T) {
	boom := errors.New("registry rejected the call")
	exec := executorFunc(func(ctx context.Context, name string, args map[string]string) (string, error) {
		return "", boom
	})
	loop, err := agent.NewLoop(alwaysCall("nope"), exec, agent.Config{MaxSteps: 5}, zap.NewNop())
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "t")
	assert.ErrorIs(t, err, boom)
}

func TestLoopHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop, err := agent.NewLoop(alwaysCall("t"), nil, agent.Config{MaxSteps: 5}, zap.NewNop())
	require.NoError(t, err)

	_, err = loop.Run(ctx, "t")
	assert.ErrorIs(t, err, context.Canceled)
}

// bankSite mirrors the banking stub used by the tool catalog tests:
// landing page, login form, dashboard with a balance, transfer page.
func bankSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/login">Sign in</a></body></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if r.PostFormValue("username") == "alice" && r.PostFormValue("password") == "secret" {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, `<html><body><form action="/login" method="post">
			<input name="username" type="email">
			<input name="password" type="password">
			<button type="submit">Log in</button>
		</form></body></html>`)
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><main class="dashboard">
			<div id="account-balance"><span class="amount">$500.00</span></div>
			<a href="/transfer">Transfer</a>
		</main></body></html>`)
	})
	mux.HandleFunc("/transfer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form class="transfer-form" action="/transfer" method="post">
			<input name="to"><input name="amount">
		</form></body></html>`)
	})
	return mux
}

func newBankRegistry(t *testing.T) (*tools.Registry, string) {
	t.Helper()
	server := httptest.NewServer(bankSite())
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	page := browser.NewHTMLPage(logger, 5*time.Second)
	t.Cleanup(func() { _ = page.Close(context.Background()) })

	markers := detect.Markers{
		LoginURLMarker:     "login",
		CheckoutPathMarker: "/checkout/p/",
		CheckoutSPCMarker:  "/spc",
		PipelineParam:      "pipelineType",
		PipelineValue:      "chewbacca",
	}
	det := detect.New(page, markers, tools.DetectorSelectors(), logger)
	resume := make(chan string, 1)

	env := &tools.Env{
		Page:        page,
		Exec:        act.New(page, logger),
		Detect:      det,
		Checkout:    guard.NewCheckoutGuard(page, det, tools.PlaceOrderProbe(), logger),
		Ceiling:     guard.PriceCeiling{Max: 200},
		Gate:        gate.New(&bytes.Buffer{}, resume, 2, time.Millisecond, logger),
		Ledger:      ledger.NewClient(server.URL, time.Second, 0, logger),
		Logger:      logger,
		Action:      act.Options{PollInterval: 5 * time.Millisecond},
		ShopBaseURL: server.URL,
		UserID:      "tester",
	}
	r := tools.NewRegistry(env.Gate, page, logger)
	require.NoError(t, r.Register(tools.GeneralCatalog(env)...))
	require.NoError(t, r.Register(tools.BankCatalog(env)...))
	return r, server.URL
}

// The full banking scenario, driven end to end through the real registry
// by a scripted plan: sign in, confirm the dashboard, read the balance,
// navigate to transfers.
func TestLoopScriptedBankScenario(t *testing.T) {
	registry, base := newBankRegistry(t)

	script := planner.NewScripted(
		agent.ToolCall{Tool: "bank_go_home", Args: map[string]string{"base_url": base}},
		agent.ToolCall{Tool: "bank_header_sign_in"},
		agent.ToolCall{Tool: "bank_is_login_context"},
		agent.ToolCall{Tool: "bank_fill_username", Args: map[string]string{"username": "alice"}},
		agent.ToolCall{Tool: "bank_fill_password", Args: map[string]string{"password": "secret"}},
		agent.ToolCall{Tool: "bank_submit_login"},
		agent.ToolCall{Tool: "bank_is_dashboard"},
		agent.ToolCall{Tool: "bank_get_balance"},
		agent.ToolCall{Tool: "bank_nav_to_transfer"},
		agent.ToolCall{Tool: "bank_is_transfer_page"},
	)
	cfg := agent.Config{
		MaxSteps:         12,
		Success:          func(status string) bool { return status == "transfer_page=True" },
		TerminalStatuses: []string{"STOPPED_ON_CHECKOUT_SPC", tools.TerminatedStatus},
	}
	loop, err := agent.NewLoop(script, registry, cfg, zap.NewNop())
	require.NoError(t, err)

	result, err := loop.Run(context.Background(), "log in and open the transfer page")
	require.NoError(t, err)
	assert.Equal(t, agent.OutcomeSuccess, result.Outcome)
	assert.Len(t, result.Steps, 10)

	lines := result.Statuses()
	assert.Contains(t, lines, "bank_is_login_context -> login_context=True")
	assert.Contains(t, lines, "bank_is_dashboard -> dashboard=True")
	assert.Contains(t, lines, "bank_get_balance -> balance_text=$500.00; balance_value=500.0")
	assert.Equal(t, "bank_is_transfer_page -> transfer_page=True", lines[len(lines)-1])
}
