// Package tools is the planner-facing surface of the engine. Every tool is
// a named operation with a fixed string return vocabulary; planners reason
// from those literal strings, so each one is a stable contract.
package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/internal/act"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/detect"
	"github.com/xm4dn355x/webpilot/internal/gate"
	"github.com/xm4dn355x/webpilot/internal/guard"
	"github.com/xm4dn355x/webpilot/internal/ledger"
)

// TerminatedStatus is returned for every tool call after the browser
// session has ended.
const TerminatedStatus = "Session terminated."

// Tool is one named operation in the catalog. Run returns a status string
// from the tool's fixed vocabulary; errors are reserved for conditions the
// planner cannot act on (cancelled context, broken driver).
type Tool struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args map[string]string) (string, error)
}

// Env bundles the engine components the catalogs close over.
type Env struct {
	Page     browser.Page
	Exec     *act.Executor
	Detect   *detect.Detector
	Checkout *guard.CheckoutGuard
	Ceiling  guard.PriceCeiling
	Gate     *gate.Gate
	Ledger   *ledger.Client
	Logger   *zap.Logger

	// Action is the default resilience profile for catalog actions.
	Action act.Options

	BankBaseURL  string
	ShopBaseURL  string
	HotelBaseURL string
	UserID       string
}

// Registry holds the ordered tool catalog for one run.
type Registry struct {
	gate   *gate.Gate
	page   browser.Page
	order  []string
	byName map[string]Tool
	logger *zap.Logger
}

// NewRegistry builds an empty registry bound to the run's gate and page.
func NewRegistry(g *gate.Gate, page browser.Page, logger *zap.Logger) *Registry {
	return &Registry{
		gate:   g,
		page:   page,
		byName: make(map[string]Tool),
		logger: logger.Named("tools"),
	}
}

// Register adds tools in order. Duplicate names are an error: the catalog
// is part of the planner contract and must be unambiguous.
func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		if t.Name == "" || t.Run == nil {
			return fmt.Errorf("tool %q is incomplete", t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return fmt.Errorf("tool %q registered twice", t.Name)
		}
		r.byName[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return nil
}

// List returns the catalog in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Describe renders the catalog for a planner prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

// Execute runs one tool by name. It first syncs on the human gate, so a
// pending gate blocks every tool in the catalog, and it short-circuits to
// the terminal status once the session has ended. finish_session stays
// callable so it can report the already-closed state itself.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]string) (string, error) {
	tool, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	if r.gate != nil {
		r.gate.Sync()
	}
	if r.page != nil && r.page.Closed() && name != "finish_session" {
		return TerminatedStatus, nil
	}

	start := time.Now()
	status, err := tool.Run(ctx, args)
	r.logger.Info("Tool executed.",
		zap.String("tool", name),
		zap.String("status", status),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))
	return status, err
}

// pyBool renders a boolean the way the status vocabulary spells it.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// pyFloat renders a float in the status vocabulary's decimal form: always
// with a fractional part, so 500 reads as "500.0".
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
