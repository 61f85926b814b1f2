package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xm4dn355x/webpilot/internal/act"
	"github.com/xm4dn355x/webpilot/internal/agent"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/detect"
	"github.com/xm4dn355x/webpilot/internal/gate"
	"github.com/xm4dn355x/webpilot/internal/guard"
	"github.com/xm4dn355x/webpilot/internal/ledger"
	"github.com/xm4dn355x/webpilot/internal/observability"
	"github.com/xm4dn355x/webpilot/internal/planner"
	"github.com/xm4dn355x/webpilot/internal/tools"
)

// runtime is everything one task run needs: a live page, the wired tool
// registry and the ledger client for the workflow record.
type runtime struct {
	page     browser.Page
	manager  *browser.Manager
	registry *tools.Registry
	ledger   *ledger.Client
	logger   *zap.Logger
}

// newRuntime opens a page (Chrome or the pure-Go session, per config)
// and wires the given tool catalogs around it.
func newRuntime(ctx context.Context, catalogs ...func(*tools.Env) []tools.Tool) (*runtime, error) {
	logger := observability.GetLogger()

	var (
		page    browser.Page
		manager *browser.Manager
	)
	if cfg.Browser.PureGo {
		page = browser.NewHTMLPage(logger, cfg.Browser.NavigationTimeout)
	} else {
		manager = browser.NewManager(cfg.Browser, logger)
		chromePage, err := manager.NewPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open browser page: %w", err)
		}
		page = chromePage
	}

	markers := detect.Markers{
		LoginURLMarker:     cfg.Guard.LoginURLMarker,
		CheckoutPathMarker: cfg.Guard.CheckoutPathMarker,
		CheckoutSPCMarker:  cfg.Guard.CheckoutSPCMarker,
		PipelineParam:      cfg.Guard.PipelineParam,
		PipelineValue:      cfg.Guard.PipelineValue,
	}
	det := detect.New(page, markers, tools.DetectorSelectors(), logger)
	g := gate.New(os.Stdout, gate.ConsoleResume(os.Stdin), cfg.Gate.PollAttempts, cfg.Gate.PollInterval, logger)
	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.Timeout, cfg.Ledger.MaxRPS, logger)

	env := &tools.Env{
		Page:     page,
		Exec:     act.New(page, logger),
		Detect:   det,
		Checkout: guard.NewCheckoutGuard(page, det, tools.PlaceOrderProbe(), logger),
		Ceiling:  guard.PriceCeiling{Max: cfg.Guard.MaxPrice},
		Gate:     g,
		Ledger:   ledgerClient,
		Logger:   logger,
		Action: act.Options{
			Timeout:      cfg.Engine.ActionTimeout,
			PollInterval: cfg.Engine.PollInterval,
			Retries:      cfg.Engine.Retries,
			SettleDelay:  cfg.Engine.SettleDelay,
		},
		BankBaseURL:  cfg.Sites.BankBaseURL,
		ShopBaseURL:  cfg.Sites.ShopBaseURL,
		HotelBaseURL: cfg.Sites.HotelBaseURL,
		UserID:       cfg.Sites.UserID,
	}

	registry := tools.NewRegistry(g, page, logger)
	for _, catalog := range catalogs {
		if err := registry.Register(catalog(env)...); err != nil {
			return nil, err
		}
	}

	return &runtime{
		page:     page,
		manager:  manager,
		registry: registry,
		ledger:   ledgerClient,
		logger:   logger,
	}, nil
}

func (rt *runtime) shutdown(ctx context.Context) {
	_ = rt.page.Close(ctx)
	if rt.manager != nil {
		rt.manager.Shutdown(ctx)
	}
}

// runTask drives one named workflow: plan with Gemini, execute through
// the registry, then record the step trail on the ledger.
func runTask(ctx context.Context, rt *runtime, name, task string, loopCfg agent.Config) error {
	defer rt.shutdown(ctx)

	client, err := planner.NewGeminiClient(cfg.LLM, rt.logger)
	if err != nil {
		return err
	}
	p := planner.NewGemini(client, rt.registry.Describe(), rt.logger)

	loop, err := agent.NewLoop(p, rt.registry, loopCfg, rt.logger)
	if err != nil {
		return err
	}

	var result agent.Result
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var runErr error
		result, runErr = loop.Run(egCtx, task)
		return runErr
	})
	runErr := eg.Wait()

	outcome := string(result.Outcome)
	if runErr != nil {
		outcome = "failed"
	}
	if err := rt.ledger.RecordWorkflow(ctx, name, result.Statuses(), outcome); err != nil {
		rt.logger.Warn("Failed to record workflow on the ledger.", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	rt.logger.Info("Run finished.",
		zap.String("run_id", result.RunID),
		zap.String("outcome", outcome),
		zap.Int("steps", len(result.Steps)))
	fmt.Printf("\nRun %s finished: %s (%d steps)\n", result.RunID, outcome, len(result.Steps))
	for _, line := range result.Statuses() {
		fmt.Println("  " + line)
	}
	return nil
}

// defaultLoopConfig applies the configured step budget and the universal
// terminal statuses. successStatus may be empty.
func defaultLoopConfig(successStatus string) agent.Config {
	loopCfg := agent.Config{
		MaxSteps:         cfg.Engine.MaxSteps,
		TerminalStatuses: []string{"STOPPED_ON_CHECKOUT_SPC", tools.TerminatedStatus},
	}
	if successStatus != "" {
		loopCfg.Success = func(status string) bool { return status == successStatus }
	}
	return loopCfg
}
