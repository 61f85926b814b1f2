// Package act executes browser actions against candidate-selector lists.
// It owns all resilience policy: resolution polling, the native-then-
// dispatch click fallback, and bounded retries. Resolution itself and the
// raw page operations stay dumb on purpose.
package act

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/resolve"
)

// ErrUnknownKey is returned for key names outside the supported table.
var ErrUnknownKey = errors.New("unknown key name")

// keyTable maps planner-facing key names to browser key chords. The set is
// fixed; anything else is an execution failure, never a guess.
var keyTable = map[string]string{
	"ENTER":      kb.Enter,
	"TAB":        kb.Tab,
	"ESCAPE":     kb.Escape,
	"BACKSPACE":  kb.Backspace,
	"DELETE":     kb.Delete,
	"ARROW_UP":   kb.ArrowUp,
	"ARROW_DOWN": kb.ArrowDown,
	"ARROW_LEFT": kb.ArrowLeft,
	"ARROW_RIGHT": kb.ArrowRight,
	"PAGE_UP":   kb.PageUp,
	"PAGE_DOWN": kb.PageDown,
	"HOME":      kb.Home,
	"END":       kb.End,
}

// Options bound one action's resilience behavior.
type Options struct {
	// Timeout caps the resolution polling window. Zero means a single
	// resolution attempt with no polling.
	Timeout time.Duration
	// PollInterval is the pause between resolution attempts.
	PollInterval time.Duration
	// Retries is the number of additional full click sequences attempted
	// after the first fails.
	Retries int
	// SettleDelay is an optional fixed pause after a successful action,
	// for pages that need it (post-submit loads).
	SettleDelay time.Duration
}

const defaultPollInterval = 250 * time.Millisecond

func (o Options) pollInterval() time.Duration {
	if o.PollInterval <= 0 {
		return defaultPollInterval
	}
	return o.PollInterval
}

// Executor performs click/type/keypress actions on one page.
type Executor struct {
	page   browser.Page
	logger *zap.Logger
}

// New builds an executor bound to a page.
func New(page browser.Page, logger *zap.Logger) *Executor {
	return &Executor{page: page, logger: logger.Named("act")}
}

// resolveWithPoll re-snapshots and resolves the list until a candidate
// matches or the polling window closes. Every attempt uses a fresh
// snapshot so a late-rendering element is eventually seen.
func (e *Executor) resolveWithPoll(ctx context.Context, list schemas.CandidateList, params map[string]string, opts Options) (*resolve.ResolvedElement, error) {
	deadline := time.Now().Add(opts.Timeout)
	for {
		doc, err := e.page.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		el, err := resolve.Resolve(doc, list, params)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, resolve.ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, resolve.ErrNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.pollInterval()):
		}
	}
}

// Click locates the concern and clicks it. The click itself falls back from
// a native input-level click to a programmatic dispatch click, and the
// whole locate-and-click sequence is retried up to opts.Retries times.
func (e *Executor) Click(ctx context.Context, list schemas.CandidateList, params map[string]string, opts Options) schemas.ActionOutcome {
	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("Retrying click sequence.", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return e.failed(ctx.Err())
			case <-time.After(opts.pollInterval()):
			}
		}

		el, err := e.resolveWithPoll(ctx, list, params, opts)
		if err != nil {
			if errors.Is(err, resolve.ErrNotFound) {
				lastErr = err
				continue
			}
			return e.failed(err)
		}

		if err := e.page.ScrollIntoView(ctx, el.Target); err != nil {
			e.logger.Debug("Scroll into view failed, clicking anyway.", zap.Error(err))
		}

		if err := e.page.NativeClick(ctx, el.Target); err == nil {
			return e.settled(ctx, schemas.ActionOutcome{
				Kind:          schemas.OutcomeClicked,
				Status:        fmt.Sprintf("Clicked: %s", el.Target.Selector),
				StrategyIndex: el.StrategyIndex,
			}, opts)
		} else {
			e.logger.Debug("Native click failed, falling back to dispatch.",
				zap.String("selector", el.Target.Selector), zap.Error(err))
			lastErr = err
		}

		if err := e.page.DispatchClick(ctx, el.Target); err == nil {
			return e.settled(ctx, schemas.ActionOutcome{
				Kind:          schemas.OutcomeClicked,
				Status:        fmt.Sprintf("Clicked (dispatched): %s", el.Target.Selector),
				StrategyIndex: el.StrategyIndex,
			}, opts)
		} else {
			lastErr = err
		}
	}

	if errors.Is(lastErr, resolve.ErrNotFound) {
		return schemas.ActionOutcome{
			Kind:          schemas.OutcomeNotFound,
			Status:        "Element not found.",
			StrategyIndex: -1,
		}
	}
	return e.failed(lastErr)
}

// Type locates the concern, clears it best-effort and sends literal text.
// There is no retry beyond the resolution polling window: typing into the
// wrong late-arriving element is worse than reporting not-found.
func (e *Executor) Type(ctx context.Context, list schemas.CandidateList, params map[string]string, text string, opts Options) schemas.ActionOutcome {
	el, err := e.resolveWithPoll(ctx, list, params, opts)
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			return schemas.ActionOutcome{
				Kind:          schemas.OutcomeNotFound,
				Status:        "Element not found.",
				StrategyIndex: -1,
			}
		}
		return e.failed(err)
	}

	if err := e.page.Clear(ctx, el.Target); err != nil {
		// A field that rejects clearing usually still accepts input.
		e.logger.Debug("Clear failed, typing anyway.",
			zap.String("selector", el.Target.Selector), zap.Error(err))
	}

	if err := e.page.Type(ctx, el.Target, text); err != nil {
		return e.failed(err)
	}

	return e.settled(ctx, schemas.ActionOutcome{
		Kind:          schemas.OutcomeTyped,
		Status:        fmt.Sprintf("Typed into: %s", el.Target.Selector),
		StrategyIndex: el.StrategyIndex,
	}, opts)
}

// SendEnter locates the concern and sends Enter scoped to it.
func (e *Executor) SendEnter(ctx context.Context, list schemas.CandidateList, params map[string]string, opts Options) schemas.ActionOutcome {
	el, err := e.resolveWithPoll(ctx, list, params, opts)
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			return schemas.ActionOutcome{
				Kind:          schemas.OutcomeNotFound,
				Status:        "Element not found.",
				StrategyIndex: -1,
			}
		}
		return e.failed(err)
	}
	if err := e.page.SendEnter(ctx, el.Target); err != nil {
		return e.failed(err)
	}
	return e.settled(ctx, schemas.ActionOutcome{
		Kind:          schemas.OutcomeKeyPressed,
		Status:        fmt.Sprintf("Sent ENTER to: %s", el.Target.Selector),
		StrategyIndex: el.StrategyIndex,
	}, opts)
}

// KeyPress dispatches a named key as a global page event.
func (e *Executor) KeyPress(ctx context.Context, name string) schemas.ActionOutcome {
	chord, ok := keyTable[name]
	if !ok {
		return schemas.ActionOutcome{
			Kind:          schemas.OutcomeExecutionFailed,
			Status:        fmt.Sprintf("Unknown key: %s", name),
			StrategyIndex: -1,
		}
	}
	if err := e.page.KeyPress(ctx, chord); err != nil {
		return e.failed(err)
	}
	return schemas.ActionOutcome{
		Kind:          schemas.OutcomeKeyPressed,
		Status:        fmt.Sprintf("Pressed: %s", name),
		StrategyIndex: -1,
	}
}

func (e *Executor) settled(ctx context.Context, out schemas.ActionOutcome, opts Options) schemas.ActionOutcome {
	if opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(opts.SettleDelay):
		}
	}
	return out
}

func (e *Executor) failed(err error) schemas.ActionOutcome {
	e.logger.Debug("Action execution failed.", zap.Error(err))
	return schemas.ActionOutcome{
		Kind:          schemas.OutcomeExecutionFailed,
		Status:        fmt.Sprintf("Execution failed: %v", err),
		StrategyIndex: -1,
	}
}
