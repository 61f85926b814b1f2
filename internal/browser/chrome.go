package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
)

// ChromePage drives a real Chrome tab over the DevTools protocol.
type ChromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func()
}

var _ Page = (*ChromePage)(nil)

// newChromePage wires a tab context created by the Manager. JavaScript
// dialogs (alerts, confirms) are auto-accepted so they cannot wedge the
// single-threaded engine.
func newChromePage(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger, onClose func()) *ChromePage {
	p := &ChromePage{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("chrome_page"),
		onClose: onClose,
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(ctx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					p.logger.Debug("Failed to dismiss JavaScript dialog.", zap.Error(err))
				}
			}()
		}
	})

	return p
}

// run executes chromedp actions on the tab context while honoring the
// caller's deadline.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	opCtx, opCancel := CombineContext(p.ctx, ctx)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

func (p *ChromePage) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *ChromePage) Snapshot(ctx context.Context) (*html.Node, error) {
	var outer string
	if err := p.run(ctx, chromedp.OuterHTML("html", &outer, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to capture DOM snapshot: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM snapshot: %w", err)
	}
	return doc, nil
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	p.logger.Info("Navigating", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Back(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

// byOpt maps a target strategy onto the chromedp query mode.
func byOpt(t schemas.Target) chromedp.QueryOption {
	if t.Strategy == schemas.StrategyXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *ChromePage) NativeClick(ctx context.Context, t schemas.Target) error {
	return p.run(ctx, chromedp.Click(t.Selector, byOpt(t)))
}

func (p *ChromePage) DispatchClick(ctx context.Context, t schemas.Target) error {
	return p.evalOnTarget(ctx, t, "el.click()")
}

func (p *ChromePage) ScrollIntoView(ctx context.Context, t schemas.Target) error {
	return p.evalOnTarget(ctx, t, "el.scrollIntoView({block:'center', inline:'center'})")
}

func (p *ChromePage) ScrollBy(ctx context.Context, pixels int) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels), nil))
}

func (p *ChromePage) Clear(ctx context.Context, t schemas.Target) error {
	return p.run(ctx, chromedp.Clear(t.Selector, byOpt(t)))
}

func (p *ChromePage) Type(ctx context.Context, t schemas.Target, text string) error {
	return p.run(ctx, chromedp.SendKeys(t.Selector, text, byOpt(t)))
}

func (p *ChromePage) SendEnter(ctx context.Context, t schemas.Target) error {
	return p.run(ctx, chromedp.SendKeys(t.Selector, kb.Enter, byOpt(t)))
}

func (p *ChromePage) KeyPress(ctx context.Context, chord string) error {
	return p.run(ctx, chromedp.KeyEvent(chord))
}

// evalOnTarget locates the target in page JavaScript and applies an
// expression to it. A missing element reports an error rather than
// silently succeeding.
func (p *ChromePage) evalOnTarget(ctx context.Context, t schemas.Target, expr string) error {
	var script string
	if t.Strategy == schemas.StrategyXPath {
		script = fmt.Sprintf(
			`(function(){var el = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue; if (!el) { return false; } %s; return true;})()`,
			t.Selector, expr)
	} else {
		script = fmt.Sprintf(
			`(function(){var el = document.querySelector(%q); if (!el) { return false; } %s; return true;})()`,
			t.Selector, expr)
	}

	var found bool
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("target '%s' no longer present in the live page", t.Selector)
	}
	return nil
}

func (p *ChromePage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.logger.Info("Closing browser page.")
		p.closed.Store(true)
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

func (p *ChromePage) Closed() bool {
	return p.closed.Load()
}

// CombineContext derives a context from parentCtx that is additionally
// canceled when secondaryCtx is done. chromedp contexts carry internal
// state in their values, so operations must stay on the parent chain while
// still honoring per-call deadlines.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
