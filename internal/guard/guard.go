// Package guard holds the authoritative stop decisions. A guard verdict is
// final: nothing downstream, planner included, can override a block, and a
// tripped checkout guard ends the browser session outright.
package guard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/detect"
	"github.com/xm4dn355x/webpilot/internal/resolve"
)

// PriceCeiling blocks purchases above a fixed maximum. An amount exactly at
// the ceiling is allowed; only strictly greater amounts are blocked.
type PriceCeiling struct {
	Max float64
}

// Check returns the verdict for one amount.
func (g PriceCeiling) Check(amount float64) schemas.Verdict {
	if amount > g.Max {
		return schemas.Block(fmt.Sprintf("price %.2f exceeds limit %.2f", amount, g.Max))
	}
	return schemas.Allow()
}

// CheckoutGuard watches for the irreversible single-page-checkout stage and
// terminates the session the moment the page reaches it.
type CheckoutGuard struct {
	page   browser.Page
	det    *detect.Detector
	probe  schemas.CandidateList
	logger *zap.Logger
}

// NewCheckoutGuard builds the guard. probe is the place-order control list
// used for the diagnostic presence check at the stop point.
func NewCheckoutGuard(page browser.Page, det *detect.Detector, probe schemas.CandidateList, logger *zap.Logger) *CheckoutGuard {
	return &CheckoutGuard{page: page, det: det, probe: probe, logger: logger.Named("checkout_guard")}
}

// Check re-evaluates the checkout predicate against the live page. When it
// holds, the guard records whether the place-order control is reachable
// (diagnostic only, never activated) and closes the browser session. The
// trip is irrecoverable; every later page operation fails terminally.
func (g *CheckoutGuard) Check(ctx context.Context) (tripped bool, err error) {
	at, err := g.det.CheckoutSPC(ctx)
	if err != nil {
		return false, err
	}
	if !at {
		return false, nil
	}

	current, _ := g.page.CurrentURL(ctx)
	g.logger.Warn("Irreversible checkout stage reached, stopping session.", zap.String("url", current))

	// Presence probe for the audit trail. The control is located, never
	// activated.
	if doc, serr := g.page.Snapshot(ctx); serr == nil {
		if el, rerr := resolve.Resolve(doc, g.probe, nil); rerr == nil {
			g.logger.Info("Place-order control present at stop point.",
				zap.String("selector", el.Target.Selector))
		} else {
			g.logger.Info("Place-order control not located at stop point.")
		}
	}

	if cerr := g.page.Close(ctx); cerr != nil {
		g.logger.Error("Failed to close page at stop point.", zap.Error(cerr))
	}
	return true, nil
}
