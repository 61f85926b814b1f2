package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xm4dn355x/webpilot/internal/detect"
	"github.com/xm4dn355x/webpilot/internal/ledger"
)

// ShopCatalog builds the storefront purchase tools. The catalog never
// crosses the irreversible checkout boundary: shop_stop_if_checkout is the
// hard stop and shop_authorize_payment delegates the actual charge to the
// ledger collaborator.
func ShopCatalog(env *Env) []Tool {
	return []Tool{
		{
			Name:        "shop_open_results",
			Description: "Open search results, optionally capped by max_price. Args: query, max_price. Returns 'results_opened:<query>:cap=<p>' or 'blocked:signin|captcha'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				query := strings.TrimSpace(args["query"])
				target := env.ShopBaseURL + "/s?k=" + url.QueryEscape(query)
				if err := env.Page.Navigate(ctx, target); err != nil {
					return fmt.Sprintf("Navigation failed: %v", err), nil
				}
				closeShopBanners(ctx, env)

				if kind, _ := env.Detect.SigninOrCaptcha(ctx); kind != detect.InterstitialNone {
					return fmt.Sprintf("blocked:%s", kind), nil
				}
				waitForMarker(ctx, env, shopSelectors.ResultsReady, 10*time.Second)

				capText := "None"
				if raw := args["max_price"]; raw != "" {
					if maxPrice, err := strconv.ParseFloat(raw, 64); err == nil {
						capText = pyFloat(maxPrice)
						applyPriceCap(ctx, env, target, maxPrice)
					}
				}
				return fmt.Sprintf("results_opened:%s:cap=%s", query, capText), nil
			},
		},
		{
			Name:        "shop_next_results_page",
			Description: "Advance to the next results page if available. Returns 'NEXT_OK' or 'NO_NEXT'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if out := env.Exec.Click(ctx, shopSelectors.NextPage, nil, env.Action); out.OK() {
					return "NEXT_OK", nil
				}
				return "NO_NEXT", nil
			},
		},
		{
			Name:        "shop_open_product",
			Description: "Open the first product on the results page, preferring the cheapest card under max_price if given. Args: max_price. Returns 'product_opened' or 'product_link_not_found'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				maxPrice := math.Inf(1)
				if raw := args["max_price"]; raw != "" {
					if v, err := strconv.ParseFloat(raw, 64); err == nil {
						maxPrice = v
					}
				}

				cards, err := env.Detect.ScanResults(ctx,
					"[data-component-type='s-search-result']", "h2", "span.a-price", "h2 a.a-link-normal")
				if err == nil {
					for _, card := range cards {
						if card.PriceKnown && card.Price > maxPrice {
							continue
						}
						if out := env.Exec.Click(ctx,
							listOf(card.LinkSelector.Strategy, card.LinkSelector.Selector), nil, env.Action); out.OK() {
							return "product_opened", nil
						}
					}
				}

				if out := env.Exec.Click(ctx, shopSelectors.ProductLink, nil, env.Action); out.OK() {
					return "product_opened", nil
				}
				return "product_link_not_found", nil
			},
		},
		{
			Name:        "shop_add_to_cart",
			Description: "Click the add-to-cart control, dismissing warranty offers. Returns 'ADDED' or 'ADD_FAILED_NEEDS_HUMAN'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				for attempt := 0; attempt < 2; attempt++ {
					if out := env.Exec.Click(ctx, shopSelectors.AddToCart, nil, env.Action); out.OK() {
						env.Exec.Click(ctx, shopSelectors.WarrantyDecline, nil, env.Action)
						return "ADDED", nil
					}
					closeShopBanners(ctx, env)
				}
				return "ADD_FAILED_NEEDS_HUMAN", nil
			},
		},
		{
			Name:        "shop_proceed_to_checkout",
			Description: "Start the checkout flow from the cart. Returns 'CHECKOUT_FLOW', 'HUMAN_NEEDED_SIGNIN', 'HUMAN_NEEDED_CAPTCHA' or 'STOPPED_ON_CHECKOUT_SPC'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				env.Exec.Click(ctx, shopSelectors.Checkout, nil, env.Action)

				// The click may land directly on the final checkout stage;
				// the guard runs before any other check.
				tripped, err := env.Checkout.Check(ctx)
				if err != nil {
					return "", err
				}
				if tripped {
					return "STOPPED_ON_CHECKOUT_SPC", nil
				}

				if kind, _ := env.Detect.SigninOrCaptcha(ctx); kind != detect.InterstitialNone {
					return fmt.Sprintf("HUMAN_NEEDED_%s", strings.ToUpper(string(kind))), nil
				}
				return "CHECKOUT_FLOW", nil
			},
		},
		{
			Name:        "shop_stop_if_checkout",
			Description: "Terminate the session if the page is the final checkout stage. Returns 'STOPPED_ON_CHECKOUT_SPC' or 'NOT_AT_CHECKOUT_SPC'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				tripped, err := env.Checkout.Check(ctx)
				if err != nil {
					return "", err
				}
				if tripped {
					return "STOPPED_ON_CHECKOUT_SPC", nil
				}
				return "NOT_AT_CHECKOUT_SPC", nil
			},
		},
		{
			Name:        "shop_authorize_payment",
			Description: "Authorize a charge against the vaulted payment token via the ledger. Args: amount. Returns 'payment_authorized:<msg>', 'payment_declined:<msg>' or 'payment_token_missing'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				amount, err := strconv.ParseFloat(args["amount"], 64)
				if err != nil {
					return fmt.Sprintf("payment_declined:invalid amount %q", args["amount"]), nil
				}
				if v := env.Ceiling.Check(amount); !v.Allowed {
					return fmt.Sprintf("payment_declined:%s", v.Reason), nil
				}

				token, err := env.Ledger.FetchStoredPaymentToken(ctx, env.UserID)
				if err != nil {
					if errors.Is(err, ledger.ErrNoToken) {
						return "payment_token_missing", nil
					}
					return "", err
				}
				auth, err := env.Ledger.Authorize(ctx, token, amount)
				if err != nil {
					return "", err
				}
				if !auth.Approved {
					return fmt.Sprintf("payment_declined:%s", auth.Message), nil
				}
				return fmt.Sprintf("payment_authorized:%s", auth.Message), nil
			},
		},
	}
}

func closeShopBanners(ctx context.Context, env *Env) {
	env.Exec.Click(ctx, shopSelectors.CookieAccept, nil, env.Action)
	env.Exec.Click(ctx, shopSelectors.PopoverClose, nil, env.Action)
}

// applyPriceCap rewrites the results URL with the storefront's server-side
// price refinement (price in cents, upper bound only). Failures are
// swallowed: the cap is an optimization, not a guard.
func applyPriceCap(ctx context.Context, env *Env, resultsURL string, maxPrice float64) {
	cents := int(math.Round(maxPrice * 100))
	rh := fmt.Sprintf("p_36%%3A-%d", cents)
	sep := "?"
	if strings.Contains(resultsURL, "?") {
		sep = "&"
	}
	if err := env.Page.Navigate(ctx, resultsURL+sep+"rh="+rh); err != nil {
		env.Logger.Debug("Price cap refinement failed.")
		return
	}
	waitForMarker(ctx, env, shopSelectors.ResultsReady, 5*time.Second)
}
