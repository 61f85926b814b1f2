package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopSite stubs the storefront purchase flow plus the ledger API on the
// same server.
func shopSite() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="s-main-slot">
			<div data-component-type="s-search-result">
				<h2><a class="a-link-normal" href="/p/1">Budget Toaster</a></h2>
				<span class="a-price">$19.99</span>
			</div>
			<div data-component-type="s-search-result">
				<h2><a class="a-link-normal" href="/p/2">Premium Toaster</a></h2>
				<span class="a-price">$349.00</span>
			</div>
		</div></body></html>`)
	})
	mux.HandleFunc("/p/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Budget Toaster</h1>
			<form action="/cart" method="get"><input id="add-to-cart-button" type="submit" value="Add to Cart"></form>
		</body></html>`)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<form action="/checkout/p/1/spc?pipelineType=chewbacca" method="get">
				<input name="proceedToRetailCheckout" type="submit" value="Proceed to checkout">
			</form>
		</body></html>`)
	})
	mux.HandleFunc("/checkout/p/1/spc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><input id="placeOrder" type="submit" value="Place your order"></body></html>`)
	})

	mux.HandleFunc("/api/vault/token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") == "tester" {
			fmt.Fprint(w, `{"token":"tok_4242"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/charge", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount float64 `json:"amount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Amount > 200 {
			fmt.Fprint(w, `{"approved":false,"message":"Amount exceeds $200 limit."}`)
			return
		}
		fmt.Fprintf(w, `{"approved":true,"message":"Approved $%.0f using vaulted token ending with 4242."}`, req.Amount)
	})
	return mux
}

func TestShopPurchaseFlowStopsAtCheckout(t *testing.T) {
	env, _, _ := newTestEnv(t, shopSite())
	r := newTestRegistry(t, env, GeneralCatalog, ShopCatalog)
	ctx := context.Background()

	status, err := r.Execute(ctx, "shop_open_results", map[string]string{"query": "toaster"})
	require.NoError(t, err)
	assert.Equal(t, "results_opened:toaster:cap=None", status)

	status, err = r.Execute(ctx, "shop_stop_if_checkout", nil)
	require.NoError(t, err)
	assert.Equal(t, "NOT_AT_CHECKOUT_SPC", status)

	status, err = r.Execute(ctx, "shop_open_product", map[string]string{"max_price": "25"})
	require.NoError(t, err)
	assert.Equal(t, "product_opened", status)

	url, err := env.Page.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, "/p/1", "cheapest card under the cap must win")

	status, err = r.Execute(ctx, "shop_add_to_cart", nil)
	require.NoError(t, err)
	assert.Equal(t, "ADDED", status)

	// Proceeding lands directly on the final checkout stage; the guard
	// inside the tool must stop the session right there instead of
	// reporting CHECKOUT_FLOW and idling on the irreversible page.
	status, err = r.Execute(ctx, "shop_proceed_to_checkout", nil)
	require.NoError(t, err)
	assert.Equal(t, "STOPPED_ON_CHECKOUT_SPC", status)
	assert.True(t, env.Page.Closed(), "checkout trip must terminate the session")

	status, err = r.Execute(ctx, "shop_add_to_cart", nil)
	require.NoError(t, err)
	assert.Equal(t, TerminatedStatus, status)
}

func TestShopStopIfCheckoutTripsOnFinalStage(t *testing.T) {
	env, base, _ := newTestEnv(t, shopSite())
	r := newTestRegistry(t, env, ShopCatalog)
	ctx := context.Background()

	require.NoError(t, env.Page.Navigate(ctx, base+"/checkout/p/1/spc?pipelineType=chewbacca"))

	status, err := r.Execute(ctx, "shop_stop_if_checkout", nil)
	require.NoError(t, err)
	assert.Equal(t, "STOPPED_ON_CHECKOUT_SPC", status)
	assert.True(t, env.Page.Closed())
}

func TestShopOpenResultsWithCap(t *testing.T) {
	env, _, _ := newTestEnv(t, shopSite())
	r := newTestRegistry(t, env, ShopCatalog)

	status, err := r.Execute(context.Background(), "shop_open_results",
		map[string]string{"query": "toaster", "max_price": "25"})
	require.NoError(t, err)
	assert.Equal(t, "results_opened:toaster:cap=25.0", status)
}

func TestShopOpenResultsBlockedBySignin(t *testing.T) {
	env, _, _ := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form><input id="ap_email"></form></body></html>`)
	}))
	r := newTestRegistry(t, env, ShopCatalog)

	status, err := r.Execute(context.Background(), "shop_open_results", map[string]string{"query": "toaster"})
	require.NoError(t, err)
	assert.Equal(t, "blocked:signin", status)
}

func TestShopNextResultsPage(t *testing.T) {
	env, base, _ := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			fmt.Fprint(w, `<html><body>page two</body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><a class="s-pagination-next" href="/page2">Next</a></body></html>`)
	}))
	r := newTestRegistry(t, env, ShopCatalog)
	ctx := context.Background()

	require.NoError(t, env.Page.Navigate(ctx, base))

	status, err := r.Execute(ctx, "shop_next_results_page", nil)
	require.NoError(t, err)
	assert.Equal(t, "NEXT_OK", status)

	status, err = r.Execute(ctx, "shop_next_results_page", nil)
	require.NoError(t, err)
	assert.Equal(t, "NO_NEXT", status)
}

func TestShopAuthorizePayment(t *testing.T) {
	env, base, _ := newTestEnv(t, shopSite())
	r := newTestRegistry(t, env, ShopCatalog)
	ctx := context.Background()

	require.NoError(t, env.Page.Navigate(ctx, base+"/s?k=toaster"))

	status, err := r.Execute(ctx, "shop_authorize_payment", map[string]string{"amount": "179"})
	require.NoError(t, err)
	assert.Contains(t, status, "payment_authorized:Approved $179")

	// The local ceiling blocks before the ledger is even asked.
	status, err = r.Execute(ctx, "shop_authorize_payment", map[string]string{"amount": "250"})
	require.NoError(t, err)
	assert.Contains(t, status, "payment_declined:")
	assert.Contains(t, status, "exceeds limit")
}

func TestShopAuthorizePaymentMissingToken(t *testing.T) {
	env, base, _ := newTestEnv(t, shopSite())
	env.UserID = "stranger"
	r := newTestRegistry(t, env, ShopCatalog)
	ctx := context.Background()

	require.NoError(t, env.Page.Navigate(ctx, base+"/s?k=toaster"))

	status, err := r.Execute(ctx, "shop_authorize_payment", map[string]string{"amount": "50"})
	require.NoError(t, err)
	assert.Equal(t, "payment_token_missing", status)
}
