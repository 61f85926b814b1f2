package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// HotelCatalog builds the hotel-search tools. The flow stops at the
// reserve call to action; it never confirms a booking.
func HotelCatalog(env *Env) []Tool {
	return []Tool{
		{
			Name:        "hotel_home",
			Description: "Open the hotel site home page with language and currency. Args: lang, currency. Returns 'Navigated: <url>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				lang := args["lang"]
				if lang == "" {
					lang = "en-us"
				}
				currency := args["currency"]
				if currency == "" {
					currency = "USD"
				}
				target := fmt.Sprintf("%s/?lang=%s&selected_currency=%s",
					env.HotelBaseURL, url.QueryEscape(lang), url.QueryEscape(currency))
				if err := env.Page.Navigate(ctx, target); err != nil {
					return fmt.Sprintf("Navigation failed: %v", err), nil
				}
				return fmt.Sprintf("Navigated: %s", target), nil
			},
		},
		{
			Name:        "hotel_accept_cookies",
			Description: "Accept the cookie banner if present. Returns 'Cookie accept clicked.' or 'Cookie banner not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if out := env.Exec.Click(ctx, hotelSelectors.CookieAccept, nil, env.Action); out.OK() {
					return "Cookie accept clicked.", nil
				}
				return "Cookie banner not found.", nil
			},
		},
		{
			Name:        "hotel_set_destination",
			Description: "Fill the destination field and pick the first autocomplete match. Args: city. Returns 'Destination set: <city>' or 'Destination input not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				city := args["city"]
				if out := env.Exec.Click(ctx, hotelSelectors.DestInput, nil, env.Action); !out.OK() {
					return "Destination input not found.", nil
				}
				if out := env.Exec.Type(ctx, hotelSelectors.DestInput, nil, city, env.Action); !out.OK() {
					return "Typing failed.", nil
				}

				// Let the suggestion list render before picking from it.
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(600 * time.Millisecond):
				}

				params := map[string]string{"city": city}
				if out := env.Exec.Click(ctx, hotelSelectors.Autocomplete, params, env.Action); !out.OK() {
					// Keyboard fallback: first suggestion via arrow-down, enter.
					env.Exec.KeyPress(ctx, "ARROW_DOWN")
					env.Exec.KeyPress(ctx, "ENTER")
				}
				return fmt.Sprintf("Destination set: %s", city), nil
			},
		},
		{
			Name:        "hotel_set_dates",
			Description: "Pick check-in and check-out dates (YYYY-MM-DD) from the calendar. Args: checkin, checkout. Returns 'Dates set: <in> -> <out> (<ok>,<ok>)'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				checkin, checkout := args["checkin"], args["checkout"]
				okIn := env.Exec.Click(ctx, hotelSelectors.DateCell, map[string]string{"date": checkin}, env.Action).OK()
				okOut := env.Exec.Click(ctx, hotelSelectors.DateCell, map[string]string{"date": checkout}, env.Action).OK()
				return fmt.Sprintf("Dates set: %s -> %s (%s,%s)", checkin, checkout, pyBool(okIn), pyBool(okOut)), nil
			},
		},
		{
			Name:        "hotel_set_guests",
			Description: "Open the occupancy widget and set adults and rooms. Args: adults, rooms. Returns 'Guests set: adults=<a>, rooms=<r>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				adults := intArg(args, "adults", 1)
				rooms := intArg(args, "rooms", 1)

				env.Exec.Click(ctx, hotelSelectors.GuestToggle, nil, env.Action)

				// Widgets open at adults=2, rooms=1.
				for i := 2; i > adults; i-- {
					env.Exec.Click(ctx, hotelSelectors.AdultsMinus, nil, env.Action)
				}
				for i := 2; i < adults; i++ {
					env.Exec.Click(ctx, hotelSelectors.AdultsPlus, nil, env.Action)
				}
				for i := 1; i < rooms; i++ {
					env.Exec.Click(ctx, hotelSelectors.RoomsPlus, nil, env.Action)
				}
				return fmt.Sprintf("Guests set: adults=%d, rooms=%d", adults, rooms), nil
			},
		},
		{
			Name:        "hotel_submit_search",
			Description: "Submit the search form. Returns 'Search submitted.' or 'Search button not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				opts := env.Action
				opts.SettleDelay = 2 * time.Second // results page needs a beat
				if out := env.Exec.Click(ctx, hotelSelectors.SearchSubmit, nil, opts); out.OK() {
					return "Search submitted.", nil
				}
				return "Search button not found.", nil
			},
		},
		{
			Name:        "hotel_apply_star_filter",
			Description: "Apply the minimum star rating filter. Args: min_stars (default 4). Returns 'Star filter applied: >= <n>' or 'Star filter not found'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				stars := intArg(args, "min_stars", 4)
				params := map[string]string{"stars": strconv.Itoa(stars)}
				if out := env.Exec.Click(ctx, hotelSelectors.StarFilter, params, env.Action); out.OK() {
					return fmt.Sprintf("Star filter applied: >= %d", stars), nil
				}
				return "Star filter not found", nil
			},
		},
		{
			Name:        "hotel_open_first_result",
			Description: "Open the first property in the results list. Returns 'Opened first result.' or 'No result link found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if out := env.Exec.Click(ctx, hotelSelectors.FirstResultLink, nil, env.Action); out.OK() {
					return "Opened first result.", nil
				}
				return "No result link found.", nil
			},
		},
		{
			Name:        "hotel_click_reserve",
			Description: "Click the reserve/book/continue call to action on a property page. Returns 'Clicked Reserve/Book/Continue CTA.' or 'Reserve/Continue CTA not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if out := env.Exec.Click(ctx, hotelSelectors.ReserveCTA, nil, env.Action); out.OK() {
					return "Clicked Reserve/Book/Continue CTA.", nil
				}
				return "Reserve/Continue CTA not found.", nil
			},
		},
	}
}

func intArg(args map[string]string, key string, def int) int {
	if v, err := strconv.Atoi(args[key]); err == nil && v > 0 {
		return v
	}
	return def
}
