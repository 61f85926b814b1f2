package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// GeneralCatalog builds the site-independent tools shared by every task.
func GeneralCatalog(env *Env) []Tool {
	return []Tool{
		{
			Name:        "open_url",
			Description: "Open a URL in the current browser tab. Args: url. Returns 'Navigated to: <url>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				url := args["url"]
				if err := env.Page.Navigate(ctx, url); err != nil {
					return fmt.Sprintf("Navigation failed: %v", err), nil
				}
				return fmt.Sprintf("Navigated to: %s", url), nil
			},
		},
		{
			Name:        "go_back",
			Description: "Go back one step in browser history. Returns 'Went back'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if err := env.Page.Back(ctx); err != nil {
					return fmt.Sprintf("Back failed: %v", err), nil
				}
				return "Went back", nil
			},
		},
		{
			Name:        "current_url",
			Description: "Report the current page URL. Returns 'URL: <url>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				url, err := env.Page.CurrentURL(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("URL: %s", url), nil
			},
		},
		{
			Name:        "scroll_down",
			Description: "Scroll the page down. Args: pixels (default 1000). Returns 'Scrolled down <pixels>px'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				pixels := 1000
				if v, err := strconv.Atoi(args["pixels"]); err == nil && v > 0 {
					pixels = v
				}
				if err := env.Page.ScrollBy(ctx, pixels); err != nil {
					return fmt.Sprintf("Scroll failed: %v", err), nil
				}
				return fmt.Sprintf("Scrolled down %dpx", pixels), nil
			},
		},
		{
			Name:        "close_popups",
			Description: "Dismiss modals (ESC several times) and accept cookie banners if present. Returns a status string.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				for i := 0; i < 3; i++ {
					if out := env.Exec.KeyPress(ctx, "ESCAPE"); !out.OK() {
						break
					}
					select {
					case <-ctx.Done():
						return "", ctx.Err()
					case <-time.After(200 * time.Millisecond):
					}
				}
				env.Exec.Click(ctx, bankSelectors.CookieAccept, nil, env.Action)
				env.Exec.Click(ctx, shopSelectors.CookieAccept, nil, env.Action)
				return "Popups/consent dismissed if present.", nil
			},
		},
		{
			Name:        "search_page_text",
			Description: "Find visible text on the page. Args: text. Returns 'focused:<n>/<total>:<text>' or 'no_match:<text>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				text := args["text"]
				first, total, err := env.Detect.FindText(ctx, text)
				if err != nil {
					return "", err
				}
				if total == 0 {
					return fmt.Sprintf("no_match:%s", text), nil
				}
				return fmt.Sprintf("focused:%d/%d:%s", first, total, text), nil
			},
		},
		{
			Name:        "human_gate",
			Description: "Pause for a human to complete a blocked step (CAPTCHA, 2FA), resuming on their signal. Args: message. Returns 'human_done'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				message := args["message"]
				if message == "" {
					message = "Complete any required human step (e.g., CAPTCHA/2FA), then press ENTER in console."
				}
				return env.Gate.Request(ctx, message)
			},
		},
		{
			Name:        "finish_session",
			Description: "Close the browser session gracefully. Returns 'Browser closed.' or 'Browser already closed.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if env.Page.Closed() {
					return "Browser already closed.", nil
				}
				if err := env.Page.Close(ctx); err != nil {
					return "Browser already closed.", nil
				}
				return "Browser closed.", nil
			},
		},
	}
}
