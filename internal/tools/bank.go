package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/resolve"
)

// BankCatalog builds the banking-task tools. Status strings follow the
// vocabulary planners are prompted with; changing any of them is a
// breaking change.
func BankCatalog(env *Env) []Tool {
	return []Tool{
		{
			Name:        "bank_go_home",
			Description: "Open the bank site landing page. Args: base_url (optional). Returns 'Opened: <url>'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				url := args["base_url"]
				if url == "" {
					url = env.BankBaseURL
				}
				if err := env.Page.Navigate(ctx, url); err != nil {
					return fmt.Sprintf("Navigation failed: %v", err), nil
				}
				return fmt.Sprintf("Opened: %s", url), nil
			},
		},
		{
			Name:        "bank_header_sign_in",
			Description: "Click the header sign-in entry. Returns 'Header login clicked.' or 'Header login not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				out := env.Exec.Click(ctx, bankSelectors.HeaderLogin, nil, env.Action)
				if out.OK() {
					return "Header login clicked.", nil
				}
				return "Header login not found.", nil
			},
		},
		{
			Name:        "bank_fill_username",
			Description: "Fill the username/email field. Args: username. Returns 'Username filled.' or 'Username field not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				out := env.Exec.Type(ctx, bankSelectors.LoginUsername, nil, args["username"], env.Action)
				if out.OK() {
					return "Username filled.", nil
				}
				return "Username field not found.", nil
			},
		},
		{
			Name:        "bank_fill_password",
			Description: "Fill the password field. Args: password. Returns 'Password filled.' or 'Password field not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				out := env.Exec.Type(ctx, bankSelectors.LoginPassword, nil, args["password"], env.Action)
				if out.OK() {
					return "Password filled.", nil
				}
				return "Password field not found.", nil
			},
		},
		{
			Name:        "bank_submit_login",
			Description: "Submit the login form, with an ENTER fallback on the password field. Returns 'Login submit clicked.' / 'Login submitted via ENTER.' / 'Login submit control not found.'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				if out := env.Exec.Click(ctx, bankSelectors.LoginSubmit, nil, env.Action); out.OK() {
					return "Login submit clicked.", nil
				}
				if out := env.Exec.SendEnter(ctx, bankSelectors.LoginPassword, nil, env.Action); out.OK() {
					return "Login submitted via ENTER.", nil
				}
				return "Login submit control not found.", nil
			},
		},
		{
			Name:        "bank_is_login_context",
			Description: "Check whether login UI is visible. Returns 'login_context=True' or 'login_context=False'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				ok, err := env.Detect.LoginContext(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("login_context=%s", pyBool(ok)), nil
			},
		},
		{
			Name:        "bank_is_dashboard",
			Description: "Check for the post-login dashboard. Returns 'dashboard=True' or 'dashboard=False'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				ok, err := env.Detect.Dashboard(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("dashboard=%s", pyBool(ok)), nil
			},
		},
		{
			Name:        "bank_get_balance",
			Description: "Read the displayed balance. Returns 'balance_text=<raw>; balance_value=<n|unknown>' or 'balance_not_found'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				raw, value, known, err := env.Detect.Balance(ctx)
				if err != nil {
					return "balance_not_found", nil
				}
				if !known {
					return fmt.Sprintf("balance_text=%s; balance_value=unknown", raw), nil
				}
				return fmt.Sprintf("balance_text=%s; balance_value=%s", raw, pyFloat(value)), nil
			},
		},
		{
			Name:        "bank_nav_to_transfer",
			Description: "Click navigation to the transfer page. Returns 'transfer_nav_clicked' or 'transfer_nav_not_found'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				out := env.Exec.Click(ctx, bankSelectors.NavTransfer, nil, env.Action)
				if !out.OK() {
					return "transfer_nav_not_found", nil
				}
				// Best-effort wait for the transfer marker; the click already
				// counts as success.
				waitForMarker(ctx, env, bankSelectors.TransferMark, 20*time.Second)
				return "transfer_nav_clicked", nil
			},
		},
		{
			Name:        "bank_is_transfer_page",
			Description: "Check for the transfer page. Returns 'transfer_page=True' or 'transfer_page=False'.",
			Run: func(ctx context.Context, args map[string]string) (string, error) {
				ok, err := env.Detect.TransferPage(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("transfer_page=%s", pyBool(ok)), nil
			},
		},
	}
}

// waitForMarker polls the resolver for a marker list, bounded by maxWait.
// Presence-only: nothing is clicked.
func waitForMarker(ctx context.Context, env *Env, list schemas.CandidateList, maxWait time.Duration) {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		doc, err := env.Page.Snapshot(ctx)
		if err != nil {
			return
		}
		if _, rerr := resolve.Resolve(doc, list, nil); rerr == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
}
