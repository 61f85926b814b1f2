// Package ledger talks to the external record-keeping collaborator: the
// vault that stores payment tokens, the charge authorizer and the workflow
// history sink. The engine treats it as opaque; stored payment data never
// crosses into this process, only tokens and authorization decisions do.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoToken is returned when the vault holds no payment token for a user.
var ErrNoToken = errors.New("no stored payment token")

// Authorization is the collaborator's charge decision. The server enforces
// its own ceiling independently of the local price guard.
type Authorization struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

// Client is a paced HTTP client for the ledger collaborator.
type Client struct {
	base    string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a client for the given base URL. maxRPS caps outbound
// call rate; zero or negative disables pacing.
func NewClient(baseURL string, timeout time.Duration, maxRPS float64, logger *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRPS), 1)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:    baseURL,
		httpc:   &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger.Named("ledger"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode ledger response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// FetchStoredPaymentToken returns the user's most recent vaulted payment
// token. The token is an opaque handle; the vault never releases the
// underlying payment data.
func (c *Client) FetchStoredPaymentToken(ctx context.Context, userID string) (string, error) {
	var body struct {
		Token string `json:"token"`
	}
	status, err := c.do(ctx, http.MethodGet, "/api/vault/token?user_id="+url.QueryEscape(userID), nil, &body)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNoToken
	}
	if status >= 300 {
		return "", fmt.Errorf("vault token lookup failed with status %d", status)
	}
	if body.Token == "" {
		return "", ErrNoToken
	}
	return body.Token, nil
}

// Authorize requests a charge authorization against a vaulted token. A
// declined charge is a successful call with Approved=false; only transport
// and protocol failures return an error.
func (c *Client) Authorize(ctx context.Context, token string, amount float64) (Authorization, error) {
	req := struct {
		Token  string  `json:"token"`
		Amount float64 `json:"amount"`
	}{Token: token, Amount: amount}

	var auth Authorization
	status, err := c.do(ctx, http.MethodPost, "/api/charge", req, &auth)
	if err != nil {
		return Authorization{}, err
	}
	if status >= 300 {
		return Authorization{}, fmt.Errorf("charge authorization failed with status %d", status)
	}
	c.logger.Info("Charge authorization decided.",
		zap.Bool("approved", auth.Approved), zap.Float64("amount", amount))
	return auth, nil
}

// RecordWorkflow appends a finished run to the collaborator's history.
func (c *Client) RecordWorkflow(ctx context.Context, name string, steps []string, status string) error {
	req := struct {
		Name   string   `json:"name"`
		Steps  []string `json:"steps"`
		Status string   `json:"status"`
	}{Name: name, Steps: steps, Status: status}

	code, err := c.do(ctx, http.MethodPost, "/api/workflows", req, nil)
	if err != nil {
		return err
	}
	if code >= 300 {
		return fmt.Errorf("workflow record failed with status %d", code)
	}
	return nil
}
