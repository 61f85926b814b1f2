package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchStoredPaymentToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vault/token", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("user_id") {
		case "alice":
			fmt.Fprint(w, `{"token":"tok_9f31"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL, time.Second, 0, zap.NewNop())

	token, err := c.FetchStoredPaymentToken(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok_9f31", token)

	_, err = c.FetchStoredPaymentToken(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestAuthorizePassesThroughServerDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/charge", r.URL.Path)
		var req struct {
			Token  string  `json:"token"`
			Amount float64 `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Amount > 200 {
			fmt.Fprint(w, `{"approved":false,"message":"Amount exceeds $200 limit."}`)
			return
		}
		fmt.Fprintf(w, `{"approved":true,"message":"Approved $%.0f using vaulted token ending with 4242."}`, req.Amount)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 0, zap.NewNop())

	auth, err := c.Authorize(context.Background(), "tok_9f31", 179)
	require.NoError(t, err)
	assert.True(t, auth.Approved)
	assert.Contains(t, auth.Message, "Approved $179")

	auth, err = c.Authorize(context.Background(), "tok_9f31", 250)
	require.NoError(t, err, "a decline is a decision, not a transport error")
	assert.False(t, auth.Approved)
	assert.Equal(t, "Amount exceeds $200 limit.", auth.Message)
}

func TestRecordWorkflow(t *testing.T) {
	var got struct {
		Name   string   `json:"name"`
		Steps  []string `json:"steps"`
		Status string   `json:"status"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/workflows", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 0, zap.NewNop())
	err := c.RecordWorkflow(context.Background(), "BookHotelUnder200",
		[]string{"searched", "selected", "authorized"}, "success")
	require.NoError(t, err)

	assert.Equal(t, "BookHotelUnder200", got.Name)
	assert.Len(t, got.Steps, 3)
	assert.Equal(t, "success", got.Status)
}

func TestAuthorizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, 0, zap.NewNop())
	_, err := c.Authorize(context.Background(), "tok", 10)
	assert.Error(t, err)
}

func TestClientPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"tok"}`)
	}))
	defer server.Close()

	// 100 rps with burst 1: the second call must wait roughly 10ms.
	c := NewClient(server.URL, time.Second, 100, zap.NewNop())
	ctx := context.Background()

	_, err := c.FetchStoredPaymentToken(ctx, "u")
	require.NoError(t, err)

	start := time.Now()
	_, err = c.FetchStoredPaymentToken(ctx, "u")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
