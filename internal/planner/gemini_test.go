package planner

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

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/agent"
	"github.com/xm4dn355x/webpilot/internal/config"
)

func TestExtractToolCall(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    agent.ToolCall
		wantErr bool
	}{
		{
			name: "bare JSON",
			raw:  `{"tool":"open_url","args":{"url":"https://example.com"}}`,
			want: agent.ToolCall{Tool: "open_url", Args: map[string]string{"url": "https://example.com"}},
		},
		{
			name: "fenced block",
			raw:  "```json\n{\"tool\":\"go_back\"}\n```",
			want: agent.ToolCall{Tool: "go_back"},
		},
		{
			name: "surrounding prose",
			raw:  `Sure, next I will go back. {"tool":"go_back","rationale":"return to results"} Hope that helps.`,
			want: agent.ToolCall{Tool: "go_back", Rationale: "return to results"},
		},
		{
			name: "conclude decision",
			raw:  `{"conclude":true,"rationale":"transfer page reached"}`,
			want: agent.ToolCall{Conclude: true, Rationale: "transfer page reached"},
		},
		{
			name: "braces inside strings",
			raw:  `{"tool":"search_page_text","args":{"text":"a { b } c"}}`,
			want: agent.ToolCall{Tool: "search_page_text", Args: map[string]string{"text": "a { b } c"}},
		},
		{
			name:    "no JSON at all",
			raw:     "I cannot decide.",
			wantErr: true,
		},
		{
			name:    "tool missing",
			raw:     `{"args":{"url":"x"}}`,
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			raw:     `{"tool":"open_url"`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractToolCall(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func geminiStub(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-goog-api-key"))
		escaped, _ := json.Marshal(reply)
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%s}]},"finishReason":"STOP"}]}`, escaped)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGemini(t *testing.T, endpoint string) *Gemini {
	t.Helper()
	client, err := NewGeminiClient(config.LLMConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash",
		Endpoint:   endpoint,
		APITimeout: 2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return NewGemini(client, "- open_url: open a URL\n", zap.NewNop())
}

func TestGeminiPlannerRoundTrip(t *testing.T) {
	server := geminiStub(t, `{"tool":"open_url","args":{"url":"https://bank.test"},"rationale":"start at the landing page"}`)
	g := newTestGemini(t, server.URL)

	call, err := g.NextCall(context.Background(), "check the balance", nil)
	require.NoError(t, err)
	assert.Equal(t, "open_url", call.Tool)
	assert.Equal(t, "https://bank.test", call.Args["url"])
}

func TestGeminiPlannerRendersHistory(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"conclude\":true}"}]}}]}`)
	}))
	defer server.Close()

	g := newTestGemini(t, server.URL)
	history := []schemas.AgentStep{
		{Index: 0, Tool: "open_url", Args: map[string]string{"url": "https://bank.test"}, Status: "Navigated to: https://bank.test"},
		{Index: 1, Tool: "bank_is_dashboard", Status: "dashboard=True"},
	}

	call, err := g.NextCall(context.Background(), "check the balance", history)
	require.NoError(t, err)
	assert.True(t, call.Conclude)
	assert.Contains(t, gotPrompt, "1. open_url")
	assert.Contains(t, gotPrompt, "dashboard=True")
}

func TestGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(config.LLMConfig{Model: "m"}, zap.NewNop())
	assert.Error(t, err)
}

func TestScriptedPlanner(t *testing.T) {
	s := NewScripted(
		agent.ToolCall{Tool: "open_url", Args: map[string]string{"url": "x"}},
		agent.ToolCall{Conclude: true},
	)
	ctx := context.Background()

	call, err := s.NextCall(ctx, "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "open_url", call.Tool)

	call, err = s.NextCall(ctx, "t", nil)
	require.NoError(t, err)
	assert.True(t, call.Conclude)

	_, err = s.NextCall(ctx, "t", nil)
	assert.Error(t, err, "running past the script is a bug")
}
