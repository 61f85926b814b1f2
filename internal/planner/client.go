// Package planner decides the next tool call. The Gemini planner asks a
// hosted model; the scripted planner replays a fixed call list. Either way
// the engine only ever sees agent.ToolCall values.
package planner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xm4dn355x/webpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMClient generates one completion for a system/user prompt pair.
type LLMClient interface {
	GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeminiClient talks to the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.LLMConfig
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *struct {
		Parts []geminiPart `json:"parts"`
	} `json:"system_instruction,omitempty"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"response_mime_type,omitempty"`
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient builds the API client. The endpoint is derived from the
// model name unless the config overrides it (tests point it at a stub).
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		logger:     logger.Named("planner.gemini"),
		cfg:        cfg,
	}, nil
}

// GenerateResponse sends the prompts and returns the first candidate's
// text, retrying transient API failures with exponential backoff.
func (c *GeminiClient) GenerateResponse(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
	}
	payload.SystemInstruction = &struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: []geminiPart{{Text: systemPrompt}}}
	payload.GenerationConfig.Temperature = c.cfg.Temperature
	payload.GenerationConfig.ResponseMimeType = "application/json"
	payload.GenerationConfig.MaxOutputTokens = c.cfg.MaxTokens

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var parsed geminiResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(parsed.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}
		candidate := parsed.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("LLM generation complete.",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", parsed.UsageMetadata.CandidatesTokenCount))

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status",
		zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("gemini API error: status %d", statusCode)
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // transient, retry
	default:
		return backoff.Permanent(err)
	}
}
