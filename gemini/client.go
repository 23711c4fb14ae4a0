package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/types"
)

const providerName = "gemini"

// Client calls the generateContent endpoint of a computer-use model using
// x-goog-api-key authentication. One client is shared by every task.
type Client struct {
	cfg        config.GeminiConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Collector
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewClient creates a client for cfg. The API key is required; everything
// else falls back to defaults. collector may be nil.
func NewClient(cfg config.GeminiConfig, collector *metrics.Collector, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, types.NewValidationError("gemini api key is required (set GEMINI_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-computer-use-preview-10-2025"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		metrics:    collector,
		tracer:     otel.Tracer("webpilot/gemini"),
		logger:     logger.With(zap.String("component", "gemini")),
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// GenerateContent submits the conversation with the computer-use tool
// enabled and returns the first candidate. Transport, decode and empty
// responses surface as upstream errors; HTTP statuses map onto the service
// error codes.
func (c *Client) GenerateContent(ctx context.Context, contents []Content) (*Candidate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, span := c.tracer.Start(ctx, "gemini.generate_content",
		trace.WithAttributes(attribute.String("gen_ai.request.model", c.cfg.Model)))
	defer span.End()

	payload, err := json.Marshal(generateRequest{
		Contents: contents,
		Tools:    []Tool{{ComputerUse: &ComputerUse{Environment: EnvironmentBrowser}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record("error", time.Since(start), nil)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   providerName,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		apiErr := mapStatusError(resp.StatusCode, msg)
		c.record("error", time.Since(start), nil)
		span.SetStatus(otelcodes.Error, apiErr.Message)
		c.logger.Warn("model call failed",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return nil, apiErr
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.record("error", time.Since(start), nil)
		span.SetStatus(otelcodes.Error, "decode failed")
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    fmt.Sprintf("decode response: %v", err),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   providerName,
		}
	}

	c.record("ok", time.Since(start), out.UsageMetadata)

	if len(out.Candidates) == 0 {
		return nil, &types.Error{
			Code:     types.ErrUpstreamError,
			Message:  "model returned no candidates",
			Provider: providerName,
		}
	}

	cand := out.Candidates[0]
	c.logger.Debug("model call ok",
		zap.String("finish_reason", cand.FinishReason),
		zap.Int("function_calls", len(FunctionCalls(&cand))),
	)
	return &cand, nil
}

func (c *Client) record(status string, duration time.Duration, usage *UsageMetadata) {
	if c.metrics == nil {
		return
	}
	prompt, completion := 0, 0
	if usage != nil {
		prompt = usage.PromptTokenCount
		completion = usage.CandidatesTokenCount
	}
	c.metrics.RecordModelRequest(c.cfg.Model, status, duration, prompt, completion)
}

// readErrorMessage extracts the message from an API error body, falling
// back to the raw body.
func readErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", er.Error.Message, er.Error.Status)
	}
	return strings.TrimSpace(string(data))
}

func mapStatusError(status int, msg string) *types.Error {
	switch status {
	case http.StatusBadRequest:
		return &types.Error{Code: types.ErrValidation, Message: msg, HTTPStatus: status, Provider: providerName}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.Error{Code: types.ErrAuthentication, Message: msg, HTTPStatus: status, Provider: providerName}
	case http.StatusNotFound:
		return &types.Error{Code: types.ErrModelNotFound, Message: msg, HTTPStatus: status, Provider: providerName}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: providerName}
	default:
		return &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  status >= 500,
			Provider:   providerName,
		}
	}
}
