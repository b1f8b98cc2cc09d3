// Package brain is the HTTP client for the battle backend routes.
package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quiz-battle-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	PathHealth         = "/_healthz"
	PathRandomQuestion = "/routes/questions/random"
	PathDecide         = "/routes/ai/decide"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// DecideRequest asks the oracle for the opponent's verdict.
type DecideRequest struct {
	Difficulty domain.Difficulty `json:"difficulty"`
}

// DecideResponse carries the opponent's verdict.
type DecideResponse struct {
	AICorrect bool `json:"ai_correct"`
}

// ValidationIssue is one entry of a validation error payload.
type ValidationIssue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationErrorBody is the structured error payload of a rejected request.
type ValidationErrorBody struct {
	Detail []ValidationIssue `json:"detail"`
}

// APIError is returned for any non-success response.
type APIError struct {
	StatusCode int
	Detail     []ValidationIssue
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Detail) > 0 {
		msgs := make([]string, 0, len(e.Detail))
		for _, d := range e.Detail {
			msgs = append(msgs, d.Msg)
		}
		return fmt.Sprintf("brain: status %d: %s", e.StatusCode, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("brain: status %d", e.StatusCode)
}

// Client calls the question source and outcome oracle over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CheckHealth(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, PathHealth, nil, &out)
	return out, err
}

// RandomQuestion fetches one question. A question whose answer is not among its options is rejected.
func (c *Client) RandomQuestion(ctx context.Context) (domain.Question, error) {
	var q domain.Question
	if err := c.do(ctx, http.MethodGet, PathRandomQuestion, nil, &q); err != nil {
		return domain.Question{}, fmt.Errorf("%w: %w", domain.ErrQuestionFetchFailed, err)
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// Decide asks the oracle whether the opponent answered correctly.
func (c *Client) Decide(ctx context.Context, difficulty domain.Difficulty) (bool, error) {
	var out DecideResponse
	if err := c.do(ctx, http.MethodPost, PathDecide, DecideRequest{Difficulty: difficulty}, &out); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	return out.AICorrect, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	var payload ValidationErrorBody
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Detail = payload.Detail
	}
	return apiErr
}

// IsValidationError reports whether err is a 422 response with structured detail.
func IsValidationError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity
}
