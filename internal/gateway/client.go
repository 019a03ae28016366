// Package gateway is the HTTP adapter for the design evaluation backend.
//
// The backend accepts a multi-image submission, evaluates it synchronously and
// returns the stored submission with per-criterion feedback. Improvement
// suggestions are generated separately; regeneration only starts background
// work and acknowledges, so callers must re-fetch later to see new data.
//
// Response quirks (records keyed by "_id" instead of "id", naive timestamps,
// single-image legacy fields) are normalized here so callers see one schema.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"

	"github.com/mpataki/playcheck/internal/models"
)

const (
	// DefaultBaseURL is where the backend listens in local development.
	DefaultBaseURL = "http://localhost:8000"

	// defaultTimeout covers a full evaluation round trip; the backend calls
	// the model twice before answering a submission.
	defaultTimeout = 120 * time.Second

	defaultRatePerSecond = 5

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Client calls the evaluation backend.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	limiter     ratelimit.Limiter
	onServerErr func(error)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit paces outbound requests to rps per second.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = ratelimit.New(rps)
		} else {
			c.limiter = ratelimit.NewUnlimited()
		}
	}
}

// WithServerErrorReporter registers fn to receive transport failures and
// 5xx responses, e.g. for error tracking.
func WithServerErrorReporter(fn func(error)) Option {
	return func(c *Client) { c.onServerErr = fn }
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    ratelimit.New(defaultRatePerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitDesign uploads both image sequences and the description and returns
// the evaluated submission.
func (c *Client) SubmitDesign(ctx context.Context, req models.SubmitRequest) (*models.Submission, error) {
	log.Debug().
		Int("playgroundImages", len(req.PlaygroundImages)).
		Int("toyImages", len(req.ToyImages)).
		Int("descriptionBytes", len(req.ActivityDescription)).
		Msg("Submitting design")

	var wire submissionWire
	if err := c.do(ctx, "submit design", http.MethodPost, "/submit-design-multi", req, &wire, fallbackSubmit); err != nil {
		return nil, err
	}
	sub, err := wire.normalize()
	if err != nil {
		return nil, fmt.Errorf("submit design: %w", err)
	}
	log.Info().Str("submissionId", sub.ID).Msg("Design submitted")
	return sub, nil
}

// GetFeedback fetches the stored submission and its feedback.
func (c *Client) GetFeedback(ctx context.Context, submissionID string) (*models.Submission, error) {
	var wire submissionWire
	path := "/feedback/" + url.PathEscape(submissionID)
	if err := c.do(ctx, "fetch feedback", http.MethodGet, path, nil, &wire, fallbackFeedback); err != nil {
		return nil, err
	}
	sub, err := wire.normalize()
	if err != nil {
		return nil, fmt.Errorf("fetch feedback: %w", err)
	}
	return sub, nil
}

// GetSuggestions fetches the current improvement suggestions.
func (c *Client) GetSuggestions(ctx context.Context, submissionID string) (*models.Suggestions, error) {
	var wire suggestionsWire
	path := "/improvement-suggestions/" + url.PathEscape(submissionID)
	if err := c.do(ctx, "fetch suggestions", http.MethodGet, path, nil, &wire, fallbackSuggestions); err != nil {
		return nil, err
	}
	s := wire.normalize()
	if s.SubmissionID == "" {
		s.SubmissionID = submissionID
	}
	return s, nil
}

// RegenerateSuggestions asks the backend to recompute suggestions. It only
// acknowledges; the new set becomes visible to GetSuggestions later.
func (c *Client) RegenerateSuggestions(ctx context.Context, submissionID string) error {
	var ack struct {
		Message string `json:"message"`
	}
	path := "/improvement-suggestions/" + url.PathEscape(submissionID) + "/regenerate"
	if err := c.do(ctx, "regenerate suggestions", http.MethodPost, path, struct{}{}, &ack, fallbackRegenerate); err != nil {
		return err
	}
	log.Info().Str("submissionId", submissionID).Str("message", ack.Message).Msg("Suggestion regeneration started")
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.limiter.Take()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		if !errors.Is(err, context.Canceled) {
			c.reportServerError(err)
		}
		return err
	}
	defer resp.Body.Close()

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Op:       op,
			Status:   resp.StatusCode,
			Detail:   parseDetail(data),
			fallback: fallback,
		}
		if apiErr.ServerSide() {
			c.reportServerError(apiErr)
		}
		return apiErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) reportServerError(err error) {
	if c.onServerErr != nil {
		c.onServerErr(err)
	}
}
