// Package storefront is the HTTP client for the Leen marketplace API.
package storefront

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/leen-storefront/internal/observability/metrics"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

const (
	DefaultBaseURL = "https://leen-app.com/public/api"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 300
)

var tracer = otel.Tracer("leen.internal.storefront")

// ErrTransport wraps failures that never produced an HTTP response.
var ErrTransport = errors.New("storefront: transport failure")

// APIError is a non-2xx response from the marketplace.
type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront: %s returned %d", e.Path, e.Status)
	}
	return fmt.Sprintf("storefront: %s returned %d: %s", e.Path, e.Status, e.Message)
}

func (e *APIError) StatusCode() int        { return e.Status }
func (e *APIError) BackendMessage() string { return e.Message }

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenProvider
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.BookingMetrics
}

// Client calls the Leen marketplace REST API on behalf of one customer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenProvider
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
}

// NewClient constructs a marketplace client. Authenticated endpoints fail
// with ErrNoToken unless opts.Tokens yields a token.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = ContextToken{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// BaseURL is the API root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type call struct {
	op      string
	method  string
	path    string
	body    any
	auth    bool
	headers map[string]string
}

func (c *Client) doJSON(ctx context.Context, rc call, out any) (err error) {
	ctx, span := tracer.Start(ctx, "storefront."+rc.op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", rc.method),
		attribute.String("url.path", rc.path),
	)
	started := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		c.metrics.ObserveUpstream(rc.op, outcome, time.Since(started).Seconds())
	}()

	var bodyReader io.Reader
	if rc.body != nil {
		payload, err := json.Marshal(rc.body)
		if err != nil {
			outcome = "error"
			return fmt.Errorf("storefront: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, c.baseURL+rc.path, bodyReader)
	if err != nil {
		outcome = "error"
		return fmt.Errorf("storefront: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rc.headers {
		req.Header.Set(k, v)
	}
	if rc.auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			outcome = "unauthorized"
			return &APIError{Status: http.StatusUnauthorized, Message: "missing customer token", Path: rc.path}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "transport"
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrTransport, rc.op, ctxErr)
		}
		return fmt.Errorf("%w: %s: %v", ErrTransport, rc.op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "transport"
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = fmt.Sprintf("%dxx", resp.StatusCode/100)
		msg := backendMessage(respBody)
		c.logger.Warn("storefront API non-2xx response", "status", resp.StatusCode, "operation", rc.op, "path", rc.path, "message", msg)
		return &APIError{Status: resp.StatusCode, Message: msg, Path: rc.path}
	}

	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		outcome = "decode"
		return fmt.Errorf("storefront: decode %s response: %w", rc.op, err)
	}
	return nil
}

// backendMessage pulls {"message": "..."} out of an error body, falling back
// to the truncated raw body.
func backendMessage(body []byte) string {
	var wrapped struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Message != "" {
			return wrapped.Message
		}
		if wrapped.Error != "" {
			return wrapped.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
