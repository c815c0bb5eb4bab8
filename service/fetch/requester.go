package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/metrics"
	"github.com/brojonat/chainfeed/service/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultRPS     = 5.0

	// maxErrorBody bounds how much of an error response is kept in the message.
	maxErrorBody = 512
)

// Options configures a Requester. Zero values select defaults.
type Options struct {
	Timeout    time.Duration
	RPS        float64
	Burst      int
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Requester performs provider HTTP calls under a per-request timeout and a
// shared rate limit, translating every failure into a *ledger.ProviderError.
// It never retries.
type Requester struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a Requester for the named provider.
func New(provider string, opts Options) *Requester {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RPS <= 0 {
		opts.RPS = DefaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Requester{
		provider: provider,
		client:   opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("provider", provider),
		tracer:   telemetry.Tracer(),
	}
}

// Provider returns the provider name used in errors, spans and metrics.
func (r *Requester) Provider() string {
	return r.provider
}

// Logger returns the provider-scoped logger.
func (r *Requester) Logger() *slog.Logger {
	return r.logger
}

// Metrics returns the metrics collector, which may be nil.
func (r *Requester) Metrics() *metrics.Metrics {
	return r.metrics
}

// GetJSON issues GET ep.BaseURL+path with query and decodes the body into out.
func (r *Requester) GetJSON(ctx context.Context, ep endpoint.Endpoint, address, path string, query url.Values, out any) error {
	return r.doJSON(ctx, ep, address, http.MethodGet, path, query, nil, out)
}

// PostJSON issues POST ep.BaseURL+path with a JSON body and decodes the response into out.
func (r *Requester) PostJSON(ctx context.Context, ep endpoint.Endpoint, address, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return r.doJSON(ctx, ep, address, http.MethodPost, path, nil, payload, out)
}

// Do runs fn under the same pacing, timeout, tracing and metrics as the JSON
// helpers. It is for clients that own their HTTP transport (e.g. an RPC SDK).
// fn reports the HTTP status it observed, or 0 when unknown.
func (r *Requester) Do(ctx context.Context, ep endpoint.Endpoint, address, op string, fn func(ctx context.Context) (int, error)) error {
	ctx, span := r.startSpan(ctx, ep, op)
	defer span.End()

	if err := r.wait(ctx, ep, address); err != nil {
		return r.fail(ctx, span, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	status, err := fn(reqCtx)
	r.record(ep, status, start)

	if err != nil {
		var perr *ledger.ProviderError
		if errors.As(err, &perr) {
			return r.fail(ctx, span, perr)
		}
		return r.fail(ctx, span, r.providerError(ep, address, status, "", err))
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return nil
}

func (r *Requester) doJSON(ctx context.Context, ep endpoint.Endpoint, address, method, path string, query url.Values, body []byte, out any) error {
	ctx, span := r.startSpan(ctx, ep, method+" "+path)
	defer span.End()

	if err := r.wait(ctx, ep, address); err != nil {
		return r.fail(ctx, span, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u := strings.TrimRight(ep.BaseURL, "/") + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, u, reader)
	if err != nil {
		return r.fail(ctx, span, r.providerError(ep, address, 0, "invalid request", err))
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ep.Apply(req)

	r.logger.DebugContext(ctx, "provider request",
		"network", ep.Network,
		"method", method,
		"path", path,
		"address", address,
	)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.record(ep, 0, start)
		return r.fail(ctx, span, r.providerError(ep, address, 0, "request failed", err))
	}
	defer resp.Body.Close()
	r.record(ep, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return r.fail(ctx, span, r.providerError(ep, address, resp.StatusCode, strings.TrimSpace(string(snippet)), nil))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return r.fail(ctx, span, r.providerError(ep, address, resp.StatusCode, "malformed response", err))
	}
	return nil
}

// wait blocks on the shared limiter. A context that expires while waiting
// yields a ProviderError.
func (r *Requester) wait(ctx context.Context, ep endpoint.Endpoint, address string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		return r.providerError(ep, address, 0, "rate limiter wait aborted", cause)
	}
	return nil
}

func (r *Requester) providerError(ep endpoint.Endpoint, address string, status int, msg string, err error) *ledger.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) && msg == "request failed" {
		msg = "request timed out"
	}
	return &ledger.ProviderError{
		Provider:   r.provider,
		Network:    ep.Network,
		Address:    address,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}

func (r *Requester) startSpan(ctx context.Context, ep endpoint.Endpoint, op string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, r.provider+" "+op, trace.WithAttributes(
		attribute.String("provider", r.provider),
		attribute.String("network", ep.Network),
	))
}

func (r *Requester) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.logger.WarnContext(ctx, "provider request failed", "error", err)
	return err
}

func (r *Requester) record(ep endpoint.Endpoint, status int, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordProviderRequest(r.provider, ep.Network, status, metrics.Since(start))
	}
}
