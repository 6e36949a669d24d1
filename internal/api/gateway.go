package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ec-dashboard/internal/api")

const (
	msgUnauthorized = "Unauthorized - Please log in"
	msgForbidden    = "Access denied - Insufficient permissions"
	msgRateLimited  = "Rate limited - Please wait before trying again"
)

// Gateway is the web transport: same-origin JSON calls against the
// dashboard backend. It never returns a Go error; every outcome is an
// APIResponse the caller checks.
type Gateway struct {
	doer    telemetry.Doer
	baseURL string
	token   string
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

type CallOptions struct {
	Method string
	// Body is sent as JSON; json.RawMessage and []byte are sent verbatim.
	Body any
}

func NewGateway(doer telemetry.Doer, tc domain.TransportConfig, timeout time.Duration, metrics *telemetry.Metrics, logger zerolog.Logger) *Gateway {
	return &Gateway{
		doer:    doer,
		baseURL: tc.BaseURL,
		token:   tc.AuthToken,
		timeout: timeout,
		metrics: metrics,
		logger:  logger.With().Str("transport", "web").Logger(),
	}
}

func (g *Gateway) Authenticated() bool {
	return g.token != ""
}

func (g *Gateway) Call(ctx context.Context, endpoint string, opts CallOptions) domain.APIResponse[json.RawMessage] {
	method := opts.Method
	if method == "" {
		method = fasthttp.MethodGet
	}

	ctx, span := tracer.Start(ctx, "gateway.call", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("ec.endpoint", endpoint),
	))
	defer span.End()

	res := g.do(ctx, method, endpoint, opts.Body, span)
	if res.Success {
		g.metrics.Request("web", "ok")
	} else {
		g.metrics.Request("web", string(res.Kind))
		span.SetStatus(codes.Error, res.Error)
		g.logger.Debug().
			Str("endpoint", endpoint).
			Str("method", method).
			Str("kind", string(res.Kind)).
			Str("error", res.Error).
			Msg("backend call failed")
	}
	return res
}

func (g *Gateway) do(ctx context.Context, method, endpoint string, body any, span trace.Span) domain.APIResponse[json.RawMessage] {
	if err := ctx.Err(); err != nil {
		return domain.Fail[json.RawMessage](domain.KindNetworkFailure, err.Error())
	}

	payload, err := encodeBody(body)
	if err != nil {
		return domain.Fail[json.RawMessage](domain.KindServerError, fmt.Sprintf("failed to encode request: %v", err))
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.baseURL + endpoint)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if g.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+g.token)
	}
	if payload != nil {
		req.SetBodyRaw(payload)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(g.timeout)
	}
	if err := g.doer.DoDeadline(req, resp, deadline); err != nil {
		return domain.Fail[json.RawMessage](domain.KindNetworkFailure, err.Error())
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status < 200 || status >= 300 {
		kind, msg := statusFailure(status, resp.Body())
		return domain.Fail[json.RawMessage](kind, msg)
	}

	return normalize(resp.Body())
}

// Call performs g.Call and decodes the data into T.
func Call[T any](ctx context.Context, g *Gateway, endpoint string, opts CallOptions) domain.APIResponse[T] {
	raw := g.Call(ctx, endpoint, opts)
	return Decode[T](raw)
}

// Decode converts a raw envelope into a typed one.
func Decode[T any](raw domain.APIResponse[json.RawMessage]) domain.APIResponse[T] {
	if !raw.Success {
		return domain.Fail[T](raw.Kind, raw.Error)
	}
	var v T
	if raw.Data != nil && len(*raw.Data) > 0 {
		if err := json.Unmarshal(*raw.Data, &v); err != nil {
			return domain.Fail[T](domain.KindServerError, fmt.Sprintf("invalid response: %v", err))
		}
	}
	return domain.Ok(v)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// normalize folds the backend's two response shapes into one envelope: a
// body with a boolean "success" is already an envelope, anything else is
// the data itself.
func normalize(body []byte) domain.APIResponse[json.RawMessage] {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return domain.Ok(json.RawMessage("null"))
	}
	if !json.Valid(body) {
		return domain.Fail[json.RawMessage](domain.KindServerError, "invalid JSON response")
	}

	data := json.RawMessage(append([]byte(nil), body...))

	var env envelope
	if body[0] != '{' || json.Unmarshal(body, &env) != nil || env.Success == nil {
		return domain.Ok(data)
	}
	if *env.Success {
		if len(env.Data) == 0 {
			return domain.Ok(json.RawMessage("null"))
		}
		return domain.Ok(env.Data)
	}
	msg := firstNonEmpty(env.Error, env.Message, "Request failed")
	return domain.Fail[json.RawMessage](domain.KindServerError, msg)
}

func statusFailure(status int, body []byte) (domain.ErrorKind, string) {
	switch status {
	case fasthttp.StatusUnauthorized:
		return domain.KindAuthFailure, msgUnauthorized
	case fasthttp.StatusForbidden:
		return domain.KindAuthFailure, msgForbidden
	case fasthttp.StatusTooManyRequests:
		return domain.KindRateLimited, msgRateLimited
	}
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if msg := firstNonEmpty(env.Message, env.Error); msg != "" {
			return domain.KindServerError, msg
		}
	}
	return domain.KindServerError, fmt.Sprintf("HTTP %d", status)
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DetectMode asks the backend which tenant this dashboard serves.
func (g *Gateway) DetectMode(ctx context.Context) (domain.ModeProbe, error) {
	res := Call[domain.ModeProbe](ctx, g, constants.ModeDetectEndpoint, CallOptions{})
	if err := res.Err(); err != nil {
		return domain.ModeProbe{}, err
	}
	return *res.Data, nil
}
