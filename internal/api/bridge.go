package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/telemetry"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const CallIDHeader = "X-EC-Call-ID"

// FaultReporter receives bridge failures before they are returned.
type FaultReporter interface {
	Report(r domain.ErrorReport)
}

// Bridge is the NUI transport: each call is a JSON POST to the parent
// resource's callback named by the event. Unlike Gateway, failures are
// returned as errors, after being reported.
type Bridge struct {
	doer     telemetry.Doer
	baseURL  string
	timeout  time.Duration
	reporter FaultReporter
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

func NewBridge(doer telemetry.Doer, baseURL string, timeout time.Duration, reporter FaultReporter, metrics *telemetry.Metrics, logger zerolog.Logger) *Bridge {
	return &Bridge{
		doer:     doer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		reporter: reporter,
		metrics:  metrics,
		logger:   logger.With().Str("transport", "nui").Logger(),
	}
}

func (b *Bridge) Available() bool {
	return b != nil && b.baseURL != ""
}

func (b *Bridge) Invoke(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "bridge.invoke", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("ec.event", event),
	))
	defer span.End()

	callID, err := gonanoid.New()
	if err != nil {
		callID = fmt.Sprintf("%d", time.Now().UnixNano())
	}

	data, err := b.invoke(ctx, event, callID, payload)
	if err != nil {
		b.metrics.Request("nui", "error")
		span.SetStatus(codes.Error, err.Error())
		b.report(event, callID, payload, err)
		return nil, err
	}
	b.metrics.Request("nui", "ok")
	return data, nil
}

func (b *Bridge) invoke(ctx context.Context, event, callID string, payload any) (json.RawMessage, error) {
	if !b.Available() {
		return nil, domain.ErrBridgeUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := encodeBody(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	if body == nil {
		body = []byte("{}")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.baseURL + "/" + strings.TrimLeft(event, "/"))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json; charset=UTF-8")
	req.Header.Set(CallIDHeader, callID)
	req.SetBodyRaw(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(b.timeout)
	}
	if err := b.doer.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		kind, msg := statusFailure(status, resp.Body())
		return nil, &domain.CallError{Kind: kind, Message: msg}
	}

	respBody := resp.Body()
	if len(respBody) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(respBody) {
		return nil, errors.New("invalid JSON from NUI callback " + event)
	}
	return append(json.RawMessage(nil), respBody...), nil
}

func (b *Bridge) report(event, callID string, payload any, err error) {
	b.logger.Debug().Err(err).Str("event", event).Str("call_id", callID).Msg("NUI callback failed")
	if b.reporter == nil {
		return
	}

	encoded, _ := json.Marshal(payload)
	b.reporter.Report(domain.ErrorReport{
		Type:    domain.ErrorTypeNUICallbackError,
		Message: err.Error(),
		Details: map[string]any{
			"event":   event,
			"callId":  callID,
			"payload": string(encoded),
			"stack":   string(debug.Stack()),
		},
	})
}
