package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/logger"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Doer is the fasthttp client extension point shared by every transport.
// *fasthttp.Client satisfies it.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Pipeline captures faults that callers would otherwise only log and
// forwards them to the NUI host's error sink. Delivery is best effort:
// nothing here returns an error or panics into the caller.
type Pipeline struct {
	raw     zerolog.Logger
	doer    Doer
	metrics *Metrics

	installOnce sync.Once
	installed   zerolog.Logger

	sink     atomic.Pointer[string]
	inflight sync.WaitGroup
}

func NewPipeline(raw logger.Raw, metrics *Metrics) *Pipeline {
	return NewPipelineWithDoer(raw.Logger, &fasthttp.Client{
		ReadTimeout:  constants.TelemetryTimeout,
		WriteTimeout: constants.TelemetryTimeout,
	}, metrics)
}

func NewPipelineWithDoer(raw zerolog.Logger, doer Doer, metrics *Metrics) *Pipeline {
	return &Pipeline{
		raw:     raw.With().Str("component", "telemetry").Logger(),
		doer:    doer,
		metrics: metrics,
	}
}

// Install points base at a writer that forwards every record to out and then
// reports the warn and error ones. Only the first call takes effect; later
// calls return the logger it produced.
func (p *Pipeline) Install(base zerolog.Logger, out io.Writer) zerolog.Logger {
	p.installOnce.Do(func() {
		if out == nil {
			out = io.Discard
		}
		p.installed = base.Output(&reportWriter{out: out, p: p})
	})
	return p.installed
}

// SetSink enables delivery to bridgeURL; an empty URL disables it and
// reports are only logged locally.
func (p *Pipeline) SetSink(bridgeURL string) {
	bridgeURL = strings.TrimRight(bridgeURL, "/")
	p.sink.Store(&bridgeURL)
}

func (p *Pipeline) sinkURL() string {
	if s := p.sink.Load(); s != nil {
		return *s
	}
	return ""
}

func (p *Pipeline) Report(r domain.ErrorReport) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	p.raw.Debug().Str("type", string(r.Type)).Str("message", r.Message).Msg("fault intercepted")

	body := map[string]any{
		"type":      r.Type,
		"message":   r.Message,
		"details":   r.Details,
		"timestamp": r.Timestamp.UnixMilli(),
	}
	p.deliver(string(r.Type), constants.TelemetryErrorEvent, body)
}

// ReportRender forwards a fault raised while serving a dashboard view.
func (p *Pipeline) ReportRender(err string, info map[string]any) {
	p.raw.Debug().Str("error", err).Msg("render fault intercepted")

	body := map[string]any{
		"error":     err,
		"errorInfo": info,
		"timestamp": time.Now().UnixMilli(),
	}
	p.deliver(string(domain.ErrorTypeRenderError), constants.TelemetryRenderEvent, body)
}

// ReportPanic records a recovered panic value with the current stack.
func (p *Pipeline) ReportPanic(errType domain.ErrorType, source string, recovered any) {
	p.Report(domain.ErrorReport{
		Type:    errType,
		Message: fmt.Sprint(recovered),
		Details: map[string]any{
			"kind":   string(domain.KindUnhandledRuntimeFault),
			"source": source,
			"stack":  string(debug.Stack()),
		},
	})
}

// Go runs fn on a new goroutine and reports a panic instead of crashing.
func (p *Pipeline) Go(source string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.ReportPanic(domain.ErrorTypeUnhandledRejection, source, r)
			}
		}()
		fn()
	}()
}

// Flush waits for in-flight deliveries or ctx expiry.
func (p *Pipeline) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) deliver(reportType, event string, body map[string]any) {
	sink := p.sinkURL()
	if sink == "" {
		p.metrics.Report(reportType, false)
		return
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				p.raw.Debug().Interface("panic", r).Msg("error report delivery panicked")
			}
		}()

		payload, err := json.Marshal(body)
		if err != nil {
			p.raw.Debug().Err(err).Msg("failed to encode error report")
			return
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(sink + "/" + event)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)

		err = p.doer.DoDeadline(req, resp, time.Now().Add(constants.TelemetryTimeout))
		if err != nil {
			p.raw.Debug().Err(err).Str("event", event).Msg("error report dropped")
			p.metrics.Report(reportType, false)
			return
		}
		p.metrics.Report(reportType, resp.StatusCode() < 300)
	}()
}

type reportWriter struct {
	out io.Writer
	p   *Pipeline
}

func (w *reportWriter) Write(b []byte) (int, error) {
	return w.out.Write(b)
}

// WriteLevel writes to the original sink before anything is reported.
func (w *reportWriter) WriteLevel(level zerolog.Level, b []byte) (int, error) {
	var (
		n   int
		err error
	)
	if lw, ok := w.out.(zerolog.LevelWriter); ok {
		n, err = lw.WriteLevel(level, b)
	} else {
		n, err = w.out.Write(b)
	}
	w.p.reportRecord(level, b)
	return n, err
}

// reportRecord forwards a warn or error record with all of its fields as
// details. The buffer is only read before returning.
func (p *Pipeline) reportRecord(level zerolog.Level, line []byte) {
	var t domain.ErrorType
	switch {
	case level == zerolog.WarnLevel:
		t = domain.ErrorTypeConsoleWarn
	case level >= zerolog.ErrorLevel && level <= zerolog.PanicLevel:
		t = domain.ErrorTypeConsoleError
	default:
		return
	}

	record := map[string]any{}
	if err := json.Unmarshal(line, &record); err != nil {
		record = map[string]any{"raw": strings.TrimSpace(string(line))}
	}
	record[zerolog.LevelFieldName] = level.String()

	msg, _ := record[zerolog.MessageFieldName].(string)
	if msg == "" {
		msg, _ = record[zerolog.ErrorFieldName].(string)
	}

	p.Report(domain.ErrorReport{
		Type:    t,
		Message: msg,
		Details: record,
	})
}
