package telemetry

import (
	"time"

	"ec-dashboard/internal/domain"

	"github.com/valyala/fasthttp"
)

type interceptedDoer struct {
	next Doer
	p    *Pipeline
}

// Intercept wraps next so every exchange that fails at the network level
// or returns a non-2xx status is reported. The caller still receives
// exactly what next produced.
func (p *Pipeline) Intercept(next Doer) Doer {
	return &interceptedDoer{next: next, p: p}
}

func (d *interceptedDoer) DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error {
	start := time.Now()
	err := d.next.DoDeadline(req, resp, deadline)

	url := string(req.URI().FullURI())
	method := string(req.Header.Method())

	if err != nil {
		d.p.Report(domain.ErrorReport{
			Type:    domain.ErrorTypeNetworkError,
			Message: err.Error(),
			Details: map[string]any{
				"url":        url,
				"method":     method,
				"durationMs": time.Since(start).Milliseconds(),
			},
		})
		return err
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		d.p.Report(domain.ErrorReport{
			Type:    domain.ErrorTypeFetchError,
			Message: fasthttp.StatusMessage(status),
			Details: map[string]any{
				"url":        url,
				"method":     method,
				"status":     status,
				"durationMs": time.Since(start).Milliseconds(),
			},
		})
	}
	return nil
}
