package fx

import (
	"ec-dashboard/internal/access"
	"ec-dashboard/internal/api"
	"ec-dashboard/internal/config"
	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/database"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/logger"
	"ec-dashboard/internal/mode"
	"ec-dashboard/internal/poller"
	"ec-dashboard/internal/repository"
	"ec-dashboard/internal/server"
	"ec-dashboard/internal/service"
	"ec-dashboard/internal/session"
	"ec-dashboard/internal/telemetry"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"
)

func ProvideConfig() (*config.Config, error) {
	return config.Load(logger.Bootstrap())
}

// ProvideLogger is the process logger with error interception installed.
func ProvideLogger(raw logger.Raw, pipeline *telemetry.Pipeline) zerolog.Logger {
	return logger.New(raw, pipeline)
}

func ProvideClock() clock.Clock {
	return clock.New()
}

// ProvideHTTPClient is the fasthttp client shared by both transports, wrapped
// so failed calls are reported before the caller sees them.
func ProvideHTTPClient(pipeline *telemetry.Pipeline) telemetry.Doer {
	return pipeline.Intercept(&fasthttp.Client{
		Name:            "ec-dashboard",
		ReadTimeout:     constants.ExternalAPITimeout,
		WriteTimeout:    constants.ExternalAPITimeout,
		MaxConnsPerHost: 16,
	})
}

func ProvidePolicy(log zerolog.Logger) (*access.Policy, error) {
	return access.NewPolicy(access.DefaultRules, log)
}

// ProvideResolver probes the backend without credentials; the token is only
// read once the mode is known.
func ProvideResolver(cfg *config.Config, doer telemetry.Doer, metrics *telemetry.Metrics, clk clock.Clock, log zerolog.Logger) *mode.Resolver {
	prober := api.NewGateway(doer, domain.TransportConfig{BaseURL: cfg.BackendURL}, cfg.RequestTimeout, metrics, log)
	return mode.NewResolver(mode.SettingsFrom(cfg), prober, clk, log)
}

func ProvideSession(
	cfg *config.Config,
	resolver *mode.Resolver,
	store *repository.StateRepository,
	policy *access.Policy,
	doer telemetry.Doer,
	pipeline *telemetry.Pipeline,
	metrics *telemetry.Metrics,
	log zerolog.Logger,
) *session.Session {
	return session.New(session.Deps{
		Config:    cfg,
		Resolver:  resolver,
		Store:     store,
		Policy:    policy,
		Doer:      doer,
		Telemetry: pipeline,
		Metrics:   metrics,
	}, log)
}

func ProvideFetcher(s *session.Session) service.Fetcher { return s }

func ProvideSessionControl(s *session.Session) server.SessionControl { return s }

func ProvideRegistry(clk clock.Clock, pipeline *telemetry.Pipeline, metrics *telemetry.Metrics, log zerolog.Logger) *poller.Registry {
	return poller.NewRegistry(poller.Options{
		Clock: clk,
		OnPanic: func(key string, recovered any) {
			pipeline.ReportPanic(domain.ErrorTypeGlobalError, "poll:"+key, recovered)
		},
		OnRun: metrics.PollRun,
	}, log)
}

// Core is everything up to the session; the CLI runs on it alone.
var Core = fx.Options(
	fx.Provide(ProvideConfig),
	fx.Provide(logger.NewRaw),
	fx.Provide(prometheus.NewRegistry),
	fx.Provide(telemetry.NewMetrics),
	fx.Provide(telemetry.NewPipeline),
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideClock),
	fx.Provide(ProvideHTTPClient),
	fx.Provide(database.New),
	fx.Provide(repository.NewStateRepository),
	fx.Provide(ProvidePolicy),
	fx.Provide(ProvideResolver),
	fx.Provide(ProvideSession),
	fx.Provide(ProvideRegistry),
)

var Module = fx.Options(
	Core,
	fx.Provide(ProvideFetcher),
	fx.Provide(ProvideSessionControl),
	// svc
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewModerationService),
	fx.Provide(service.NewWhitelistService),
	fx.Provide(service.NewServerDataService),
	fx.Provide(service.NewOverviewService),
	// server
	fx.Provide(server.NewDashboardServer),
)
