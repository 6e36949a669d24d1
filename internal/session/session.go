package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ec-dashboard/internal/api"
	"ec-dashboard/internal/config"
	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

var ErrNotStarted = errors.New("session not started")

// Endpoint names one backend operation on both transports.
type Endpoint struct {
	Method string
	Path   string
	// Event is the NUI callback name; empty means the endpoint is web only.
	Event string
}

type Resolver interface {
	Resolve(ctx context.Context) domain.RuntimeMode
	Reset()
}

type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	StoredMode(ctx context.Context) (domain.ModeKind, error)
	SetStoredMode(ctx context.Context, kind domain.ModeKind) error
}

type Policy interface {
	Check(mode domain.ModeKind, method, path string) error
}

// Telemetry is the part of the error pipeline a session drives.
type Telemetry interface {
	api.FaultReporter
	SetSink(bridgeURL string)
}

// Session owns everything the dashboard derives at startup: the resolved
// mode, the auth token and the two transports built from them.
type Session struct {
	cfg       *config.Config
	resolver  Resolver
	store     Store
	policy    Policy
	doer      telemetry.Doer
	telemetry Telemetry
	metrics   *telemetry.Metrics
	logger    zerolog.Logger

	mu      sync.RWMutex
	started bool
	mode    domain.RuntimeMode
	gateway *api.Gateway
	bridge  *api.Bridge
}

type Deps struct {
	Config    *config.Config
	Resolver  Resolver
	Store     Store
	Policy    Policy
	Doer      telemetry.Doer
	Telemetry Telemetry
	Metrics   *telemetry.Metrics
}

func New(deps Deps, logger zerolog.Logger) *Session {
	return &Session{
		cfg:       deps.Config,
		resolver:  deps.Resolver,
		store:     deps.Store,
		policy:    deps.Policy,
		doer:      deps.Doer,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

func (s *Session) Start(ctx context.Context) error {
	m := s.resolver.Resolve(ctx)

	stored, err := s.store.StoredMode(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read stored mode, using resolved mode")
	}
	m = applyStoredMode(m, stored)

	token, err := s.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read auth token: %w", err)
	}

	bridgeURL := ""
	if m.Kind.InGame() {
		bridgeURL = s.cfg.BridgeURL()
	}

	gateway := api.NewGateway(s.doer, domain.TransportConfig{
		BaseURL:        s.cfg.BackendURL,
		AuthToken:      token,
		BridgeResource: s.cfg.ParentResource,
	}, s.cfg.RequestTimeout, s.metrics, s.logger)
	bridge := api.NewBridge(s.doer, bridgeURL, constants.BridgeTimeout, s.telemetry, s.metrics, s.logger)

	s.mu.Lock()
	s.mode = m
	s.gateway = gateway
	s.bridge = bridge
	s.started = true
	s.mu.Unlock()

	if s.telemetry != nil {
		s.telemetry.SetSink(bridgeURL)
	}

	s.logger.Info().
		Str("mode", string(m.Kind)).
		Bool("authenticated", token != "").
		Bool("bridge", bridge.Available()).
		Msg("session started")
	return nil
}

// applyStoredMode lets a stored customer preference downgrade a host mode.
// It never elevates.
func applyStoredMode(m domain.RuntimeMode, stored domain.ModeKind) domain.RuntimeMode {
	if stored == domain.ModeUnknown || stored.IsHost() || !m.Kind.IsHost() {
		return m
	}
	m.Kind = m.Kind.Customer()
	return m
}

// Reload drops everything derived at startup and derives it again.
func (s *Session) Reload(ctx context.Context) error {
	s.resolver.Reset()
	return s.Start(ctx)
}

func (s *Session) Mode() domain.RuntimeMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return domain.RuntimeMode{Kind: domain.ModeUnknown}
	}
	return s.mode
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway != nil && s.gateway.Authenticated()
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	gateway, _, _, err := s.transports()
	if err != nil {
		return err
	}

	res := api.Call[loginResponse](ctx, gateway, constants.LoginEndpoint, api.CallOptions{
		Method: fasthttp.MethodPost,
		Body:   map[string]string{"username": username, "password": password},
	})
	if err := res.Err(); err != nil {
		return err
	}
	if res.Data.Token == "" {
		return &domain.CallError{Kind: domain.KindAuthFailure, Message: "login response carried no token"}
	}

	if err := s.store.SetToken(ctx, res.Data.Token); err != nil {
		return err
	}
	s.logger.Info().Str("username", username).Msg("logged in")
	return s.Reload(ctx)
}

func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.SetToken(ctx, ""); err != nil {
		return err
	}
	s.logger.Info().Msg("logged out")
	return s.Reload(ctx)
}

// SetMode persists a mode preference and reloads. ModeUnknown clears it.
func (s *Session) SetMode(ctx context.Context, kind domain.ModeKind) error {
	if err := s.store.SetStoredMode(ctx, kind); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// Fetch checks the policy and then calls ep on the transport matching the
// current mode. Web envelope failures come back as *domain.CallError; bridge
// failures are returned as the bridge produced them.
func (s *Session) Fetch(ctx context.Context, ep Endpoint, body any) (json.RawMessage, error) {
	gateway, bridge, mode, err := s.transports()
	if err != nil {
		return nil, err
	}
	method, err := s.authorize(mode, ep)
	if err != nil {
		return nil, err
	}

	if mode.Kind.InGame() && ep.Event != "" {
		return bridge.Invoke(ctx, ep.Event, body)
	}

	res := s.call(ctx, gateway, method, ep.Path, body)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return *res.Data, nil
}

// Call sends ep over the web transport and returns the normalized envelope.
// It is subject to the same policy check as Fetch; a denial is returned as
// the error and as a failed envelope.
func (s *Session) Call(ctx context.Context, ep Endpoint, body any) (domain.APIResponse[json.RawMessage], error) {
	gateway, _, mode, err := s.transports()
	if err != nil {
		return failed(err), err
	}
	method, err := s.authorize(mode, ep)
	if err != nil {
		return failed(err), err
	}
	return s.call(ctx, gateway, method, ep.Path, body), nil
}

func failed(err error) domain.APIResponse[json.RawMessage] {
	var callErr *domain.CallError
	if errors.As(err, &callErr) {
		return domain.Fail[json.RawMessage](callErr.Kind, callErr.Message)
	}
	return domain.Fail[json.RawMessage](domain.KindNone, err.Error())
}

func (s *Session) authorize(mode domain.RuntimeMode, ep Endpoint) (string, error) {
	method := ep.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	if err := s.policy.Check(mode.Kind, method, ep.Path); err != nil {
		return "", err
	}
	return method, nil
}

func (s *Session) call(ctx context.Context, gateway *api.Gateway, method, path string, body any) domain.APIResponse[json.RawMessage] {
	// web reads carry their arguments in the path
	if method == fasthttp.MethodGet {
		body = nil
	}
	return gateway.Call(ctx, path, api.CallOptions{Method: method, Body: body})
}

// Invoke posts ep.Event to the bridge after checking ep against the policy,
// whatever the current mode.
func (s *Session) Invoke(ctx context.Context, ep Endpoint, body any) (json.RawMessage, error) {
	_, bridge, mode, err := s.transports()
	if err != nil {
		return nil, err
	}
	if ep.Event == "" {
		return nil, fmt.Errorf("endpoint %s has no NUI event", ep.Path)
	}
	if _, err := s.authorize(mode, ep); err != nil {
		return nil, err
	}
	return bridge.Invoke(ctx, ep.Event, body)
}

func (s *Session) transports() (*api.Gateway, *api.Bridge, domain.RuntimeMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, domain.RuntimeMode{}, ErrNotStarted
	}
	return s.gateway, s.bridge, s.mode, nil
}
