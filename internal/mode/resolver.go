package mode

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"ec-dashboard/internal/config"
	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Prober asks the backend which tenant a bare browser session belongs to.
type Prober interface {
	DetectMode(ctx context.Context) (domain.ModeProbe, error)
}

type Settings struct {
	Port          int
	HostPort      int
	CustomerPorts []int
	// Embedded is true when the NUI marker is present.
	Embedded      bool
	StatusTimeout time.Duration
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Port:          cfg.ServerPort,
		HostPort:      cfg.HostPort,
		CustomerPorts: cfg.CustomerPorts,
		Embedded:      cfg.Embedded(),
		StatusTimeout: constants.HostStatusTimeout,
	}
}

// HostStatus is the inbound NUI message that settles in-game privilege.
type HostStatus struct {
	Type   string `json:"type"`
	IsHost bool   `json:"isHost"`
}

// Resolver decides the RuntimeMode once and caches it until Reset.
type Resolver struct {
	settings Settings
	prober   Prober
	clock    clock.Clock
	logger   zerolog.Logger

	mu     sync.Mutex
	cached *domain.RuntimeMode

	pendingMu sync.Mutex
	pending   *statusCell
}

func NewResolver(settings Settings, prober Prober, clk clock.Clock, logger zerolog.Logger) *Resolver {
	if settings.StatusTimeout <= 0 {
		settings.StatusTimeout = constants.HostStatusTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Resolver{
		settings: settings,
		prober:   prober,
		clock:    clk,
		logger:   logger.With().Str("component", "mode").Logger(),
	}
}

// Resolve returns the cached mode, resolving it on first use. Concurrent
// callers wait for the same resolution.
func (r *Resolver) Resolve(ctx context.Context) domain.RuntimeMode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached
	}

	m, path := r.resolve(ctx)
	r.cached = &m
	r.logger.Info().
		Str("mode", string(m.Kind)).
		Bool("web_access", m.WebAccess).
		Str("path", path).
		Int("port", r.settings.Port).
		Msg("runtime mode resolved")
	return m
}

// Current returns the cached mode without resolving.
func (r *Resolver) Current() (domain.RuntimeMode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return domain.RuntimeMode{Kind: domain.ModeUnknown}, false
	}
	return *r.cached, true
}

// Reset drops the cached mode so the next Resolve derives it again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

// Pending reports whether an in-game host status wait is open.
func (r *Resolver) Pending() bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.pending != nil
}

// Deliver hands an inbound NUI message to an open wait. It returns false
// when the message is of another type, no wait is open, or the wait was
// already settled.
func (r *Resolver) Deliver(msg HostStatus) bool {
	if msg.Type != constants.HostStatusMessage {
		return false
	}

	r.pendingMu.Lock()
	cell := r.pending
	r.pendingMu.Unlock()

	if cell == nil || !cell.set(msg.IsHost, true) {
		r.logger.Debug().Bool("is_host", msg.IsHost).Msg("ignoring host status outside of a pending wait")
		return false
	}
	return true
}

func (r *Resolver) resolve(ctx context.Context) (domain.RuntimeMode, string) {
	s := r.settings

	if s.Port == s.HostPort {
		return domain.RuntimeMode{Kind: domain.ModeHostWeb, WebAccess: true}, "host-port"
	}
	if slices.Contains(s.CustomerPorts, s.Port) {
		return domain.RuntimeMode{Kind: domain.ModeCustomerWeb, WebAccess: true}, "customer-port"
	}
	if s.Embedded {
		return r.awaitHostStatus(ctx), "nui"
	}
	return r.probe(ctx), "probe"
}

func (r *Resolver) awaitHostStatus(ctx context.Context) domain.RuntimeMode {
	cell := newStatusCell()

	// the timer starts before the wait is published so Pending implies a running timeout
	timer := r.clock.Timer(r.settings.StatusTimeout)
	defer timer.Stop()

	r.pendingMu.Lock()
	r.pending = cell
	r.pendingMu.Unlock()

	defer func() {
		r.pendingMu.Lock()
		r.pending = nil
		r.pendingMu.Unlock()
	}()

	select {
	case <-cell.done:
	case <-timer.C:
		if cell.set(false, false) {
			r.logger.Warn().Dur("timeout", r.settings.StatusTimeout).Msg("no host status from NUI, defaulting to customer")
		}
	case <-ctx.Done():
		cell.set(false, false)
	}

	isHost, _ := cell.get()
	if isHost {
		return domain.RuntimeMode{Kind: domain.ModeInGameHost}
	}
	return domain.RuntimeMode{Kind: domain.ModeInGameCustomer}
}

func (r *Resolver) probe(ctx context.Context) domain.RuntimeMode {
	if r.prober == nil {
		return domain.RuntimeMode{Kind: domain.ModeCustomerWeb, WebAccess: true}
	}

	res, err := r.prober.DetectMode(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("mode probe failed, defaulting to customer")
		return domain.RuntimeMode{Kind: domain.ModeCustomerWeb, WebAccess: true}
	}

	if (res.IsHost != nil && *res.IsHost) || strings.EqualFold(res.Mode, "host") {
		return domain.RuntimeMode{Kind: domain.ModeHostWeb, WebAccess: true}
	}
	return domain.RuntimeMode{Kind: domain.ModeCustomerWeb, WebAccess: true}
}

// statusCell is written at most once; every later write is a no-op.
type statusCell struct {
	once        sync.Once
	done        chan struct{}
	isHost      bool
	fromMessage bool
}

func newStatusCell() *statusCell {
	return &statusCell{done: make(chan struct{})}
}

func (c *statusCell) set(isHost, fromMessage bool) bool {
	written := false
	c.once.Do(func() {
		c.isHost = isHost
		c.fromMessage = fromMessage
		written = true
		close(c.done)
	})
	return written
}

func (c *statusCell) get() (isHost, fromMessage bool) {
	<-c.done
	return c.isHost, c.fromMessage
}
