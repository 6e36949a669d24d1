package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"ec-dashboard/internal/constants"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type Callback func(ctx context.Context)

type Options struct {
	Clock clock.Clock
	// OnPanic is called with the recovered value when a callback panics.
	OnPanic func(key string, recovered any)
	// OnRun is called after every callback invocation.
	OnRun func(key string)
}

// Registry runs at most one recurring callback per key.
type Registry struct {
	clock   clock.Clock
	onPanic func(string, any)
	onRun   func(string)
	logger  zerolog.Logger

	mu    sync.Mutex
	polls map[string]*poll
}

type poll struct {
	key      string
	interval time.Duration
	ticker   *clock.Ticker
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRegistry(opts Options, logger zerolog.Logger) *Registry {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		clock:   clk,
		onPanic: opts.OnPanic,
		onRun:   opts.OnRun,
		logger:  logger.With().Str("component", "poller").Logger(),
		polls:   make(map[string]*poll),
	}
}

// Start replaces any poll registered under key, runs cb once on the
// calling goroutine and then every interval until the poll is stopped.
// A non-positive interval uses the default of 15s.
func (r *Registry) Start(key string, cb Callback, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &poll{
		key:      key,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.polls[key]; ok {
		prev.stop()
		r.logger.Debug().Str("key", key).Msg("replacing existing poll")
	}
	r.polls[key] = p
	r.mu.Unlock()

	r.run(ctx, key, cb)

	r.mu.Lock()
	defer r.mu.Unlock()
	// cb may have stopped or replaced this poll
	if r.polls[key] != p {
		return
	}
	p.ticker = r.clock.Ticker(interval)
	go r.loop(ctx, p, cb)

	r.logger.Debug().Str("key", key).Dur("interval", interval).Msg("poll started")
}

func (r *Registry) Stop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.polls[key]; ok {
		p.stop()
		delete(r.polls, key)
		r.logger.Debug().Str("key", key).Msg("poll stopped")
	}
}

// StopAll is the teardown hook; no timer survives it.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.polls {
		p.stop()
		delete(r.polls, key)
	}
	r.logger.Debug().Msg("all polls stopped")
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.polls)
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.polls))
	for k := range r.polls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) loop(ctx context.Context, p *poll, cb Callback) {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			select {
			case <-p.done:
				return
			default:
			}
			r.run(ctx, p.key, cb)
		}
	}
}

func (r *Registry) run(ctx context.Context, key string, cb Callback) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.onPanic != nil {
				r.onPanic(key, rec)
				return
			}
			r.logger.Error().Str("key", key).Interface("panic", rec).Msg("poll callback panicked")
		}
	}()
	cb(ctx)
	if r.onRun != nil {
		r.onRun(key)
	}
}

// stop must be called with the registry lock held.
func (p *poll) stop() {
	select {
	case <-p.done:
		return
	default:
	}
	close(p.done)
	p.cancel()
	if p.ticker != nil {
		p.ticker.Stop()
	}
}
