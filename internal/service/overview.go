package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/poller"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Poller is the part of the poll registry the overview registers with.
type Poller interface {
	Start(key string, cb poller.Callback, interval time.Duration)
	Stop(key string)
}

// OverviewService keeps the latest dashboard summary. The player count is
// required; every other section degrades into an entry in Errors.
type OverviewService struct {
	fetcher Fetcher
	data    *ServerDataService
	mod     *ModerationService
	players *PlayerService
	clock   clock.Clock
	logger  zerolog.Logger

	mu       sync.RWMutex
	snapshot *domain.Overview
}

func NewOverviewService(fetcher Fetcher, players *PlayerService, mod *ModerationService, data *ServerDataService, clk clock.Clock, logger zerolog.Logger) *OverviewService {
	if clk == nil {
		clk = clock.New()
	}
	return &OverviewService{
		fetcher: fetcher,
		players: players,
		mod:     mod,
		data:    data,
		clock:   clk,
		logger:  logger.With().Str("service", "overview").Logger(),
	}
}

func (s *OverviewService) Refresh(ctx context.Context) (domain.Overview, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		overview domain.Overview
	)
	soft := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		overview.Errors = append(overview.Errors, fmt.Sprintf("%s: %v", section, err))
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		players, err := s.players.List(gCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch players: %w", err)
		}
		overview.PlayersOnline = len(players)
		return nil
	})

	g.Go(func() error {
		bans, err := s.mod.Bans(gCtx)
		if err != nil {
			soft("bans", err)
			return nil
		}
		overview.ActiveBans = len(bans)
		return nil
	})

	g.Go(func() error {
		detections, err := s.data.Detections(gCtx)
		if err != nil {
			soft("detections", err)
			return nil
		}
		overview.Detections = len(detections)
		return nil
	})

	// resources live under the host-only API
	if s.fetcher.Mode().Kind.IsHost() {
		g.Go(func() error {
			resources, err := s.data.Resources(gCtx)
			if err != nil {
				soft("resources", err)
				return nil
			}
			overview.Resources = len(resources)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh overview")
		return domain.Overview{}, err
	}

	overview.UpdatedAt = s.clock.Now().UTC()

	s.mu.Lock()
	s.snapshot = &overview
	s.mu.Unlock()

	s.logger.Debug().
		Int("players_online", overview.PlayersOnline).
		Int("soft_errors", len(overview.Errors)).
		Msg("overview refreshed")
	return overview, nil
}

// Snapshot returns the last successful refresh.
func (s *OverviewService) Snapshot() (domain.Overview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return domain.Overview{}, false
	}
	return *s.snapshot, true
}

// StartPolling refreshes the overview now and then every interval.
func (s *OverviewService) StartPolling(p Poller, interval time.Duration) {
	p.Start(constants.OverviewPollKey, func(ctx context.Context) {
		s.Refresh(ctx) //nolint:errcheck
	}, interval)
}

func (s *OverviewService) StopPolling(p Poller) {
	p.Stop(constants.OverviewPollKey)
}
