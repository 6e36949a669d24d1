package service

import (
	"context"
	"fmt"

	"ec-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

// ServerDataService covers the read-only game server pages.
type ServerDataService struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewServerDataService(fetcher Fetcher, logger zerolog.Logger) *ServerDataService {
	return &ServerDataService{fetcher: fetcher, logger: logger.With().Str("service", "server_data").Logger()}
}

func (s *ServerDataService) Detections(ctx context.Context) ([]domain.Detection, error) {
	return fetch[[]domain.Detection](ctx, s.fetcher, epDetections, nil)
}

func (s *ServerDataService) Jobs(ctx context.Context) ([]domain.Job, error) {
	return fetch[[]domain.Job](ctx, s.fetcher, epJobs, nil)
}

func (s *ServerDataService) Gangs(ctx context.Context) ([]domain.Gang, error) {
	return fetch[[]domain.Gang](ctx, s.fetcher, epGangs, nil)
}

func (s *ServerDataService) Housing(ctx context.Context) ([]domain.House, error) {
	return fetch[[]domain.House](ctx, s.fetcher, epHousing, nil)
}

func (s *ServerDataService) Resources(ctx context.Context) ([]domain.Resource, error) {
	return fetch[[]domain.Resource](ctx, s.fetcher, epResources, nil)
}

func (s *ServerDataService) Metrics(ctx context.Context) (domain.SystemMetrics, error) {
	return fetch[domain.SystemMetrics](ctx, s.fetcher, epMetrics, nil)
}

func (s *ServerDataService) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := fetch[domain.Settings](ctx, s.fetcher, epSettings, nil)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = domain.Settings{}
	}
	return settings, nil
}

func (s *ServerDataService) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	if len(settings) == 0 {
		return invalid("no settings to update")
	}
	for k := range settings {
		if k == "" {
			return invalid("setting with empty name")
		}
	}
	s.logger.Info().Int("keys", len(settings)).Msg("updating settings")
	if err := exec(ctx, s.fetcher, epSettingsU, settings, s.logger); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
