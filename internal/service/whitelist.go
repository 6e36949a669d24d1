package service

import (
	"context"
	"strings"

	"ec-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

type WhitelistService struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewWhitelistService(fetcher Fetcher, logger zerolog.Logger) *WhitelistService {
	return &WhitelistService{fetcher: fetcher, logger: logger.With().Str("service", "whitelist").Logger()}
}

func (s *WhitelistService) List(ctx context.Context) ([]domain.WhitelistEntry, error) {
	return fetch[[]domain.WhitelistEntry](ctx, s.fetcher, epWhitelist, nil)
}

func (s *WhitelistService) Add(ctx context.Context, identifier, name string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return invalid("identifier is required")
	}
	return exec(ctx, s.fetcher, epWhitelistA, map[string]string{"identifier": identifier, "name": strings.TrimSpace(name)}, s.logger)
}

func (s *WhitelistService) Remove(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return invalid("identifier is required")
	}
	return exec(ctx, s.fetcher, epWhitelistRemove(identifier), map[string]string{"identifier": identifier}, s.logger)
}
