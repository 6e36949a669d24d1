package service

import (
	"context"
	"strings"

	"ec-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

type ModerationService struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewModerationService(fetcher Fetcher, logger zerolog.Logger) *ModerationService {
	return &ModerationService{fetcher: fetcher, logger: logger.With().Str("service", "moderation").Logger()}
}

func (s *ModerationService) Bans(ctx context.Context) ([]domain.Ban, error) {
	return fetch[[]domain.Ban](ctx, s.fetcher, epBans, nil)
}

func (s *ModerationService) Warnings(ctx context.Context) ([]domain.Warning, error) {
	return fetch[[]domain.Warning](ctx, s.fetcher, epWarnings, nil)
}

// Ban bans a connected player or an offline identifier. A zero duration is permanent.
func (s *ModerationService) Ban(ctx context.Context, req domain.BanRequest) error {
	req.Reason = strings.TrimSpace(req.Reason)
	req.Identifier = strings.TrimSpace(req.Identifier)
	switch {
	case req.PlayerID <= 0 && req.Identifier == "":
		return invalid("ban needs a player id or identifier")
	case req.Reason == "":
		return invalid("ban reason is required")
	case req.DurationHours < 0:
		return invalid("ban duration %d", req.DurationHours)
	}

	s.logger.Info().
		Int("player_id", req.PlayerID).
		Str("identifier", req.Identifier).
		Int("duration_hours", req.DurationHours).
		Msg("banning player")
	return exec(ctx, s.fetcher, epBan, req, s.logger)
}

func (s *ModerationService) Unban(ctx context.Context, banID string) error {
	banID = strings.TrimSpace(banID)
	if banID == "" {
		return invalid("ban id is required")
	}
	return exec(ctx, s.fetcher, epUnban(banID), map[string]string{"banId": banID}, s.logger)
}

func (s *ModerationService) Warn(ctx context.Context, req domain.WarnRequest) error {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.PlayerID <= 0 {
		return invalid("player id %d", req.PlayerID)
	}
	if req.Reason == "" {
		return invalid("warning reason is required")
	}
	return exec(ctx, s.fetcher, epWarn, req, s.logger)
}
