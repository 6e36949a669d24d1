package service

import (
	"context"
	"strings"

	"ec-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewPlayerService(fetcher Fetcher, logger zerolog.Logger) *PlayerService {
	return &PlayerService{fetcher: fetcher, logger: logger.With().Str("service", "players").Logger()}
}

func (s *PlayerService) List(ctx context.Context) ([]domain.Player, error) {
	return fetch[[]domain.Player](ctx, s.fetcher, epPlayers, nil)
}

func (s *PlayerService) Get(ctx context.Context, id int) (*domain.Player, error) {
	if id <= 0 {
		return nil, invalid("player id %d", id)
	}
	p, err := fetch[domain.Player](ctx, s.fetcher, epPlayer(id), map[string]int{"id": id})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerService) Inventory(ctx context.Context, id int) ([]domain.InventoryItem, error) {
	if id <= 0 {
		return nil, invalid("player id %d", id)
	}
	return fetch[[]domain.InventoryItem](ctx, s.fetcher, epInventory(id), map[string]int{"id": id})
}

func (s *PlayerService) Kick(ctx context.Context, id int, reason string) error {
	if id <= 0 {
		return invalid("player id %d", id)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Kicked by an administrator"
	}
	s.logger.Info().Int("player_id", id).Str("reason", reason).Msg("kicking player")
	return exec(ctx, s.fetcher, epKick(id), map[string]any{"id": id, "reason": reason}, s.logger)
}
