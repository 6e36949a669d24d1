package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"

	"github.com/rs/zerolog"
)

// StateRepository is the persisted client state: one string per fixed key.
type StateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStateRepository(sqlDB *sql.DB, logger zerolog.Logger) *StateRepository {
	return &StateRepository{db: sqlDB, logger: logger}
}

func (r *StateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to read client state")
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to write client state")
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	r.logger.Debug().Str("key", key).Msg("client state updated")
	return nil
}

func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (r *StateRepository) Token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	token, _, err := r.Get(ctx, constants.TokenStateKey)
	return token, err
}

func (r *StateRepository) SetToken(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if token == "" {
		return r.Delete(ctx, constants.TokenStateKey)
	}
	return r.Set(ctx, constants.TokenStateKey, token)
}

// StoredMode returns the persisted mode preference, ModeUnknown when unset or unparseable.
func (r *StateRepository) StoredMode(ctx context.Context) (domain.ModeKind, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	raw, ok, err := r.Get(ctx, constants.ModeStateKey)
	if err != nil || !ok {
		return domain.ModeUnknown, err
	}
	kind, valid := domain.ParseModeKind(raw)
	if !valid {
		r.logger.Warn().Str("mode", raw).Msg("ignoring unknown stored mode")
		return domain.ModeUnknown, nil
	}
	return kind, nil
}

func (r *StateRepository) SetStoredMode(ctx context.Context, kind domain.ModeKind) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if kind == domain.ModeUnknown {
		return r.Delete(ctx, constants.ModeStateKey)
	}
	return r.Set(ctx, constants.ModeStateKey, string(kind))
}
