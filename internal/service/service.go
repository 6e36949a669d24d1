package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/session"

	"github.com/rs/zerolog"
)

var ErrInvalidInput = errors.New("invalid input")

// Fetcher is the session surface the page services need.
type Fetcher interface {
	Fetch(ctx context.Context, ep session.Endpoint, body any) (json.RawMessage, error)
	Mode() domain.RuntimeMode
}

func fetch[T any](ctx context.Context, f Fetcher, ep session.Endpoint, body any) (T, error) {
	var v T
	raw, err := f.Fetch(ctx, ep, body)
	if err != nil {
		return v, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &domain.CallError{Kind: domain.KindServerError, Message: fmt.Sprintf("invalid response from %s: %v", ep.Path, err)}
	}
	return v, nil
}

// exec runs an endpoint whose response body carries nothing the caller needs.
func exec(ctx context.Context, f Fetcher, ep session.Endpoint, body any, logger zerolog.Logger) error {
	if _, err := f.Fetch(ctx, ep, body); err != nil {
		logger.Warn().Err(err).Str("path", ep.Path).Msg("dashboard action failed")
		return err
	}
	logger.Info().Str("path", ep.Path).Msg("dashboard action completed")
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
