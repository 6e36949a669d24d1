package server

import (
	"errors"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/service"
	"ec-dashboard/internal/session"

	"connectrpc.com/connect"
)

// toConnectError maps dashboard failures onto connect codes. The CallError
// message is kept so the UI can show it verbatim.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, service.ErrInvalidInput) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if errors.Is(err, session.ErrNotStarted) {
		return connect.NewError(connect.CodeUnavailable, err)
	}

	var callErr *domain.CallError
	if !errors.As(err, &callErr) {
		return connect.NewError(connect.CodeInternal, err)
	}

	code := connect.CodeInternal
	switch callErr.Kind {
	case domain.KindAuthFailure:
		code = connect.CodeUnauthenticated
		if errors.Is(err, domain.ErrAccessDenied) {
			code = connect.CodePermissionDenied
		}
	case domain.KindRateLimited:
		code = connect.CodeResourceExhausted
	case domain.KindNetworkFailure, domain.KindBridgeUnavailable:
		code = connect.CodeUnavailable
	}

	cerr := connect.NewError(code, errors.New(callErr.Message))
	cerr.Meta().Set("Ec-Error-Kind", string(callErr.Kind))
	return cerr
}
