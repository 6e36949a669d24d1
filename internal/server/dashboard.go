package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const DashboardPath = "/ecdashboard.v1.Dashboard/"

// SessionControl is the session surface exposed over RPC.
type SessionControl interface {
	Mode() domain.RuntimeMode
	Authenticated() bool
	SetMode(ctx context.Context, kind domain.ModeKind) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
}

type DashboardServer struct {
	session    SessionControl
	players    *service.PlayerService
	moderation *service.ModerationService
	whitelist  *service.WhitelistService
	data       *service.ServerDataService
	overview   *service.OverviewService
	logger     zerolog.Logger
}

func NewDashboardServer(
	session SessionControl,
	players *service.PlayerService,
	moderation *service.ModerationService,
	whitelist *service.WhitelistService,
	data *service.ServerDataService,
	overview *service.OverviewService,
	logger zerolog.Logger,
) *DashboardServer {
	return &DashboardServer{
		session:    session,
		players:    players,
		moderation: moderation,
		whitelist:  whitelist,
		data:       data,
		overview:   overview,
		logger:     logger.With().Str("component", "dashboard").Logger(),
	}
}

func (s *DashboardServer) modeResponse() *ModeResponse {
	m := s.session.Mode()
	return &ModeResponse{Mode: m.Kind, WebAccess: m.WebAccess, Authenticated: s.session.Authenticated()}
}

func (s *DashboardServer) GetMode(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ModeResponse], error) {
	return connect.NewResponse(s.modeResponse()), nil
}

func (s *DashboardServer) SetMode(ctx context.Context, req *connect.Request[SetModeRequest]) (*connect.Response[ModeResponse], error) {
	kind := domain.ModeUnknown
	if req.Msg.Mode != "" {
		parsed, ok := domain.ParseModeKind(req.Msg.Mode)
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown mode %q", req.Msg.Mode))
		}
		kind = parsed
	}
	if err := s.session.SetMode(ctx, kind); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.modeResponse()), nil
}

func (s *DashboardServer) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[ModeResponse], error) {
	if req.Msg.Username == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("username and password are required"))
	}
	if err := s.session.Login(ctx, req.Msg.Username, req.Msg.Password); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.modeResponse()), nil
}

func (s *DashboardServer) Logout(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ModeResponse], error) {
	if err := s.session.Logout(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(s.modeResponse()), nil
}

// GetOverview serves the polled snapshot, refreshing only when none exists yet.
func (s *DashboardServer) GetOverview(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[domain.Overview], error) {
	if o, ok := s.overview.Snapshot(); ok {
		return connect.NewResponse(&o), nil
	}
	o, err := s.overview.Refresh(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&o), nil
}

func (s *DashboardServer) ListPlayers(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Player]], error) {
	players, err := s.players.List(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(players)), nil
}

func (s *DashboardServer) GetInventory(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[ListResponse[domain.InventoryItem]], error) {
	items, err := s.players.Inventory(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(items)), nil
}

func (s *DashboardServer) KickPlayer(ctx context.Context, req *connect.Request[KickRequest]) (*connect.Response[Empty], error) {
	if err := s.players.Kick(ctx, req.Msg.ID, req.Msg.Reason); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) ListBans(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Ban]], error) {
	bans, err := s.moderation.Bans(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(bans)), nil
}

func (s *DashboardServer) BanPlayer(ctx context.Context, req *connect.Request[domain.BanRequest]) (*connect.Response[Empty], error) {
	if err := s.moderation.Ban(ctx, *req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) UnbanPlayer(ctx context.Context, req *connect.Request[UnbanRequest]) (*connect.Response[Empty], error) {
	if err := s.moderation.Unban(ctx, req.Msg.BanID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) ListWarnings(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Warning]], error) {
	warnings, err := s.moderation.Warnings(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(warnings)), nil
}

func (s *DashboardServer) WarnPlayer(ctx context.Context, req *connect.Request[domain.WarnRequest]) (*connect.Response[Empty], error) {
	if err := s.moderation.Warn(ctx, *req.Msg); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) ListWhitelist(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.WhitelistEntry]], error) {
	entries, err := s.whitelist.List(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(entries)), nil
}

func (s *DashboardServer) AddWhitelist(ctx context.Context, req *connect.Request[WhitelistRequest]) (*connect.Response[Empty], error) {
	if err := s.whitelist.Add(ctx, req.Msg.Identifier, req.Msg.Name); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) RemoveWhitelist(ctx context.Context, req *connect.Request[WhitelistRequest]) (*connect.Response[Empty], error) {
	if err := s.whitelist.Remove(ctx, req.Msg.Identifier); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *DashboardServer) ListDetections(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Detection]], error) {
	detections, err := s.data.Detections(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(detections)), nil
}

func (s *DashboardServer) ListJobs(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Job]], error) {
	jobs, err := s.data.Jobs(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(jobs)), nil
}

func (s *DashboardServer) ListGangs(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Gang]], error) {
	gangs, err := s.data.Gangs(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(gangs)), nil
}

func (s *DashboardServer) ListHousing(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.House]], error) {
	houses, err := s.data.Housing(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(houses)), nil
}

func (s *DashboardServer) GetSettings(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[SettingsMessage], error) {
	settings, err := s.data.Settings(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingsMessage{Settings: settings}), nil
}

func (s *DashboardServer) UpdateSettings(ctx context.Context, req *connect.Request[SettingsMessage]) (*connect.Response[SettingsMessage], error) {
	if err := s.data.UpdateSettings(ctx, req.Msg.Settings); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingsMessage{Settings: req.Msg.Settings}), nil
}

func (s *DashboardServer) ListResources(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListResponse[domain.Resource]], error) {
	resources, err := s.data.Resources(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(list(resources)), nil
}

func (s *DashboardServer) GetMetrics(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[domain.SystemMetrics], error) {
	m, err := s.data.Metrics(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&m), nil
}

// Mount registers every dashboard procedure on mux under DashboardPath.
func (s *DashboardServer) Mount(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	handle := func(name string, h http.Handler) {
		mux.Handle(DashboardPath+name, h)
	}
	handle("GetMode", connect.NewUnaryHandler(DashboardPath+"GetMode", s.GetMode, opts...))
	handle("SetMode", connect.NewUnaryHandler(DashboardPath+"SetMode", s.SetMode, opts...))
	handle("Login", connect.NewUnaryHandler(DashboardPath+"Login", s.Login, opts...))
	handle("Logout", connect.NewUnaryHandler(DashboardPath+"Logout", s.Logout, opts...))
	handle("GetOverview", connect.NewUnaryHandler(DashboardPath+"GetOverview", s.GetOverview, opts...))
	handle("ListPlayers", connect.NewUnaryHandler(DashboardPath+"ListPlayers", s.ListPlayers, opts...))
	handle("GetInventory", connect.NewUnaryHandler(DashboardPath+"GetInventory", s.GetInventory, opts...))
	handle("KickPlayer", connect.NewUnaryHandler(DashboardPath+"KickPlayer", s.KickPlayer, opts...))
	handle("ListBans", connect.NewUnaryHandler(DashboardPath+"ListBans", s.ListBans, opts...))
	handle("BanPlayer", connect.NewUnaryHandler(DashboardPath+"BanPlayer", s.BanPlayer, opts...))
	handle("UnbanPlayer", connect.NewUnaryHandler(DashboardPath+"UnbanPlayer", s.UnbanPlayer, opts...))
	handle("ListWarnings", connect.NewUnaryHandler(DashboardPath+"ListWarnings", s.ListWarnings, opts...))
	handle("WarnPlayer", connect.NewUnaryHandler(DashboardPath+"WarnPlayer", s.WarnPlayer, opts...))
	handle("ListWhitelist", connect.NewUnaryHandler(DashboardPath+"ListWhitelist", s.ListWhitelist, opts...))
	handle("AddWhitelist", connect.NewUnaryHandler(DashboardPath+"AddWhitelist", s.AddWhitelist, opts...))
	handle("RemoveWhitelist", connect.NewUnaryHandler(DashboardPath+"RemoveWhitelist", s.RemoveWhitelist, opts...))
	handle("ListDetections", connect.NewUnaryHandler(DashboardPath+"ListDetections", s.ListDetections, opts...))
	handle("ListJobs", connect.NewUnaryHandler(DashboardPath+"ListJobs", s.ListJobs, opts...))
	handle("ListGangs", connect.NewUnaryHandler(DashboardPath+"ListGangs", s.ListGangs, opts...))
	handle("ListHousing", connect.NewUnaryHandler(DashboardPath+"ListHousing", s.ListHousing, opts...))
	handle("GetSettings", connect.NewUnaryHandler(DashboardPath+"GetSettings", s.GetSettings, opts...))
	handle("UpdateSettings", connect.NewUnaryHandler(DashboardPath+"UpdateSettings", s.UpdateSettings, opts...))
	handle("ListResources", connect.NewUnaryHandler(DashboardPath+"ListResources", s.ListResources, opts...))
	handle("GetMetrics", connect.NewUnaryHandler(DashboardPath+"GetMetrics", s.GetMetrics, opts...))

	s.logger.Debug().Str("path", DashboardPath).Msg("dashboard procedures mounted")
}
