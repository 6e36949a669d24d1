package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/poller"
	"ec-dashboard/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	ep   session.Endpoint
	body any
}

type fakeFetcher struct {
	mode domain.ModeKind

	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []call
}

func newFakeFetcher(mode domain.ModeKind) *fakeFetcher {
	return &fakeFetcher{mode: mode, responses: map[string]string{}, failures: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, ep session.Endpoint, body any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{ep: ep, body: body})
	if err, ok := f.failures[ep.Path]; ok {
		return nil, err
	}
	if res, ok := f.responses[ep.Path]; ok {
		return json.RawMessage(res), nil
	}
	return json.RawMessage("null"), nil
}

func (f *fakeFetcher) Mode() domain.RuntimeMode {
	return domain.RuntimeMode{Kind: f.mode}
}

func (f *fakeFetcher) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for _, c := range f.calls {
		paths = append(paths, c.ep.Path)
	}
	return paths
}

func (f *fakeFetcher) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestFetchDecodes(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	f.responses["/api/players"] = `[{"id":1,"name":"Mika","ping":40},{"id":2,"name":"Jonas","ping":12}]`
	svc := NewPlayerService(f, zerolog.Nop())

	players, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "Jonas", players[1].Name)
}

func TestFetchNullIsEmpty(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	svc := NewServerDataService(f, zerolog.Nop())

	jobs, err := svc.Jobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)

	settings, err := svc.Settings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, settings)
}

func TestFetchShapeMismatchIsServerError(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	f.responses["/api/gangs"] = `{"gangs":"none"}`
	svc := NewServerDataService(f, zerolog.Nop())

	_, err := svc.Gangs(context.Background())
	var callErr *domain.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, domain.KindServerError, callErr.Kind)
}

func TestFetchErrorPassesThrough(t *testing.T) {
	f := newFakeFetcher(domain.ModeCustomerWeb)
	f.failures["/api/host/resources"] = domain.ErrAccessDenied
	svc := NewServerDataService(f, zerolog.Nop())

	_, err := svc.Resources(context.Background())
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestPlayerEndpoints(t *testing.T) {
	f := newFakeFetcher(domain.ModeInGameHost)
	f.responses["/api/players/7"] = `{"id":7,"name":"Mika"}`
	f.responses["/api/players/7/inventory"] = `[{"name":"water","label":"Water","count":3}]`
	svc := NewPlayerService(f, zerolog.Nop())
	ctx := context.Background()

	p, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Mika", p.Name)
	assert.Equal(t, "getPlayer", f.last().ep.Event)

	items, err := svc.Inventory(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, items[0].Count)

	require.NoError(t, svc.Kick(ctx, 7, "  "))
	kick := f.last()
	assert.Equal(t, "POST", kick.ep.Method)
	assert.Equal(t, "kickPlayer", kick.ep.Event)
	assert.Equal(t, map[string]any{"id": 7, "reason": "Kicked by an administrator"}, kick.body)
}

func TestPlayerInvalidIDSkipsFetch(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	svc := NewPlayerService(f, zerolog.Nop())

	_, err := svc.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, svc.Kick(context.Background(), -1, "afk"), ErrInvalidInput)
	assert.Empty(t, f.paths())
}

func TestBanValidation(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	svc := NewModerationService(f, zerolog.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Ban(ctx, domain.BanRequest{Reason: "aimbot"}), ErrInvalidInput)
	assert.ErrorIs(t, svc.Ban(ctx, domain.BanRequest{PlayerID: 3}), ErrInvalidInput)
	assert.ErrorIs(t, svc.Ban(ctx, domain.BanRequest{PlayerID: 3, Reason: "x", DurationHours: -1}), ErrInvalidInput)
	assert.Empty(t, f.paths())

	require.NoError(t, svc.Ban(ctx, domain.BanRequest{Identifier: " license:abc ", Reason: " aimbot "}))
	ban := f.last()
	assert.Equal(t, "/api/moderation/bans", ban.ep.Path)
	assert.Equal(t, domain.BanRequest{Identifier: "license:abc", Reason: "aimbot"}, ban.body)
}

func TestUnbanAndWhitelistRemoveEscapePath(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	ctx := context.Background()

	require.NoError(t, NewModerationService(f, zerolog.Nop()).Unban(ctx, "ban/12"))
	assert.Equal(t, "/api/moderation/bans/ban%2F12", f.last().ep.Path)
	assert.Equal(t, "DELETE", f.last().ep.Method)

	require.NoError(t, NewWhitelistService(f, zerolog.Nop()).Remove(ctx, "license:abc"))
	assert.Equal(t, "/api/whitelist/license:abc", f.last().ep.Path)
}

func TestWarnAndWhitelistAdd(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	ctx := context.Background()

	mod := NewModerationService(f, zerolog.Nop())
	assert.ErrorIs(t, mod.Warn(ctx, domain.WarnRequest{PlayerID: 2}), ErrInvalidInput)
	require.NoError(t, mod.Warn(ctx, domain.WarnRequest{PlayerID: 2, Reason: "RDM"}))
	assert.Equal(t, "warnPlayer", f.last().ep.Event)

	wl := NewWhitelistService(f, zerolog.Nop())
	assert.ErrorIs(t, wl.Add(ctx, " ", "Mika"), ErrInvalidInput)
	require.NoError(t, wl.Add(ctx, "steam:1100001", "Mika"))
	assert.Equal(t, map[string]string{"identifier": "steam:1100001", "name": "Mika"}, f.last().body)
}

func TestUpdateSettings(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	svc := NewServerDataService(f, zerolog.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.UpdateSettings(ctx, domain.Settings{}), ErrInvalidInput)

	f.failures["/api/host/settings"] = domain.ErrAccessDenied
	err := svc.UpdateSettings(ctx, domain.Settings{"maxPlayers": 64})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func newOverview(f *fakeFetcher, clk clock.Clock) *OverviewService {
	logger := zerolog.Nop()
	return NewOverviewService(f,
		NewPlayerService(f, logger),
		NewModerationService(f, logger),
		NewServerDataService(f, logger),
		clk, logger)
}

func seedOverview(f *fakeFetcher) {
	f.responses["/api/players"] = `[{"id":1},{"id":2},{"id":3}]`
	f.responses["/api/moderation/bans"] = `[{"id":"b1"}]`
	f.responses["/api/anticheat/detections"] = `[{"id":"d1"},{"id":"d2"}]`
	f.responses["/api/host/resources"] = `[{"name":"es_extended"},{"name":"ox_lib"},{"name":"ec_admin"},{"name":"oxmysql"}]`
}

func TestOverviewHost(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f := newFakeFetcher(domain.ModeHostWeb)
	seedOverview(f)
	svc := newOverview(f, clk)

	_, ok := svc.Snapshot()
	assert.False(t, ok)

	o, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Overview{
		PlayersOnline: 3,
		Resources:     4,
		ActiveBans:    1,
		Detections:    2,
		UpdatedAt:     clk.Now().UTC(),
	}, o)

	snap, ok := svc.Snapshot()
	require.True(t, ok)
	assert.Equal(t, o, snap)
}

func TestOverviewCustomerSkipsHostSections(t *testing.T) {
	f := newFakeFetcher(domain.ModeCustomerWeb)
	seedOverview(f)
	svc := newOverview(f, clock.NewMock())

	o, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, o.Resources)
	assert.NotContains(t, f.paths(), "/api/host/resources")
}

func TestOverviewSoftFailures(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	seedOverview(f)
	f.failures["/api/moderation/bans"] = &domain.CallError{Kind: domain.KindRateLimited, Message: "Rate limited - Please wait before trying again"}
	svc := newOverview(f, clock.NewMock())

	o, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, o.PlayersOnline)
	assert.Equal(t, []string{"bans: RateLimited: Rate limited - Please wait before trying again"}, o.Errors)
}

func TestOverviewPlayersFailureKeepsSnapshot(t *testing.T) {
	f := newFakeFetcher(domain.ModeHostWeb)
	seedOverview(f)
	svc := newOverview(f, clock.NewMock())

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	f.failures["/api/players"] = errors.New("connection refused")
	f.mu.Unlock()

	_, err = svc.Refresh(context.Background())
	assert.ErrorContains(t, err, "failed to fetch players")

	snap, ok := svc.Snapshot()
	require.True(t, ok)
	assert.Equal(t, first, snap)
}

func TestOverviewPolling(t *testing.T) {
	clk := clock.NewMock()
	f := newFakeFetcher(domain.ModeHostWeb)
	seedOverview(f)
	svc := newOverview(f, clk)
	registry := poller.NewRegistry(poller.Options{Clock: clk}, zerolog.Nop())
	t.Cleanup(registry.StopAll)

	svc.StartPolling(registry, time.Minute)
	_, ok := svc.Snapshot()
	assert.True(t, ok, "first refresh runs before StartPolling returns")
	assert.Equal(t, []string{"overview"}, registry.Keys())

	f.mu.Lock()
	f.responses["/api/players"] = `[{"id":1}]`
	f.mu.Unlock()

	clk.Add(time.Minute)
	require.Eventually(t, func() bool {
		o, _ := svc.Snapshot()
		return o.PlayersOnline == 1
	}, time.Second, time.Millisecond)

	svc.StopPolling(registry)
	assert.Zero(t, registry.Active())
}

func TestBridgeEndpoint(t *testing.T) {
	ep, ok := BridgeEndpoint("getSettings")
	require.True(t, ok)
	assert.Equal(t, "/api/host/settings", ep.Path)

	ep, ok = BridgeEndpoint("unbanPlayer")
	require.True(t, ok)
	assert.Equal(t, "DELETE", ep.Method)
	assert.Equal(t, "/api/moderation/bans/id", ep.Path)

	_, ok = BridgeEndpoint("dropTables")
	assert.False(t, ok)
}
